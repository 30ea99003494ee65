package sources

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maine/youtube_digest/internal/logging"
	"github.com/maine/youtube_digest/internal/video"
)

const defaultWorkers = 10

// FeedSource returns the raw entries of one channel in feed order.
type FeedSource interface {
	FetchEntries(ctx context.Context, channel video.Channel) ([]video.CandidateItem, error)
}

// ChannelBatch is the poll result of one channel.
type ChannelBatch struct {
	Channel video.Channel
	Items   []video.CandidateItem
	Err     error
}

// Poller fetches all channels with a fixed number of workers.
type Poller struct {
	source   FeedSource
	workers  int
	lookback time.Duration
	clock    func() time.Time
	logger   *slog.Logger
}

// NewPoller creates a poller. workers <= 0 means 10.
func NewPoller(source FeedSource, workers int, lookback time.Duration, clock func() time.Time, logger *slog.Logger) *Poller {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if clock == nil {
		clock = time.Now
	}
	return &Poller{
		source:   source,
		workers:  workers,
		lookback: lookback,
		clock:    clock,
		logger:   logging.OrDefault(logger),
	}
}

// Poll fetches every channel once. A failed channel contributes an empty
// batch with Err set; the others are unaffected. Batches follow the order of
// channels, entries keep feed order and are limited to the lookback window.
func (p *Poller) Poll(ctx context.Context, channels []video.Channel) []ChannelBatch {
	batches := make([]ChannelBatch, len(channels))
	cutoff := p.clock().Add(-p.lookback)

	var g errgroup.Group
	g.SetLimit(p.workers)

	for i, ch := range channels {
		g.Go(func() error {
			batches[i] = p.pollChannel(ctx, ch, cutoff)
			// Errors stay in the batch so one channel never cancels the others.
			return nil
		})
	}
	_ = g.Wait()

	return batches
}

func (p *Poller) pollChannel(ctx context.Context, ch video.Channel, cutoff time.Time) ChannelBatch {
	entries, err := p.source.FetchEntries(ctx, ch)
	if err != nil {
		p.logger.Warn("channel fetch failed",
			"channel_id", ch.ID,
			"channel", ch.Label(),
			"error", err)
		return ChannelBatch{Channel: ch, Err: err}
	}

	fresh := make([]video.CandidateItem, 0, len(entries))
	for _, e := range entries {
		if e.PublishedAt.Before(cutoff) {
			continue
		}
		fresh = append(fresh, e)
	}

	p.logger.Debug("channel polled",
		"channel_id", ch.ID,
		"entries", len(entries),
		"fresh", len(fresh))
	return ChannelBatch{Channel: ch, Items: fresh}
}

// Failures counts batches whose fetch failed.
func Failures(batches []ChannelBatch) int {
	n := 0
	for _, b := range batches {
		if b.Err != nil {
			n++
		}
	}
	return n
}

// Total counts entries across batches.
func Total(batches []ChannelBatch) int {
	n := 0
	for _, b := range batches {
		n += len(b.Items)
	}
	return n
}

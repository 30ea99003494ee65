package enrich

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/maine/youtube_digest/internal/logging"
	"github.com/maine/youtube_digest/internal/video"
)

const defaultWorkers = 4

// MetadataSource returns duration, description and popularity of a video.
type MetadataSource interface {
	FetchDetails(ctx context.Context, id string) (video.Details, error)
}

// SeenRecorder receives ids that must never be fetched again.
type SeenRecorder interface {
	Propose(id string, ts time.Time)
}

// Result is the outcome of one enrichment pass.
type Result struct {
	// Qualified keeps the input order.
	Qualified []video.EnrichedItem
	// Short lists ids below the minimum duration; they were recorded as seen.
	Short []string
	// Failed counts items whose details could not be fetched.
	Failed int
	// Dropped counts items never enriched because the quota ran out.
	Dropped        int
	Calls          int
	QuotaExhausted bool
}

// Gate enriches candidates within a quota.
type Gate struct {
	source      MetadataSource
	minDuration int
	workers     int
	clock       func() time.Time
	logger      *slog.Logger
}

// NewGate creates a gate. minDuration is in seconds; workers <= 0 means 4.
func NewGate(source MetadataSource, minDuration, workers int, clock func() time.Time, logger *slog.Logger) *Gate {
	if workers <= 0 {
		workers = defaultWorkers
	}
	if clock == nil {
		clock = time.Now
	}
	return &Gate{
		source:      source,
		minDuration: minDuration,
		workers:     workers,
		clock:       clock,
		logger:      logging.OrDefault(logger),
	}
}

type outcome int

const (
	outcomeDropped outcome = iota
	outcomeQualified
	outcomeShort
)

// Enrich fetches details for every item while budget allows. Quota is taken in
// input order before a fetch is dispatched, so once it runs out every later
// item is dropped and no further call is made. A failed fetch counts as a
// zero-length video unless ctx is done, in which case the item is dropped.
// Items shorter than the minimum are recorded in seen.
func (g *Gate) Enrich(ctx context.Context, items []video.CandidateItem, budget *QuotaBudget, seen SeenRecorder) Result {
	outcomes := make([]outcome, len(items))
	enriched := make([]video.EnrichedItem, len(items))
	failed := make([]bool, len(items))

	var res Result
	var eg errgroup.Group
	eg.SetLimit(g.workers)

	for i, item := range items {
		if ctx.Err() != nil {
			break
		}
		if !budget.TryAcquire() {
			res.QuotaExhausted = true
			g.logger.Warn("metadata quota exhausted, remaining candidates dropped",
				"calls", budget.Used(),
				"dropped", len(items)-i)
			break
		}
		res.Calls++

		eg.Go(func() error {
			d, err := g.source.FetchDetails(ctx, item.ID)
			if err != nil && ctx.Err() != nil {
				// Interrupted: the item was never evaluated and stays unrecorded.
				return nil
			}
			if err != nil {
				g.logger.Warn("details fetch failed", "video_id", item.ID, "error", err)
				d = video.FailedDetails
				failed[i] = true
			}

			enriched[i] = video.Enrich(item, d)
			if d.DurationSeconds < g.minDuration {
				outcomes[i] = outcomeShort
			} else {
				outcomes[i] = outcomeQualified
			}
			return nil
		})
	}
	_ = eg.Wait()

	now := g.clock()
	for i, item := range items {
		if failed[i] {
			res.Failed++
		}
		switch outcomes[i] {
		case outcomeQualified:
			res.Qualified = append(res.Qualified, enriched[i])
			g.logger.Debug("candidate",
				"video_id", item.ID,
				"title", item.Title,
				"duration", video.FormatDuration(enriched[i].DurationSeconds),
				"views", video.FormatViews(enriched[i].Views))
		case outcomeShort:
			res.Short = append(res.Short, item.ID)
			seen.Propose(item.ID, now)
		default:
			res.Dropped++
		}
	}

	return res
}

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/maine/youtube_digest/internal/digest"
	"github.com/maine/youtube_digest/internal/enrich"
	"github.com/maine/youtube_digest/internal/filter"
	"github.com/maine/youtube_digest/internal/logging"
	"github.com/maine/youtube_digest/internal/metrics"
	"github.com/maine/youtube_digest/internal/ranking"
	"github.com/maine/youtube_digest/internal/sources"
	"github.com/maine/youtube_digest/internal/state"
	"github.com/maine/youtube_digest/internal/video"
)

// ErrNotConfigured is returned when the pipeline runs without a required dependency.
var ErrNotConfigured = errors.New("pipeline dependencies not configured")

// Clock is the time source (replaced in tests).
type Clock func() time.Time

// Poller fetches the recent entries of every channel.
type Poller interface {
	Poll(ctx context.Context, channels []video.Channel) []sources.ChannelBatch
}

// HistoryStore loads the seen-videos history and commits it once per run.
type HistoryStore interface {
	Load(ctx context.Context) (*state.History, error)
	Commit(ctx context.Context, h *state.History) error
}

// Enricher fetches metadata within a quota.
type Enricher interface {
	Enrich(ctx context.Context, items []video.CandidateItem, budget *enrich.QuotaBudget, seen enrich.SeenRecorder) enrich.Result
}

// PreFilter drops candidates by title and popularity rules.
type PreFilter interface {
	Apply(items []video.EnrichedItem) ([]video.EnrichedItem, []filter.Rejection)
}

// Ranker picks the top-N candidates.
type Ranker interface {
	Rank(ctx context.Context, items []video.EnrichedItem, profile video.Profile, n int) ranking.Outcome
}

// Summarizer writes one summary per ranked item.
type Summarizer interface {
	SummarizeAll(ctx context.Context, items []video.RankedItem) []string
}

// Sender delivers a digest to one sink.
type Sender interface {
	Name() string
	Send(ctx context.Context, d video.Digest) error
}

// MetricsRecorder exports the run statistics.
type MetricsRecorder interface {
	Record(s metrics.RunStats, finishedAt time.Time)
}

// PipelineDeps lists the pipeline dependencies and run parameters.
type PipelineDeps struct {
	Channels   []video.Channel
	Profile    video.Profile
	TopN       int
	QuotaLimit int

	Poller     Poller
	History    HistoryStore
	Enricher   Enricher
	Filter     PreFilter
	Ranker     Ranker
	Summarizer Summarizer
	Senders    []Sender
	Metrics    MetricsRecorder
	Clock      Clock
	Logger     *slog.Logger
}

// Report describes a finished run.
type Report struct {
	RunID string
	metrics.RunStats
	Digest video.Digest
}

// Pipeline runs one digest cycle.
type Pipeline struct {
	channels   []video.Channel
	profile    video.Profile
	topN       int
	quotaLimit int

	poller     Poller
	history    HistoryStore
	enricher   Enricher
	filter     PreFilter
	ranker     Ranker
	summarizer Summarizer
	senders    []Sender
	metrics    MetricsRecorder
	clock      Clock
	logger     *slog.Logger
}

// NewPipeline creates a pipeline.
func NewPipeline(deps PipelineDeps) *Pipeline {
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}

	senders := make([]Sender, 0, len(deps.Senders))
	for _, s := range deps.Senders {
		if s != nil {
			senders = append(senders, s)
		}
	}

	return &Pipeline{
		channels:   deps.Channels,
		profile:    deps.Profile,
		topN:       deps.TopN,
		quotaLimit: deps.QuotaLimit,
		poller:     deps.Poller,
		history:    deps.History,
		enricher:   deps.Enricher,
		filter:     deps.Filter,
		ranker:     deps.Ranker,
		summarizer: deps.Summarizer,
		senders:    senders,
		metrics:    deps.Metrics,
		clock:      clock,
		logger:     logging.OrDefault(deps.Logger),
	}
}

// Run executes the full cycle: poll, dedup, enrich, filter, rank, summarize,
// deliver, commit history. Delivery failures are logged and do not fail the
// run; only history I/O, assembly errors and cancellation do.
func (p *Pipeline) Run(ctx context.Context) (Report, error) {
	if err := p.validateDeps(); err != nil {
		return Report{}, err
	}

	started := p.clock()
	report := Report{RunID: uuid.NewString()}
	report.Channels = len(p.channels)
	log := p.logger.With("run_id", report.RunID)

	hist, err := p.history.Load(ctx)
	if err != nil {
		return report, fmt.Errorf("load history: %w", err)
	}
	log.Info("history loaded", "records", hist.Len())

	batches := p.poller.Poll(ctx, p.channels)
	report.ChannelFailures = sources.Failures(batches)
	report.Polled = sources.Total(batches)

	fresh := filter.Fresh(batches, hist)
	report.Fresh = len(fresh)
	log.Info("channels polled",
		"channels", len(p.channels),
		"failed", report.ChannelFailures,
		"recent", report.Polled,
		"fresh", report.Fresh)

	budget := enrich.NewQuotaBudget(p.quotaLimit)
	enriched := p.enricher.Enrich(ctx, fresh, budget, hist)
	report.EnrichCalls = enriched.Calls
	report.QuotaExhausted = enriched.QuotaExhausted
	report.Short = len(enriched.Short)
	report.Qualified = len(enriched.Qualified)
	log.Info("candidates enriched",
		"calls", enriched.Calls,
		"qualified", report.Qualified,
		"short", report.Short,
		"failed", enriched.Failed,
		"dropped", enriched.Dropped)

	if len(enriched.Qualified) == 0 {
		log.Info("no new long-form videos")
		return p.finish(ctx, log, hist, report, started)
	}

	kept, rejected := p.filter.Apply(enriched.Qualified)
	report.Filtered = len(kept)
	for _, r := range rejected {
		log.Debug("candidate filtered", "video_id", r.Item.ID, "title", r.Item.Title, "reason", r.Reason)
	}
	log.Info("candidates pre-filtered", "kept", len(kept), "rejected", len(rejected))

	if len(kept) > 0 {
		if err := p.produce(ctx, log, kept, &report); err != nil {
			return report, err
		}
	} else {
		log.Info("all candidates filtered out")
	}

	// Every qualified candidate was considered once; none is offered again.
	now := p.clock()
	for _, it := range enriched.Qualified {
		hist.Propose(it.ID, now)
	}

	return p.finish(ctx, log, hist, report, started)
}

// produce ranks, summarizes, assembles and delivers the digest.
func (p *Pipeline) produce(ctx context.Context, log *slog.Logger, kept []video.EnrichedItem, report *Report) error {
	outcome := p.ranker.Rank(ctx, kept, p.profile, p.topN)
	ranked := digest.Rank(kept, outcome.Picks)
	report.Ranked = len(ranked)
	report.RankingSource = outcome.Source
	log.Info("candidates ranked", "source", outcome.Source, "picked", len(ranked))

	summaries := p.summarizer.SummarizeAll(ctx, ranked)

	d, err := digest.Assemble(p.clock(), ranked, summaries)
	if err != nil {
		return fmt.Errorf("assemble digest: %w", err)
	}
	report.Digest = d

	p.deliver(ctx, log, d, report)
	return nil
}

// deliver hands the digest to every sink. One failing sink never blocks another.
func (p *Pipeline) deliver(ctx context.Context, log *slog.Logger, d video.Digest, report *Report) {
	if d.Empty() {
		return
	}
	for _, s := range p.senders {
		if err := s.Send(ctx, d); err != nil {
			report.DeliveryErrors++
			log.Error("digest delivery failed", "sink", s.Name(), "error", err)
			continue
		}
		report.Delivered++
		log.Info("digest delivered", "sink", s.Name(), "entries", len(d.Entries))
	}
}

func (p *Pipeline) finish(ctx context.Context, log *slog.Logger, hist *state.History, report Report, started time.Time) (Report, error) {
	// An interrupted run leaves history untouched so its candidates come back next time.
	if err := ctx.Err(); err != nil {
		log.Warn("run interrupted, history not committed", "pending", hist.Pending())
		return report, fmt.Errorf("run interrupted: %w", err)
	}

	pending := hist.Pending()
	if err := p.history.Commit(ctx, hist); err != nil {
		return report, fmt.Errorf("commit history: %w", err)
	}

	finished := p.clock()
	report.Duration = finished.Sub(started)
	if p.metrics != nil {
		p.metrics.Record(report.RunStats, finished)
	}

	log.Info("run finished",
		"history_added", pending,
		"ranked", report.Ranked,
		"ranking_source", report.RankingSource,
		"delivered", report.Delivered,
		"delivery_errors", report.DeliveryErrors,
		"duration", report.Duration)
	return report, nil
}

func (p *Pipeline) validateDeps() error {
	switch {
	case p.poller == nil,
		p.history == nil,
		p.enricher == nil,
		p.filter == nil,
		p.ranker == nil,
		p.summarizer == nil,
		p.clock == nil,
		p.topN <= 0:
		return ErrNotConfigured
	default:
		return nil
	}
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/maine/youtube_digest/internal/app"
	"github.com/maine/youtube_digest/internal/config"
	"github.com/maine/youtube_digest/internal/enrich"
	"github.com/maine/youtube_digest/internal/feishu"
	"github.com/maine/youtube_digest/internal/filter"
	"github.com/maine/youtube_digest/internal/gemini"
	"github.com/maine/youtube_digest/internal/logging"
	"github.com/maine/youtube_digest/internal/metrics"
	"github.com/maine/youtube_digest/internal/minimax"
	"github.com/maine/youtube_digest/internal/ranking"
	"github.com/maine/youtube_digest/internal/sources"
	"github.com/maine/youtube_digest/internal/state"
	"github.com/maine/youtube_digest/internal/summary"
	"github.com/maine/youtube_digest/internal/youtube"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one digest cycle",
	RunE:  runDigest,
}

// settings bundles what every subcommand loads first.
type settings struct {
	cfg    config.Root
	env    *config.EnvConfig
	logger *slog.Logger
}

func loadSettings() (settings, error) {
	cfg, err := config.LoadRoot(flagConfig)
	if err != nil {
		return settings{}, fmt.Errorf("load pipeline config: %w", err)
	}
	env, err := config.LoadEnvConfig(flagEnv)
	if err != nil {
		return settings{}, fmt.Errorf("load env config: %w", err)
	}
	if env.MinimaxAPIBase != "" {
		cfg.Oracles.MinimaxBase = env.MinimaxAPIBase
	}
	return settings{
		cfg:    cfg,
		env:    env,
		logger: logging.New(cfg.Logging.Level, cfg.Logging.Format),
	}, nil
}

func runDigest(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	s, err := loadSettings()
	if err != nil {
		return err
	}
	logger := s.logger
	pcfg := s.cfg.Pipeline

	channels, err := config.LoadChannels(pcfg.ChannelsFile)
	if err != nil {
		return err
	}
	if len(channels) == 0 {
		return fmt.Errorf("no channels configured in %s", pcfg.ChannelsFile)
	}

	profile, found, err := config.LoadProfile(pcfg.ProfileFile)
	if err != nil {
		return err
	}
	if !found {
		logger.Info("profile file not found, using default profile", "path", pcfg.ProfileFile)
	}

	if s.env.YouTubeAPIKey == "" {
		logger.Warn("YOUTUBE_API_KEY not set, durations and views are unknown")
	}

	mdl, err := buildModels(ctx, s)
	if err != nil {
		return err
	}

	m := metrics.New()
	feed := sources.NewYouTubeFeed(sources.DefaultFeedBaseURL, nil)
	meta := youtube.NewClient(s.env.YouTubeAPIKey, youtube.Options{Logger: logger})
	transcripts := youtube.NewTranscriptClient(youtube.TranscriptOptions{
		Languages: pcfg.TranscriptLanguages,
		Logger:    logger,
	})

	p := app.NewPipeline(app.PipelineDeps{
		Channels:   channels,
		Profile:    profile,
		TopN:       pcfg.TopN,
		QuotaLimit: pcfg.QuotaLimit,
		Poller:     sources.NewPoller(feed, pcfg.PollWorkers, pcfg.Lookback(), time.Now, logger),
		History:    state.NewFileStore(pcfg.HistoryFile, pcfg.Retention(), time.Now, logger),
		Enricher:   enrich.NewGate(meta, pcfg.MinDuration(), pcfg.EnrichWorkers, time.Now, logger),
		Filter:     filter.New(profile, pcfg.PopularityFloor),
		Ranker:     ranking.NewRanker(mdl.oracles, s.cfg.Oracles.Timeout(), logger),
		Summarizer: summary.NewSummarizer(mdl.summarizer, 0, logger).WithTranscripts(transcripts),
		Senders:    buildSenders(s, logger),
		Metrics:    m,
		Logger:     logger,
	})

	logger.Info("digest started",
		"channels", len(channels),
		"lookback_hours", pcfg.LookbackHours,
		"min_duration_minutes", pcfg.MinDurationMinutes,
		"top_n", pcfg.TopN,
		"oracles", len(mdl.oracles))

	report, err := p.Run(ctx)
	if err != nil {
		return fmt.Errorf("pipeline failed: %w", err)
	}

	if err := m.Push(ctx, s.cfg.Metrics.PushgatewayURL, s.cfg.Metrics.Job); err != nil {
		logger.Warn("metrics push failed", "error", err)
	}

	logger.Info("digest completed", "run_id", report.RunID, "entries", len(report.Digest.Entries))
	return nil
}

type models struct {
	oracles    []ranking.Oracle
	summarizer summary.Generator
}

// buildModels creates the oracles in configured order. Models without
// credentials are left out. Summaries prefer MiniMax, then Gemini.
func buildModels(ctx context.Context, s settings) (models, error) {
	var (
		geminiModel  *gemini.Model
		minimaxModel *minimax.Client
	)

	if s.env.GeminiAPIKey != "" {
		client, err := gemini.NewClient(ctx, s.env.GeminiAPIKey, gemini.Options{Logger: s.logger})
		if err != nil {
			return models{}, err
		}
		geminiModel = gemini.NewModel(client, s.cfg.Oracles.GeminiModel)
	}
	if s.env.MinimaxAPIKey != "" {
		minimaxModel = minimax.NewClient(s.env.MinimaxAPIKey, s.cfg.Oracles.MinimaxBase, s.cfg.Oracles.MinimaxModel, nil)
	}

	var out models
	for _, name := range s.cfg.Oracles.Order {
		switch name {
		case "gemini":
			if geminiModel != nil {
				out.oracles = append(out.oracles, geminiModel)
			} else {
				s.logger.Info("GEMINI_API_KEY not set, gemini oracle disabled")
			}
		case "minimax":
			if minimaxModel != nil {
				out.oracles = append(out.oracles, minimaxModel)
			} else {
				s.logger.Info("MINIMAX_API_KEY not set, minimax oracle disabled")
			}
		default:
			s.logger.Warn("unknown oracle in config", "name", name)
		}
	}

	switch {
	case minimaxModel != nil:
		out.summarizer = minimaxModel
	case geminiModel != nil:
		out.summarizer = geminiModel
	}
	return out, nil
}

// buildSenders wires every sink that has credentials. Without a direct
// message target the digest is printed to stdout instead.
func buildSenders(s settings, logger *slog.Logger) []app.Sender {
	var senders []app.Sender

	if s.env.HasFeishuApp() && s.env.FeishuUserID != "" {
		client := feishu.NewClient(s.env.FeishuAppID, s.env.FeishuAppSecret, "", nil)
		senders = append(senders, feishu.NewDirectSender(client, s.env.FeishuUserID, logger))
	} else {
		logger.Warn("feishu app credentials or FEISHU_USER_ID not set, printing digest to stdout")
		senders = append(senders, feishu.NewLogSender(os.Stdout))
	}

	if s.env.FeishuWebhookURL != "" {
		senders = append(senders, feishu.NewWebhookSender(s.env.FeishuWebhookURL, nil, logger))
	}
	return senders
}

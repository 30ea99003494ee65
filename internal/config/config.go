package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/maine/youtube_digest/internal/video"
)

type (
	// Root combines all configuration blocks of configs/pipeline.yaml.
	Root struct {
		Pipeline Pipeline `yaml:"pipeline"`
		Oracles  Oracles  `yaml:"oracles"`
		Logging  Logging  `yaml:"logging"`
		Metrics  Metrics  `yaml:"metrics"`
	}

	// Pipeline holds the run-level knobs of the digest pipeline.
	Pipeline struct {
		LookbackHours      int    `yaml:"lookback_hours"`
		MinDurationMinutes int    `yaml:"min_duration_minutes"` // shorter videos are treated as Shorts
		TopN               int    `yaml:"top_n"`
		QuotaLimit         int    `yaml:"quota_limit"` // max metadata API calls per run
		HistoryMaxDays     int    `yaml:"history_max_days"`
		PopularityFloor    int64  `yaml:"popularity_floor"`
		PollWorkers        int    `yaml:"poll_workers"`
		EnrichWorkers      int    `yaml:"enrich_workers"`
		HistoryFile        string `yaml:"history_file"`
		ChannelsFile       string `yaml:"channels_file"`
		ProfileFile        string `yaml:"profile_file"`
		// TranscriptLanguages orders caption languages for summaries.
		TranscriptLanguages []string `yaml:"transcript_languages"`
	}

	// Oracles configures the ranking and summary models.
	Oracles struct {
		Order          []string `yaml:"order"`
		GeminiModel    string   `yaml:"gemini_model"`
		MinimaxModel   string   `yaml:"minimax_model"`
		MinimaxBase    string   `yaml:"minimax_base"`
		TimeoutSeconds int      `yaml:"timeout_seconds"`
	}

	// Logging selects the slog handler.
	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	}

	// Metrics configures the optional Prometheus Pushgateway export.
	Metrics struct {
		PushgatewayURL string `yaml:"pushgateway_url"`
		Job            string `yaml:"job"`
	}

	// ChannelsRoot is the layout of channels.yaml.
	ChannelsRoot struct {
		Channels []video.Channel `yaml:"channels"`
	}
)

// Default returns the configuration used for every field left empty.
func Default() Root {
	return Root{
		Pipeline: Pipeline{
			LookbackHours:       24,
			MinDurationMinutes:  3,
			TopN:                5,
			QuotaLimit:          3000,
			HistoryMaxDays:      30,
			PopularityFloor:     200,
			PollWorkers:         10,
			EnrichWorkers:       4,
			HistoryFile:         "state/history.json",
			ChannelsFile:        "configs/channels.yaml",
			ProfileFile:         "configs/profile.yaml",
			TranscriptLanguages: []string{"en"},
		},
		Oracles: Oracles{
			Order:          []string{"gemini", "minimax"},
			GeminiModel:    "gemini-3-flash-preview",
			MinimaxModel:   "MiniMax-M2.1",
			MinimaxBase:    "https://api.minimaxi.com/anthropic",
			TimeoutSeconds: 60,
		},
		Logging: Logging{Level: "info", Format: "text"},
		Metrics: Metrics{Job: "youtube_digest"},
	}
}

// Lookback returns the recency window.
func (p Pipeline) Lookback() time.Duration {
	return time.Duration(p.LookbackHours) * time.Hour
}

// MinDuration returns the minimum qualifying duration in seconds.
func (p Pipeline) MinDuration() int {
	return p.MinDurationMinutes * 60
}

// Retention returns the history retention horizon.
func (p Pipeline) Retention() time.Duration {
	return time.Duration(p.HistoryMaxDays) * 24 * time.Hour
}

// Timeout returns the per-call oracle timeout.
func (o Oracles) Timeout() time.Duration {
	return time.Duration(o.TimeoutSeconds) * time.Second
}

// LoadRoot reads the main configuration file. A missing file yields defaults.
func LoadRoot(path string) (Root, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Root{}, fmt.Errorf("read config: %w", err)
	}

	var loaded Root
	if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Root{}, fmt.Errorf("unmarshal config: %w", err)
	}
	return merge(cfg, loaded), nil
}

// LoadChannels reads the list of subscribed channels.
func LoadChannels(path string) ([]video.Channel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read channels config: %w", err)
	}

	var cfg ChannelsRoot
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal channels config: %w", err)
	}

	channels := make([]video.Channel, 0, len(cfg.Channels))
	for _, ch := range cfg.Channels {
		if ch.ID == "" {
			continue
		}
		channels = append(channels, ch)
	}
	return channels, nil
}

// SaveChannels writes channels.yaml.
func SaveChannels(path string, channels []video.Channel) error {
	data, err := yaml.Marshal(ChannelsRoot{Channels: channels})
	if err != nil {
		return fmt.Errorf("marshal channels config: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("write channels config: %w", err)
	}
	return nil
}

// LoadProfile reads the reader profile. A missing file yields the default profile.
func LoadProfile(path string) (video.Profile, bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return video.DefaultProfile(), false, nil
		}
		return video.Profile{}, false, fmt.Errorf("read profile: %w", err)
	}

	var profile video.Profile
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return video.Profile{}, false, fmt.Errorf("unmarshal profile: %w", err)
	}
	return profile, true, nil
}

func merge(def, cfg Root) Root {
	p := &cfg.Pipeline
	d := def.Pipeline
	if p.LookbackHours <= 0 {
		p.LookbackHours = d.LookbackHours
	}
	if p.MinDurationMinutes <= 0 {
		p.MinDurationMinutes = d.MinDurationMinutes
	}
	if p.TopN <= 0 {
		p.TopN = d.TopN
	}
	if p.QuotaLimit <= 0 {
		p.QuotaLimit = d.QuotaLimit
	}
	if p.HistoryMaxDays <= 0 {
		p.HistoryMaxDays = d.HistoryMaxDays
	}
	if p.PopularityFloor <= 0 {
		p.PopularityFloor = d.PopularityFloor
	}
	if p.PollWorkers <= 0 {
		p.PollWorkers = d.PollWorkers
	}
	if p.EnrichWorkers <= 0 {
		p.EnrichWorkers = d.EnrichWorkers
	}
	if p.HistoryFile == "" {
		p.HistoryFile = d.HistoryFile
	}
	if p.ChannelsFile == "" {
		p.ChannelsFile = d.ChannelsFile
	}
	if p.ProfileFile == "" {
		p.ProfileFile = d.ProfileFile
	}
	if len(p.TranscriptLanguages) == 0 {
		p.TranscriptLanguages = d.TranscriptLanguages
	}

	o := &cfg.Oracles
	if len(o.Order) == 0 {
		o.Order = def.Oracles.Order
	}
	if o.GeminiModel == "" {
		o.GeminiModel = def.Oracles.GeminiModel
	}
	if o.MinimaxModel == "" {
		o.MinimaxModel = def.Oracles.MinimaxModel
	}
	if o.MinimaxBase == "" {
		o.MinimaxBase = def.Oracles.MinimaxBase
	}
	if o.TimeoutSeconds <= 0 {
		o.TimeoutSeconds = def.Oracles.TimeoutSeconds
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = def.Logging.Level
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = def.Logging.Format
	}
	if cfg.Metrics.Job == "" {
		cfg.Metrics.Job = def.Metrics.Job
	}
	return cfg
}

// Package metrics exposes Prometheus metrics for a digest run.
//
// A run is a short-lived batch job, so metrics live in a private registry and
// are pushed to a Pushgateway at the end of the run when one is configured.
package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "ytdigest"

// RunStats is the per-run summary recorded after the pipeline finished.
type RunStats struct {
	Channels        int
	ChannelFailures int
	Polled          int
	Fresh           int
	EnrichCalls     int
	QuotaExhausted  bool
	Short           int
	Qualified       int
	Filtered        int
	Ranked          int
	RankingSource   string
	Delivered       int
	DeliveryErrors  int
	Duration        time.Duration
}

// Metrics holds the gauges of a single run.
type Metrics struct {
	registry *prometheus.Registry

	items          *prometheus.GaugeVec
	channels       *prometheus.GaugeVec
	enrichCalls    prometheus.Gauge
	quotaExhausted prometheus.Gauge
	rankingSource  *prometheus.GaugeVec
	deliveries     *prometheus.GaugeVec
	runDuration    prometheus.Gauge
	lastRun        prometheus.Gauge
}

// New registers all run metrics in a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		items: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "items",
				Help:      "Number of videos per pipeline stage in the last run",
			},
			[]string{"stage"},
		),
		channels: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "channels",
				Help:      "Number of polled channels by outcome",
			},
			[]string{"status"},
		),
		enrichCalls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "enrich_calls",
			Help:      "Metadata API calls issued in the last run",
		}),
		quotaExhausted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "quota_exhausted",
			Help:      "1 if the metadata quota was exhausted in the last run",
		}),
		rankingSource: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "ranking_source",
				Help:      "Ranking source used in the last run (oracle name or fallback)",
			},
			[]string{"source"},
		),
		deliveries: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "deliveries",
				Help:      "Digest deliveries by outcome",
			},
			[]string{"status"},
		),
		runDuration: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_duration_seconds",
			Help:      "Wall time of the last run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
	}

	m.registry.MustRegister(
		m.items,
		m.channels,
		m.enrichCalls,
		m.quotaExhausted,
		m.rankingSource,
		m.deliveries,
		m.runDuration,
		m.lastRun,
	)
	return m
}

// Registry returns the registry the metrics live in.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Record stores the stats of a finished run.
func (m *Metrics) Record(s RunStats, finishedAt time.Time) {
	m.items.WithLabelValues("polled").Set(float64(s.Polled))
	m.items.WithLabelValues("fresh").Set(float64(s.Fresh))
	m.items.WithLabelValues("short").Set(float64(s.Short))
	m.items.WithLabelValues("qualified").Set(float64(s.Qualified))
	m.items.WithLabelValues("filtered").Set(float64(s.Filtered))
	m.items.WithLabelValues("ranked").Set(float64(s.Ranked))

	m.channels.WithLabelValues("ok").Set(float64(s.Channels - s.ChannelFailures))
	m.channels.WithLabelValues("failed").Set(float64(s.ChannelFailures))

	m.enrichCalls.Set(float64(s.EnrichCalls))
	if s.QuotaExhausted {
		m.quotaExhausted.Set(1)
	} else {
		m.quotaExhausted.Set(0)
	}

	m.rankingSource.Reset()
	if s.RankingSource != "" {
		m.rankingSource.WithLabelValues(s.RankingSource).Set(1)
	}

	m.deliveries.WithLabelValues("ok").Set(float64(s.Delivered))
	m.deliveries.WithLabelValues("failed").Set(float64(s.DeliveryErrors))

	m.runDuration.Set(s.Duration.Seconds())
	m.lastRun.Set(float64(finishedAt.Unix()))
}

// Push sends the registry to a Pushgateway. An empty url is a no-op.
func (m *Metrics) Push(ctx context.Context, url, job string) error {
	if url == "" {
		return nil
	}
	if err := push.New(url, job).Gatherer(m.registry).PushContext(ctx); err != nil {
		return fmt.Errorf("push metrics: %w", err)
	}
	return nil
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// risk-atlas pipeline.
type Metrics struct {
	ObservationsExtracted *prometheus.CounterVec // labels: variable
	RowsFused             prometheus.Counter
	JoinMismatches        prometheus.Counter
	UndefinedRatios       prometheus.Counter

	ModelRSquared  *prometheus.GaugeVec // labels: model={flood,groundwater}
	BlocksScored   prometheus.Counter
	Classified     *prometheus.CounterVec // labels: class={critical,non_critical}
	TrendsComputed prometheus.Counter
	TrendsSkipped  prometheus.Counter

	StageDuration   *prometheus.HistogramVec // labels: stage
	EventsPublished prometheus.Counter

	// Remote extraction metrics.
	RemoteRequests    *prometheus.CounterVec   // labels: variable, outcome={success,error,empty}
	RemoteCache       *prometheus.CounterVec   // labels: result={hit,miss}
	RemoteAPIDuration *prometheus.HistogramVec // labels: variable
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.ObservationsExtracted,
		m.RowsFused,
		m.JoinMismatches,
		m.UndefinedRatios,
		m.ModelRSquared,
		m.BlocksScored,
		m.Classified,
		m.TrendsComputed,
		m.TrendsSkipped,
		m.StageDuration,
		m.EventsPublished,
		m.RemoteRequests,
		m.RemoteCache,
		m.RemoteAPIDuration,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		ObservationsExtracted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "observations_extracted_total",
			Help:      "Climate observations produced by the extraction stage, by variable.",
		}, []string{"variable"}),
		RowsFused: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "rows_fused_total",
			Help:      "Feature rows produced by the fusion stage.",
		}),
		JoinMismatches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "fusion_join_mismatches_total",
			Help:      "Block-periods present in one variable table but absent in another.",
		}),
		UndefinedRatios: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "undefined_ratios_total",
			Help:      "ET/rain ratios flagged undefined due to zero rainfall.",
		}),
		ModelRSquared: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "risk_atlas",
			Name:      "model_r_squared",
			Help:      "Goodness of fit of the last trained model, by model name.",
		}, []string{"model"}),
		BlocksScored: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "blocks_scored_total",
			Help:      "Blocks assigned a compound risk score.",
		}),
		Classified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "blocks_classified_total",
			Help:      "Classification outcomes by class.",
		}, []string{"class"}),
		TrendsComputed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "trends_computed_total",
			Help:      "Blocks with a fitted stress trend.",
		}),
		TrendsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "trends_skipped_total",
			Help:      "Blocks excluded from trend fitting for having fewer than two distinct years.",
		}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "risk_atlas",
			Name:      "stage_duration_seconds",
			Help:      "Wall time of each pipeline stage.",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"stage"}),
		EventsPublished: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "events_published_total",
			Help:      "Scored-block events published to the sink topic.",
		}),
		RemoteRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "remote_requests_total",
			Help:      "Remote sensing platform requests by variable and outcome.",
		}, []string{"variable", "outcome"}),
		RemoteCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk_atlas",
			Name:      "remote_cache_total",
			Help:      "Remote result cache lookups by result.",
		}, []string{"result"}),
		RemoteAPIDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "risk_atlas",
			Name:      "remote_api_duration_seconds",
			Help:      "Remote platform request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"variable"}),
	}
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "storm_alerts"

// Metrics holds the Prometheus counters, histograms, and gauges for the alert pipeline.
type Metrics struct {
	EventsIngested  prometheus.Counter
	EventsSkipped   prometheus.Counter
	EventsTruncated prometheus.Counter
	EventsRetained  prometheus.Gauge
	PipelineRunning prometheus.Gauge

	// Processing cycle metrics.
	CycleDuration  prometheus.Histogram
	AlertsComposed *prometheus.CounterVec // labels: kind={clip,speech}

	// Dispatcher metrics.
	AlertsPlayed   *prometheus.CounterVec // labels: kind={clip,speech}
	PlaybackErrors prometheus.Counter
	QueueDepth     prometheus.Gauge

	// Feed polling metrics.
	FeedPolls         *prometheus.CounterVec // labels: outcome={success,error,empty}
	FeedFetchDuration prometheus.Histogram

	// Alert fan-out metrics.
	AlertsPublished *prometheus.CounterVec // labels: outcome={success,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.EventsIngested,
		m.EventsSkipped,
		m.EventsTruncated,
		m.EventsRetained,
		m.PipelineRunning,
		m.CycleDuration,
		m.AlertsComposed,
		m.AlertsPlayed,
		m.PlaybackErrors,
		m.QueueDepth,
		m.FeedPolls,
		m.FeedFetchDuration,
		m.AlertsPublished,
	)
	return m
}

// NewMetricsForTesting creates unregistered Metrics to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		EventsIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Total events appended to the event log.",
		}),
		EventsSkipped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_skipped_total",
			Help:      "Feed records dropped because they failed to decode.",
		}),
		EventsTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_truncated_total",
			Help:      "Total events dropped by the retention window.",
		}),
		EventsRetained: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "events_retained",
			Help:      "Events currently held in the event log.",
		}),
		PipelineRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pipeline_running",
			Help:      "1 when the feed poller is active, 0 when shut down.",
		}),
		CycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "cycle_duration_seconds",
			Help:      "Duration of a processing cycle over the event log.",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		}),
		AlertsComposed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_composed_total",
			Help:      "Alerts composed for newly seen relevant events, by kind.",
		}, []string{"kind"}),
		AlertsPlayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_played_total",
			Help:      "Alerts that began playback, by kind.",
		}, []string{"kind"}),
		PlaybackErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "playback_errors_total",
			Help:      "Playback completions that reported an error.",
		}),
		QueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_depth",
			Help:      "Alerts waiting in the notification queue.",
		}),
		FeedPolls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "feed_polls_total",
			Help:      "Feed polls by outcome.",
		}, []string{"outcome"}),
		FeedFetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "feed_fetch_duration_seconds",
			Help:      "Event feed request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}),
		AlertsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_published_total",
			Help:      "Alerts written to the fan-out topic, by outcome.",
		}, []string{"outcome"}),
	}
}

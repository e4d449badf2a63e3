// Package metrics defines the Prometheus metrics exported by the predictor:
// feed ingestion, training, gated predictions, notifications and the HTTP
// surface.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Feed and ingestion
	FeedFetches           prometheus.Counter   // Feed polls attempted
	FeedErrors            prometheus.Counter   // Feed polls that failed
	FeedLatency           prometheus.Histogram // Feed round trip in seconds
	ObservationsSaved     prometheus.Counter
	ObservationsDuplicate prometheus.Counter
	ObservationsRejected  prometheus.Counter
	HistorySize           prometheus.Gauge // Validated observations held
	SeedRepairs           prometheus.Counter

	// ML
	MLPredictions      prometheus.Counter
	MLGated            prometheus.Counter // Predictions below the threshold
	MLFailures         prometheus.Counter
	MLLatency          prometheus.Histogram
	MLPredictionScores prometheus.Histogram // Confidence of the top label
	MLTrainRuns        prometheus.Counter
	MLTrainFailures    prometheus.Counter
	MLTrainDuration    prometheus.Histogram
	MLTrainingSamples  prometheus.Gauge
	MLAccuracy         prometheus.Histogram // Held-out accuracy per training run
	MLModelAge         prometheus.Gauge

	// Notifications
	PredictionChanges  prometheus.Counter
	NotificationErrors prometheus.Counter

	// Loop and HTTP
	LoopTicks    prometheus.Counter
	HTTPRequests *prometheus.CounterVec
	RateLimited  prometheus.Counter

	ErrorsTotal prometheus.Counter
}

// New creates and registers all metrics on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

// NewWithRegistry creates metrics on a custom registry (useful for testing).
func NewWithRegistry(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	unit := []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9, 1}
	return &Metrics{
		FeedFetches: factory.NewCounter(prometheus.CounterOpts{
			Name: "feed_fetches_total",
			Help: "Total number of feed polls",
		}),
		FeedErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "feed_errors_total",
			Help: "Total number of failed feed polls",
		}),
		FeedLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "feed_latency_seconds",
			Help:    "Feed round trip in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		ObservationsSaved: factory.NewCounter(prometheus.CounterOpts{
			Name: "observations_saved_total",
			Help: "Observations appended to history",
		}),
		ObservationsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "observations_duplicate_total",
			Help: "Observations ignored because their timestamp was already stored",
		}),
		ObservationsRejected: factory.NewCounter(prometheus.CounterOpts{
			Name: "observations_rejected_total",
			Help: "Observations dropped by validation",
		}),
		HistorySize: factory.NewGauge(prometheus.GaugeOpts{
			Name: "history_size",
			Help: "Number of validated observations in history",
		}),
		SeedRepairs: factory.NewCounter(prometheus.CounterOpts{
			Name: "seed_repairs_total",
			Help: "Times the synthetic seed run was stripped from history",
		}),
		MLPredictions: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_predictions_total",
			Help: "Total number of ML predictions made",
		}),
		MLGated: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_gated_total",
			Help: "Predictions suppressed by the probability threshold",
		}),
		MLFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_failures_total",
			Help: "Total number of ML prediction failures",
		}),
		MLLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_latency_seconds",
			Help:    "ML prediction latency in seconds",
			Buckets: prometheus.DefBuckets,
		}),
		MLPredictionScores: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_prediction_scores",
			Help:    "Probability of the most likely dozen",
			Buckets: unit,
		}),
		MLTrainRuns: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_train_runs_total",
			Help: "Successful training runs",
		}),
		MLTrainFailures: factory.NewCounter(prometheus.CounterOpts{
			Name: "ml_train_failures_total",
			Help: "Failed training runs",
		}),
		MLTrainDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_train_duration_seconds",
			Help:    "Training duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		}),
		MLTrainingSamples: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_training_samples",
			Help: "Training pairs used by the last successful run",
		}),
		MLAccuracy: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "ml_accuracy",
			Help:    "Held-out accuracy per training run",
			Buckets: unit,
		}),
		MLModelAge: factory.NewGauge(prometheus.GaugeOpts{
			Name: "ml_model_age_seconds",
			Help: "Age of the current model in seconds",
		}),
		PredictionChanges: factory.NewCounter(prometheus.CounterOpts{
			Name: "prediction_changes_total",
			Help: "Times the emitted dozen changed",
		}),
		NotificationErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "notification_errors_total",
			Help: "Failed change deliveries",
		}),
		LoopTicks: factory.NewCounter(prometheus.CounterOpts{
			Name: "loop_ticks_total",
			Help: "Retrain/notify loop iterations",
		}),
		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RateLimited: factory.NewCounter(prometheus.CounterOpts{
			Name: "http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}),
		ErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "errors_total",
			Help: "Total number of errors encountered",
		}),
	}
}

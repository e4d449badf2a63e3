package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCounter is a single counter, decoupled from Prometheus types.
type MetricsCounter interface {
	Inc()
}

// MetricsWrapper exposes the metrics through the narrow method sets the ml
// and engine packages depend on. A nil wrapper records nothing.
type MetricsWrapper struct {
	m *Metrics
}

func NewWrapper(m *Metrics) *MetricsWrapper {
	return &MetricsWrapper{m: m}
}

func (w *MetricsWrapper) ok() bool { return w != nil && w.m != nil }

func (w *MetricsWrapper) inc(c prometheus.Counter) {
	if w.ok() {
		c.Inc()
	}
}

func (w *MetricsWrapper) observe(h prometheus.Histogram, v float64) {
	if w.ok() {
		h.Observe(v)
	}
}

func (w *MetricsWrapper) set(g prometheus.Gauge, v float64) {
	if w.ok() {
		g.Set(v)
	}
}

func (w *MetricsWrapper) get() *Metrics {
	if w == nil || w.m == nil {
		return &Metrics{}
	}
	return w.m
}

// ml.MetricsInterface

func (w *MetricsWrapper) MLPredictionsInc() { w.inc(w.get().MLPredictions) }
func (w *MetricsWrapper) MLGatedInc() { w.inc(w.get().MLGated) }
func (w *MetricsWrapper) MLFailuresInc() { w.inc(w.get().MLFailures) }
func (w *MetricsWrapper) MLLatencyObserve(v float64) {
	w.observe(w.get().MLLatency, v)
}
func (w *MetricsWrapper) MLPredictionScoresObserve(v float64) {
	w.observe(w.get().MLPredictionScores, v)
}
func (w *MetricsWrapper) MLTrainRunsInc() { w.inc(w.get().MLTrainRuns) }
func (w *MetricsWrapper) MLTrainFailuresInc() { w.inc(w.get().MLTrainFailures) }
func (w *MetricsWrapper) MLTrainDurationObserve(v float64) {
	w.observe(w.get().MLTrainDuration, v)
}
func (w *MetricsWrapper) MLTrainingSamplesSet(v float64) { w.set(w.get().MLTrainingSamples, v) }
func (w *MetricsWrapper) MLAccuracyObserve(v float64) { w.observe(w.get().MLAccuracy, v) }

// engine metrics

func (w *MetricsWrapper) MLModelAgeSet(v float64) { w.set(w.get().MLModelAge, v) }
func (w *MetricsWrapper) FeedFetchesInc() { w.inc(w.get().FeedFetches) }
func (w *MetricsWrapper) FeedErrorsInc() { w.inc(w.get().FeedErrors) }
func (w *MetricsWrapper) FeedLatencyObserve(v float64) { w.observe(w.get().FeedLatency, v) }
func (w *MetricsWrapper) ObservationsSavedInc() { w.inc(w.get().ObservationsSaved) }
func (w *MetricsWrapper) ObservationsDuplicateInc() { w.inc(w.get().ObservationsDuplicate) }
func (w *MetricsWrapper) ObservationsRejectedInc() { w.inc(w.get().ObservationsRejected) }
func (w *MetricsWrapper) HistorySizeSet(v float64) { w.set(w.get().HistorySize, v) }
func (w *MetricsWrapper) SeedRepairsInc() { w.inc(w.get().SeedRepairs) }
func (w *MetricsWrapper) PredictionChangesInc() { w.inc(w.get().PredictionChanges) }
func (w *MetricsWrapper) NotificationErrorsInc() { w.inc(w.get().NotificationErrors) }
func (w *MetricsWrapper) LoopTicksInc() { w.inc(w.get().LoopTicks) }
func (w *MetricsWrapper) ErrorsInc() { w.inc(w.get().ErrorsTotal) }

// api metrics

func (w *MetricsWrapper) RateLimitedInc() { w.inc(w.get().RateLimited) }

func (w *MetricsWrapper) HTTPRequestsInc(route string, code int) {
	if w.ok() {
		w.m.HTTPRequests.WithLabelValues(route, strconv.Itoa(code)).Inc()
	}
}

// Counter returns a wrapped counter, for callers that hold one metric.
func (w *MetricsWrapper) Counter(c prometheus.Counter) MetricsCounter {
	return &CounterWrapper{c}
}

type CounterWrapper struct {
	c prometheus.Counter
}

func (cw *CounterWrapper) Inc() {
	cw.c.Inc()
}

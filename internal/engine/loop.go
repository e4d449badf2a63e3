package engine

import (
	"context"
	"errors"
	"time"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/ml"
	"roulette-dozen/internal/notify"

	"github.com/rs/zerolog/log"
)

// TickResult summarises one loop iteration.
type TickResult struct {
	Fetched    bool
	Ingest     IngestResult
	Retrained  bool
	Prediction *ml.Prediction
	Notified   bool
}

// Run ticks immediately and then every Interval until ctx is cancelled.
// Individual tick failures never stop the loop.
func (e *Engine) Run(ctx context.Context) error {
	log.Info().Dur("interval", e.cfg.Interval).Msg("Prediction loop started")
	ticker := time.NewTicker(e.cfg.Interval)
	defer ticker.Stop()

	for {
		e.Tick(ctx)
		select {
		case <-ctx.Done():
			log.Info().Msg("Prediction loop stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Tick fetches one observation, ingests it, retrains when the history
// changed, and notifies when the emitted label changes. A failed fetch ends
// the tick without touching state.
func (e *Engine) Tick(ctx context.Context) TickResult {
	var res TickResult
	if e.metrics != nil {
		e.metrics.LoopTicksInc()
	}
	if e.fetcher == nil {
		return res
	}

	obs, err := e.fetch(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("Feed fetch failed, skipping tick")
		return res
	}
	res.Fetched = true

	res.Ingest, err = e.Ingest(ctx, obs)
	if err != nil {
		log.Error().Err(err).Msg("Ingestion failed")
	}

	res.Retrained, err = e.RetrainIfNeeded(ctx)
	if err != nil && !errors.Is(err, ml.ErrInsufficientData) {
		log.Error().Err(err).Msg("Retrain failed")
	}

	pred, err := e.Predict(ctx)
	if err != nil {
		if errors.Is(err, ml.ErrInsufficientData) || errors.Is(err, ml.ErrModelNotTrained) {
			log.Debug().Err(err).Int("history", e.Count()).Msg("No prediction yet")
		} else {
			log.Error().Err(err).Msg("Prediction failed")
		}
		return res
	}
	res.Prediction = &pred
	res.Notified = e.maybeNotify(ctx, pred)
	return res
}

func (e *Engine) fetch(ctx context.Context) (dozen.Observation, error) {
	fctx, cancel := context.WithTimeout(ctx, e.cfg.FetchTimeout)
	defer cancel()

	start := time.Now()
	obs, err := e.fetcher.Fetch(fctx)
	if e.metrics != nil {
		e.metrics.FeedFetchesInc()
		e.metrics.FeedLatencyObserve(time.Since(start).Seconds())
		if err != nil {
			e.metrics.FeedErrorsInc()
		}
	}
	return obs, err
}

// Capture runs a single fetch and ingestion, for on-demand captures.
func (e *Engine) Capture(ctx context.Context) (IngestResult, error) {
	if e.fetcher == nil {
		return IngestResult{}, errors.New("no feed configured")
	}
	obs, err := e.fetch(ctx)
	if err != nil {
		return IngestResult{}, err
	}
	return e.Ingest(ctx, obs)
}

// maybeNotify records an emitted label and dispatches a change when it
// differs from the last one. State is updated before dispatch, so a failed
// delivery is not retried.
func (e *Engine) maybeNotify(ctx context.Context, pred ml.Prediction) bool {
	if !pred.Emitted {
		return false
	}

	e.mu.Lock()
	if e.last != nil && *e.last == pred.Label {
		e.mu.Unlock()
		return false
	}
	prev := e.last
	label := pred.Label
	e.last = &label
	count := len(e.values)
	e.mu.Unlock()

	change := notify.Change{
		Previous:      prev,
		Label:         pred.Label,
		Confidence:    pred.Confidence,
		Probabilities: pred.Probabilities,
		HistorySize:   count,
		At:            time.Now().UTC(),
	}
	if e.metrics != nil {
		e.metrics.PredictionChangesInc()
	}
	log.Info().
		Str("label", pred.Label.String()).
		Float64("confidence", pred.Confidence).
		Int("history", count).
		Msg("Predicted dozen changed")

	nctx, cancel := context.WithTimeout(ctx, e.cfg.NotifyTimeout)
	defer cancel()
	if err := e.notifier.Notify(nctx, change); err != nil {
		if e.metrics != nil {
			e.metrics.NotificationErrorsInc()
		}
		log.Warn().Err(err).Msg("Change notification failed")
	}
	return true
}

package engine

import (
	"context"
	"fmt"
	"time"

	"roulette-dozen/internal/ml"

	"github.com/rs/zerolog/log"
)

// Train fits a model on a snapshot of history and publishes it. Only one
// training runs at a time. A model trained on fewer values than the one
// already published for the same history is discarded.
func (e *Engine) Train(ctx context.Context) (*ml.Model, error) {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()
	return e.trainLocked(ctx)
}

// RetrainIfNeeded trains when at least MinTrain values exist and the count
// differs from the one the current model was trained on. It returns whether
// a new model was published.
func (e *Engine) RetrainIfNeeded(ctx context.Context) (bool, error) {
	e.trainMu.Lock()
	defer e.trainMu.Unlock()

	if !e.needsTraining() {
		return false, nil
	}
	m, err := e.trainLocked(ctx)
	return m != nil && err == nil, err
}

func (e *Engine) needsTraining() bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	n := len(e.values)
	if n < e.cfg.MinTrain {
		return false
	}
	return e.model == nil || e.modelGen != e.generation || e.model.TrainedOn != n
}

func (e *Engine) trainLocked(ctx context.Context) (*ml.Model, error) {
	e.mu.RLock()
	values := e.values
	gen := e.generation
	e.mu.RUnlock()

	if len(values) < e.cfg.MinTrain {
		return nil, fmt.Errorf("%w: have %d values, training starts at %d", ml.ErrInsufficientData, len(values), e.cfg.MinTrain)
	}

	m, err := e.trainer.Train(values)
	if err != nil {
		log.Warn().Err(err).Int("values", len(values)).Msg("Training failed, keeping current model")
		return nil, err
	}

	e.mu.Lock()
	stale := gen < e.generation ||
		(e.model != nil && e.modelGen == gen && m.TrainedOn < e.model.TrainedOn)
	if !stale {
		e.model = m
		e.modelGen = gen
	}
	e.mu.Unlock()
	if stale {
		log.Debug().Int("trained_on", m.TrainedOn).Msg("Discarding model trained on a stale snapshot")
		return nil, nil
	}

	if e.metrics != nil {
		e.metrics.MLModelAgeSet(0)
	}
	e.persist(ctx, m)
	return m, nil
}

// persist stores the model and records a version. Failures are logged: the
// published in-memory model stays valid.
func (e *Engine) persist(ctx context.Context, m *ml.Model) {
	data, err := m.Encode()
	if err != nil {
		log.Error().Err(err).Msg("Failed to encode model")
		return
	}
	sctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	if err := e.store.SaveModel(sctx, data); err != nil {
		if e.metrics != nil {
			e.metrics.ErrorsInc()
		}
		log.Error().Err(err).Msg("Failed to persist model")
	}
	if e.versions != nil {
		if _, err := e.versions.Record(m); err != nil {
			log.Warn().Err(err).Msg("Failed to record model version")
		}
	}
}

// Predict gates the current model's output for the current history. It
// returns ml.ErrInsufficientData while history is shorter than both the
// prediction window and the training minimum, and ml.ErrModelNotTrained
// before the first model is published.
func (e *Engine) Predict(_ context.Context) (ml.Prediction, error) {
	e.mu.RLock()
	values := e.values
	m := e.model
	e.mu.RUnlock()

	need := e.cfg.MinTrain
	if w := e.trainer.Config().Window + 1; w > need {
		need = w
	}
	if len(values) < need {
		return ml.Prediction{}, fmt.Errorf("%w: have %d values, need %d", ml.ErrInsufficientData, len(values), need)
	}
	if m == nil {
		return ml.Prediction{}, ml.ErrModelNotTrained
	}
	if e.metrics != nil && !m.TrainedAt.IsZero() {
		e.metrics.MLModelAgeSet(time.Since(m.TrainedAt).Seconds())
	}
	return e.predictor.Predict(m, values)
}

// Forecast retrains when history has changed and then predicts, the way an
// on-demand request is served.
func (e *Engine) Forecast(ctx context.Context) (ml.Prediction, error) {
	if _, err := e.RetrainIfNeeded(ctx); err != nil {
		log.Warn().Err(err).Msg("On-demand retrain failed, predicting with current model")
	}
	return e.Predict(ctx)
}

package ml

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"roulette-dozen/internal/dozen"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// MetricsInterface defines metrics methods needed by the trainer and predictor
type MetricsInterface interface {
	MLPredictionsInc()
	MLGatedInc()
	MLFailuresInc()
	MLLatencyObserve(float64)
	MLPredictionScoresObserve(float64)
	MLTrainRunsInc()
	MLTrainFailuresInc()
	MLTrainDurationObserve(float64)
	MLTrainingSamplesSet(float64)
	MLAccuracyObserve(float64)
}

// Prediction is the outcome of one gated inference.
type Prediction struct {
	Label         dozen.Label             `json:"label"`
	Emitted       bool                    `json:"emitted"`
	Confidence    float64                 `json:"confidence"`
	Threshold     float64                 `json:"threshold"`
	Probabilities map[dozen.Label]float64 `json:"probabilities"`
	At            time.Time               `json:"at"`
}

// Gate picks the most probable label (the lowest label wins ties) and reports
// whether its probability reaches threshold. A threshold of 0 always emits.
func Gate(probs [dozen.NumLabels]float64, threshold float64) (dozen.Label, float64, bool) {
	idx := floats.MaxIdx(probs[:])
	conf := probs[idx]
	return dozen.Label(idx), conf, conf >= threshold
}

// Predictor applies the gating policy to a model's output.
type Predictor struct {
	mu        sync.RWMutex
	threshold float64
	metrics   MetricsInterface
}

// NewPredictor creates a threshold-gated predictor. metrics may be nil.
func NewPredictor(threshold float64, metrics MetricsInterface) (*Predictor, error) {
	if threshold < 0 || threshold > 1 {
		return nil, fmt.Errorf("threshold must be in [0,1], got %f", threshold)
	}
	return &Predictor{threshold: threshold, metrics: metrics}, nil
}

// Threshold returns the current gating threshold.
func (p *Predictor) Threshold() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.threshold
}

// SetThreshold changes the gating threshold.
func (p *Predictor) SetThreshold(threshold float64) error {
	if threshold < 0 || threshold > 1 {
		return fmt.Errorf("threshold must be in [0,1], got %f", threshold)
	}
	p.mu.Lock()
	p.threshold = threshold
	p.mu.Unlock()
	return nil
}

// Predict builds a vector from the trailing W+1 values and gates the result.
// It fails with ErrModelNotTrained or ErrInsufficientData; in both cases the
// returned prediction is not emitted.
func (p *Predictor) Predict(m *Model, values []int) (Prediction, error) {
	if p == nil {
		return Prediction{}, errors.New("predictor is nil")
	}

	start := time.Now()
	threshold := p.Threshold()
	defer func() {
		if p.metrics != nil {
			p.metrics.MLLatencyObserve(time.Since(start).Seconds())
		}
	}()

	probs, err := m.Probabilities(values)
	if err != nil {
		if p.metrics != nil && !errors.Is(err, ErrInsufficientData) && !errors.Is(err, ErrModelNotTrained) {
			p.metrics.MLFailuresInc()
		}
		return Prediction{Threshold: threshold}, err
	}

	label, conf, emit := Gate(probs, threshold)
	pred := Prediction{
		Label:         label,
		Emitted:       emit,
		Confidence:    conf,
		Threshold:     threshold,
		Probabilities: make(map[dozen.Label]float64, dozen.NumLabels),
		At:            time.Now().UTC(),
	}
	for _, l := range dozen.Labels {
		pred.Probabilities[l] = probs[l]
	}

	if p.metrics != nil {
		p.metrics.MLPredictionsInc()
		p.metrics.MLPredictionScoresObserve(conf)
		if !emit {
			p.metrics.MLGatedInc()
		}
	}

	log.Debug().
		Interface("probabilities", probs).
		Str("label", label.String()).
		Float64("confidence", conf).
		Bool("emitted", emit).
		Msg("prediction computed")

	return pred, nil
}

package ml

import (
	"fmt"
	"math"
	"time"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/features"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/floats"
)

// TrainConfig holds everything that shapes a training run.
type TrainConfig struct {
	Window       int
	Target       Target
	TestFraction float64
	Params       BoostParams
}

// DefaultTrainConfig is a 20-value window, next-value targets, a 20% held-out
// tail and the default booster.
func DefaultTrainConfig() TrainConfig {
	return TrainConfig{
		Window:       20,
		Target:       TargetNext,
		TestFraction: 0.2,
		Params:       DefaultBoostParams(),
	}
}

// BuildDataset slides a window of W+1 values over the sequence. The sampled
// positions are i = W .. len-2, so every window is full and the value after
// it always exists.
func BuildDataset(values []int, window int, target Target) ([][]float64, []dozen.Label) {
	var X [][]float64
	var y []dozen.Label
	for i := window; i <= len(values)-2; i++ {
		X = append(X, features.Build(values[i-window:i+1]))
		switch target {
		case TargetCurrent:
			y = append(y, dozen.LabelOf(values[i]))
		default:
			y = append(y, dozen.LabelOf(values[i+1]))
		}
	}
	return X, y
}

// ChronologicalSplit returns the size of the training head for n samples when
// the tail fraction is held out. The tail has ceil(n*fraction) samples.
func ChronologicalSplit(n int, fraction float64) int {
	if fraction <= 0 {
		return n
	}
	test := int(math.Ceil(float64(n) * fraction))
	if test > n {
		test = n
	}
	return n - test
}

// Trainer fits models and reports training metrics.
type Trainer struct {
	cfg     TrainConfig
	metrics MetricsInterface
}

// NewTrainer validates cfg. metrics may be nil.
func NewTrainer(cfg TrainConfig, metrics MetricsInterface) (*Trainer, error) {
	if cfg.Window < 1 {
		return nil, fmt.Errorf("window must be positive, got %d", cfg.Window)
	}
	if _, err := ParseTarget(string(cfg.Target)); err != nil {
		return nil, err
	}
	if cfg.TestFraction < 0 || cfg.TestFraction >= 1 {
		return nil, fmt.Errorf("test fraction must be in [0,1), got %f", cfg.TestFraction)
	}
	if err := cfg.Params.validate(); err != nil {
		return nil, err
	}
	return &Trainer{cfg: cfg, metrics: metrics}, nil
}

// Config returns the trainer configuration.
func (t *Trainer) Config() TrainConfig { return t.cfg }

// Train fits a new model on the validated values of history. It never
// mutates an existing model: on failure the caller keeps whatever it had.
func (t *Trainer) Train(values []int) (*Model, error) {
	start := time.Now()
	m, err := t.train(values)
	if t.metrics != nil {
		t.metrics.MLTrainDurationObserve(time.Since(start).Seconds())
		if err != nil {
			t.metrics.MLTrainFailuresInc()
		} else {
			t.metrics.MLTrainRunsInc()
			t.metrics.MLTrainingSamplesSet(float64(m.TrainSamples + m.TestSamples))
			if m.Evaluated {
				t.metrics.MLAccuracyObserve(m.HeldOutAccuracy)
			}
		}
	}
	return m, err
}

func (t *Trainer) train(values []int) (*Model, error) {
	valid := make([]int, 0, len(values))
	for _, v := range values {
		if v >= dozen.MinNumber && v <= dozen.MaxNumber {
			valid = append(valid, v)
		}
	}

	X, labels := BuildDataset(valid, t.cfg.Window, t.cfg.Target)
	if len(X) == 0 {
		return nil, fmt.Errorf("%w: %d values yield no training pairs with window %d", ErrInsufficientData, len(valid), t.cfg.Window)
	}

	codec := FitCodec(labels)
	y, err := codec.EncodeAll(labels)
	if err != nil {
		return nil, err
	}

	head := ChronologicalSplit(len(X), t.cfg.TestFraction)
	evaluated := head > 0 && head < len(X)
	if head == 0 {
		head = len(X)
	}

	booster, err := FitBooster(X[:head], y[:head], codec.Len(), t.cfg.Params)
	if err != nil {
		return nil, fmt.Errorf("fit booster: %w", err)
	}

	m := &Model{
		SchemaVersion: features.SchemaVersion,
		FeatureCount:  features.Width,
		Window:        t.cfg.Window,
		Target:        t.cfg.Target,
		Codec:         codec,
		Booster:       booster,
		Trained:       true,
		TrainedAt:     time.Now().UTC(),
		TrainedOn:     len(valid),
		TrainSamples:  head,
		TestSamples:   len(X) - head,
		Evaluated:     evaluated,
	}
	if evaluated {
		m.HeldOutAccuracy = accuracy(booster, X[head:], y[head:])
	} else {
		m.TestSamples = 0
	}

	log.Info().
		Int("values", len(valid)).
		Int("train_samples", m.TrainSamples).
		Int("test_samples", m.TestSamples).
		Int("classes", codec.Len()).
		Float64("held_out_accuracy", m.HeldOutAccuracy).
		Bool("evaluated", evaluated).
		Msg("model trained")

	return m, nil
}

func accuracy(b *Booster, X [][]float64, y []int) float64 {
	if len(X) == 0 {
		return 0
	}
	hits := 0
	for i, x := range X {
		proba, err := b.PredictProba(x)
		if err != nil {
			continue
		}
		if floats.MaxIdx(proba) == y[i] {
			hits++
		}
	}
	return float64(hits) / float64(len(X))
}

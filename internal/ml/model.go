package ml

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/features"
)

var (
	// ErrInsufficientData means there are not enough validated values to
	// build a training pair or a prediction window.
	ErrInsufficientData = errors.New("insufficient data")
	// ErrModelNotTrained is returned when predicting with an untrained model.
	ErrModelNotTrained = errors.New("model not trained")
	// ErrSchemaMismatch marks a persisted model that cannot be used with the
	// current feature builder. It must be discarded and retrained.
	ErrSchemaMismatch = errors.New("model schema mismatch")
)

// Target selects which value a training window is labelled with.
type Target string

const (
	// TargetNext labels the window ending at i with the value at i+1, so the
	// described value is never the value being predicted.
	TargetNext Target = "next"
	// TargetCurrent labels the window with its own last value.
	TargetCurrent Target = "current"
)

// ParseTarget accepts "next" and "current".
func ParseTarget(s string) (Target, error) {
	switch Target(s) {
	case TargetNext, TargetCurrent:
		return Target(s), nil
	default:
		return "", fmt.Errorf("unknown training target %q (want next or current)", s)
	}
}

// Model is the persisted record of a trained classifier together with
// everything needed to validate and use it: the window it was trained with,
// the feature schema, and the label codec.
type Model struct {
	SchemaVersion int        `json:"schema_version"`
	FeatureCount  int        `json:"feature_count"`
	Window        int        `json:"window"`
	Target        Target     `json:"target"`
	Codec         LabelCodec `json:"codec"`
	Booster       *Booster   `json:"booster"`
	Trained       bool       `json:"trained"`

	TrainedAt       time.Time `json:"trained_at"`
	TrainedOn       int       `json:"trained_on"`
	TrainSamples    int       `json:"train_samples"`
	TestSamples     int       `json:"test_samples"`
	HeldOutAccuracy float64   `json:"held_out_accuracy"`
	Evaluated       bool      `json:"evaluated"`
}

// Check validates a model against the current feature schema. A model that
// fails Check must not be used for inference.
func (m *Model) Check() error {
	if m == nil {
		return ErrModelNotTrained
	}
	if m.SchemaVersion != features.SchemaVersion {
		return fmt.Errorf("%w: schema version %d, builder is at %d", ErrSchemaMismatch, m.SchemaVersion, features.SchemaVersion)
	}
	if m.FeatureCount != features.Width {
		return fmt.Errorf("%w: %d features, builder produces %d", ErrSchemaMismatch, m.FeatureCount, features.Width)
	}
	if m.Window < 1 {
		return fmt.Errorf("%w: window %d", ErrSchemaMismatch, m.Window)
	}
	if !m.Trained || m.Booster == nil {
		return ErrModelNotTrained
	}
	if m.Booster.Features != m.FeatureCount {
		return fmt.Errorf("%w: classifier expects %d features, record says %d", ErrSchemaMismatch, m.Booster.Features, m.FeatureCount)
	}
	if err := m.Codec.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if m.Codec.Len() != m.Booster.Classes {
		return fmt.Errorf("%w: codec has %d classes, classifier %d", ErrSchemaMismatch, m.Codec.Len(), m.Booster.Classes)
	}
	return nil
}

// Encode serialises the model record.
func (m *Model) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal model: %w", err)
	}
	return data, nil
}

// Decode parses and validates a persisted model. Undecodable or incompatible
// records are reported as ErrSchemaMismatch.
func Decode(data []byte) (*Model, error) {
	var m Model
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaMismatch, err)
	}
	if err := m.Check(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Probabilities returns the distribution over all four labels for the
// trailing window of values. Labels absent from training get probability 0.
func (m *Model) Probabilities(values []int) ([dozen.NumLabels]float64, error) {
	var out [dozen.NumLabels]float64
	if m == nil || !m.Trained || m.Booster == nil {
		return out, ErrModelNotTrained
	}
	if len(values) < m.Window+1 {
		return out, fmt.Errorf("%w: have %d values, need %d", ErrInsufficientData, len(values), m.Window+1)
	}

	x := features.Build(values[len(values)-(m.Window+1):])
	proba, err := m.Booster.PredictProba(x)
	if err != nil {
		return out, err
	}
	for k, p := range proba {
		l, err := m.Codec.Decode(k)
		if err != nil {
			return out, err
		}
		out[l] = p
	}
	return out, nil
}

// Package ml trains and applies the dozen classifier: a gradient-boosted
// tree ensemble over the features.Build vector, wrapped in a versioned model
// record and a threshold gate.
package ml

// PredictorInterface is what the engine needs from a predictor.
type PredictorInterface interface {
	// Predict gates the model's distribution for the trailing window of values.
	Predict(m *Model, values []int) (Prediction, error)

	// Threshold reports the confidence a label needs to be emitted.
	Threshold() float64
}

// TrainerInterface is what the engine needs from a trainer.
type TrainerInterface interface {
	Train(values []int) (*Model, error)
	Config() TrainConfig
}

var (
	_ PredictorInterface = (*Predictor)(nil)
	_ TrainerInterface   = (*Trainer)(nil)
)

// Package backtest replays a stored history through the trainer and gate the
// way the live loop would, retraining every K observations and scoring each
// prediction against the outcome that followed it.
package backtest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/ml"

	"github.com/rs/zerolog/log"
	"gonum.org/v1/gonum/stat"
)

// Config controls the walk-forward replay.
type Config struct {
	MinTrain     int // first training happens once this many values are seen
	RetrainEvery int // retrain after this many new observations
}

// DefaultConfig matches the live engine: train at 25 values, retrain on every
// new observation.
func DefaultConfig() Config {
	return Config{MinTrain: 25, RetrainEvery: 1}
}

// Record is one scored prediction.
type Record struct {
	Index      int         `json:"index"` // position of the outcome in the history
	Timestamp  string      `json:"timestamp"`
	Predicted  dozen.Label `json:"predicted"`
	Confidence float64     `json:"confidence"`
	Emitted    bool        `json:"emitted"`
	Number     int         `json:"number"`
	Actual     dozen.Label `json:"actual"`
	Hit        bool        `json:"hit"`
	TrainedOn  int         `json:"trained_on"`
}

// LabelStats breaks results down by dozen.
type LabelStats struct {
	Predicted int     `json:"predicted"` // emitted predictions of this label
	Hits      int     `json:"hits"`
	Actual    int     `json:"actual"` // scored outcomes of this label
	Precision float64 `json:"precision"`
}

// Results holds backtest results. Rates over emitted predictions ignore
// gated ones; RawHitRate scores every prediction as if the gate were off.
type Results struct {
	Records []Record `json:"records"`

	Observations  int `json:"observations"`
	Retrains      int `json:"retrains"`
	TrainFailures int `json:"train_failures"`
	Scored        int `json:"scored"`
	Emitted       int `json:"emitted"`
	Gated         int `json:"gated"`
	Hits          int `json:"hits"`

	HitRate           float64 `json:"hit_rate"`
	RawHitRate        float64 `json:"raw_hit_rate"`
	Coverage          float64 `json:"coverage"`
	ChanceRate        float64 `json:"chance_rate"`
	MajorityRate      float64 `json:"majority_rate"`
	MeanConfidence    float64 `json:"mean_confidence"`
	LongestHitStreak  int     `json:"longest_hit_streak"`
	LongestMissStreak int     `json:"longest_miss_streak"`

	PerLabel map[dozen.Label]*LabelStats `json:"per_label"`

	StartTimestamp string        `json:"start_timestamp"`
	EndTimestamp   string        `json:"end_timestamp"`
	Elapsed        time.Duration `json:"elapsed"`
}

// Engine is a walk-forward backtester.
type Engine struct {
	cfg       Config
	trainer   ml.TrainerInterface
	predictor ml.PredictorInterface
	data      *DataLoader
}

// NewEngine creates a backtester over data.
func NewEngine(cfg Config, trainer ml.TrainerInterface, predictor ml.PredictorInterface, data *DataLoader) (*Engine, error) {
	if trainer == nil || predictor == nil || data == nil {
		return nil, errors.New("backtest needs a trainer, a predictor and data")
	}
	if cfg.MinTrain < 1 {
		return nil, fmt.Errorf("min train size must be positive, got %d", cfg.MinTrain)
	}
	if cfg.RetrainEvery < 1 {
		return nil, fmt.Errorf("retrain interval must be positive, got %d", cfg.RetrainEvery)
	}
	return &Engine{cfg: cfg, trainer: trainer, predictor: predictor, data: data}, nil
}

type pending struct {
	pred      ml.Prediction
	trainedOn int
}

// Run replays the history. At each step the model sees only the values up
// to and including the current one, and its prediction is scored against
// the next observation.
func (e *Engine) Run(ctx context.Context) (*Results, error) {
	started := time.Now()
	e.data.Reset()
	total := e.data.GetDataCount()
	log.Info().
		Int("observations", total).
		Int("min_train", e.cfg.MinTrain).
		Int("retrain_every", e.cfg.RetrainEvery).
		Msg("Starting backtest")

	res := &Results{ChanceRate: 12.0 / 37.0}
	values := make([]int, 0, total)
	var (
		model     *ml.Model
		trainedAt int
		next      *pending
		lastPct   = -1
	)

	for e.data.HasNext() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		o := e.data.Next()
		i := len(values)
		if i == 0 {
			res.StartTimestamp = o.Timestamp
		}
		res.EndTimestamp = o.Timestamp

		if next != nil {
			res.Records = append(res.Records, score(i, o, next))
			next = nil
		}
		values = append(values, o.Number)

		if len(values) >= e.cfg.MinTrain && (model == nil || len(values)-trainedAt >= e.cfg.RetrainEvery) {
			m, err := e.trainer.Train(values)
			switch {
			case err == nil:
				model, trainedAt = m, len(values)
				res.Retrains++
			case errors.Is(err, ml.ErrInsufficientData):
			default:
				res.TrainFailures++
				log.Warn().Err(err).Int("values", len(values)).Msg("Backtest training failed, keeping previous model")
			}
		}

		if model != nil && e.data.HasNext() {
			pred, err := e.predictor.Predict(model, values)
			if err == nil {
				next = &pending{pred: pred, trainedOn: trainedAt}
			} else if !errors.Is(err, ml.ErrInsufficientData) {
				log.Warn().Err(err).Int("index", i).Msg("Backtest prediction failed")
			}
		}

		if pct := int(e.data.GetProgress() * 10); pct != lastPct {
			lastPct = pct
			log.Debug().Int("progress_pct", pct*10).Int("retrains", res.Retrains).Msg("Backtest progress")
		}
	}

	res.Observations = len(values)
	res.Elapsed = time.Since(started)
	res.summarize()

	log.Info().
		Int("scored", res.Scored).
		Int("emitted", res.Emitted).
		Float64("hit_rate", res.HitRate).
		Float64("coverage", res.Coverage).
		Dur("elapsed", res.Elapsed).
		Msg("Backtest completed")
	return res, nil
}

func score(i int, o dozen.Observation, p *pending) Record {
	actual := o.Label()
	return Record{
		Index:      i,
		Timestamp:  o.Timestamp,
		Predicted:  p.pred.Label,
		Confidence: p.pred.Confidence,
		Emitted:    p.pred.Emitted,
		Number:     o.Number,
		Actual:     actual,
		Hit:        p.pred.Label == actual,
		TrainedOn:  p.trainedOn,
	}
}

func (r *Results) summarize() {
	r.PerLabel = make(map[dozen.Label]*LabelStats, dozen.NumLabels)
	for _, l := range dozen.Labels {
		r.PerLabel[l] = &LabelStats{}
	}

	var (
		rawHits     int
		confidences []float64
		hitRun      int
		missRun     int
	)
	for _, rec := range r.Records {
		r.Scored++
		r.PerLabel[rec.Actual].Actual++
		if rec.Hit {
			rawHits++
		}
		if !rec.Emitted {
			r.Gated++
			continue
		}

		r.Emitted++
		confidences = append(confidences, rec.Confidence)
		r.PerLabel[rec.Predicted].Predicted++
		if rec.Hit {
			r.Hits++
			r.PerLabel[rec.Predicted].Hits++
			hitRun++
			missRun = 0
		} else {
			missRun++
			hitRun = 0
		}
		r.LongestHitStreak = max(r.LongestHitStreak, hitRun)
		r.LongestMissStreak = max(r.LongestMissStreak, missRun)
	}

	if r.Scored > 0 {
		r.RawHitRate = float64(rawHits) / float64(r.Scored)
		r.Coverage = float64(r.Emitted) / float64(r.Scored)
		majority := 0
		for _, s := range r.PerLabel {
			majority = max(majority, s.Actual)
		}
		r.MajorityRate = float64(majority) / float64(r.Scored)
	}
	if r.Emitted > 0 {
		r.HitRate = float64(r.Hits) / float64(r.Emitted)
		r.MeanConfidence = stat.Mean(confidences, nil)
	}
	for _, s := range r.PerLabel {
		if s.Predicted > 0 {
			s.Precision = float64(s.Hits) / float64(s.Predicted)
		}
	}
}

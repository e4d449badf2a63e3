// Package engine owns the observation history, the current model and the
// last emitted prediction, and runs the retrain/notify loop over them.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"roulette-dozen/internal/common"
	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/ml"
	"roulette-dozen/internal/notify"
	"roulette-dozen/internal/storage"

	"github.com/rs/zerolog/log"
)

// Fetcher returns the latest observation from the feed.
type Fetcher interface {
	Fetch(ctx context.Context) (dozen.Observation, error)
}

// Metrics is the subset of metrics the engine records.
type Metrics interface {
	FeedFetchesInc()
	FeedErrorsInc()
	FeedLatencyObserve(float64)
	ObservationsSavedInc()
	ObservationsDuplicateInc()
	ObservationsRejectedInc()
	HistorySizeSet(float64)
	SeedRepairsInc()
	PredictionChangesInc()
	NotificationErrorsInc()
	LoopTicksInc()
	ErrorsInc()
	MLModelAgeSet(float64)
}

// Config controls the loop and the retrain policy.
type Config struct {
	MinTrain      int
	Interval      time.Duration
	FetchTimeout  time.Duration
	NotifyTimeout time.Duration
	StoreTimeout  time.Duration
	SeedRepair    bool
}

// DefaultConfig is a 60s loop that starts training at 25 observations.
func DefaultConfig() Config {
	return Config{
		MinTrain:      common.DefaultMinTrainSize,
		Interval:      common.DefaultLoopInterval,
		FetchTimeout:  common.DefaultFeedTimeout,
		NotifyTimeout: common.DefaultNotifyTimeout,
		StoreTimeout:  5 * time.Second,
		SeedRepair:    true,
	}
}

// Deps are the collaborators of an engine. Store, Trainer and Predictor are
// required; the rest may be nil.
type Deps struct {
	Store     storage.Backend
	Trainer   ml.TrainerInterface
	Predictor ml.PredictorInterface
	Fetcher   Fetcher
	Notifier  notify.Notifier
	Versions  *ml.ModelManager
	Metrics   Metrics
}

// Engine serialises access to history, model and prediction state. Reads
// take mu for reading; ingestion and repair are serialised by ingestMu and
// training by trainMu, and both publish under the mu write lock.
type Engine struct {
	cfg       Config
	store     storage.Backend
	trainer   ml.TrainerInterface
	predictor ml.PredictorInterface
	fetcher   Fetcher
	notifier  notify.Notifier
	versions  *ml.ModelManager
	metrics   Metrics

	ingestMu sync.Mutex
	trainMu  sync.Mutex

	mu         sync.RWMutex
	history    []dozen.Observation
	seen       map[string]struct{}
	values     []int
	generation int // bumped whenever history is rewritten
	model      *ml.Model
	modelGen   int
	last       *dozen.Label
}

// New validates deps and returns an engine with empty state. Call Start to
// load persisted state.
func New(cfg Config, deps Deps) (*Engine, error) {
	if deps.Store == nil || deps.Trainer == nil || deps.Predictor == nil {
		return nil, errors.New("engine needs a store, a trainer and a predictor")
	}
	if cfg.MinTrain < 1 {
		return nil, fmt.Errorf("min train size must be positive, got %d", cfg.MinTrain)
	}
	if cfg.Interval <= 0 {
		cfg.Interval = common.DefaultLoopInterval
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = common.DefaultFeedTimeout
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = common.DefaultNotifyTimeout
	}
	if cfg.StoreTimeout <= 0 {
		cfg.StoreTimeout = 5 * time.Second
	}
	if deps.Notifier == nil {
		deps.Notifier = notify.Nop{}
	}
	return &Engine{
		cfg:       cfg,
		store:     deps.Store,
		trainer:   deps.Trainer,
		predictor: deps.Predictor,
		fetcher:   deps.Fetcher,
		notifier:  deps.Notifier,
		versions:  deps.Versions,
		metrics:   deps.Metrics,
		seen:      make(map[string]struct{}),
	}, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Start loads history and the persisted model. A model that does not match
// the current feature schema or trainer window is discarded, and a fresh
// one is trained when enough history exists.
func (e *Engine) Start(ctx context.Context) error {
	if err := e.loadHistory(ctx); err != nil {
		return err
	}

	if err := e.loadModel(ctx); err != nil {
		log.Warn().Err(err).Msg("Persisted model unusable, it will be retrained")
	}

	if _, err := e.RetrainIfNeeded(ctx); err != nil && !errors.Is(err, ml.ErrInsufficientData) {
		log.Error().Err(err).Msg("Startup training failed")
	}
	return nil
}

func (e *Engine) loadHistory(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	raw, err := e.store.Load(sctx)
	if err != nil {
		return fmt.Errorf("load history: %w", err)
	}
	dozen.SortByTimestamp(raw)
	raw = dozen.Dedup(raw)

	// The synthetic run holds values above 36, so it has to be detected
	// before validation drops them.
	repaired := false
	if e.cfg.SeedRepair {
		raw, repaired = dozen.StripSeedRun(raw, common.SeedRunLength, common.SeedRepairFloor)
	}

	history := make([]dozen.Observation, 0, len(raw))
	for _, o := range raw {
		if err := o.Validate(); err != nil {
			log.Warn().Err(err).Str("timestamp", o.Timestamp).Msg("Dropping invalid stored observation")
			continue
		}
		history = append(history, o)
	}

	if repaired {
		if err := e.store.Replace(sctx, history); err != nil {
			return fmt.Errorf("rewrite repaired history: %w", err)
		}
		if e.metrics != nil {
			e.metrics.SeedRepairsInc()
		}
		log.Warn().Int("removed", common.SeedRunLength).Int("remaining", len(history)).Msg("Synthetic seed run removed from history")
	}

	e.mu.Lock()
	e.setHistoryLocked(history)
	if repaired {
		e.generation++
	}
	e.mu.Unlock()

	log.Info().Int("observations", len(history)).Msg("History loaded")
	return nil
}

func (e *Engine) loadModel(ctx context.Context) error {
	sctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	data, err := e.store.LoadModel(sctx)
	if errors.Is(err, storage.ErrNotFound) {
		log.Info().Msg("No persisted model")
		return nil
	}
	if err != nil {
		return err
	}

	m, err := ml.Decode(data)
	if err != nil {
		return err
	}
	want := e.trainer.Config()
	if m.Window != want.Window || m.Target != want.Target {
		return fmt.Errorf("%w: model window %d target %s, configured window %d target %s",
			ml.ErrSchemaMismatch, m.Window, m.Target, want.Window, want.Target)
	}

	e.mu.Lock()
	e.model = m
	e.modelGen = e.generation
	e.mu.Unlock()

	log.Info().Int("trained_on", m.TrainedOn).Time("trained_at", m.TrainedAt).Msg("Persisted model loaded")
	return nil
}

// setHistoryLocked replaces the history and its derived caches. Callers hold
// mu for writing.
func (e *Engine) setHistoryLocked(history []dozen.Observation) {
	e.history = history
	e.seen = make(map[string]struct{}, len(history))
	for _, o := range history {
		e.seen[o.Timestamp] = struct{}{}
	}
	e.values = dozen.ValidNumbers(history)
	if e.metrics != nil {
		e.metrics.HistorySizeSet(float64(len(e.values)))
	}
}

// History returns a copy of the history.
func (e *Engine) History() []dozen.Observation {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]dozen.Observation(nil), e.history...)
}

// Count is the number of validated values in history.
func (e *Engine) Count() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.values)
}

// Model returns the published model, or nil.
func (e *Engine) Model() *ml.Model {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.model
}

// LastEmitted returns the last label that was notified.
func (e *Engine) LastEmitted() (dozen.Label, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if e.last == nil {
		return 0, false
	}
	return *e.last, true
}

// Versions returns the model version log, which may be nil.
func (e *Engine) Versions() *ml.ModelManager { return e.versions }

// insertSorted places o after every observation with a timestamp not after
// its own.
func insertSorted(history []dozen.Observation, o dozen.Observation) []dozen.Observation {
	i := sort.Search(len(history), func(i int) bool { return history[i].Timestamp > o.Timestamp })
	history = append(history, dozen.Observation{})
	copy(history[i+1:], history[i:])
	history[i] = o
	return history
}

// Snapshot is a consistent view of the engine state.
type Snapshot struct {
	HistorySize     int          `json:"history_size"`
	MinTrain        int          `json:"min_train"`
	ModelTrained    bool         `json:"model_trained"`
	TrainedOn       int          `json:"trained_on,omitempty"`
	TrainedAt       *time.Time   `json:"trained_at,omitempty"`
	HeldOutAccuracy float64      `json:"held_out_accuracy,omitempty"`
	LastEmitted     *dozen.Label `json:"last_emitted,omitempty"`
}

// Snapshot returns the current state summary.
func (e *Engine) Snapshot() Snapshot {
	e.mu.RLock()
	defer e.mu.RUnlock()
	s := Snapshot{
		HistorySize: len(e.values),
		MinTrain:    e.cfg.MinTrain,
		LastEmitted: e.last,
	}
	if e.model != nil {
		at := e.model.TrainedAt
		s.ModelTrained = true
		s.TrainedOn = e.model.TrainedOn
		s.TrainedAt = &at
		s.HeldOutAccuracy = e.model.HeldOutAccuracy
	}
	return s
}

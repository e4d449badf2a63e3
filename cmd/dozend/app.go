package main

import (
	"context"
	"fmt"
	"path/filepath"

	"roulette-dozen/internal/cfg"
	"roulette-dozen/internal/engine"
	"roulette-dozen/internal/metrics"
	"roulette-dozen/internal/ml"
	"roulette-dozen/internal/notify"
	"roulette-dozen/internal/scraper"
	"roulette-dozen/internal/storage"

	"github.com/rs/zerolog/log"
)

// app is the wired service shared by every subcommand.
type app struct {
	settings cfg.Settings
	store    storage.Backend
	engine   *engine.Engine
	hub      *notify.Hub
	metrics  *metrics.Metrics
	wrapper  *metrics.MetricsWrapper
}

func trainConfig(s cfg.Settings) (ml.TrainConfig, error) {
	target, err := ml.ParseTarget(s.Target)
	if err != nil {
		return ml.TrainConfig{}, err
	}
	tc := ml.DefaultTrainConfig()
	tc.Window = s.Window
	tc.Target = target
	tc.Params.MaxIter = s.MaxIter
	tc.Params.MaxDepth = s.MaxDepth
	tc.Params.LearningRate = s.LearningRate
	tc.Params.MinSamplesLeaf = s.MinSamplesLeaf
	return tc, nil
}

func engineConfig(s cfg.Settings) engine.Config {
	ec := engine.DefaultConfig()
	ec.MinTrain = s.MinTrain
	ec.Interval = s.LoopInterval
	ec.FetchTimeout = s.FeedTimeout
	ec.NotifyTimeout = s.NotifyTimeout
	ec.SeedRepair = s.SeedRepair
	return ec
}

func storageOptions(s cfg.Settings) storage.Options {
	return storage.Options{
		Backend:       s.StorageBackend,
		DataPath:      s.DataPath,
		HistoryFile:   s.HistoryFile,
		ModelFile:     s.ModelFile,
		RedisAddr:     s.RedisAddr,
		RedisPassword: s.RedisPassword,
		RedisKey:      s.RedisKey,
	}
}

// newApp opens the store and builds the engine. withStream adds the
// websocket hub to the notifier chain. The caller must Close the app.
func newApp(ctx context.Context, s cfg.Settings, withStream bool) (*app, error) {
	a := &app{settings: s, metrics: metrics.New()}
	a.wrapper = metrics.NewWrapper(a.metrics)

	tc, err := trainConfig(s)
	if err != nil {
		return nil, err
	}
	trainer, err := ml.NewTrainer(tc, a.wrapper)
	if err != nil {
		return nil, fmt.Errorf("trainer: %w", err)
	}
	predictor, err := ml.NewPredictor(s.ProbThreshold, a.wrapper)
	if err != nil {
		return nil, fmt.Errorf("predictor: %w", err)
	}

	a.store, err = storage.Open(storageOptions(s))
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}

	versions, err := ml.NewModelManager(filepath.Join(s.DataPath, "versions"), ml.DefaultMaxVersions)
	if err != nil {
		log.Warn().Err(err).Msg("Model version history unavailable, keeping it in memory")
		versions, _ = ml.NewModelManager("", ml.DefaultMaxVersions)
	}

	var notifiers notify.Multi
	if s.WebhookURL != "" {
		notifiers = append(notifiers, notify.NewWebhook(s.WebhookURL, s.NotifyTimeout))
	}
	if withStream {
		a.hub = notify.NewHub()
		notifiers = append(notifiers, a.hub)
	}
	var notifier notify.Notifier = notify.Nop{}
	if len(notifiers) > 0 {
		notifier = notifiers
	}

	a.engine, err = engine.New(engineConfig(s), engine.Deps{
		Store:     a.store,
		Trainer:   trainer,
		Predictor: predictor,
		Fetcher:   scraper.New(s.FeedURL, s.FeedUserAgent, s.FeedTimeout),
		Notifier:  notifier,
		Versions:  versions,
		Metrics:   a.wrapper,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	if err := a.engine.Start(ctx); err != nil {
		a.Close()
		return nil, fmt.Errorf("engine start: %w", err)
	}
	return a, nil
}

func (a *app) Close() {
	if a.hub != nil {
		a.hub.Close()
	}
	if a.store != nil {
		if err := a.store.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}
}

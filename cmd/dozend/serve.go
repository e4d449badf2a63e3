package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"roulette-dozen/internal/api"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var serveNoLoop bool

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the capture loop and the HTTP API",
	Long: `Run the polling loop (fetch, ingest, retrain, notify) and serve the HTTP API,
the websocket stream and Prometheus metrics until interrupted.

Examples:
  dozend serve
  dozend serve --no-loop      # API only, history fed by POST /resultado`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().BoolVar(&serveNoLoop, "no-loop", false, "Serve the API without polling the feed")
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, settings, true)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := api.New(api.Config{
		Port:      settings.HTTPPort,
		RateLimit: settings.RateLimit,
		RateBurst: settings.RateBurst,
	}, a.engine, a.hub, prometheus.DefaultGatherer, a.wrapper)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := srv.Start(); err != nil {
			log.Error().Err(err).Msg("HTTP server failed")
			cancel()
		}
	}()

	if !serveNoLoop {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := a.engine.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Prediction loop ended")
			}
		}()
	}

	waitForShutdown(ctx, cancel, &wg, func() {
		shutdownCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
		defer done()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("Failed to shutdown HTTP server")
		}
	})
	return nil
}

// waitForShutdown blocks until a signal or ctx cancellation, runs stop, and
// waits up to ten seconds for the workers.
func waitForShutdown(ctx context.Context, cancel context.CancelFunc, wg *sync.WaitGroup, stop func()) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case <-ctx.Done():
		log.Info().Msg("context canceled")
	}

	log.Info().Msg("shutting down gracefully...")
	cancel()
	stop()

	if wg == nil {
		return
	}
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		log.Info().Msg("all goroutines stopped")
	case <-time.After(10 * time.Second):
		log.Warn().Msg("shutdown timeout, forcing exit")
	}
}

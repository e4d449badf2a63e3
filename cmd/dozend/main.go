package main

import (
	"fmt"
	"os"

	"roulette-dozen/internal/cfg"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	envFiles  []string
	logLevel  string
	logPretty bool

	settings cfg.Settings
)

var rootCmd = &cobra.Command{
	Use:   "dozend",
	Short: "Roulette dozen predictor",
	Long: `dozend polls a roulette outcome feed, keeps a deduplicated history, retrains
a gradient-boosted classifier as the history grows and publishes the
predicted dozen when its probability clears the configured threshold.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.LoadEnvFiles(envFiles...); err != nil {
			return err
		}
		s, err := cfg.Load()
		if err != nil {
			return fmt.Errorf("config load failed: %w", err)
		}
		if logLevel != "" {
			s.LogLevel = logLevel
		}
		settings = s
		setupLogging(s.LogLevel, logPretty)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files to load before reading the environment")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (overrides LOG_LEVEL)")
	rootCmd.PersistentFlags().BoolVar(&logPretty, "pretty", true, "Human-readable console logs")
}

func setupLogging(level string, pretty bool) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

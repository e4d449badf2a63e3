package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"roulette-dozen/internal/backtest"
	"roulette-dozen/internal/cfg"
	"roulette-dozen/internal/ml"
	"roulette-dozen/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	dataPath     string
	dataFormat   string
	outputPath   string
	logLevel     string
	retrainEvery int
	minTrain     int
	threshold    float64
	maxIter      int
)

var rootCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Walk-forward backtest of the dozen predictor",
	Long: `Replay a stored history through the trainer and the probability gate,
retraining every K observations and scoring each prediction against the
outcome that followed it.

Examples:
  backtest                                  # configured store
  backtest --data history.json --retrain-every 10
  backtest --data history.csv --threshold 0 --output results/`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&dataPath, "data", "", "History file (JSON or CSV); empty reads the configured store")
	rootCmd.Flags().StringVar(&dataFormat, "format", "auto", "Data format: auto, json, csv, store")
	rootCmd.Flags().StringVar(&outputPath, "output", "", "Output directory for reports (default backtest_results/<timestamp>)")
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn, error")
	rootCmd.Flags().IntVar(&retrainEvery, "retrain-every", 1, "Retrain after this many new observations")
	rootCmd.Flags().IntVar(&minTrain, "min-train", 0, "First training size (default from config)")
	rootCmd.Flags().Float64Var(&threshold, "threshold", -1, "Probability gate (default from config)")
	rootCmd.Flags().IntVar(&maxIter, "max-iter", 0, "Boosting iterations (default from config)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	level, err := zerolog.ParseLevel(logLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if err := cfg.LoadEnvFiles(".env"); err != nil {
		return err
	}
	config, err := cfg.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if minTrain > 0 {
		config.MinTrain = minTrain
	}
	if threshold >= 0 {
		config.ProbThreshold = threshold
	}
	if maxIter > 0 {
		config.MaxIter = maxIter
	}
	if outputPath == "" {
		outputPath = filepath.Join("backtest_results", time.Now().Format("20060102_150405"))
	}

	fmt.Println("=== Backtest Configuration ===")
	fmt.Printf("Data: %s (%s)\n", describeSource(), dataFormat)
	fmt.Printf("Window: %d, Target: %s\n", config.Window, config.Target)
	fmt.Printf("Min Train: %d, Retrain Every: %d\n", config.MinTrain, retrainEvery)
	fmt.Printf("Threshold: %.2f\n", config.ProbThreshold)
	fmt.Printf("Output Directory: %s\n", outputPath)
	fmt.Println("==============================")

	ctx := context.Background()
	loader, err := loadData(ctx, config)
	if err != nil {
		return err
	}
	if loader.GetDataCount() == 0 {
		return fmt.Errorf("no observations to replay")
	}

	target, err := ml.ParseTarget(config.Target)
	if err != nil {
		return err
	}
	tc := ml.DefaultTrainConfig()
	tc.Window = config.Window
	tc.Target = target
	tc.Params.MaxIter = config.MaxIter
	tc.Params.MaxDepth = config.MaxDepth
	tc.Params.LearningRate = config.LearningRate
	tc.Params.MinSamplesLeaf = config.MinSamplesLeaf

	trainer, err := ml.NewTrainer(tc, nil)
	if err != nil {
		return err
	}
	predictor, err := ml.NewPredictor(config.ProbThreshold, nil)
	if err != nil {
		return err
	}

	engine, err := backtest.NewEngine(backtest.Config{
		MinTrain:     config.MinTrain,
		RetrainEvery: retrainEvery,
	}, trainer, predictor, loader)
	if err != nil {
		return err
	}

	results, err := engine.Run(ctx)
	if err != nil {
		return fmt.Errorf("backtest failed: %w", err)
	}

	reporter := backtest.NewReporter(results, outputPath)
	if err := reporter.GenerateReport(); err != nil {
		return fmt.Errorf("failed to generate report: %w", err)
	}
	reporter.PrintSummary(os.Stdout)
	fmt.Printf("\nReports written to %s\n", outputPath)
	return nil
}

func describeSource() string {
	if dataPath == "" {
		return "configured store"
	}
	return dataPath
}

func loadData(ctx context.Context, config cfg.Settings) (*backtest.DataLoader, error) {
	loader := backtest.NewDataLoader()

	format := strings.ToLower(dataFormat)
	if format == "auto" {
		switch {
		case dataPath == "":
			format = "store"
		case strings.HasSuffix(strings.ToLower(dataPath), ".csv"):
			format = "csv"
		default:
			format = "json"
		}
	}

	switch format {
	case "csv":
		return loader, loader.LoadFromCSV(dataPath)
	case "json":
		return loader, loader.LoadFromJSON(dataPath)
	case "store":
		opts := storage.Options{
			Backend:       config.StorageBackend,
			DataPath:      config.DataPath,
			HistoryFile:   config.HistoryFile,
			ModelFile:     config.ModelFile,
			RedisAddr:     config.RedisAddr,
			RedisPassword: config.RedisPassword,
			RedisKey:      config.RedisKey,
		}
		if dataPath != "" {
			opts.DataPath = dataPath
		}
		store, err := storage.Open(opts)
		if err != nil {
			return nil, fmt.Errorf("failed to open store: %w", err)
		}
		defer store.Close()
		return loader, loader.LoadFromStore(ctx, store)
	default:
		return nil, fmt.Errorf("unknown data format %q", dataFormat)
	}
}

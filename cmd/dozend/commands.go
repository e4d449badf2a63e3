package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"roulette-dozen/internal/backtest"
	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/engine"
	"roulette-dozen/internal/ml"
	"roulette-dozen/internal/notify"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	historyLast  int
	historyJSON  bool
	predictJSON  bool
	watchURL     string
	importFormat string
	topFeatures  int
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Train on the stored history and persist the model",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, settings, false)
		if err != nil {
			return err
		}
		defer a.Close()

		m, err := a.engine.Train(ctx)
		if err != nil {
			return err
		}
		if m == nil {
			return errors.New("history changed during training")
		}
		fmt.Printf("Trained on %d values (%d train / %d test samples)\n", m.TrainedOn, m.TrainSamples, m.TestSamples)
		if m.Evaluated {
			fmt.Printf("Held-out accuracy: %.2f%%\n", m.HeldOutAccuracy*100)
		} else {
			fmt.Println("Held-out accuracy: not evaluated (history too short)")
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "FEATURE\tIMPORTANCE")
		for _, f := range ml.TopFeatures(m, topFeatures) {
			fmt.Fprintf(w, "%s\t%.4f\n", f.Name, f.ImportanceScore)
		}
		return w.Flush()
	},
}

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Predict the next dozen from the stored history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, settings, false)
		if err != nil {
			return err
		}
		defer a.Close()

		pred, err := a.engine.Forecast(ctx)
		if err != nil {
			return err
		}
		if predictJSON {
			return printJSON(pred)
		}
		if pred.Emitted {
			fmt.Printf("Predicted dozen: %s (%.2f%%)\n", pred.Label, pred.Confidence*100)
		} else {
			fmt.Printf("No prediction: best is %s at %.2f%%, below threshold %.2f%%\n",
				pred.Label, pred.Confidence*100, pred.Threshold*100)
		}
		for _, l := range dozen.Labels {
			fmt.Printf("  %-6s %.4f\n", l, pred.Probabilities[l])
		}
		return nil
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Print the stored history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, settings, false)
		if err != nil {
			return err
		}
		defer a.Close()

		h := a.engine.History()
		if historyLast > 0 && historyLast < len(h) {
			h = h[len(h)-historyLast:]
		}
		if historyJSON {
			return printJSON(map[string]any{"total": a.engine.Count(), "historico": h})
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "TIMESTAMP\tNUMBER\tCOLOR\tDOZEN")
		for _, o := range h {
			fmt.Fprintf(w, "%s\t%d\t%s\t%s\n", o.Timestamp, o.Number, o.Color, o.Label())
		}
		fmt.Fprintf(w, "\nTotal: %d\n", a.engine.Count())
		return w.Flush()
	},
}

var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Fetch one outcome from the feed and store it",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := newApp(ctx, settings, false)
		if err != nil {
			return err
		}
		defer a.Close()

		res, err := a.engine.Capture(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d (%s) at %s\n", res.Status, res.Observation.Number, res.Observation.Color, res.Observation.Timestamp)
		if res.Reason != "" {
			fmt.Println(res.Reason)
		}
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Import observations from a JSON or CSV file",
	Long: `Import observations from a JSON array (the flat history file layout) or a CSV
file with timestamp,number[,color] rows. Timestamps already stored are
skipped.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		batch, err := readObservations(args[0], importFormat)
		if err != nil {
			return err
		}

		ctx := context.Background()
		a, err := newApp(ctx, settings, false)
		if err != nil {
			return err
		}
		defer a.Close()

		counts, err := a.engine.Import(ctx, batch)
		if err != nil {
			return err
		}
		fmt.Printf("Imported %d observations: %d saved, %d duplicate, %d rejected\n",
			len(batch), counts[engine.StatusSaved], counts[engine.StatusDuplicate], counts[engine.StatusRejected])
		return nil
	},
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow a running server's prediction stream",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		url := watchURL
		if url == "" {
			url = fmt.Sprintf("ws://localhost:%d/ws", settings.HTTPPort)
		}
		changes := make(chan notify.Change, 16)
		go func() {
			if err := notify.Watch(ctx, url, changes); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("Watch ended")
			}
			cancel()
		}()

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case c := <-changes:
					prev := "-"
					if c.Previous != nil {
						prev = c.Previous.String()
					}
					fmt.Printf("%s  %s -> %s (%.2f%%, history %d)\n",
						c.At.Format("15:04:05"), prev, c.Label, c.Confidence*100, c.HistorySize)
				}
			}
		}()

		waitForShutdown(ctx, cancel, nil, func() {})
		return nil
	},
}

func readObservations(path, format string) ([]dozen.Observation, error) {
	if format == "" || format == "auto" {
		format = strings.TrimPrefix(strings.ToLower(filepath.Ext(path)), ".")
	}
	switch format {
	case "json":
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		var batch []dozen.Observation
		if err := json.Unmarshal(raw, &batch); err != nil {
			return nil, fmt.Errorf("parse %s: %w", path, err)
		}
		return batch, nil
	case "csv":
		dl := backtest.NewDataLoader()
		if err := dl.LoadFromCSV(path); err != nil {
			return nil, err
		}
		return dl.Observations(), nil
	default:
		return nil, fmt.Errorf("unsupported import format %q (want json or csv)", format)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func init() {
	rootCmd.AddCommand(trainCmd, predictCmd, historyCmd, captureCmd, importCmd, watchCmd)

	trainCmd.Flags().IntVar(&topFeatures, "top", 10, "Number of features to list by importance")
	predictCmd.Flags().BoolVar(&predictJSON, "json", false, "Print the prediction as JSON")
	historyCmd.Flags().IntVar(&historyLast, "last", 0, "Only print the last N observations")
	historyCmd.Flags().BoolVar(&historyJSON, "json", false, "Print as JSON")
	importCmd.Flags().StringVar(&importFormat, "format", "auto", "Input format: auto, json, csv")
	watchCmd.Flags().StringVar(&watchURL, "url", "", "Websocket URL (default ws://localhost:HTTP_PORT/ws)")
}

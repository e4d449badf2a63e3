package backtest

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"roulette-dozen/internal/dozen"

	"github.com/rs/zerolog/log"
)

// DefaultBlockSize is the number of scored records per rolling-metrics row.
const DefaultBlockSize = 50

// Reporter generates backtest reports
type Reporter struct {
	results    *Results
	outputPath string
	blockSize  int
}

// NewReporter creates a new reporter
func NewReporter(results *Results, outputPath string) *Reporter {
	return &Reporter{
		results:    results,
		outputPath: outputPath,
		blockSize:  DefaultBlockSize,
	}
}

// GenerateReport writes the summary, prediction log, JSON and rolling
// metrics reports into the output directory.
func (r *Reporter) GenerateReport() error {
	if err := os.MkdirAll(r.outputPath, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	for _, gen := range []func() error{
		r.generateSummary,
		r.generatePredictionLog,
		r.generateJSONReport,
		r.generateMetricsReport,
	} {
		if err := gen(); err != nil {
			return err
		}
	}
	return nil
}

func (r *Reporter) generateSummary() error {
	summaryPath := filepath.Join(r.outputPath, "backtest_summary.txt")
	file, err := os.Create(summaryPath)
	if err != nil {
		return fmt.Errorf("failed to create summary file: %w", err)
	}
	defer file.Close()

	res := r.results
	fmt.Fprintf(file, "BACKTEST RESULTS SUMMARY\n")
	fmt.Fprintf(file, "========================\n\n")
	fmt.Fprintf(file, "History: %s to %s (%d observations)\n", res.StartTimestamp, res.EndTimestamp, res.Observations)
	fmt.Fprintf(file, "Retrains: %d (%d failed)\n\n", res.Retrains, res.TrainFailures)

	fmt.Fprintf(file, "PREDICTION METRICS\n")
	fmt.Fprintf(file, "------------------\n")
	fmt.Fprintf(file, "Scored: %d\n", res.Scored)
	fmt.Fprintf(file, "Emitted: %d (coverage %.2f%%)\n", res.Emitted, res.Coverage*100)
	fmt.Fprintf(file, "Gated: %d\n", res.Gated)
	fmt.Fprintf(file, "Hits: %d\n", res.Hits)
	fmt.Fprintf(file, "Hit Rate: %.2f%%\n", res.HitRate*100)
	fmt.Fprintf(file, "Raw Hit Rate (ungated): %.2f%%\n", res.RawHitRate*100)
	fmt.Fprintf(file, "Mean Confidence: %.4f\n", res.MeanConfidence)
	fmt.Fprintf(file, "Longest Hit Streak: %d\n", res.LongestHitStreak)
	fmt.Fprintf(file, "Longest Miss Streak: %d\n\n", res.LongestMissStreak)

	fmt.Fprintf(file, "BASELINES\n")
	fmt.Fprintf(file, "---------\n")
	fmt.Fprintf(file, "Chance (one dozen): %.2f%%\n", res.ChanceRate*100)
	fmt.Fprintf(file, "Majority label: %.2f%%\n", res.MajorityRate*100)

	if res.Scored > 0 {
		fmt.Fprintf(file, "\nPERFORMANCE BY DOZEN\n")
		fmt.Fprintf(file, "--------------------\n")
		for _, l := range dozen.Labels {
			s := res.PerLabel[l]
			if s == nil {
				continue
			}
			fmt.Fprintf(file, "%s: %d predicted, %d hits, %.2f%% precision, %d actual\n",
				l, s.Predicted, s.Hits, s.Precision*100, s.Actual)
		}
	}

	log.Info().Str("file", summaryPath).Msg("Summary report generated")
	return nil
}

func (r *Reporter) generatePredictionLog() error {
	csvPath := filepath.Join(r.outputPath, "prediction_log.csv")
	file, err := os.Create(csvPath)
	if err != nil {
		return fmt.Errorf("failed to create prediction log: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{
		"Index", "Timestamp", "Predicted", "Confidence", "Emitted",
		"Number", "Actual", "Hit", "Trained On",
	}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, rec := range r.results.Records {
		row := []string{
			strconv.Itoa(rec.Index),
			rec.Timestamp,
			rec.Predicted.String(),
			fmt.Sprintf("%.4f", rec.Confidence),
			strconv.FormatBool(rec.Emitted),
			strconv.Itoa(rec.Number),
			rec.Actual.String(),
			strconv.FormatBool(rec.Hit),
			strconv.Itoa(rec.TrainedOn),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write prediction log: %w", err)
	}

	log.Info().Str("file", csvPath).Msg("Prediction log generated")
	return nil
}

func (r *Reporter) generateJSONReport() error {
	jsonPath := filepath.Join(r.outputPath, "backtest_results.json")

	report := struct {
		*Results
		GeneratedAt time.Time `json:"generated_at"`
	}{r.results, time.Now()}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if err := os.WriteFile(jsonPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write JSON report: %w", err)
	}

	log.Info().Str("file", jsonPath).Msg("JSON report generated")
	return nil
}

func (r *Reporter) generateMetricsReport() error {
	metricsPath := filepath.Join(r.outputPath, "metrics_report.csv")
	file, err := os.Create(metricsPath)
	if err != nil {
		return fmt.Errorf("failed to create metrics report: %w", err)
	}
	defer file.Close()

	writer := csv.NewWriter(file)
	header := []string{"Block", "Last Index", "Emitted", "Block Hit Rate", "Cumulative Hit Rate", "Coverage"}
	if err := writer.Write(header); err != nil {
		return err
	}
	for _, m := range r.calculateBlockMetrics() {
		row := []string{
			strconv.Itoa(m.Block),
			strconv.Itoa(m.LastIndex),
			strconv.Itoa(m.Emitted),
			fmt.Sprintf("%.2f", m.HitRate*100),
			fmt.Sprintf("%.2f", m.CumulativeHitRate*100),
			fmt.Sprintf("%.2f", m.Coverage*100),
		}
		if err := writer.Write(row); err != nil {
			return err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("failed to write metrics report: %w", err)
	}

	log.Info().Str("file", metricsPath).Msg("Metrics report generated")
	return nil
}

// BlockMetrics summarises a run of consecutive scored records.
type BlockMetrics struct {
	Block             int
	LastIndex         int
	Emitted           int
	HitRate           float64
	CumulativeHitRate float64
	Coverage          float64
}

func (r *Reporter) calculateBlockMetrics() []BlockMetrics {
	records := r.results.Records
	if len(records) == 0 || r.blockSize < 1 {
		return nil
	}

	var (
		out                     []BlockMetrics
		totalEmitted, totalHits int
		blockEmitted, blockHits int
		blockSeen               int
	)
	for i, rec := range records {
		blockSeen++
		if rec.Emitted {
			blockEmitted++
			totalEmitted++
			if rec.Hit {
				blockHits++
				totalHits++
			}
		}
		if blockSeen < r.blockSize && i < len(records)-1 {
			continue
		}

		m := BlockMetrics{
			Block:     len(out) + 1,
			LastIndex: rec.Index,
			Emitted:   blockEmitted,
			Coverage:  float64(blockEmitted) / float64(blockSeen),
		}
		if blockEmitted > 0 {
			m.HitRate = float64(blockHits) / float64(blockEmitted)
		}
		if totalEmitted > 0 {
			m.CumulativeHitRate = float64(totalHits) / float64(totalEmitted)
		}
		out = append(out, m)
		blockSeen, blockEmitted, blockHits = 0, 0, 0
	}
	return out
}

// PrintSummary prints a summary to w.
func (r *Reporter) PrintSummary(w io.Writer) {
	res := r.results
	fmt.Fprintln(w, "\n=== BACKTEST RESULTS ===")
	fmt.Fprintf(w, "History: %s to %s\n", res.StartTimestamp, res.EndTimestamp)
	fmt.Fprintf(w, "Observations: %d\n", res.Observations)
	fmt.Fprintf(w, "Retrains: %d\n", res.Retrains)
	fmt.Fprintf(w, "Scored: %d, Emitted: %d, Gated: %d\n", res.Scored, res.Emitted, res.Gated)
	fmt.Fprintf(w, "Hit Rate: %.2f%% (chance %.2f%%, majority %.2f%%)\n",
		res.HitRate*100, res.ChanceRate*100, res.MajorityRate*100)
	fmt.Fprintf(w, "Coverage: %.2f%%\n", res.Coverage*100)
	fmt.Fprintf(w, "Longest Miss Streak: %d\n", res.LongestMissStreak)
	fmt.Fprintln(w, "========================")
}

// Command export_data dumps the stored history to JSON or CSV.
package main

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strconv"
	"strings"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		backend  = flag.String("backend", "bolt", "Store backend: bolt, file or redis")
		dataPath = flag.String("data", "data", "Data directory")
		redis    = flag.String("redis", "localhost:6379", "Redis address for the redis backend")
		output   = flag.String("output", "history_export.json", "Output file (.json or .csv)")
		last     = flag.Int("last", 0, "Only export the last N observations (0 for all)")
		valid    = flag.Bool("valid-only", true, "Skip observations outside [0,36]")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	store, err := storage.Open(storage.Options{Backend: *backend, DataPath: *dataPath, RedisAddr: *redis})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	history, err := store.Load(context.Background())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load history")
	}

	records := make([]dozen.Observation, 0, len(history))
	skipped := 0
	for _, o := range history {
		if *valid && o.Validate() != nil {
			skipped++
			continue
		}
		records = append(records, o)
	}
	if *last > 0 && *last < len(records) {
		records = records[len(records)-*last:]
	}

	if strings.HasSuffix(strings.ToLower(*output), ".csv") {
		err = writeCSV(*output, records)
	} else {
		err = writeJSON(*output, records)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("Export failed")
	}

	fmt.Printf("✓ Exported %d observations to %s (%d skipped)\n", len(records), *output, skipped)
	counts := make(map[dozen.Label]int, dozen.NumLabels)
	for _, o := range records {
		counts[o.Label()]++
	}
	for _, l := range dozen.Labels {
		fmt.Printf("  %-6s %d\n", l, counts[l])
	}
}

func writeJSON(path string, records []dozen.Observation) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func writeCSV(path string, records []dozen.Observation) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write([]string{"timestamp", "number", "color"}); err != nil {
		return err
	}
	for _, o := range records {
		if err := w.Write([]string{o.Timestamp, strconv.Itoa(o.Number), o.Color}); err != nil {
			return err
		}
	}
	w.Flush()
	return w.Error()
}

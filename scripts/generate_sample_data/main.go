// Command generate_sample_data writes a synthetic outcome history, either to
// a JSON file in the flat history layout or into a store, for local runs of
// the server and the backtest.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"math/rand/v2"
	"os"
	"time"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/storage"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var reds = map[int]bool{
	1: true, 3: true, 5: true, 7: true, 9: true, 12: true, 14: true, 16: true, 18: true,
	19: true, 21: true, 23: true, 25: true, 27: true, 30: true, 32: true, 34: true, 36: true,
}

func main() {
	var (
		count    = flag.Int("count", 500, "Number of outcomes to generate")
		output   = flag.String("output", "", "Write a JSON history file here instead of a store")
		backend  = flag.String("backend", "bolt", "Store backend when -output is empty: bolt or file")
		dataPath = flag.String("data", "data", "Data directory for the store")
		seed     = flag.Uint64("seed", 0, "Random seed (0 uses the clock)")
		seedRun  = flag.Bool("with-seed-run", false, "Prepend the synthetic 1..45 run that the repair step strips")
		spacing  = flag.Duration("spacing", time.Minute, "Time between outcomes")
	)
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if *seed == 0 {
		*seed = uint64(time.Now().UnixNano())
	}
	history := generate(*count, *seedRun, *spacing, rand.New(rand.NewPCG(*seed, *seed>>1)))

	if *output != "" {
		data, err := json.MarshalIndent(history, "", "  ")
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to encode history")
		}
		if err := os.WriteFile(*output, data, 0644); err != nil {
			log.Fatal().Err(err).Msg("Failed to write history")
		}
		fmt.Printf("✓ Wrote %d outcomes to %s\n", len(history), *output)
		return
	}

	store, err := storage.Open(storage.Options{Backend: *backend, DataPath: *dataPath})
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer store.Close()

	if err := store.Replace(context.Background(), history); err != nil {
		log.Fatal().Err(err).Msg("Failed to store history")
	}
	fmt.Printf("✓ Stored %d outcomes in %s (%s)\n", len(history), *dataPath, *backend)
}

func generate(n int, seedRun bool, spacing time.Duration, rng *rand.Rand) []dozen.Observation {
	start := time.Now().UTC().Add(-time.Duration(n+45) * spacing).Truncate(time.Second)
	out := make([]dozen.Observation, 0, n+45)
	at := start
	add := func(number int) {
		out = append(out, dozen.Observation{
			Number:    number,
			Color:     colorOf(number),
			Timestamp: at.Format(time.RFC3339),
		})
		at = at.Add(spacing)
	}

	if seedRun {
		for i := 1; i <= 45; i++ {
			add(i)
		}
	}
	for i := 0; i < n; i++ {
		add(rng.IntN(dozen.MaxNumber + 1))
	}
	return out
}

func colorOf(n int) string {
	switch {
	case n == 0:
		return "green"
	case n > dozen.MaxNumber:
		return "-"
	case reds[n]:
		return "red"
	default:
		return "black"
	}
}

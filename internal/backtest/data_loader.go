package backtest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"roulette-dozen/internal/common"
	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/storage"

	"github.com/rs/zerolog/log"
)

// DataLoader holds a cleaned, chronologically ordered history and serves it
// one observation at a time.
type DataLoader struct {
	data  []dozen.Observation
	index int
}

// NewDataLoader creates an empty loader.
func NewDataLoader() *DataLoader {
	return &DataLoader{}
}

// NewDataLoaderFrom wraps an in-memory history.
func NewDataLoaderFrom(history []dozen.Observation) *DataLoader {
	dl := &DataLoader{}
	dl.set(history)
	return dl
}

// LoadFromStore reads the full history from any configured backend.
func (dl *DataLoader) LoadFromStore(ctx context.Context, store storage.HistoryStore) error {
	history, err := store.Load(ctx)
	if err != nil {
		return fmt.Errorf("failed to load history: %w", err)
	}
	dl.set(history)
	log.Info().Int("observations", len(dl.data)).Msg("Loaded history from store")
	return nil
}

// LoadFromJSON reads a JSON array of observations, the format of the flat
// history file.
func (dl *DataLoader) LoadFromJSON(filePath string) error {
	raw, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read JSON file: %w", err)
	}
	var history []dozen.Observation
	if err := json.Unmarshal(raw, &history); err != nil {
		return fmt.Errorf("failed to parse JSON history: %w", err)
	}
	dl.set(history)
	log.Info().Str("file", filePath).Int("observations", len(dl.data)).Msg("Loaded history from JSON")
	return nil
}

// LoadFromCSV reads rows of timestamp,number[,color]. A header row is
// skipped when its number column is not numeric.
func (dl *DataLoader) LoadFromCSV(filePath string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return fmt.Errorf("failed to open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var history []dozen.Observation
	for line := 1; ; line++ {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("line %d: %w", line, err)
		}
		if len(record) < 2 {
			return fmt.Errorf("line %d: want at least 2 columns, got %d", line, len(record))
		}
		n, err := strconv.Atoi(strings.TrimSpace(record[1]))
		if err != nil {
			if line == 1 {
				continue
			}
			return fmt.Errorf("line %d: invalid number %q", line, record[1])
		}
		o := dozen.Observation{Timestamp: strings.TrimSpace(record[0]), Number: n, Color: "-"}
		if len(record) > 2 {
			o.Color = strings.TrimSpace(record[2])
		}
		history = append(history, o)
	}
	dl.set(history)
	log.Info().Str("file", filePath).Int("observations", len(dl.data)).Msg("Loaded history from CSV")
	return nil
}

// set orders, deduplicates, strips the synthetic seed run and drops invalid
// observations, the same cleaning the live engine applies at startup.
func (dl *DataLoader) set(history []dozen.Observation) {
	history = append([]dozen.Observation(nil), history...)
	dozen.SortByTimestamp(history)
	history = dozen.Dedup(history)
	if stripped, ok := dozen.StripSeedRun(history, common.SeedRunLength, common.SeedRepairFloor); ok {
		log.Warn().Int("removed", common.SeedRunLength).Msg("Stripped synthetic seed run from backtest data")
		history = stripped
	}

	dl.data = dl.data[:0]
	dropped := 0
	for _, o := range history {
		if err := o.Validate(); err != nil {
			dropped++
			continue
		}
		dl.data = append(dl.data, o)
	}
	if dropped > 0 {
		log.Warn().Int("dropped", dropped).Msg("Dropped invalid observations")
	}
	dl.index = 0
}

// Reset rewinds to the first observation.
func (dl *DataLoader) Reset() {
	dl.index = 0
}

// HasNext reports whether Next has more to return.
func (dl *DataLoader) HasNext() bool {
	return dl.index < len(dl.data)
}

// Next returns the next observation.
func (dl *DataLoader) Next() dozen.Observation {
	o := dl.data[dl.index]
	dl.index++
	return o
}

// Observations returns the cleaned history.
func (dl *DataLoader) Observations() []dozen.Observation {
	return dl.data
}

// GetDataCount returns the number of observations.
func (dl *DataLoader) GetDataCount() int {
	return len(dl.data)
}

// GetProgress returns the fraction of observations served.
func (dl *DataLoader) GetProgress() float64 {
	if len(dl.data) == 0 {
		return 0
	}
	return float64(dl.index) / float64(len(dl.data))
}

package engine

import (
	"context"
	"errors"
	"fmt"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/storage"

	"github.com/rs/zerolog/log"
)

// Status is the outcome of an ingestion.
type Status string

const (
	StatusSaved     Status = "saved"
	StatusDuplicate Status = "duplicate"
	StatusRejected  Status = "rejected"
)

// IngestResult reports what happened to an observation.
type IngestResult struct {
	Status      Status            `json:"status"`
	Reason      string            `json:"reason,omitempty"`
	Observation dozen.Observation `json:"observation"`
}

// Ingest validates obs and appends it to history once. Rejected and
// duplicate observations are reported in the result, not as errors; an
// error means the store failed and nothing changed.
func (e *Engine) Ingest(ctx context.Context, obs dozen.Observation) (IngestResult, error) {
	res := IngestResult{Observation: obs}

	if err := obs.Validate(); err != nil {
		res.Status = StatusRejected
		res.Reason = err.Error()
		if e.metrics != nil {
			e.metrics.ObservationsRejectedInc()
		}
		log.Warn().Err(err).Int("number", obs.Number).Str("timestamp", obs.Timestamp).Msg("Observation rejected")
		return res, nil
	}

	e.ingestMu.Lock()
	defer e.ingestMu.Unlock()

	e.mu.RLock()
	_, dup := e.seen[obs.Timestamp]
	e.mu.RUnlock()
	if dup {
		return e.duplicate(res), nil
	}

	sctx, cancel := context.WithTimeout(ctx, e.cfg.StoreTimeout)
	defer cancel()
	if err := e.store.Append(sctx, obs); err != nil {
		if errors.Is(err, storage.ErrDuplicate) {
			return e.duplicate(res), nil
		}
		if e.metrics != nil {
			e.metrics.ErrorsInc()
		}
		return res, fmt.Errorf("append observation: %w", err)
	}

	e.mu.Lock()
	e.history = insertSorted(e.history, obs)
	e.seen[obs.Timestamp] = struct{}{}
	e.values = dozen.ValidNumbers(e.history)
	count := len(e.values)
	e.mu.Unlock()

	res.Status = StatusSaved
	if e.metrics != nil {
		e.metrics.ObservationsSavedInc()
		e.metrics.HistorySizeSet(float64(count))
	}
	log.Info().Int("number", obs.Number).Str("timestamp", obs.Timestamp).Int("history", count).Msg("Observation saved")
	return res, nil
}

func (e *Engine) duplicate(res IngestResult) IngestResult {
	res.Status = StatusDuplicate
	if e.metrics != nil {
		e.metrics.ObservationsDuplicateInc()
	}
	log.Debug().Str("timestamp", res.Observation.Timestamp).Msg("Observation already stored")
	return res
}

// Import ingests a batch, reporting how many were saved, duplicate and
// rejected.
func (e *Engine) Import(ctx context.Context, batch []dozen.Observation) (map[Status]int, error) {
	counts := make(map[Status]int, 3)
	for _, o := range batch {
		res, err := e.Ingest(ctx, o)
		if err != nil {
			return counts, err
		}
		counts[res.Status]++
	}
	return counts, nil
}

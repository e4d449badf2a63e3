// Package storage persists the observation history and the trained model.
// Three backends share one contract: an embedded BoltDB file (the default), a
// flat JSON file, and a Redis hash for deployments that share history
// between processes.
package storage

import (
	"context"
	"errors"
	"fmt"

	"roulette-dozen/internal/common"
	"roulette-dozen/internal/dozen"
)

var (
	// ErrDuplicate is returned by Append for a timestamp already stored.
	ErrDuplicate = errors.New("duplicate observation")
	// ErrNotFound is returned by LoadModel when no model has been saved.
	ErrNotFound = errors.New("not found")
)

// HistoryStore keeps the ordered, deduplicated observation history.
type HistoryStore interface {
	// Load returns the history ordered by timestamp.
	Load(ctx context.Context) ([]dozen.Observation, error)
	// Append stores obs unless its timestamp is already present, in which
	// case it returns ErrDuplicate and leaves the store unchanged.
	Append(ctx context.Context, obs dozen.Observation) error
	// Replace rewrites the whole history.
	Replace(ctx context.Context, history []dozen.Observation) error
	Close() error
}

// ModelStore keeps the encoded current model.
type ModelStore interface {
	SaveModel(ctx context.Context, data []byte) error
	LoadModel(ctx context.Context) ([]byte, error)
}

// Backend is a store for both history and model.
type Backend interface {
	HistoryStore
	ModelStore
}

// Options selects and configures a backend.
type Options struct {
	Backend       string
	DataPath      string
	HistoryFile   string
	ModelFile     string
	RedisAddr     string
	RedisPassword string
	RedisKey      string
}

// Open creates the backend named by opts.Backend.
func Open(opts Options) (Backend, error) {
	var (
		b   Backend
		err error
	)
	switch opts.Backend {
	case common.BackendBolt, "":
		b, err = New(opts.DataPath)
	case common.BackendFile:
		b, err = NewFileStore(opts.DataPath, opts.HistoryFile, opts.ModelFile)
	case common.BackendRedis:
		b, err = NewRedisStore(opts.RedisAddr, opts.RedisPassword, opts.RedisKey)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", opts.Backend)
	}
	if err != nil {
		return nil, err
	}
	return b, nil
}

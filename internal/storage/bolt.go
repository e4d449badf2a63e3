package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"roulette-dozen/internal/dozen"

	"go.etcd.io/bbolt"
)

const (
	observationsBucket = "observations" // keyed by timestamp
	modelsBucket       = "models"
	currentModelKey    = "current"
)

// Store is the BoltDB backend. Observations are keyed by timestamp, so a
// cursor walk returns them in timestamp order.
type Store struct {
	db *bbolt.DB
}

// New opens (creating if needed) dozen.db under dataPath.
func New(dataPath string) (*Store, error) {
	if err := os.MkdirAll(dataPath, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	dbPath := filepath.Join(dataPath, "dozen.db")

	db, err := bbolt.Open(dbPath, 0o600, &bbolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bbolt.Tx) error {
		if _, err := tx.CreateBucketIfNotExists([]byte(observationsBucket)); err != nil {
			return fmt.Errorf("create observations bucket: %w", err)
		}
		if _, err := tx.CreateBucketIfNotExists([]byte(modelsBucket)); err != nil {
			return fmt.Errorf("create models bucket: %w", err)
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		return err
	}
	return nil
}

// Load returns every stored observation in timestamp order. Records that no
// longer decode are skipped.
func (s *Store) Load(_ context.Context) ([]dozen.Observation, error) {
	var history []dozen.Observation
	err := s.db.View(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(observationsBucket)).ForEach(func(_, v []byte) error {
			var o dozen.Observation
			if err := json.Unmarshal(v, &o); err != nil {
				return nil
			}
			history = append(history, o)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// Append stores obs if its timestamp is new.
func (s *Store) Append(_ context.Context, obs dozen.Observation) error {
	data, err := json.Marshal(obs)
	if err != nil {
		return fmt.Errorf("marshal observation: %w", err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket([]byte(observationsBucket))
		key := []byte(obs.Timestamp)
		if b.Get(key) != nil {
			return ErrDuplicate
		}
		return b.Put(key, data)
	})
}

// Replace drops the observations bucket and writes history in one
// transaction.
func (s *Store) Replace(_ context.Context, history []dozen.Observation) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		if err := tx.DeleteBucket([]byte(observationsBucket)); err != nil {
			return fmt.Errorf("drop observations: %w", err)
		}
		b, err := tx.CreateBucket([]byte(observationsBucket))
		if err != nil {
			return fmt.Errorf("create observations bucket: %w", err)
		}
		for _, o := range history {
			data, err := json.Marshal(o)
			if err != nil {
				return fmt.Errorf("marshal observation: %w", err)
			}
			if err := b.Put([]byte(o.Timestamp), data); err != nil {
				return err
			}
		}
		return nil
	})
}

// SaveModel overwrites the current model.
func (s *Store) SaveModel(_ context.Context, data []byte) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket([]byte(modelsBucket)).Put([]byte(currentModelKey), data)
	})
}

// LoadModel returns the current model or ErrNotFound.
func (s *Store) LoadModel(_ context.Context) ([]byte, error) {
	var data []byte
	err := s.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket([]byte(modelsBucket)).Get([]byte(currentModelKey))
		if v == nil {
			return ErrNotFound
		}
		data = append([]byte(nil), v...)
		return nil
	})
	return data, err
}

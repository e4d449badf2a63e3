package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"roulette-dozen/internal/dozen"
)

// FileStore keeps the history as a JSON array and the model as a JSON
// document, both rewritten atomically.
type FileStore struct {
	mu          sync.Mutex
	historyPath string
	modelPath   string
}

// NewFileStore stores historyFile and modelFile under dir.
func NewFileStore(dir, historyFile, modelFile string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	return &FileStore{
		historyPath: filepath.Join(dir, historyFile),
		modelPath:   filepath.Join(dir, modelFile),
	}, nil
}

func (s *FileStore) Close() error { return nil }

// Load reads the history file. A missing or blank file is an empty history.
func (s *FileStore) Load(_ context.Context) ([]dozen.Observation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read()
}

func (s *FileStore) Append(_ context.Context, obs dozen.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	history, err := s.read()
	if err != nil {
		return err
	}
	for _, o := range history {
		if o.Timestamp == obs.Timestamp {
			return ErrDuplicate
		}
	}
	history = append(history, obs)
	dozen.SortByTimestamp(history)
	return s.write(history)
}

func (s *FileStore) Replace(_ context.Context, history []dozen.Observation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.write(history)
}

func (s *FileStore) SaveModel(_ context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeAtomic(s.modelPath, data)
}

func (s *FileStore) LoadModel(_ context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.modelPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotFound
	}
	return data, err
}

func (s *FileStore) read() ([]dozen.Observation, error) {
	data, err := os.ReadFile(s.historyPath)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var history []dozen.Observation
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, fmt.Errorf("decode history: %w", err)
	}
	dozen.SortByTimestamp(history)
	return dozen.Dedup(history), nil
}

func (s *FileStore) write(history []dozen.Observation) error {
	if history == nil {
		history = []dozen.Observation{}
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	return writeAtomic(s.historyPath, data)
}

func writeAtomic(path string, data []byte) error {
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

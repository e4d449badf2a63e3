package ml

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// DefaultMaxVersions bounds the version log.
const DefaultMaxVersions = 100

// ModelVersion records one successful training run.
type ModelVersion struct {
	Version   string       `json:"version"`
	CreatedAt time.Time    `json:"created_at"`
	Metrics   ModelMetrics `json:"metrics"`
	IsActive  bool         `json:"is_active"`
}

// ModelMetrics summarises a trained model.
type ModelMetrics struct {
	SchemaVersion   int     `json:"schema_version"`
	Window          int     `json:"window"`
	Target          Target  `json:"target"`
	Classes         int     `json:"classes"`
	TrainedOn       int     `json:"trained_on"`
	TrainingSamples int     `json:"training_samples"`
	TestSamples     int     `json:"test_samples"`
	HeldOutAccuracy float64 `json:"held_out_accuracy"`
	Evaluated       bool    `json:"evaluated"`
}

// MetricsOf extracts the version metrics from a model.
func MetricsOf(m *Model) ModelMetrics {
	return ModelMetrics{
		SchemaVersion:   m.SchemaVersion,
		Window:          m.Window,
		Target:          m.Target,
		Classes:         m.Codec.Len(),
		TrainedOn:       m.TrainedOn,
		TrainingSamples: m.TrainSamples,
		TestSamples:     m.TestSamples,
		HeldOutAccuracy: m.HeldOutAccuracy,
		Evaluated:       m.Evaluated,
	}
}

// ModelManager keeps the JSON log of trained model versions. The newest
// version is always the active one.
type ModelManager struct {
	mu           sync.RWMutex
	versionsFile string
	maxVersions  int
	versions     []ModelVersion
}

// NewModelManager opens (or starts) the version log in dir. An empty dir
// keeps the log in memory only.
func NewModelManager(dir string, maxVersions int) (*ModelManager, error) {
	if maxVersions <= 0 {
		maxVersions = DefaultMaxVersions
	}
	mm := &ModelManager{maxVersions: maxVersions}
	if dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create model dir: %w", err)
		}
		mm.versionsFile = filepath.Join(dir, "model_versions.json")
		if err := mm.loadVersions(); err != nil {
			log.Warn().Err(err).Msg("Failed to load model versions, starting fresh")
			mm.versions = nil
		}
	}
	return mm, nil
}

// Record appends a version for m and marks it active.
func (mm *ModelManager) Record(m *Model) (ModelVersion, error) {
	mm.mu.Lock()
	defer mm.mu.Unlock()

	created := time.Now().UTC()
	v := ModelVersion{
		Version:   created.Format("20060102-150405.000000"),
		CreatedAt: created,
		Metrics:   MetricsOf(m),
		IsActive:  true,
	}
	for i := range mm.versions {
		mm.versions[i].IsActive = false
	}
	mm.versions = append(mm.versions, v)
	if over := len(mm.versions) - mm.maxVersions; over > 0 {
		mm.versions = append([]ModelVersion(nil), mm.versions[over:]...)
	}

	if err := mm.saveVersions(); err != nil {
		return v, err
	}
	log.Info().
		Str("version", v.Version).
		Int("trained_on", v.Metrics.TrainedOn).
		Float64("held_out_accuracy", v.Metrics.HeldOutAccuracy).
		Msg("model version recorded")
	return v, nil
}

// Current returns the active version, if any.
func (mm *ModelManager) Current() (ModelVersion, bool) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	for i := len(mm.versions) - 1; i >= 0; i-- {
		if mm.versions[i].IsActive {
			return mm.versions[i], true
		}
	}
	return ModelVersion{}, false
}

// ListVersions returns all versions, newest first.
func (mm *ModelManager) ListVersions() []ModelVersion {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	out := make([]ModelVersion, len(mm.versions))
	for i, v := range mm.versions {
		out[len(mm.versions)-1-i] = v
	}
	return out
}

func (mm *ModelManager) loadVersions() error {
	data, err := os.ReadFile(mm.versionsFile)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	return json.Unmarshal(data, &mm.versions)
}

func (mm *ModelManager) saveVersions() error {
	if mm.versionsFile == "" {
		return nil
	}
	data, err := json.MarshalIndent(mm.versions, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(mm.versionsFile, data, 0o600)
}

package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"roulette-dozen/internal/cfg"
	"roulette-dozen/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSettings() cfg.Settings {
	return cfg.Settings{
		Window:         12,
		MinTrain:       30,
		ProbThreshold:  0.5,
		Target:         "current",
		MaxIter:        40,
		MaxDepth:       3,
		LearningRate:   0.05,
		MinSamplesLeaf: 10,
		LoopInterval:   time.Minute,
		FeedTimeout:    3 * time.Second,
		NotifyTimeout:  2 * time.Second,
		SeedRepair:     true,
		StorageBackend: "file",
		DataPath:       "/tmp/data",
		HistoryFile:    "h.json",
		ModelFile:      "m.json",
	}
}

func TestTrainConfig(t *testing.T) {
	tc, err := trainConfig(testSettings())
	require.NoError(t, err)
	assert.Equal(t, 12, tc.Window)
	assert.Equal(t, ml.TargetCurrent, tc.Target)
	assert.Equal(t, 40, tc.Params.MaxIter)
	assert.Equal(t, 3, tc.Params.MaxDepth)
	assert.Equal(t, 0.05, tc.Params.LearningRate)
	assert.Equal(t, 10, tc.Params.MinSamplesLeaf)

	s := testSettings()
	s.Target = "previous"
	_, err = trainConfig(s)
	assert.Error(t, err)
}

func TestEngineConfigAndStorageOptions(t *testing.T) {
	s := testSettings()
	ec := engineConfig(s)
	assert.Equal(t, 30, ec.MinTrain)
	assert.Equal(t, time.Minute, ec.Interval)
	assert.Equal(t, 3*time.Second, ec.FetchTimeout)
	assert.True(t, ec.SeedRepair)

	opts := storageOptions(s)
	assert.Equal(t, "file", opts.Backend)
	assert.Equal(t, "h.json", opts.HistoryFile)
}

func TestReadObservations(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "hist.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`[{"number":3,"color":"red","timestamp":"t1"},{"number":50,"timestamp":"t2"}]`), 0644))
	batch, err := readObservations(jsonPath, "auto")
	require.NoError(t, err)
	// Invalid values are left for the engine to reject.
	assert.Len(t, batch, 2)

	csvPath := filepath.Join(dir, "hist.csv")
	require.NoError(t, os.WriteFile(csvPath, []byte("t1,3,red\nt2,14,black\n"), 0644))
	batch, err = readObservations(csvPath, "")
	require.NoError(t, err)
	assert.Len(t, batch, 2)

	_, err = readObservations(filepath.Join(dir, "hist.txt"), "auto")
	assert.Error(t, err)
}

package storage

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"roulette-dozen/internal/common"
	"roulette-dozen/internal/dozen"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func obs(ts string, n int) dozen.Observation {
	return dozen.Observation{Number: n, Color: "red", Timestamp: ts}
}

// backends returns one fresh instance of each local backend.
func backends(t *testing.T) map[string]Backend {
	t.Helper()
	bolt, err := New(t.TempDir())
	require.NoError(t, err)
	file, err := NewFileStore(t.TempDir(), common.DefaultHistoryFile, common.DefaultModelFile)
	require.NoError(t, err)
	t.Cleanup(func() {
		bolt.Close()
		file.Close()
	})
	return map[string]Backend{"bolt": bolt, "file": file}
}

func TestBackends_AppendLoadOrder(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Append(ctx, obs("2024-01-01T00:02:00Z", 7)))
			require.NoError(t, s.Append(ctx, obs("2024-01-01T00:01:00Z", 0)))
			require.NoError(t, s.Append(ctx, obs("2024-01-01T00:03:00Z", 36)))

			history, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{0, 7, 36}, dozen.Numbers(history))
		})
	}
}

func TestBackends_DuplicateIsRejected(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Append(ctx, obs("t1", 3)))
			err := s.Append(ctx, obs("t1", 30))
			assert.True(t, errors.Is(err, ErrDuplicate))

			history, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, 3, history[0].Number)
		})
	}
}

func TestBackends_Replace(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Append(ctx, obs("a", 1)))
			require.NoError(t, s.Append(ctx, obs("b", 2)))

			require.NoError(t, s.Replace(ctx, []dozen.Observation{obs("c", 5)}))
			history, err := s.Load(ctx)
			require.NoError(t, err)
			assert.Equal(t, []int{5}, dozen.Numbers(history))

			require.NoError(t, s.Replace(ctx, nil))
			history, err = s.Load(ctx)
			require.NoError(t, err)
			assert.Empty(t, history)
		})
	}
}

func TestBackends_Model(t *testing.T) {
	ctx := context.Background()
	for name, s := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := s.LoadModel(ctx)
			assert.True(t, errors.Is(err, ErrNotFound))

			require.NoError(t, s.SaveModel(ctx, []byte(`{"v":1}`)))
			require.NoError(t, s.SaveModel(ctx, []byte(`{"v":2}`)))
			data, err := s.LoadModel(ctx)
			require.NoError(t, err)
			assert.Equal(t, `{"v":2}`, string(data))
		})
	}
}

func TestNew_CreatesDatabase(t *testing.T) {
	dir := t.TempDir()
	store, err := New(dir)
	require.NoError(t, err)
	defer store.Close()

	_, err = os.Stat(filepath.Join(dir, "dozen.db"))
	assert.NoError(t, err)
}

func TestStore_Persists(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	store, err := New(dir)
	require.NoError(t, err)
	require.NoError(t, store.Append(ctx, obs("t1", 12)))
	require.NoError(t, store.Close())
	require.NoError(t, store.Close())

	store, err = New(dir)
	require.NoError(t, err)
	defer store.Close()
	history, err := store.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int{12}, dozen.Numbers(history))
}

func TestFileStore_ReadsExistingFile(t *testing.T) {
	dir := t.TempDir()
	content := `[
  {"number": 4, "color": "black", "timestamp": "t2"},
  {"number": 9, "color": "red", "timestamp": "t1"},
  {"number": 5, "color": "red", "timestamp": "t1"}
]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "h.json"), []byte(content), 0o600))

	s, err := NewFileStore(dir, "h.json", "m.json")
	require.NoError(t, err)
	history, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []int{9, 4}, dozen.Numbers(history))
}

func TestFileStore_CorruptFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "h.json"), []byte("{"), 0o600))
	s, err := NewFileStore(dir, "h.json", "m.json")
	require.NoError(t, err)
	_, err = s.Load(context.Background())
	assert.Error(t, err)
}

func TestFileStore_EmptyFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "h.json"), nil, 0o600))
	s, err := NewFileStore(dir, "h.json", "m.json")
	require.NoError(t, err)
	ctx := context.Background()

	history, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	require.NoError(t, s.Append(ctx, obs("t1", 7)))
	history, err = s.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, []dozen.Observation{obs("t1", 7)}, history)
}

func TestOpen(t *testing.T) {
	b, err := Open(Options{Backend: common.BackendBolt, DataPath: t.TempDir()})
	require.NoError(t, err)
	b.Close()

	b, err = Open(Options{Backend: common.BackendFile, DataPath: t.TempDir(), HistoryFile: "h.json", ModelFile: "m.json"})
	require.NoError(t, err)
	b.Close()

	_, err = Open(Options{Backend: "sqlite"})
	assert.Error(t, err)
}

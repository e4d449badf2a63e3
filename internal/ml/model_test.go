package ml

import (
	"errors"
	"testing"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/features"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestModel_EncodeDecode(t *testing.T) {
	values := spins(50)
	m := mustTrain(t, fastConfig(), values)

	data, err := m.Encode()
	require.NoError(t, err)
	back, err := Decode(data)
	require.NoError(t, err)

	want, err := m.Probabilities(values)
	require.NoError(t, err)
	got, err := back.Probabilities(values)
	require.NoError(t, err)
	assert.InDeltaSlice(t, want[:], got[:], 1e-12)
	assert.Equal(t, m.TrainedOn, back.TrainedOn)
}

func TestModel_SchemaMismatch(t *testing.T) {
	m := mustTrain(t, fastConfig(), spins(50))

	old := *m
	old.SchemaVersion = features.SchemaVersion - 1
	data, err := old.Encode()
	require.NoError(t, err)
	_, err = Decode(data)
	assert.True(t, errors.Is(err, ErrSchemaMismatch))

	narrow := *m
	narrow.FeatureCount = features.Width - 1
	assert.True(t, errors.Is(narrow.Check(), ErrSchemaMismatch))

	badCodec := *m
	badCodec.Codec = LabelCodec{Classes: []dozen.Label{dozen.Third, dozen.First}}
	assert.True(t, errors.Is(badCodec.Check(), ErrSchemaMismatch))

	_, err = Decode([]byte("{not json"))
	assert.True(t, errors.Is(err, ErrSchemaMismatch))
}

func TestModel_UntrainedCheck(t *testing.T) {
	var m *Model
	assert.True(t, errors.Is(m.Check(), ErrModelNotTrained))

	empty := &Model{SchemaVersion: features.SchemaVersion, FeatureCount: features.Width, Window: 20}
	assert.True(t, errors.Is(empty.Check(), ErrModelNotTrained))
}

func TestParseTarget(t *testing.T) {
	tg, err := ParseTarget("next")
	require.NoError(t, err)
	assert.Equal(t, TargetNext, tg)
	tg, err = ParseTarget("current")
	require.NoError(t, err)
	assert.Equal(t, TargetCurrent, tg)
	_, err = ParseTarget("")
	assert.Error(t, err)
}

func TestLabelCodec(t *testing.T) {
	c := FitCodec([]dozen.Label{dozen.Third, dozen.First, dozen.Third, dozen.Zero})
	assert.Equal(t, []dozen.Label{dozen.Zero, dozen.First, dozen.Third}, c.Classes)
	assert.NoError(t, c.validate())

	idx, err := c.Encode(dozen.Third)
	require.NoError(t, err)
	assert.Equal(t, 2, idx)
	l, err := c.Decode(idx)
	require.NoError(t, err)
	assert.Equal(t, dozen.Third, l)

	_, err = c.Encode(dozen.Second)
	assert.Error(t, err)
	_, err = c.Decode(3)
	assert.Error(t, err)
}

func TestFeatureImportance(t *testing.T) {
	m := mustTrain(t, fastConfig(), spins(120))
	all := FeatureImportance(m)
	require.Len(t, all, features.Width)
	for i := 1; i < len(all); i++ {
		assert.GreaterOrEqual(t, all[i-1].ImportanceScore, all[i].ImportanceScore)
	}
	for _, fs := range all {
		assert.Equal(t, features.Names[fs.Index], fs.Name)
	}
	assert.Len(t, TopFeatures(m, 5), 5)
	assert.Nil(t, FeatureImportance(nil))
}

func TestModelManager_RecordAndReload(t *testing.T) {
	dir := t.TempDir()
	mm, err := NewModelManager(dir, 2)
	require.NoError(t, err)

	_, ok := mm.Current()
	assert.False(t, ok)

	m := mustTrain(t, fastConfig(), spins(50))
	for i := 0; i < 3; i++ {
		_, err := mm.Record(m)
		require.NoError(t, err)
	}

	versions := mm.ListVersions()
	require.Len(t, versions, 2)
	assert.True(t, versions[0].IsActive)
	assert.False(t, versions[1].IsActive)
	assert.Equal(t, 50, versions[0].Metrics.TrainedOn)

	reloaded, err := NewModelManager(dir, 2)
	require.NoError(t, err)
	cur, ok := reloaded.Current()
	require.True(t, ok)
	assert.Equal(t, versions[0].Version, cur.Version)
}

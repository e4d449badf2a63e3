package ml

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFitBooster_SeparatesClasses(t *testing.T) {
	var X [][]float64
	var y []int
	for i := 0; i < 100; i++ {
		c := i % 2
		X = append(X, []float64{float64(c), float64(i % 7)})
		y = append(y, c)
	}

	params := DefaultBoostParams()
	params.MaxIter = 30
	params.MinSamplesLeaf = 5
	b, err := FitBooster(X, y, 2, params)
	require.NoError(t, err)

	p0, err := b.PredictProba([]float64{0, 3})
	require.NoError(t, err)
	p1, err := b.PredictProba([]float64{1, 3})
	require.NoError(t, err)
	assert.Greater(t, p0[0], 0.9)
	assert.Greater(t, p1[1], 0.9)

	imp := b.Importance()
	require.Len(t, imp, 2)
	assert.Greater(t, imp[0], imp[1])
}

func TestFitBooster_SingleClass(t *testing.T) {
	b, err := FitBooster([][]float64{{1}, {2}}, []int{0, 0}, 1, DefaultBoostParams())
	require.NoError(t, err)
	assert.Empty(t, b.Rounds)

	p, err := b.PredictProba([]float64{5})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, p)
}

func TestFitBooster_RejectsBadInput(t *testing.T) {
	params := DefaultBoostParams()

	_, err := FitBooster(nil, nil, 2, params)
	assert.Error(t, err)

	_, err = FitBooster([][]float64{{1}, {1, 2}}, []int{0, 1}, 2, params)
	assert.Error(t, err)

	_, err = FitBooster([][]float64{{1}}, []int{3}, 2, params)
	assert.Error(t, err)

	params.MaxDepth = 0
	_, err = FitBooster([][]float64{{1}}, []int{0}, 1, params)
	assert.Error(t, err)
}

func TestBooster_PredictProbaWidth(t *testing.T) {
	b, err := FitBooster([][]float64{{1, 2}, {3, 4}}, []int{0, 1}, 2, DefaultBoostParams())
	require.NoError(t, err)
	_, err = b.PredictProba([]float64{1})
	assert.Error(t, err)
}

func TestMinSamplesLeafPreventsSplits(t *testing.T) {
	X := [][]float64{{0}, {1}, {2}, {3}}
	y := []int{0, 0, 1, 1}
	params := DefaultBoostParams()
	params.MaxIter = 3
	b, err := FitBooster(X, y, 2, params)
	require.NoError(t, err)
	for _, round := range b.Rounds {
		for _, tree := range round {
			assert.Len(t, tree.Nodes, 1)
		}
	}
}

package backtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"roulette-dozen/internal/dozen"
	"roulette-dozen/internal/ml"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingTrainer struct {
	calls int32
	cfg   ml.TrainConfig
}

func (c *countingTrainer) Train(values []int) (*ml.Model, error) {
	atomic.AddInt32(&c.calls, 1)
	return &ml.Model{Trained: true, Window: c.cfg.Window, TrainedOn: len(values)}, nil
}

func (c *countingTrainer) Config() ml.TrainConfig { return c.cfg }

// echoPredictor predicts the dozen of the last value and gates ZERO.
type echoPredictor struct{}

func (echoPredictor) Predict(m *ml.Model, values []int) (ml.Prediction, error) {
	l := dozen.LabelOf(values[len(values)-1])
	return ml.Prediction{Label: l, Emitted: l != dozen.Zero, Confidence: 0.5}, nil
}

func (echoPredictor) Threshold() float64 { return 0.4 }

func history(numbers ...int) []dozen.Observation {
	out := make([]dozen.Observation, len(numbers))
	for i, n := range numbers {
		out[i] = dozen.Observation{Number: n, Color: "red", Timestamp: fmt.Sprintf("2024-01-01T%06d", i)}
	}
	return out
}

func sequence(n int) []int {
	out := make([]int, n)
	for i := range out {
		out[i] = (i*7 + 3) % 37
	}
	return out
}

func TestDataLoader_CleansHistory(t *testing.T) {
	h := history(5, 40, 12)
	h = append(h, h[0]) // duplicate timestamp
	h[0], h[2] = h[2], h[0]

	dl := NewDataLoaderFrom(h)
	require.Equal(t, 2, dl.GetDataCount())
	assert.Equal(t, []int{5, 12}, dozen.Numbers(dl.Observations()))

	assert.True(t, dl.HasNext())
	assert.Equal(t, 5, dl.Next().Number)
	assert.InDelta(t, 0.5, dl.GetProgress(), 1e-9)
	dl.Next()
	assert.False(t, dl.HasNext())
	dl.Reset()
	assert.True(t, dl.HasNext())
}

func TestDataLoader_StripsSeedRun(t *testing.T) {
	numbers := make([]int, 0, 60)
	for i := 1; i <= 45; i++ {
		numbers = append(numbers, i)
	}
	numbers = append(numbers, sequence(15)...)

	dl := NewDataLoaderFrom(history(numbers...))
	assert.Equal(t, sequence(15), dozen.Numbers(dl.Observations()))
}

func TestDataLoader_CSV(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	content := "timestamp,number,color\n2024-01-01T02,7,red\n2024-01-01T01,0,green\n2024-01-01T03,33\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromCSV(path))
	obs := dl.Observations()
	require.Len(t, obs, 3)
	assert.Equal(t, []int{0, 7, 33}, dozen.Numbers(obs))
	assert.Equal(t, "-", obs[2].Color)

	bad := filepath.Join(t.TempDir(), "bad.csv")
	require.NoError(t, os.WriteFile(bad, []byte("a,1\nb,x\n"), 0644))
	assert.Error(t, NewDataLoader().LoadFromCSV(bad))
}

func TestDataLoader_JSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.json")
	raw, err := json.Marshal(history(1, 2, 3))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0644))

	dl := NewDataLoader()
	require.NoError(t, dl.LoadFromJSON(path))
	assert.Equal(t, 3, dl.GetDataCount())

	assert.Error(t, dl.LoadFromJSON(filepath.Join(t.TempDir(), "missing.json")))
}

func TestNewEngine_Validates(t *testing.T) {
	dl := NewDataLoader()
	tr := &countingTrainer{cfg: ml.DefaultTrainConfig()}

	_, err := NewEngine(Config{MinTrain: 0, RetrainEvery: 1}, tr, echoPredictor{}, dl)
	assert.Error(t, err)
	_, err = NewEngine(Config{MinTrain: 5, RetrainEvery: 0}, tr, echoPredictor{}, dl)
	assert.Error(t, err)
	_, err = NewEngine(DefaultConfig(), nil, echoPredictor{}, dl)
	assert.Error(t, err)
}

func TestEngine_WalkForward(t *testing.T) {
	values := sequence(40)
	tr := &countingTrainer{cfg: ml.DefaultTrainConfig()}
	e, err := NewEngine(Config{MinTrain: 25, RetrainEvery: 5}, tr, echoPredictor{}, NewDataLoaderFrom(history(values...)))
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)

	// Trains at 25, 30, 35 and 40 values.
	assert.Equal(t, 4, res.Retrains)
	assert.EqualValues(t, 4, atomic.LoadInt32(&tr.calls))

	// Predictions made after values 25..39 are scored against 26..40.
	require.Equal(t, 15, res.Scored)
	first := res.Records[0]
	assert.Equal(t, 25, first.Index)
	assert.Equal(t, 25, first.TrainedOn)
	assert.Equal(t, values[25], first.Number)
	assert.Equal(t, dozen.LabelOf(values[24]), first.Predicted)
	assert.Equal(t, 30, res.Records[5].TrainedOn)

	hits, emitted := 0, 0
	for i := 25; i < 40; i++ {
		pred := dozen.LabelOf(values[i-1])
		if pred == dozen.Zero {
			continue
		}
		emitted++
		if pred == dozen.LabelOf(values[i]) {
			hits++
		}
	}
	assert.Equal(t, emitted, res.Emitted)
	assert.Equal(t, res.Scored-emitted, res.Gated)
	assert.Equal(t, hits, res.Hits)
	if emitted > 0 {
		assert.InDelta(t, float64(hits)/float64(emitted), res.HitRate, 1e-9)
	}
	assert.InDelta(t, 12.0/37.0, res.ChanceRate, 1e-9)
	assert.Equal(t, "2024-01-01T000000", res.StartTimestamp)
	assert.Equal(t, 40, res.Observations)

	actual := 0
	for _, s := range res.PerLabel {
		actual += s.Actual
	}
	assert.Equal(t, res.Scored, actual)
}

func TestEngine_TooShortForTraining(t *testing.T) {
	tr := &countingTrainer{cfg: ml.DefaultTrainConfig()}
	e, err := NewEngine(DefaultConfig(), tr, echoPredictor{}, NewDataLoaderFrom(history(sequence(10)...)))
	require.NoError(t, err)

	res, err := e.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Retrains)
	assert.Zero(t, res.Scored)
	assert.Zero(t, res.HitRate)
}

func TestEngine_Cancelled(t *testing.T) {
	tr := &countingTrainer{cfg: ml.DefaultTrainConfig()}
	e, err := NewEngine(DefaultConfig(), tr, echoPredictor{}, NewDataLoaderFrom(history(sequence(30)...)))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEngine_RealTrainer(t *testing.T) {
	cfg := ml.DefaultTrainConfig()
	cfg.Params.MaxIter = 5
	tr, err := ml.NewTrainer(cfg, nil)
	require.NoError(t, err)
	pred, err := ml.NewPredictor(0, nil)
	require.NoError(t, err)

	e, err := NewEngine(Config{MinTrain: 25, RetrainEvery: 10}, tr, pred, NewDataLoaderFrom(history(sequence(60)...)))
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 35, res.Scored)
	assert.Equal(t, res.Scored, res.Emitted)
	assert.Equal(t, 4, res.Retrains)
	assert.GreaterOrEqual(t, res.MeanConfidence, 0.25)
}

func TestReporter(t *testing.T) {
	tr := &countingTrainer{cfg: ml.DefaultTrainConfig()}
	e, err := NewEngine(Config{MinTrain: 25, RetrainEvery: 1}, tr, echoPredictor{}, NewDataLoaderFrom(history(sequence(100)...)))
	require.NoError(t, err)
	res, err := e.Run(context.Background())
	require.NoError(t, err)

	out := filepath.Join(t.TempDir(), "report")
	rep := NewReporter(res, out)
	require.NoError(t, rep.GenerateReport())

	for _, name := range []string{"backtest_summary.txt", "prediction_log.csv", "backtest_results.json", "metrics_report.csv"} {
		_, err := os.Stat(filepath.Join(out, name))
		assert.NoError(t, err, name)
	}

	summary, err := os.ReadFile(filepath.Join(out, "backtest_summary.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(summary), "Hit Rate:")
	assert.Contains(t, string(summary), "PERFORMANCE BY DOZEN")

	var decoded map[string]any
	raw, err := os.ReadFile(filepath.Join(out, "backtest_results.json"))
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.EqualValues(t, res.Scored, decoded["scored"])
	assert.Contains(t, decoded, "generated_at")

	// 75 scored records in blocks of 50.
	blocks := rep.calculateBlockMetrics()
	require.Len(t, blocks, 2)
	assert.Equal(t, 99, blocks[1].LastIndex)

	var buf bytes.Buffer
	rep.PrintSummary(&buf)
	assert.Contains(t, buf.String(), "BACKTEST RESULTS")
}

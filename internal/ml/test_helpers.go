package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	gated            int
	failures         int
	latencySum       float64
	predictionScores []float64
	trainRuns        int
	trainFailures    int
	trainDuration    float64
	trainingSamples  float64
	accuracies       []float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
}

func (m *MockMetrics) MLGatedInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gated++
}

func (m *MockMetrics) MLFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failures++
}

func (m *MockMetrics) MLLatencyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latencySum += v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLTrainRunsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainRuns++
}

func (m *MockMetrics) MLTrainFailuresInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainFailures++
}

func (m *MockMetrics) MLTrainDurationObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainDuration += v
}

func (m *MockMetrics) MLTrainingSamplesSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trainingSamples = v
}

func (m *MockMetrics) MLAccuracyObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accuracies = append(m.accuracies, v)
}

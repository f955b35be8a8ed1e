package ml

import "sync"

// MockMetrics implements MetricsInterface for testing
type MockMetrics struct {
	mu               sync.Mutex
	predictions      int
	failures         int
	latencySum       float64
	latencyCount     int
	modelAge         float64
	streams          float64
	predictionScores []float64
}

func (m *MockMetrics) MLPredictionsInc() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictions++
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
	m.latencyCount++
}

func (m *MockMetrics) MLModelAgeSet(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.modelAge = v
}

func (m *MockMetrics) MLPredictionScoresObserve(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.predictionScores = append(m.predictionScores, v)
}

func (m *MockMetrics) MLStreamConnectionsAdd(v float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.streams += v
}

// Snapshot returns predictions, failures and latency observations so far.
func (m *MockMetrics) Snapshot() (predictions, failures, latencies int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.predictions, m.failures, m.latencyCount
}

// Scores returns a copy of the observed default probabilities.
func (m *MockMetrics) Scores() []float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]float64(nil), m.predictionScores...)
}

// Streams returns the current open stream count.
func (m *MockMetrics) Streams() float64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.streams
}

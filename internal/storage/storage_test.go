package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"loan-risk/internal/common"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func TestNew(t *testing.T) {
	tempDir := t.TempDir()

	store, err := New(tempDir)
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}
	defer store.Close()

	if store.db == nil {
		t.Error("Store database is nil")
	}

	dbPath := filepath.Join(tempDir, common.DBFileName)
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("Database file was not created")
	}
}

func TestNew_InvalidPath(t *testing.T) {
	invalidPath := filepath.Join(t.TempDir(), "does", "not", "exist")

	_, err := New(invalidPath)
	if err == nil {
		t.Error("Expected error for invalid path, got nil")
	}
}

func TestStore_Close(t *testing.T) {
	store, err := New(t.TempDir())
	if err != nil {
		t.Fatalf("Failed to create store: %v", err)
	}

	if err := store.Close(); err != nil {
		t.Errorf("Error closing store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Errorf("Error closing already closed store: %v", err)
	}
}

func TestStore_CloseNilDB(t *testing.T) {
	store := &Store{db: nil}
	if err := store.Close(); err != nil {
		t.Errorf("Expected no error for nil db, got: %v", err)
	}
}

func TestRecentPredictions(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := PredictionRecord{
			Timestamp:          base.Add(time.Duration(i) * time.Second),
			SchemaVersion:      "abc",
			DefaultProbability: float64(i) / 10,
			TopAttributions:    []Attribution{{Feature: "int_rate", Value: 0.1 * float64(i)}},
			Request:            map[string]any{"loan_amnt": 1000.0 * float64(i)},
		}
		if err := store.StorePrediction(rec); err != nil {
			t.Fatalf("Failed to store prediction: %v", err)
		}
	}

	recent, err := store.RecentPredictions(3)
	if err != nil {
		t.Fatalf("Failed to read predictions: %v", err)
	}
	if len(recent) != 3 {
		t.Fatalf("Expected 3 predictions, got %d", len(recent))
	}
	// newest first
	if recent[0].DefaultProbability != 0.4 || recent[2].DefaultProbability != 0.2 {
		t.Errorf("Unexpected order: %+v", recent)
	}
	if recent[0].TopAttributions[0].Feature != "int_rate" {
		t.Errorf("Attributions not round-tripped: %+v", recent[0].TopAttributions)
	}

	all, err := store.RecentPredictions(100)
	if err != nil {
		t.Fatalf("Failed to read predictions: %v", err)
	}
	if len(all) != 5 {
		t.Errorf("Expected 5 predictions, got %d", len(all))
	}

	none, err := store.RecentPredictions(0)
	if err != nil || len(none) != 0 {
		t.Errorf("Expected empty result for limit 0, got %d (%v)", len(none), err)
	}
}

func TestStorePrediction_SameTimestamp(t *testing.T) {
	store := newTestStore(t)

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := store.StorePrediction(PredictionRecord{Timestamp: ts, DefaultProbability: float64(i)}); err != nil {
			t.Fatalf("Failed to store prediction: %v", err)
		}
	}

	recent, err := store.RecentPredictions(10)
	if err != nil {
		t.Fatalf("Failed to read predictions: %v", err)
	}
	if len(recent) != 3 {
		t.Errorf("Expected 3 predictions with identical timestamps, got %d", len(recent))
	}
}

func TestPredictionsInRange(t *testing.T) {
	store := newTestStore(t)

	base := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	offsets := []time.Duration{0, time.Second, 2 * time.Second, 10 * time.Second}
	for i, off := range offsets {
		if err := store.StorePrediction(PredictionRecord{Timestamp: base.Add(off), DefaultProbability: float64(i)}); err != nil {
			t.Fatalf("Failed to store prediction: %v", err)
		}
	}

	got, err := store.PredictionsInRange(base.Add(500*time.Millisecond), base.Add(5*time.Second))
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("Expected 2 predictions in range, got %d", len(got))
	}
	if got[0].DefaultProbability != 1 || got[1].DefaultProbability != 2 {
		t.Errorf("Unexpected range result: %+v", got)
	}

	empty, err := store.PredictionsInRange(base.Add(-time.Hour), base.Add(-time.Minute))
	if err != nil {
		t.Fatalf("Failed to query range: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("Expected empty result, got %d", len(empty))
	}
}

func TestTrainingRuns(t *testing.T) {
	store := newTestStore(t)

	if _, ok, err := store.LatestTrainingRun(); err != nil || ok {
		t.Fatalf("Expected no training run, got ok=%v err=%v", ok, err)
	}

	first := TrainingRun{
		FinishedAt:    time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		SchemaVersion: "v1",
	}
	second := TrainingRun{
		FinishedAt:    time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		SchemaVersion: "v2",
		Report:        json.RawMessage(`{"accuracy":0.9}`),
	}
	for _, run := range []TrainingRun{first, second} {
		if err := store.StoreTrainingRun(run); err != nil {
			t.Fatalf("Failed to store training run: %v", err)
		}
	}

	latest, ok, err := store.LatestTrainingRun()
	if err != nil || !ok {
		t.Fatalf("Expected a training run, got ok=%v err=%v", ok, err)
	}
	if latest.SchemaVersion != "v2" {
		t.Errorf("Expected latest run v2, got %s", latest.SchemaVersion)
	}
	if string(latest.Report) != `{"accuracy":0.9}` {
		t.Errorf("Unexpected report payload %s", latest.Report)
	}
}

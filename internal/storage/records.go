package storage

import (
	"encoding/json"
	"time"
)

// Attribution is one feature's contribution to a prediction in log-odds.
type Attribution struct {
	Feature string  `json:"feature"`
	Value   float64 `json:"value"`
}

// PredictionRecord is one served prediction.
type PredictionRecord struct {
	Timestamp          time.Time      `json:"timestamp"`
	SchemaVersion      string         `json:"schema_version"`
	DefaultProbability float64        `json:"default_probability"`
	TopAttributions    []Attribution  `json:"top_attributions"`
	Request            map[string]any `json:"request,omitempty"`
}

// TrainingRun summarises one completed training run.
type TrainingRun struct {
	StartedAt     time.Time       `json:"started_at"`
	FinishedAt    time.Time       `json:"finished_at"`
	DataPath      string          `json:"data_path"`
	SchemaVersion string          `json:"schema_version"`
	ModelDigest   string          `json:"model_digest"`
	ArtifactDir   string          `json:"artifact_dir"`
	Report        json.RawMessage `json:"report,omitempty"`
}

// StorePrediction appends a prediction record.
func (s *Store) StorePrediction(rec PredictionRecord) error {
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return s.put(predictionsBucket, rec.Timestamp, rec)
}

// RecentPredictions returns up to limit predictions, newest first.
// Malformed records are skipped.
func (s *Store) RecentPredictions(limit int) ([]PredictionRecord, error) {
	var out []PredictionRecord
	if limit <= 0 {
		return out, nil
	}
	err := s.latest(predictionsBucket, func(v []byte) bool {
		var rec PredictionRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return true
		}
		out = append(out, rec)
		return len(out) < limit
	})
	return out, err
}

// PredictionsInRange returns predictions with start <= timestamp <= end in
// chronological order.
func (s *Store) PredictionsInRange(start, end time.Time) ([]PredictionRecord, error) {
	var out []PredictionRecord
	err := s.inRange(predictionsBucket, start, end, func(v []byte) {
		var rec PredictionRecord
		if err := json.Unmarshal(v, &rec); err != nil {
			return
		}
		out = append(out, rec)
	})
	return out, err
}

// StoreTrainingRun appends a training run summary keyed by its finish time.
func (s *Store) StoreTrainingRun(run TrainingRun) error {
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now().UTC()
	}
	return s.put(trainingRunsBucket, run.FinishedAt, run)
}

// LatestTrainingRun returns the most recent run; ok is false when none exist.
func (s *Store) LatestTrainingRun() (run TrainingRun, ok bool, err error) {
	err = s.latest(trainingRunsBucket, func(v []byte) bool {
		if json.Unmarshal(v, &run) != nil {
			return true
		}
		ok = true
		return false
	})
	return run, ok, err
}

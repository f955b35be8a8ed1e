package cfg

import (
	"testing"
	"time"
)

// createValidSettings creates a valid Settings struct for testing
func createValidSettings() *Settings {
	return &Settings{
		ArtifactDir:   "artifacts",
		ModelPath:     "artifacts/model.gob",
		ExplainerPath: "artifacts/explainer.gob",
		SchemaPath:    "artifacts/schema.json",
		ListenPort:    5001,
		ReadTimeout:   30 * time.Second,
		Training:      DefaultTraining(),
	}
}

func TestValidateSettings_ValidConfig(t *testing.T) {
	if err := validateSettings(createValidSettings()); err != nil {
		t.Errorf("Expected valid config to pass, got error: %v", err)
	}
}

func TestValidateSettings_Invalid(t *testing.T) {
	testCases := []struct {
		name   string
		mutate func(s *Settings)
	}{
		{"missing model path", func(s *Settings) { s.ModelPath = "" }},
		{"missing schema path", func(s *Settings) { s.SchemaPath = "" }},
		{"privileged port", func(s *Settings) { s.ListenPort = 443 }},
		{"port too high", func(s *Settings) { s.ListenPort = 70000 }},
		{"read timeout too short", func(s *Settings) { s.ReadTimeout = time.Millisecond }},
		{"zero chunk size", func(s *Settings) { s.Training.ChunkSize = 0 }},
		{"zero sample fraction", func(s *Settings) { s.Training.SampleFraction = 0 }},
		{"test fraction of one", func(s *Settings) { s.Training.TestFraction = 1 }},
		{"negative missing threshold", func(s *Settings) { s.Training.MissingThreshold = -0.1 }},
		{"zero neighbors", func(s *Settings) { s.Training.SMOTENeighbors = 0 }},
		{"zero estimators", func(s *Settings) { s.Training.NEstimators = 0 }},
		{"depth too deep", func(s *Settings) { s.Training.MaxDepth = 40 }},
		{"learning rate too high", func(s *Settings) { s.Training.LearningRate = 2 }},
		{"negative lambda", func(s *Settings) { s.Training.Lambda = -1 }},
		{"negative min child weight", func(s *Settings) { s.Training.MinChildWeight = -1 }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			settings := createValidSettings()
			tc.mutate(settings)
			if err := validateSettings(settings); err == nil {
				t.Errorf("expected validation error for %s", tc.name)
			}
		})
	}
}

func TestValidateTraining_Boundaries(t *testing.T) {
	tr := DefaultTraining()
	tr.SampleFraction = 1
	tr.MissingThreshold = 0
	tr.SMOTENeighbors = 1
	if err := ValidateTraining(tr); err != nil {
		t.Errorf("expected boundary values to pass, got %v", err)
	}
}

package cfg

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"loan-risk/internal/common"
)

var allEnvKeys = []string{
	common.EnvConfigFile, common.EnvArtifactDir, common.EnvModelPath, common.EnvExplainerPath,
	common.EnvSchemaPath, common.EnvDataPath, common.EnvListenPort, common.EnvMetricsEnabled,
	common.EnvLogLevel, common.EnvEagerLoad, common.EnvChunkSize, common.EnvSampleFraction,
	common.EnvSeed, common.EnvTestFraction, common.EnvMissingThreshold, common.EnvSMOTENeighbors,
	common.EnvNEstimators, common.EnvMaxDepth, common.EnvLearningRate, common.EnvLambda,
	common.EnvMinChildWeight,
}

func clearTestEnv(t *testing.T) {
	t.Helper()
	for _, key := range allEnvKeys {
		t.Setenv(key, "")
	}
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name     string
		envVars  map[string]string
		wantErr  bool
		validate func(t *testing.T, settings Settings)
	}{
		{
			name:    "defaults",
			envVars: map[string]string{},
			validate: func(t *testing.T, settings Settings) {
				if settings.ArtifactDir != common.DefaultArtifactDir {
					t.Errorf("expected default artifact dir, got %s", settings.ArtifactDir)
				}
				if settings.ModelPath != filepath.Join(common.DefaultArtifactDir, common.ModelFileName) {
					t.Errorf("unexpected model path %s", settings.ModelPath)
				}
				if settings.ListenPort != common.DefaultListenPort {
					t.Errorf("expected port %d, got %d", common.DefaultListenPort, settings.ListenPort)
				}
				if settings.Training.SampleFraction != 0.1 {
					t.Errorf("expected sample fraction 0.1, got %f", settings.Training.SampleFraction)
				}
				if settings.Training.Seed != 42 {
					t.Errorf("expected seed 42, got %d", settings.Training.Seed)
				}
				if !settings.MetricsOn || !settings.EagerLoad {
					t.Error("expected metrics and eager load on by default")
				}
			},
		},
		{
			name: "custom artifact dir and training knobs",
			envVars: map[string]string{
				common.EnvArtifactDir:    "/tmp/risk",
				common.EnvListenPort:     "9090",
				common.EnvSampleFraction: "1",
				common.EnvNEstimators:    "25",
				common.EnvMetricsEnabled: "false",
			},
			validate: func(t *testing.T, settings Settings) {
				if settings.SchemaPath != filepath.Join("/tmp/risk", common.SchemaFileName) {
					t.Errorf("unexpected schema path %s", settings.SchemaPath)
				}
				if settings.ListenPort != 9090 {
					t.Errorf("expected port 9090, got %d", settings.ListenPort)
				}
				if settings.Training.SampleFraction != 1 {
					t.Errorf("expected sample fraction 1, got %f", settings.Training.SampleFraction)
				}
				if settings.Training.NEstimators != 25 {
					t.Errorf("expected 25 estimators, got %d", settings.Training.NEstimators)
				}
				if settings.MetricsOn {
					t.Error("expected metrics disabled")
				}
			},
		},
		{
			name:    "port out of range",
			envVars: map[string]string{common.EnvListenPort: "80"},
			wantErr: true,
		},
		{
			name:    "sample fraction out of range",
			envVars: map[string]string{common.EnvSampleFraction: "1.5"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clearTestEnv(t)
			for key, value := range tt.envVars {
				t.Setenv(key, value)
			}

			settings, err := loadFromEnv()

			if tt.wantErr && err == nil {
				t.Error("expected error but got none")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
			if !tt.wantErr && tt.validate != nil {
				tt.validate(t, settings)
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	clearTestEnv(t)

	content := `
artifacts:
  dir: "/srv/artifacts"
server:
  port: 7001
  readTimeout: "10s"
  eagerLoad: false
training:
  chunkSize: 5000
  sampleFraction: 0.5
  nEstimators: 50
  maxDepth: 4
system:
  dataPath: "/srv/data"
  logLevel: "debug"
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := loadFromYAML(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if settings.ModelPath != filepath.Join("/srv/artifacts", common.ModelFileName) {
		t.Errorf("unexpected model path %s", settings.ModelPath)
	}
	if settings.ListenPort != 7001 {
		t.Errorf("expected port 7001, got %d", settings.ListenPort)
	}
	if settings.ReadTimeout != 10*time.Second {
		t.Errorf("expected read timeout 10s, got %v", settings.ReadTimeout)
	}
	if settings.EagerLoad {
		t.Error("expected eager load disabled")
	}
	if settings.Training.ChunkSize != 5000 || settings.Training.MaxDepth != 4 {
		t.Errorf("unexpected training settings %+v", settings.Training)
	}
	// unset keys fall back to defaults
	if settings.Training.LearningRate != common.DefaultLearningRate {
		t.Errorf("expected default learning rate, got %f", settings.Training.LearningRate)
	}
	if settings.DataPath != "/srv/data" || settings.LogLevel != "debug" {
		t.Errorf("unexpected system settings %s %s", settings.DataPath, settings.LogLevel)
	}
}

func TestLoadFromYAML_EnvOverride(t *testing.T) {
	clearTestEnv(t)
	t.Setenv(common.EnvListenPort, "8181")
	t.Setenv(common.EnvModelPath, "/override/model.gob")

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 7001\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := loadFromYAML(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.ListenPort != 8181 {
		t.Errorf("expected env port override 8181, got %d", settings.ListenPort)
	}
	if settings.ModelPath != "/override/model.gob" {
		t.Errorf("expected model path override, got %s", settings.ModelPath)
	}
}

func TestLoadFromYAML_Errors(t *testing.T) {
	clearTestEnv(t)

	if _, err := loadFromYAML(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("server: [unterminated"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	if _, err := loadFromYAML(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoad_UsesConfigFile(t *testing.T) {
	clearTestEnv(t)

	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("server:\n  port: 6001\n"), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv(common.EnvConfigFile, path)

	settings, err := Load()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.ListenPort != 6001 {
		t.Errorf("expected port 6001, got %d", settings.ListenPort)
	}
}

func TestLoadFromYAML_ExplicitZeros(t *testing.T) {
	clearTestEnv(t)

	content := `
training:
  seed: 0
  lambda: 0
  minChildWeight: 0
`
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	settings, err := loadFromYAML(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if settings.Training.Seed != 0 {
		t.Errorf("expected seed 0, got %d", settings.Training.Seed)
	}
	if settings.Training.Lambda != 0 {
		t.Errorf("expected lambda 0, got %f", settings.Training.Lambda)
	}
	if settings.Training.MinChildWeight != 0 {
		t.Errorf("expected min child weight 0, got %f", settings.Training.MinChildWeight)
	}
	// keys left out still take defaults
	if settings.Training.NEstimators != common.DefaultNEstimators {
		t.Errorf("expected default estimators, got %d", settings.Training.NEstimators)
	}
}

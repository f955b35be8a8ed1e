package cfg

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"loan-risk/internal/common"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Settings struct {
	ArtifactDir   string
	ModelPath     string
	ExplainerPath string
	SchemaPath    string
	ReportPath    string
	DataPath      string
	ListenPort    int
	ReadTimeout   time.Duration
	LogLevel      string
	MetricsOn     bool
	EagerLoad     bool
	Training      TrainingSettings
}

// TrainingSettings holds the knobs of one offline training run.
type TrainingSettings struct {
	ChunkSize        int
	SampleFraction   float64
	Seed             int64
	TestFraction     float64
	MissingThreshold float64
	SMOTENeighbors   int
	NEstimators      int
	MaxDepth         int
	LearningRate     float64
	Lambda           float64
	MinChildWeight   float64
}

type ConfigFile struct {
	Artifacts struct {
		Dir           string `yaml:"dir"`
		ModelPath     string `yaml:"modelPath"`
		ExplainerPath string `yaml:"explainerPath"`
		SchemaPath    string `yaml:"schemaPath"`
	} `yaml:"artifacts"`

	Server struct {
		Port        int    `yaml:"port"`
		ReadTimeout string `yaml:"readTimeout"`
		EagerLoad   *bool  `yaml:"eagerLoad"`
		Metrics     *bool  `yaml:"metrics"`
	} `yaml:"server"`

	Training struct {
		// pointers so an explicit zero is not mistaken for an unset key
		ChunkSize        *int     `yaml:"chunkSize"`
		SampleFraction   *float64 `yaml:"sampleFraction"`
		Seed             *int64   `yaml:"seed"`
		TestFraction     *float64 `yaml:"testFraction"`
		MissingThreshold *float64 `yaml:"missingThreshold"`
		SMOTENeighbors   *int     `yaml:"smoteNeighbors"`
		NEstimators      *int     `yaml:"nEstimators"`
		MaxDepth         *int     `yaml:"maxDepth"`
		LearningRate     *float64 `yaml:"learningRate"`
		Lambda           *float64 `yaml:"lambda"`
		MinChildWeight   *float64 `yaml:"minChildWeight"`
	} `yaml:"training"`

	System struct {
		DataPath string `yaml:"dataPath"`
		LogLevel string `yaml:"logLevel"`
	} `yaml:"system"`
}

// Load reads an optional .env file, then the YAML file named by CONFIG_FILE,
// falling back to plain environment variables.
func Load() (Settings, error) {
	// a missing .env is fine
	_ = godotenv.Load()

	if configPath := os.Getenv(common.EnvConfigFile); configPath != "" {
		return loadFromYAML(configPath)
	}

	return loadFromEnv()
}

func loadFromYAML(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config ConfigFile
	if err := yaml.Unmarshal(data, &config); err != nil {
		return Settings{}, fmt.Errorf("failed to parse config file: %w", err)
	}

	readTimeout, err := time.ParseDuration(config.Server.ReadTimeout)
	if err != nil {
		readTimeout = 30 * time.Second
	}

	metricsOn := true
	if config.Server.Metrics != nil {
		metricsOn = *config.Server.Metrics
	}
	eager := true
	if config.Server.EagerLoad != nil {
		eager = *config.Server.EagerLoad
	}

	dir := getEnvOrDefault(common.EnvArtifactDir, config.Artifacts.Dir)
	if dir == "" {
		dir = common.DefaultArtifactDir
	}
	tc := config.Training

	settings := Settings{
		ArtifactDir:   dir,
		ModelPath:     getEnvOrDefault(common.EnvModelPath, orDefault(config.Artifacts.ModelPath, filepath.Join(dir, common.ModelFileName))),
		ExplainerPath: getEnvOrDefault(common.EnvExplainerPath, orDefault(config.Artifacts.ExplainerPath, filepath.Join(dir, common.ExplainerFileName))),
		SchemaPath:    getEnvOrDefault(common.EnvSchemaPath, orDefault(config.Artifacts.SchemaPath, filepath.Join(dir, common.SchemaFileName))),
		ReportPath:    filepath.Join(dir, common.ReportFileName),
		DataPath:      getEnvOrDefault(common.EnvDataPath, config.System.DataPath),
		ListenPort:    getIntFromEnvOrConfig(common.EnvListenPort, portOrNil(config.Server.Port), common.DefaultListenPort),
		ReadTimeout:   readTimeout,
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, orDefault(config.System.LogLevel, common.DefaultLogLevel)),
		MetricsOn:     getBoolOrDefault(common.EnvMetricsEnabled, metricsOn),
		EagerLoad:     getBoolOrDefault(common.EnvEagerLoad, eager),
		Training: TrainingSettings{
			ChunkSize:        getIntFromEnvOrConfig(common.EnvChunkSize, tc.ChunkSize, common.DefaultChunkSize),
			SampleFraction:   getFloatFromEnvOrConfig(common.EnvSampleFraction, tc.SampleFraction, common.DefaultSampleFraction),
			Seed:             getInt64FromEnvOrConfig(common.EnvSeed, tc.Seed, common.DefaultSeed),
			TestFraction:     getFloatFromEnvOrConfig(common.EnvTestFraction, tc.TestFraction, common.DefaultTestFraction),
			MissingThreshold: getFloatFromEnvOrConfig(common.EnvMissingThreshold, tc.MissingThreshold, common.DefaultMissingThreshold),
			SMOTENeighbors:   getIntFromEnvOrConfig(common.EnvSMOTENeighbors, tc.SMOTENeighbors, common.DefaultSMOTENeighbors),
			NEstimators:      getIntFromEnvOrConfig(common.EnvNEstimators, tc.NEstimators, common.DefaultNEstimators),
			MaxDepth:         getIntFromEnvOrConfig(common.EnvMaxDepth, tc.MaxDepth, common.DefaultMaxDepth),
			LearningRate:     getFloatFromEnvOrConfig(common.EnvLearningRate, tc.LearningRate, common.DefaultLearningRate),
			Lambda:           getFloatFromEnvOrConfig(common.EnvLambda, tc.Lambda, common.DefaultLambda),
			MinChildWeight:   getFloatFromEnvOrConfig(common.EnvMinChildWeight, tc.MinChildWeight, common.DefaultMinChildWeight),
		},
	}

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

func loadFromEnv() (Settings, error) {
	dir := getEnvOrDefault(common.EnvArtifactDir, common.DefaultArtifactDir)

	settings := Settings{
		ArtifactDir:   dir,
		ModelPath:     getEnvOrDefault(common.EnvModelPath, filepath.Join(dir, common.ModelFileName)),
		ExplainerPath: getEnvOrDefault(common.EnvExplainerPath, filepath.Join(dir, common.ExplainerFileName)),
		SchemaPath:    getEnvOrDefault(common.EnvSchemaPath, filepath.Join(dir, common.SchemaFileName)),
		ReportPath:    filepath.Join(dir, common.ReportFileName),
		DataPath:      os.Getenv(common.EnvDataPath), // optional
		ListenPort:    getIntOrDefault(common.EnvListenPort, common.DefaultListenPort),
		ReadTimeout:   30 * time.Second,
		LogLevel:      getEnvOrDefault(common.EnvLogLevel, common.DefaultLogLevel),
		MetricsOn:     getBoolOrDefault(common.EnvMetricsEnabled, true),
		EagerLoad:     getBoolOrDefault(common.EnvEagerLoad, true),
		Training:      DefaultTraining(),
	}

	t := &settings.Training
	t.ChunkSize = getIntOrDefault(common.EnvChunkSize, t.ChunkSize)
	t.SampleFraction = getFloatOrDefault(common.EnvSampleFraction, t.SampleFraction)
	t.Seed = int64(getIntOrDefault(common.EnvSeed, int(t.Seed)))
	t.TestFraction = getFloatOrDefault(common.EnvTestFraction, t.TestFraction)
	t.MissingThreshold = getFloatOrDefault(common.EnvMissingThreshold, t.MissingThreshold)
	t.SMOTENeighbors = getIntOrDefault(common.EnvSMOTENeighbors, t.SMOTENeighbors)
	t.NEstimators = getIntOrDefault(common.EnvNEstimators, t.NEstimators)
	t.MaxDepth = getIntOrDefault(common.EnvMaxDepth, t.MaxDepth)
	t.LearningRate = getFloatOrDefault(common.EnvLearningRate, t.LearningRate)
	t.Lambda = getFloatOrDefault(common.EnvLambda, t.Lambda)
	t.MinChildWeight = getFloatOrDefault(common.EnvMinChildWeight, t.MinChildWeight)

	if err := validateSettings(&settings); err != nil {
		return Settings{}, fmt.Errorf("configuration validation failed: %w", err)
	}

	return settings, nil
}

// DefaultTraining returns the training settings used when nothing is configured.
func DefaultTraining() TrainingSettings {
	return TrainingSettings{
		ChunkSize:        common.DefaultChunkSize,
		SampleFraction:   common.DefaultSampleFraction,
		Seed:             common.DefaultSeed,
		TestFraction:     common.DefaultTestFraction,
		MissingThreshold: common.DefaultMissingThreshold,
		SMOTENeighbors:   common.DefaultSMOTENeighbors,
		NEstimators:      common.DefaultNEstimators,
		MaxDepth:         common.DefaultMaxDepth,
		LearningRate:     common.DefaultLearningRate,
		Lambda:           common.DefaultLambda,
		MinChildWeight:   common.DefaultMinChildWeight,
	}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func getEnvOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatOrDefault(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntFromEnvOrConfig(key string, configValue *int, defaultValue int) int {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.Atoi(env); err == nil {
			return val
		}
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

func getInt64FromEnvOrConfig(key string, configValue *int64, defaultValue int64) int64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseInt(env, 10, 64); err == nil {
			return val
		}
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

func getFloatFromEnvOrConfig(key string, configValue *float64, defaultValue float64) float64 {
	if env := os.Getenv(key); env != "" {
		if val, err := strconv.ParseFloat(env, 64); err == nil {
			return val
		}
	}
	if configValue != nil {
		return *configValue
	}
	return defaultValue
}

// portOrNil treats port 0 as unset; it is never a valid listen port.
func portOrNil(port int) *int {
	if port == 0 {
		return nil
	}
	return &port
}

// validateSettings performs range validation of configuration values
func validateSettings(settings *Settings) error {
	if settings.ModelPath == "" || settings.ExplainerPath == "" || settings.SchemaPath == "" {
		return fmt.Errorf("model, explainer and schema paths are required")
	}

	if settings.ListenPort < common.MinListenPort || settings.ListenPort > common.MaxListenPort {
		return fmt.Errorf("listen port must be between %d and %d, got %d",
			common.MinListenPort, common.MaxListenPort, settings.ListenPort)
	}
	if settings.ReadTimeout < time.Second || settings.ReadTimeout > 5*time.Minute {
		return fmt.Errorf("read timeout must be between 1s and 5m, got %v", settings.ReadTimeout)
	}

	return ValidateTraining(settings.Training)
}

// ValidateTraining checks the training knobs independently of the server settings.
func ValidateTraining(t TrainingSettings) error {
	if t.ChunkSize < common.MinChunkSize || t.ChunkSize > common.MaxChunkSize {
		return fmt.Errorf("chunk size must be between %d and %d, got %d",
			common.MinChunkSize, common.MaxChunkSize, t.ChunkSize)
	}
	if t.SampleFraction <= 0 || t.SampleFraction > 1 {
		return fmt.Errorf("sample fraction must be in (0, 1], got %f", t.SampleFraction)
	}
	if t.TestFraction <= 0 || t.TestFraction >= 1 {
		return fmt.Errorf("test fraction must be in (0, 1), got %f", t.TestFraction)
	}
	if t.MissingThreshold < 0 || t.MissingThreshold > common.MaxMissingFraction {
		return fmt.Errorf("missing threshold must be in [0, 1], got %f", t.MissingThreshold)
	}
	if t.SMOTENeighbors < 1 || t.SMOTENeighbors > common.MaxSMOTENeighbors {
		return fmt.Errorf("SMOTE neighbors must be between 1 and %d, got %d", common.MaxSMOTENeighbors, t.SMOTENeighbors)
	}
	if t.NEstimators < 1 || t.NEstimators > common.MaxNEstimators {
		return fmt.Errorf("estimator count must be between 1 and %d, got %d", common.MaxNEstimators, t.NEstimators)
	}
	if t.MaxDepth < 1 || t.MaxDepth > common.MaxTreeDepth {
		return fmt.Errorf("max depth must be between 1 and %d, got %d", common.MaxTreeDepth, t.MaxDepth)
	}
	if t.LearningRate <= 0 || t.LearningRate > common.MaxLearningRate {
		return fmt.Errorf("learning rate must be in (0, 1], got %f", t.LearningRate)
	}
	if t.Lambda < 0 {
		return fmt.Errorf("lambda must be non-negative, got %f", t.Lambda)
	}
	if t.MinChildWeight < 0 {
		return fmt.Errorf("min child weight must be non-negative, got %f", t.MinChildWeight)
	}
	return nil
}

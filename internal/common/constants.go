package common

// Environment variable keys
const (
	EnvConfigFile       = "CONFIG_FILE"
	EnvArtifactDir      = "ARTIFACT_DIR"
	EnvModelPath        = "MODEL_PATH"
	EnvExplainerPath    = "EXPLAINER_PATH"
	EnvSchemaPath       = "SCHEMA_PATH"
	EnvDataPath         = "DATA_PATH"
	EnvListenPort       = "LISTEN_PORT"
	EnvMetricsEnabled   = "METRICS_ENABLED"
	EnvLogLevel         = "LOG_LEVEL"
	EnvEagerLoad        = "EAGER_LOAD"
	EnvChunkSize        = "CHUNK_SIZE"
	EnvSampleFraction   = "SAMPLE_FRACTION"
	EnvSeed             = "SEED"
	EnvTestFraction     = "TEST_FRACTION"
	EnvMissingThreshold = "MISSING_THRESHOLD"
	EnvSMOTENeighbors   = "SMOTE_NEIGHBORS"
	EnvNEstimators      = "N_ESTIMATORS"
	EnvMaxDepth         = "MAX_DEPTH"
	EnvLearningRate     = "LEARNING_RATE"
	EnvLambda           = "LAMBDA"
	EnvMinChildWeight   = "MIN_CHILD_WEIGHT"
	EnvScoreURL         = "RISK_SERVER_URL"
)

// Artifact file names inside the artifact directory
const (
	ModelFileName     = "model.gob"
	ExplainerFileName = "explainer.gob"
	SchemaFileName    = "schema.json"
	ReportFileName    = "report.json"
	DBFileName        = "loan-risk.db"
)

// Configuration defaults
const (
	DefaultArtifactDir      = "artifacts"
	DefaultListenPort       = 5001
	DefaultLogLevel         = "info"
	DefaultChunkSize        = 100000
	DefaultSampleFraction   = 0.1
	DefaultSeed             = 42
	DefaultTestFraction     = 0.2
	DefaultMissingThreshold = 0.4
	DefaultSMOTENeighbors   = 5
	DefaultNEstimators      = 100
	DefaultMaxDepth         = 6
	DefaultLearningRate     = 0.3
	DefaultLambda           = 1.0
	DefaultMinChildWeight   = 1.0
	DefaultScoreURL         = "http://127.0.0.1:5001"
)

// Validation constants
const (
	MinListenPort      = 1024
	MaxListenPort      = 65535
	MinChunkSize       = 1
	MaxChunkSize       = 10000000
	MaxNEstimators     = 5000
	MaxTreeDepth       = 16
	MaxSMOTENeighbors  = 50
	MaxLearningRate    = 1.0
	MaxMissingFraction = 1.0
)

// Class names used in evaluation output
const (
	ClassGoodLoan = "Good Loan"
	ClassDefault  = "Default"
)

package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"loan-risk/internal/artifact"
	"loan-risk/internal/cfg"
	"loan-risk/internal/metrics"
	"loan-risk/internal/storage"
	"loan-risk/internal/train"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	var (
		dataPath    = flag.String("data", "", "Path to the historical loans file (.csv, .json, .jsonl, optionally .gz)")
		outDir      = flag.String("out", "", "Artifact output directory (overrides config)")
		logLevel    = flag.String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
		sample      = flag.Float64("sample", 0, "Fraction of each chunk to keep (overrides config)")
		seed        = flag.Int64("seed", 0, "Random seed (overrides config)")
		metricsFile = flag.String("metrics-file", "", "Write training metrics in Prometheus text format to this file")
		quiet       = flag.Bool("quiet", false, "Do not print the classification report")
	)
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	config, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	level := config.LogLevel
	if *logLevel != "" {
		level = *logLevel
	}
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if *dataPath == "" {
		log.Fatal().Msg("-data is required")
	}

	paths := artifact.Paths{
		Model:     config.ModelPath,
		Explainer: config.ExplainerPath,
		Schema:    config.SchemaPath,
		Report:    config.ReportPath,
	}
	if *outDir != "" {
		paths = artifact.PathsIn(*outDir)
	}

	training := applyFlagOverrides(flag.CommandLine, config.Training, *sample, *seed)

	registry := prometheus.NewRegistry()
	opts := []train.Option{train.WithMetrics(metrics.NewWrapper(metrics.NewWithRegistry(registry)))}
	if !*quiet {
		opts = append(opts, train.WithSummary(os.Stdout))
	}
	if config.DataPath != "" {
		store, err := storage.New(config.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage initialization failed, run will not be recorded")
		} else {
			defer store.Close()
			opts = append(opts, train.WithStore(store))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("data", *dataPath).
		Str("out", filepath.Dir(paths.Model)).
		Float64("sample_fraction", training.SampleFraction).
		Int64("seed", training.Seed).
		Msg("Starting training run")

	res, err := train.New(training, paths, opts...).Run(ctx, *dataPath)

	if *metricsFile != "" {
		if werr := prometheus.WriteToTextfile(*metricsFile, registry); werr != nil {
			log.Warn().Err(werr).Str("path", *metricsFile).Msg("Failed to write metrics file")
		}
	}
	if err != nil {
		stop()
		log.Fatal().Err(err).Msg("Training failed")
	}

	log.Info().
		Str("schema_version", res.Report.SchemaVersion).
		Float64("roc_auc", res.Report.Evaluation.ROCAUC).
		Msg("Training complete")
}

// applyFlagOverrides copies -sample and -seed into t only when they were given
// on the command line, so an explicit -seed 0 is honoured.
func applyFlagOverrides(fs *flag.FlagSet, t cfg.TrainingSettings, sample float64, seed int64) cfg.TrainingSettings {
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "sample":
			t.SampleFraction = sample
		case "seed":
			t.Seed = seed
		}
	})
	return t
}

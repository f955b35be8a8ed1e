package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"loan-risk/internal/artifact"
	"loan-risk/internal/cfg"
	"loan-risk/internal/metrics"
	"loan-risk/internal/ml"
	"loan-risk/internal/storage"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const attributionFile = "served_attribution.json"

func main() {
	c, err := cfg.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("config load failed")
	}

	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	if fi, err := os.Stderr.Stat(); err == nil && fi.Mode()&os.ModeCharDevice != 0 {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	paths := artifact.Paths{
		Model:     c.ModelPath,
		Explainer: c.ExplainerPath,
		Schema:    c.SchemaPath,
		Report:    c.ReportPath,
	}

	tracker := ml.NewAttributionTracker(filepath.Join(filepath.Dir(c.ModelPath), attributionFile))
	if err := tracker.Load(); err != nil {
		log.Warn().Err(err).Msg("Failed to restore served attributions")
	}

	engineOpts := []ml.EngineOption{ml.WithTracker(tracker)}
	serverOpts := []ml.ServerOption{ml.WithReadTimeout(c.ReadTimeout)}
	var m *metrics.Metrics
	if c.MetricsOn {
		m = metrics.New()
		engineOpts = append(engineOpts, ml.WithMetrics(metrics.NewWrapper(m)))
		serverOpts = append(serverOpts, ml.WithMetricsHandler(promhttp.Handler()))
	}

	store := initializeStorage(c)
	if store != nil {
		defer store.Close()
		serverOpts = append(serverOpts, ml.WithHistory(store))
	}

	engine := ml.NewEngine(paths, engineOpts...)
	if c.EagerLoad {
		if err := engine.Load(); err != nil {
			log.Fatal().Err(err).Msg("model bundle load failed")
		}
	}

	server := ml.NewModelServer(engine, c.ListenPort, serverOpts...)

	errCh := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case <-sigChan:
		log.Info().Msg("shutdown signal received")
	case err := <-errCh:
		log.Error().Err(err).Msg("model server failed")
	}

	log.Info().Msg("shutting down gracefully...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Warn().Err(err).Msg("shutdown timeout, forcing exit")
	}
	if err := tracker.Save(); err != nil {
		log.Warn().Err(err).Msg("Failed to save served attributions")
	}
	if m != nil {
		log.Info().Float64("error_rate", m.GetErrorRate(prometheus.DefaultGatherer)).Msg("Prediction error rate since start")
	}
}

// initializeStorage initializes storage if DATA_PATH is configured
func initializeStorage(c cfg.Settings) *storage.Store {
	if c.DataPath != "" {
		store, err := storage.New(c.DataPath)
		if err != nil {
			log.Warn().Err(err).Msg("storage initialization failed, continuing without prediction history")
			return nil
		}
		return store
	}
	return nil
}

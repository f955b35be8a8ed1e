package ml

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"runtime/debug"
	"sort"
	"strconv"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"loan-risk/internal/features"
	"loan-risk/internal/storage"
)

const (
	defaultHistoryLimit = 20
	maxHistoryLimit     = 1000
	storedAttributions  = 5
	maxBodyBytes        = 1 << 20
)

// ModelServer provides HTTP API for model predictions
type ModelServer struct {
	engine   *Engine
	store    *storage.Store
	metrics  http.Handler
	upgrader websocket.Upgrader
	timeout  time.Duration
	server   *http.Server
}

// ErrorResponse is the body of every non-2xx reply.
type ErrorResponse struct {
	Error string `json:"error"`
	Trace string `json:"trace,omitempty"`
}

// HealthResponse is the body of GET /health.
type HealthResponse struct {
	Healthy       bool   `json:"healthy"`
	SchemaVersion string `json:"schema_version,omitempty"`
	Error         string `json:"error,omitempty"`
}

// ServerOption configures a ModelServer.
type ServerOption func(*ModelServer)

// WithHistory stores every served prediction and enables GET /predictions.
func WithHistory(s *storage.Store) ServerOption { return func(ms *ModelServer) { ms.store = s } }

// WithMetricsHandler mounts h at /metrics.
func WithMetricsHandler(h http.Handler) ServerOption {
	return func(ms *ModelServer) { ms.metrics = h }
}

// WithReadTimeout bounds how long reading a request may take.
func WithReadTimeout(d time.Duration) ServerOption {
	return func(ms *ModelServer) { ms.timeout = d }
}

// NewModelServer creates a new HTTP server for model serving
func NewModelServer(engine *Engine, port int, opts ...ServerOption) *ModelServer {
	ms := &ModelServer{
		engine:   engine,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
		timeout:  10 * time.Second,
	}
	for _, o := range opts {
		o(ms)
	}

	ms.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", port),
		Handler:      ms.Handler(),
		ReadTimeout: ms.timeout,
		// no write timeout: attribution time is unbounded
		IdleTimeout: 120 * time.Second,
	}

	return ms
}

// Handler returns the routed handler wrapped in panic recovery.
func (ms *ModelServer) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/predict", ms.handlePredict)
	mux.HandleFunc("/predict/stream", ms.handleStream)
	mux.HandleFunc("/health", ms.handleHealth)
	mux.HandleFunc("/model/info", ms.handleModelInfo)
	mux.HandleFunc("/predictions", ms.handlePredictions)
	if ms.metrics != nil {
		mux.Handle("/metrics", ms.metrics)
	}
	return ms.recovery(mux)
}

// Start begins serving HTTP requests
func (ms *ModelServer) Start() error {
	log.Info().Str("addr", ms.server.Addr).Msg("starting model server")
	return ms.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (ms *ModelServer) Shutdown(ctx context.Context) error {
	return ms.server.Shutdown(ctx)
}

func (ms *ModelServer) recovery(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				stack := string(debug.Stack())
				log.Error().
					Str("method", r.Method).
					Str("path", r.URL.Path).
					Interface("panic", rec).
					Str("stack", stack).
					Msg("panic recovered")
				if ms.engine.metrics != nil {
					ms.engine.metrics.MLFailuresInc()
				}
				writeJSON(w, http.StatusInternalServerError, ErrorResponse{
					Error: fmt.Sprintf("internal error: %v", rec),
					Trace: stack,
				})
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func (ms *ModelServer) handlePredict(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
		return
	}

	record, err := decodeRecord(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	pred, err := ms.score(r.Context(), record)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ErrInvalidInput) {
			status = http.StatusBadRequest
		}
		log.Error().Err(err).Msg("prediction failed")
		writeError(w, status, err)
		return
	}

	writeJSON(w, http.StatusOK, pred)
}

// score predicts one record and records it in history.
func (ms *ModelServer) score(ctx context.Context, record features.Record) (Prediction, error) {
	preds, err := ms.engine.Predict(ctx, []features.Record{record})
	if err != nil {
		return Prediction{}, errors.WithStack(err)
	}
	pred := preds[0]

	if ms.store != nil {
		rec := storage.PredictionRecord{
			Timestamp:          time.Now(),
			SchemaVersion:      ms.engine.SchemaVersion(),
			DefaultProbability: pred.DefaultProbability,
			TopAttributions:    topAttributions(pred.Explanation, storedAttributions),
			Request:            record,
		}
		if err := ms.store.StorePrediction(rec); err != nil {
			log.Warn().Err(err).Msg("Failed to store prediction")
		}
	}
	return pred, nil
}

func (ms *ModelServer) handleStream(w http.ResponseWriter, r *http.Request) {
	conn, err := ms.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Error().Err(err).Msg("Failed to upgrade WebSocket connection")
		return
	}
	defer conn.Close()

	if m := ms.engine.metrics; m != nil {
		m.MLStreamConnectionsAdd(1)
		defer m.MLStreamConnectionsAdd(-1)
	}

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Warn().Err(err).Msg("Prediction stream closed unexpectedly")
			}
			return
		}

		var reply any
		record, err := decodeRecord(bytes.NewReader(data))
		if err == nil {
			reply, err = ms.score(r.Context(), record)
		}
		if err != nil {
			reply = errorBody(err)
		}

		if err := conn.WriteJSON(reply); err != nil {
			log.Error().Err(err).Msg("Failed to send prediction on stream")
			return
		}
	}
}

func (ms *ModelServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{Healthy: true}
	status := http.StatusOK
	if err := ms.engine.Load(); err != nil {
		health = HealthResponse{Error: err.Error()}
		status = http.StatusServiceUnavailable
	} else {
		health.SchemaVersion = ms.engine.SchemaVersion()
	}
	writeJSON(w, status, health)
}

func (ms *ModelServer) handleModelInfo(w http.ResponseWriter, r *http.Request) {
	info, err := ms.engine.Info()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, errors.WithStack(err))
		return
	}
	writeJSON(w, http.StatusOK, info)
}

func (ms *ModelServer) handlePredictions(w http.ResponseWriter, r *http.Request) {
	if ms.store == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "prediction history is not configured"})
		return
	}

	q := r.URL.Query()
	limit := defaultHistoryLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		recs []storage.PredictionRecord
		err  error
	)
	if q.Has("from") || q.Has("to") {
		from, to, perr := timeRange(q.Get("from"), q.Get("to"))
		if perr != nil {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: perr.Error()})
			return
		}
		recs, err = ms.store.PredictionsInRange(from, to)
		if len(recs) > limit {
			recs = recs[:limit]
		}
	} else {
		recs, err = ms.store.RecentPredictions(limit)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, errors.WithStack(err))
		return
	}
	if recs == nil {
		recs = []storage.PredictionRecord{}
	}
	writeJSON(w, http.StatusOK, recs)
}

// timeRange parses RFC 3339 bounds. A missing from means the epoch and a
// missing to means now.
func timeRange(rawFrom, rawTo string) (from, to time.Time, err error) {
	from, to = time.Unix(0, 0), time.Now()
	if rawFrom != "" {
		if from, err = time.Parse(time.RFC3339, rawFrom); err != nil {
			return from, to, fmt.Errorf("from must be an RFC 3339 time: %w", err)
		}
	}
	if rawTo != "" {
		if to, err = time.Parse(time.RFC3339, rawTo); err != nil {
			return from, to, fmt.Errorf("to must be an RFC 3339 time: %w", err)
		}
	}
	if to.Before(from) {
		return from, to, fmt.Errorf("to %s is before from %s", rawTo, rawFrom)
	}
	return from, to, nil
}

// decodeRecord reads a single JSON object. Numbers stay json.Number so
// large integers survive until feature conversion.
func decodeRecord(r io.Reader) (features.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var record map[string]any
	if err := dec.Decode(&record); err != nil {
		return nil, errors.Wrap(err, "request body must be a JSON object")
	}
	if record == nil {
		return nil, errors.New("request body must be a JSON object")
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("request body must hold a single JSON object")
	}
	return features.Record(record), nil
}

func topAttributions(explanation map[string]float64, n int) []storage.Attribution {
	out := make([]storage.Attribution, 0, len(explanation))
	for name, v := range explanation {
		out = append(out, storage.Attribution{Feature: name, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		ai, aj := math.Abs(out[i].Value), math.Abs(out[j].Value)
		if ai != aj {
			return ai > aj
		}
		return out[i].Feature < out[j].Feature
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

func errorBody(err error) ErrorResponse {
	return ErrorResponse{Error: err.Error(), Trace: fmt.Sprintf("%+v", err)}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn().Err(err).Msg("Failed to write response")
	}
}

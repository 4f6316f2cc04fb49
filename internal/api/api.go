// Package api serves the heatwatchd status and read API.
//
// Routes:
//
//	GET /healthz                         liveness, plus a store ping when the store has one
//	GET /metrics                         Prometheus exposition
//	GET /api/readings?limit=N            latest records, newest first
//	GET /api/status                      sample loop statistics
//	GET /api/export?from=MS&to=MS        records in [from, to) as a parquet file
//
// The API never touches the sensor and never writes to the store. Reading
// through the daemon is the only way to reach a DuckDB store while
// heatwatchd holds its file lock.
package api

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/xtxerr/heatwatch/config"
	"github.com/xtxerr/heatwatch/internal/errors"
	"github.com/xtxerr/heatwatch/internal/logging"
	"github.com/xtxerr/heatwatch/internal/loop"
	"github.com/xtxerr/heatwatch/internal/metrics"
	"github.com/xtxerr/heatwatch/internal/reading"
	"github.com/xtxerr/heatwatch/internal/store"
)

var log = logging.Component("api")

// StatusSource provides the loop statistics.
type StatusSource interface {
	Stats() loop.Snapshot
}

// RecordCountHeader carries the row count of an export response.
const RecordCountHeader = "X-Heatwatch-Records"

// HealthResponse is the body of GET /healthz. Records is set when the store
// can count its records.
type HealthResponse struct {
	Status  string `json:"status"`
	Records *int64 `json:"records,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ReadingsResponse is the body of GET /api/readings.
type ReadingsResponse struct {
	Count    int              `json:"count"`
	Readings []reading.Record `json:"readings"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// =============================================================================
// Server
// =============================================================================

// Server is the HTTP status/read server.
type Server struct {
	listen  string
	status  StatusSource
	reader  store.Reader
	metrics *metrics.Metrics
	srv     *http.Server
}

// New creates a Server. reader may be nil when the store has no read path;
// m may be nil.
func New(listen string, status StatusSource, reader store.Reader, m *metrics.Metrics) *Server {
	s := &Server{
		listen:  listen,
		status:  status,
		reader:  reader,
		metrics: m,
	}
	s.srv = &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

// Handler returns the routed handler with access logging and CORS.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.Handle("/healthz", s.metrics.WrapHandler("healthz", http.HandlerFunc(s.handleHealth))).Methods(http.MethodGet)
	r.Handle("/metrics", s.metrics.WrapHandler("metrics", s.metrics.Handler())).Methods(http.MethodGet)
	r.Handle("/api/readings", s.metrics.WrapHandler("readings", http.HandlerFunc(s.handleReadings))).Methods(http.MethodGet)
	r.Handle("/api/status", s.metrics.WrapHandler("status", http.HandlerFunc(s.handleStatus))).Methods(http.MethodGet)
	r.Handle("/api/export", s.metrics.WrapHandler("export", http.HandlerFunc(s.handleExport))).Methods(http.MethodGet)

	cors := handlers.CORS(
		handlers.AllowedOrigins([]string{"*"}),
		handlers.AllowedMethods([]string{http.MethodGet, http.MethodOptions}),
	)
	return handlers.LoggingHandler(accessLog{}, cors(r))
}

// Start serves until Shutdown is called. It returns nil after a clean
// shutdown.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return errors.Wrapf(err, "listen %s", s.listen)
	}
	return s.Serve(ln)
}

// Serve serves on ln until Shutdown is called.
func (s *Server) Serve(ln net.Listener) error {
	log.Info("http server listening", "addr", ln.Addr().String())

	if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "http server")
	}
	return nil
}

// Shutdown drains in-flight requests for at most DefaultShutdownTimeout.
func (s *Server) Shutdown(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, config.DefaultShutdownTimeout)
	defer cancel()
	return s.srv.Shutdown(ctx)
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	checker, ok := s.reader.(store.Checker)
	if !ok {
		writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), config.DefaultHealthTimeout)
	defer cancel()

	if err := checker.Health(ctx); err != nil {
		log.Warn("store health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}

	resp := HealthResponse{Status: "ok"}
	if n, err := checker.Count(ctx); err == nil {
		resp.Records = &n
	} else {
		log.Debug("store count failed", "error", err)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status.Stats())
}

func (s *Server) handleReadings(w http.ResponseWriter, r *http.Request) {
	if s.reader == nil {
		writeError(w, http.StatusNotImplemented, "store has no read path")
		return
	}

	limit, err := parseLimit(r.URL.Query().Get("limit"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := s.reader.Recent(r.Context(), limit)
	if err != nil {
		log.Warn("recent readings query failed", "limit", limit, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}
	if records == nil {
		records = []reading.Record{}
	}

	writeJSON(w, http.StatusOK, ReadingsResponse{Count: len(records), Readings: records})
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	ranger, ok := s.reader.(store.Ranger)
	if !ok {
		writeError(w, http.StatusNotImplemented, "store has no range read path")
		return
	}

	q := r.URL.Query()
	from, err := parseMillis("from", q.Get("from"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := parseMillis("to", q.Get("to"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if to < from {
		writeError(w, http.StatusBadRequest, "to is before from")
		return
	}

	records, err := ranger.Between(r.Context(), from, to)
	if err != nil {
		log.Warn("export query failed", "from", from, "to", to, "error", err)
		writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	var buf bytes.Buffer
	n, err := store.WriteParquet(&buf, records, q.Get("compression"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/vnd.apache.parquet")
	w.Header().Set(RecordCountHeader, strconv.Itoa(n))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(buf.Bytes()); err != nil {
		log.Debug("write export failed", "error", err)
	}
}

// parseMillis parses a required Unix millisecond query parameter.
func parseMillis(name, s string) (int64, error) {
	if s == "" {
		return 0, errors.NewMissingField(name)
	}
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errors.NewValidation(name, "must be Unix milliseconds")
	}
	return ms, nil
}

// parseLimit parses the limit query parameter. Empty means the default.
func parseLimit(s string) (int, error) {
	if s == "" {
		return config.DefaultRecentLimit, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return 0, errors.NewValidation("limit", "must be a positive integer")
	}
	if n > config.MaxRecentLimit {
		n = config.MaxRecentLimit
	}
	return n, nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Debug("write response failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// accessLog forwards Apache-format access lines from handlers.LoggingHandler
// to the component logger.
type accessLog struct{}

func (accessLog) Write(p []byte) (int, error) {
	sc := bufio.NewScanner(bytes.NewReader(p))
	for sc.Scan() {
		log.Debug(sc.Text())
	}
	return len(p), nil
}

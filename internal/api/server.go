package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/josepht96/scout-mcp/internal/runner"
	"github.com/josepht96/scout-mcp/internal/scheduler"
	"github.com/josepht96/scout-mcp/internal/storage"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// CollectionRunner runs one collection and returns its report
type CollectionRunner interface {
	RunCollection(ctx context.Context, params runner.Params) (string, error)
}

// HistoryStore lists persisted runs
type HistoryStore interface {
	ListRuns(ctx context.Context, collectionID string, limit int) ([]storage.RunRecord, error)
}

// StatsProvider reports scheduler activity
type StatsProvider interface {
	Stats() scheduler.Stats
}

// Server handles HTTP requests
type Server struct {
	runner     CollectionRunner
	history    HistoryStore
	scheduler  StatsProvider
	gatherer   prometheus.Gatherer
	mcp        http.Handler
	port       int
	logger     zerolog.Logger
	httpServer *http.Server
}

// Config contains server configuration. History, Scheduler and MCP are optional.
type Config struct {
	Runner    CollectionRunner
	History   HistoryStore
	Scheduler StatsProvider
	Gatherer  prometheus.Gatherer
	MCP       http.Handler
	Port      int
	Logger    zerolog.Logger
}

// NewServer creates a new HTTP server
func NewServer(config Config) *Server {
	gatherer := config.Gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	s := &Server{
		runner:    config.Runner,
		history:   config.History,
		scheduler: config.Scheduler,
		gatherer:  gatherer,
		mcp:       config.MCP,
		port:      config.Port,
		logger:    config.Logger.With().Str("component", "api").Logger(),
	}
	s.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", s.port),
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	// API endpoints
	mux.HandleFunc("/api/runs", s.handleRuns)
	mux.HandleFunc("/api/run", s.handleRun)
	mux.HandleFunc("/api/stats", s.handleStats)

	// MCP over SSE
	if s.mcp != nil {
		mux.Handle("/sse", s.mcp)
		mux.Handle("/message", s.mcp)
	}

	// Health check
	mux.HandleFunc("/health", s.handleHealth)

	// Prometheus metrics
	mux.Handle("/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))

	return s.loggingMiddleware(mux)
}

// Start serves until Shutdown is called
func (s *Server) Start() error {
	s.logger.Info().Str("addr", s.httpServer.Addr).Msg("starting HTTP server")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// loggingMiddleware logs all HTTP requests
func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.logger.Debug().Str("method", r.Method).Str("path", r.URL.Path).Str("remote", r.RemoteAddr).Msg("request")
		next.ServeHTTP(w, r)
	})
}

// handleRuns returns recorded runs for a collection
func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	if s.history == nil {
		http.Error(w, "Run history is not configured", http.StatusNotFound)
		return
	}

	collectionID := r.URL.Query().Get("collection_id")
	if collectionID == "" {
		http.Error(w, "collection_id parameter is required", http.StatusBadRequest)
		return
	}

	limit := 0
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		l, err := strconv.Atoi(limitStr)
		if err != nil {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = l
	}

	runs, err := s.history.ListRuns(r.Context(), collectionID, limit)
	if err != nil {
		http.Error(w, fmt.Sprintf("Error fetching history: %v", err), http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, runs)
}

// handleRun runs a collection synchronously and returns the report
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var params runner.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if params.CollectionID == "" {
		http.Error(w, "collectionId is required", http.StatusBadRequest)
		return
	}

	output, err := s.runner.RunCollection(r.Context(), params)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, runner.ErrFetchCollection) || errors.Is(err, runner.ErrFetchEnvironment) {
			status = http.StatusBadGateway
		}
		writeJSON(w, status, map[string]string{"status": "error", "error": err.Error()})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "output": output})
}

// handleStats returns scheduler statistics
func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var stats scheduler.Stats
	if s.scheduler != nil {
		stats = s.scheduler.Stats()
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleHealth returns health status
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

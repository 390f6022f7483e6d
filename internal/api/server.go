// Package api is the collector's HTTP surface: report submission, admin
// queries and the live report stream.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/ingest"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	DefaultHistoryLimit = 100
	DefaultReportsLimit = 1000
	MaxLimit            = 10000

	maxReportBytes = 1 << 20
)

type Config struct {
	HistoryLimit int
	ReportsLimit int
}

type Server struct {
	r        *chi.Mux
	ingestor *ingest.Ingestor
	metrics  *metrics.Collector
	health   http.Handler
	logger   *zap.Logger
	config   Config
	upgrader websocket.Upgrader
}

// NewServer wires the routes. health and m may be nil.
func NewServer(ing *ingest.Ingestor, health http.Handler, m *metrics.Collector, cfg Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.ReportsLimit <= 0 {
		cfg.ReportsLimit = DefaultReportsLimit
	}
	cfg.HistoryLimit = min(cfg.HistoryLimit, MaxLimit)
	cfg.ReportsLimit = min(cfg.ReportsLimit, MaxLimit)

	s := &Server{
		r:        chi.NewRouter(),
		ingestor: ing,
		metrics:  m,
		health:   health,
		logger:   logger,
		config:   cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// Dashboards are served from other origins
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	s.r.Use(middleware.RequestID)
	s.r.Use(middleware.RealIP)
	s.r.Use(s.requestLogger)
	s.r.Use(middleware.Recoverer)

	s.routes()
	return s
}

func (s *Server) routes() {
	if s.health != nil {
		s.r.Method(http.MethodGet, "/health", s.health)
	}
	if s.metrics != nil {
		s.r.Method(http.MethodGet, "/metrics", s.metrics.Handler())
	}

	s.r.Post("/api/client/report", s.postReport)

	s.r.Route("/api/admin", func(r chi.Router) {
		r.Get("/clients", s.getClients)
		r.Get("/clients/{id}", s.getClient)
		r.Get("/stats", s.getStats)
		r.Get("/reports", s.getReports)
		r.Get("/latest", s.getLatest)
		r.Get("/events", s.streamEvents)
		r.Get("/ws", s.streamWebSocket)
	})
}

func (s *Server) Handler() http.Handler { return s.r }

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		s.logger.Debug("HTTP request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())))
	})
}

func (s *Server) postReport(w http.ResponseWriter, r *http.Request) {
	var report models.ClientReport

	body := http.MaxBytesReader(w, r.Body, maxReportBytes)
	if err := json.NewDecoder(body).Decode(&report); err != nil {
		s.ingestor.Reject()
		writeJSON(w, http.StatusBadRequest, models.Ack{Success: false, Message: fmt.Sprintf("Invalid report body: %v", err)})
		return
	}

	ack, err := s.ingestor.Ingest(r.Context(), report)
	switch {
	case errors.Is(err, ingest.ErrInvalidReport):
		writeJSON(w, http.StatusBadRequest, ack)
	case err != nil:
		writeJSON(w, http.StatusInternalServerError, ack)
	default:
		writeJSON(w, http.StatusOK, ack)
	}
}

func (s *Server) getClients(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"clients": s.ingestor.Clients()})
}

func (s *Server) getClient(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limitParam(w, r, s.config.HistoryLimit)
	if !ok {
		return
	}

	client, history, err := s.ingestor.Client(r.Context(), chi.URLParam(r, "id"), limit)
	if errors.Is(err, ingest.ErrClientNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Client not found"})
		return
	}
	if err != nil {
		s.serverError(w, "Failed to load client history", err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"client":  client,
		"history": history,
	})
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.ingestor.Stats())
}

func (s *Server) getReports(w http.ResponseWriter, r *http.Request) {
	limit, ok := s.limitParam(w, r, s.config.ReportsLimit)
	if !ok {
		return
	}

	reports, err := s.ingestor.Reports(r.Context(), limit)
	if err != nil {
		s.serverError(w, "Failed to load reports", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

func (s *Server) getLatest(w http.ResponseWriter, r *http.Request) {
	reports, err := s.ingestor.Latest(r.Context())
	if err != nil {
		s.serverError(w, "Failed to load latest reports", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"reports": reports})
}

// limitParam reads ?limit=, writing a 400 and returning false when it is malformed.
// Zero falls back to def and anything above MaxLimit is clamped, so a read is
// always bounded.
func (s *Server) limitParam(w http.ResponseWriter, r *http.Request, def int) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return def, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit < 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "limit must be a non-negative integer"})
		return 0, false
	}
	if limit == 0 {
		return def, true
	}
	return min(limit, MaxLimit), true
}

func (s *Server) serverError(w http.ResponseWriter, msg string, err error) {
	s.logger.Error(msg, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

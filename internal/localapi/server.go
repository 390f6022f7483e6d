// Package localapi is the agent's optional control surface for a local dashboard.
package localapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/broadcast"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/scheduler"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

const keepAliveInterval = 15 * time.Second

// Monitor is the continuous-scan controller the API drives.
type Monitor interface {
	Start() error
	Stop()
	Stats() scheduler.Stats
}

type Server struct {
	router     *mux.Router
	httpServer *http.Server

	monitor  Monitor
	scan     scheduler.ScanFunc
	identity models.EndpointIdentity
	verdicts *broadcast.Broadcaster[models.ScanVerdict]
	metrics  *metrics.Agent
	logger   *zap.Logger
}

type response struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

type statusResponse struct {
	scheduler.Stats
	Identity models.EndpointIdentity `json:"identity"`
}

// NewServer builds the local API. scan owns publishing its verdict to
// verdicts; the scan-once handler only returns it.
func NewServer(monitor Monitor, scan scheduler.ScanFunc, identity models.EndpointIdentity,
	verdicts *broadcast.Broadcaster[models.ScanVerdict], m *metrics.Agent, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}

	s := &Server{
		router:   mux.NewRouter(),
		monitor:  monitor,
		scan:     scan,
		identity: identity,
		verdicts: verdicts,
		metrics:  m,
		logger:   logger,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/start-monitoring", s.handleStart).Methods(http.MethodPost)
	s.router.HandleFunc("/api/stop-monitoring", s.handleStop).Methods(http.MethodPost)
	s.router.HandleFunc("/api/scan-once", s.handleScanOnce).Methods(http.MethodPost)
	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/events", s.handleEvents).Methods(http.MethodGet)

	if s.metrics != nil {
		s.router.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.enableCORS(s.router).ServeHTTP(w, r)
}

// Start blocks serving on addr until Stop.
func (s *Server) Start(addr string) error {
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.logger.Info("Local API listening", zap.String("addr", addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Stop() error {
	if s.httpServer == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return err
	}

	s.logger.Info("Local API stopped")
	return nil
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.Start(); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			writeJSON(w, http.StatusOK, response{Success: false, Message: "Monitoring already active"})
			return
		}
		writeJSON(w, http.StatusInternalServerError, response{Success: false, Message: err.Error()})
		return
	}

	stats := s.monitor.Stats()
	writeJSON(w, http.StatusOK, response{
		Success: true,
		Message: fmt.Sprintf("Monitoring started (interval: %dms)", stats.IntervalMs),
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.monitor.Stop()
	writeJSON(w, http.StatusOK, response{Success: true, Message: "Monitoring stopped"})
}

func (s *Server) handleScanOnce(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.scan(r.Context()))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, statusResponse{
		Stats:    s.monitor.Stats(),
		Identity: s.identity,
	})
}

// handleEvents streams every verdict as an SSE data line.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok || s.verdicts == nil {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.verdicts.Subscribe()
	defer s.verdicts.Unsubscribe(sub)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(keepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case verdict, ok := <-sub.C:
			if !ok {
				return
			}
			data, err := json.Marshal(verdict)
			if err != nil {
				s.logger.Warn("Failed to encode verdict", zap.Error(err))
				continue
			}
			fmt.Fprintf(w, "data: %s\n\n", data)
			flusher.Flush()
		}
	}
}

func (s *Server) enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

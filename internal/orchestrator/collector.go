package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/api"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/broadcast"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/config"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/eventbus"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/health"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/ingest"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/presence"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/store"
	"go.uber.org/zap"
)

const (
	collectorService = "remotewatch.collector"
	connectTimeout   = 10 * time.Second
)

// CollectorOrchestrator manages the collector lifecycle.
//
// Lifecycle:
//  1. Start() - Connects the report store, NATS and binds the HTTP and gRPC listeners
//  2. Run() - Serves until the context is cancelled or a server fails
//  3. Stop() - Marks the service NOT_SERVING and releases every resource
//
// The report store is required. NATS is optional: on failure reports are
// still ingested but not published.
type CollectorOrchestrator struct {
	config *config.CollectorConfig
	logger *zap.Logger

	store       store.ReportStore
	tracker     *presence.Tracker
	broadcaster *broadcast.Broadcaster[models.StoredReport]
	publisher   *eventbus.Publisher
	metrics     *metrics.Collector
	ingestor    *ingest.Ingestor

	httpServer   *http.Server
	httpListener net.Listener
	grpcServer   *health.GRPCServer
}

func NewCollectorOrchestrator(cfg *config.CollectorConfig, logger *zap.Logger) *CollectorOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CollectorOrchestrator{
		config: cfg,
		logger: logger,
	}
}

// Start initializes every component. Returns an error if the store cannot be
// reached or a listener cannot be bound.
func (o *CollectorOrchestrator) Start() error {
	o.logger.Info("Starting collector orchestrator...")

	if err := o.connectStore(); err != nil {
		return fmt.Errorf("failed to connect report store: %w", err)
	}

	tracker, err := presence.NewTracker(o.config.PresenceWindow, o.config.PresenceMaxEndpoints)
	if err != nil {
		return err
	}
	o.tracker = tracker
	o.broadcaster = broadcast.New[models.StoredReport](o.config.SubscriberBuffer)

	o.metrics = metrics.NewCollector()
	o.metrics.RegisterPresence(o.tracker.Len, o.tracker.OnlineCount)

	o.connectNATS()

	opts := []ingest.Option{ingest.WithMetrics(o.metrics)}
	if o.publisher != nil {
		opts = append(opts, ingest.WithPublisher(o.publisher))
	}
	o.ingestor = ingest.NewIngestor(o.store, o.tracker, o.broadcaster, o.logger, opts...)

	if err := o.initializeHTTPServer(); err != nil {
		return fmt.Errorf("failed to initialize HTTP server: %w", err)
	}
	if err := o.initializeGRPCServer(); err != nil {
		return fmt.Errorf("failed to initialize gRPC server: %w", err)
	}

	o.logger.Info("Collector orchestrator started successfully")
	return nil
}

func (o *CollectorOrchestrator) connectStore() error {
	s, err := store.NewStore(o.config.Store)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()

	o.logger.Info("Connecting report store", zap.String("backend", o.config.Store.Backend))
	if err := s.Connect(ctx); err != nil {
		return err
	}

	o.store = s
	return nil
}

// connectNATS is optional - failure logs a warning but does not prevent startup.
func (o *CollectorOrchestrator) connectNATS() {
	if o.config.NatsURL == "" {
		o.logger.Info("NATS URL not configured, skipping event bus")
		return
	}

	publisher, err := eventbus.NewPublisher(o.config.NatsURL, o.logger)
	if err != nil {
		o.logger.Warn("Failed to connect NATS publisher, reports will not be published", zap.Error(err))
		return
	}
	o.publisher = publisher
}

func (o *CollectorOrchestrator) initializeHTTPServer() error {
	listener, err := net.Listen("tcp", ":"+o.config.HTTPPort)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", o.config.HTTPPort, err)
	}
	o.httpListener = listener

	checks := map[string]health.Checker{"store": o.store.HealthCheck}
	if o.publisher != nil {
		checks["nats"] = func(context.Context) error {
			if !o.publisher.IsConnected() {
				return errors.New("nats disconnected")
			}
			return nil
		}
	}

	srv := api.NewServer(o.ingestor, health.NewHandler("collector", checks), o.metrics,
		api.Config{HistoryLimit: o.config.HistoryLimit, ReportsLimit: o.config.ReportsLimit}, o.logger)

	o.httpServer = &http.Server{
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

func (o *CollectorOrchestrator) initializeGRPCServer() error {
	o.grpcServer = health.NewGRPCServer(collectorService, o.logger)
	return o.grpcServer.Listen(":" + o.config.GRPCPort)
}

// Run serves HTTP and gRPC and blocks until ctx is cancelled or a server fails.
func (o *CollectorOrchestrator) Run(ctx context.Context) error {
	errChan := make(chan error, 2)

	go func() {
		o.logger.Info("HTTP API listening", zap.String("addr", o.HTTPAddr()))
		if err := o.httpServer.Serve(o.httpListener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	go func() {
		if err := o.grpcServer.Serve(); err != nil {
			errChan <- fmt.Errorf("gRPC server error: %w", err)
		}
	}()

	o.grpcServer.SetServing(true)
	o.logger.Info("Collector ready - accepting client reports")

	select {
	case <-ctx.Done():
		o.logger.Info("Shutdown signal received")
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop gracefully closes all connections and releases resources.
func (o *CollectorOrchestrator) Stop() error {
	o.logger.Info("Stopping collector orchestrator...")

	if o.grpcServer != nil {
		o.grpcServer.Stop()
	}

	// Closing the broadcaster ends live streams so Shutdown does not wait on them
	if o.broadcaster != nil {
		o.broadcaster.Close()
	}

	var errs []error
	if o.httpServer != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := o.httpServer.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("HTTP shutdown: %w", err))
		}
	}
	if o.httpListener != nil {
		// Serve may never have run; a second close is harmless
		o.httpListener.Close()
	}

	if o.publisher != nil {
		o.publisher.Close()
	}

	if o.store != nil {
		if err := o.store.Close(); err != nil {
			errs = append(errs, fmt.Errorf("store close: %w", err))
		}
	}

	o.logger.Info("Collector orchestrator stopped")
	return errors.Join(errs...)
}

func (o *CollectorOrchestrator) HTTPAddr() string {
	if o.httpListener == nil {
		return ""
	}
	return o.httpListener.Addr().String()
}

func (o *CollectorOrchestrator) GRPCAddr() string {
	if o.grpcServer == nil {
		return ""
	}
	return o.grpcServer.Addr()
}

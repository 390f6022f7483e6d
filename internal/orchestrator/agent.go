// Package orchestrator owns the lifecycle of the agent and collector services.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/alert"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/broadcast"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/catalog"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/config"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/detector"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/engine"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/identity"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/localapi"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/scheduler"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/system"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/transmit"
	"go.uber.org/zap"
)

// Capabilities are the OS probes the detectors run against.
type Capabilities struct {
	Processes system.ProcessLister
	Ports     system.PortChecker
	Owners    system.PortOwnerResolver
	Registry  system.RegistryChecker
}

// DefaultCapabilities probes the local machine.
func DefaultCapabilities(cfg *config.AgentConfig) Capabilities {
	return Capabilities{
		Processes: system.NewProcessTable(),
		Ports:     system.NewDialChecker(cfg.PortCheckTimeout),
		Owners:    system.NewConnectionTable(),
		Registry:  system.NewRegistryChecker(),
	}
}

// AgentOrchestrator manages the agent lifecycle: detection, alerting,
// reporting to the collector and the optional local API.
//
// Lifecycle:
//  1. Start() - Loads the catalog, registers detectors and builds the scheduler
//  2. Run() - Starts continuous monitoring and the local API, blocks until ctx ends
//  3. Stop() - Stops monitoring and closes the local API
//
// ScanOnce may be used after Start without calling Run.
type AgentOrchestrator struct {
	config *config.AgentConfig
	logger *zap.Logger
	caps   Capabilities
	out    io.Writer

	identity    models.EndpointIdentity
	metrics     *metrics.Agent
	engine      *engine.Engine
	scheduler   *scheduler.Scheduler
	transmitter *transmit.Client
	verdicts    *broadcast.Broadcaster[models.ScanVerdict]
	localAPI    *localapi.Server
}

type AgentOption func(*AgentOrchestrator)

func WithCapabilities(caps Capabilities) AgentOption {
	return func(o *AgentOrchestrator) { o.caps = caps }
}

// WithAlertOutput redirects the console alert banner, which defaults to stdout.
func WithAlertOutput(w io.Writer) AgentOption {
	return func(o *AgentOrchestrator) { o.out = w }
}

func NewAgentOrchestrator(cfg *config.AgentConfig, logger *zap.Logger, opts ...AgentOption) *AgentOrchestrator {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := &AgentOrchestrator{
		config: cfg,
		logger: logger,
		caps:   DefaultCapabilities(cfg),
		out:    os.Stdout,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Start prepares every component. Returns an error if the catalog or the
// severity policy cannot be loaded.
func (o *AgentOrchestrator) Start() error {
	o.logger.Info("Starting agent orchestrator...")

	o.identity = identity.Resolve(o.config.UserID)
	o.metrics = metrics.NewAgent()
	o.verdicts = broadcast.New[models.ScanVerdict](broadcast.DefaultBuffer)

	if err := o.initializeEngine(); err != nil {
		return fmt.Errorf("failed to initialize detection engine: %w", err)
	}

	o.scheduler = scheduler.New(o.engine.RunScan, o.config.ScanInterval, o.logger, o.metrics)
	o.scheduler.AddConsumer(func(_ context.Context, v models.ScanVerdict) {
		o.verdicts.Publish(v)
	})

	if o.config.EnableReporting {
		o.transmitter = transmit.NewClient(o.config.ServerURL, o.identity, o.config.ReportTimeout, o.logger, o.metrics)
		o.scheduler.AddConsumer(o.transmitter.Deliver)
		o.logger.Info("Reporting to collector", zap.String("server_url", o.config.ServerURL))
	} else {
		o.logger.Info("Reporting disabled (ENABLE_REPORTING=false)")
	}

	if o.config.EnableLocalAPI {
		o.localAPI = localapi.NewServer(o.scheduler, o.ScanOnce, o.identity, o.verdicts, o.metrics, o.logger)
	}

	o.logger.Info("Agent orchestrator started",
		zap.String("client_id", o.identity.ID),
		zap.String("host", o.identity.HostName),
		zap.String("platform", o.identity.Platform))
	return nil
}

// initializeEngine loads the catalog and registers the three detectors with
// the configured severity policy.
func (o *AgentOrchestrator) initializeEngine() error {
	cat, err := catalog.Load(o.config.CatalogPath)
	if err != nil {
		return err
	}

	policy, err := o.config.Policy()
	if err != nil {
		return err
	}

	opts := []engine.Option{engine.WithMetrics(o.metrics)}
	if sink := o.alertSink(); sink != nil {
		opts = append(opts, engine.WithAlertSink(sink))
	}
	o.engine = engine.NewEngine(o.logger, opts...)

	o.engine.RegisterDetector(detector.NewProcessDetector(cat, o.caps.Processes))
	o.engine.RegisterDetector(detector.NewPortDetector(cat, o.caps.Ports, o.caps.Owners, policy, o.logger))
	o.engine.RegisterDetector(detector.NewRegistryDetector(cat, o.caps.Registry, policy, o.logger))

	o.logger.Info("Detection engine initialized",
		zap.Int("signatures", cat.Len()),
		zap.Strings("detectors", o.engine.RegisteredDetectors()))
	return nil
}

func (o *AgentOrchestrator) alertSink() alert.Sink {
	if !o.config.EnableAlerts {
		return nil
	}

	sinks := alert.Multi{alert.NewConsoleSink(o.out, o.logger)}
	if o.config.AlertWebhookURL != "" {
		sinks = append(sinks, alert.NewWebhookSink(o.config.AlertWebhookURL, o.config.ReportTimeout, o.logger))
	}
	return sinks
}

// ScanOnce runs a single scan, publishes it to local observers and, when
// reporting is enabled, delivers it to the collector.
func (o *AgentOrchestrator) ScanOnce(ctx context.Context) models.ScanVerdict {
	v := o.engine.RunScan(ctx)
	o.verdicts.Publish(v)
	if o.transmitter != nil {
		o.transmitter.Deliver(ctx, v)
	}
	return v
}

// Run starts continuous monitoring and, if enabled, the local API. It blocks
// until ctx is cancelled or the local API fails.
func (o *AgentOrchestrator) Run(ctx context.Context) error {
	if err := o.scheduler.Start(); err != nil && !errors.Is(err, scheduler.ErrAlreadyRunning) {
		return err
	}

	errChan := make(chan error, 1)
	if o.localAPI != nil {
		go func() {
			if err := o.localAPI.Start(o.config.LocalAPIAddr()); err != nil {
				errChan <- fmt.Errorf("local API error: %w", err)
			}
		}()
	}

	o.logger.Info("Agent ready - monitoring for remote access software")

	select {
	case <-ctx.Done():
		o.logger.Info("Shutdown signal received")
		return ctx.Err()
	case err := <-errChan:
		return err
	}
}

// Stop halts monitoring, waiting for an in-flight scan, and closes the local API.
func (o *AgentOrchestrator) Stop() error {
	o.logger.Info("Stopping agent orchestrator...")

	if o.scheduler != nil {
		o.scheduler.Stop()
	}

	var err error
	if o.localAPI != nil {
		err = o.localAPI.Stop()
	}

	if o.verdicts != nil {
		o.verdicts.Close()
	}

	o.logger.Info("Agent orchestrator stopped")
	return err
}

func (o *AgentOrchestrator) Identity() models.EndpointIdentity {
	return o.identity
}

func (o *AgentOrchestrator) Scheduler() *scheduler.Scheduler {
	return o.scheduler
}

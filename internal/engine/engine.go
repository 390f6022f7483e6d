// Package engine runs the registered detectors and aggregates their findings
// into a single verdict.
package engine

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/alert"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/detector"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"go.uber.org/zap"
)

// Engine populated of detectors
type Engine struct {
	detectors []detector.Detector
	sink      alert.Sink
	metrics   *metrics.Agent
	logger    *zap.Logger
	now       func() time.Time
}

type Option func(*Engine)

// WithAlertSink sets the sink invoked for positive verdicts.
func WithAlertSink(s alert.Sink) Option {
	return func(e *Engine) { e.sink = s }
}

func WithMetrics(m *metrics.Agent) Option {
	return func(e *Engine) { e.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// Create a new detection engine
func NewEngine(logger *zap.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		detectors: make([]detector.Detector, 0),
		logger:    logger,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Add new detector to the engine
func (e *Engine) RegisterDetector(d detector.Detector) {
	e.detectors = append(e.detectors, d)
	e.logger.Info("Registered detector", zap.String("name", d.Name()), zap.String("kind", string(d.Kind())))
}

// Returns list of registered detectors
func (e *Engine) RegisteredDetectors() []string {
	names := make([]string, len(e.detectors))
	for i, det := range e.detectors {
		names[i] = det.Name()
	}
	return names
}

// RunScan runs every detector concurrently and waits for all of them. It always
// returns a verdict; detector failures surface only inside their findings.
func (e *Engine) RunScan(ctx context.Context) models.ScanVerdict {
	started := e.now()
	e.logger.Info("Starting remote desktop detection scan", zap.Int("detectors", len(e.detectors)))

	findings := make([]models.DetectionFinding, len(e.detectors))
	var wg sync.WaitGroup

	for i, det := range e.detectors {
		wg.Add(1)
		go func(i int, det detector.Detector) {
			defer wg.Done()
			findings[i] = runDetector(ctx, det)
		}(i, det)
	}
	wg.Wait()

	sortBySource(findings)

	for _, f := range findings {
		e.logger.Info("Detection result",
			zap.String("source", string(f.Source)),
			zap.Bool("matched", f.Matched),
			zap.String("severity", f.Severity.String()),
			zap.String("detail", f.Detail),
		)
	}

	verdict := models.NewVerdict(findings, e.now())

	if verdict.Overall {
		e.logger.Warn("Scan complete", zap.String("severity", verdict.Severity.String()), zap.String("summary", verdict.Summary))
	} else {
		e.logger.Info("Scan complete", zap.String("summary", verdict.Summary))
	}

	if verdict.Overall && e.sink != nil {
		if err := e.sink.Alert(ctx, verdict); err != nil {
			e.logger.Warn("Alert delivery failed", zap.Error(err))
			e.metrics.IncAlertFailure()
		}
	}

	e.metrics.ObserveScan(verdict, e.now().Sub(started))

	return verdict
}

func runDetector(ctx context.Context, det detector.Detector) (finding models.DetectionFinding) {
	defer func() {
		if r := recover(); r != nil {
			finding = models.ErrorFinding(det.Kind(), fmt.Errorf("panic: %v", r))
		}
	}()

	finding = det.Detect(ctx)
	finding.Source = det.Kind()
	return finding
}

func sortBySource(findings []models.DetectionFinding) {
	rank := func(kind models.SourceKind) int {
		for i, k := range models.SourceOrder {
			if k == kind {
				return i
			}
		}
		return len(models.SourceOrder)
	}
	sort.SliceStable(findings, func(i, j int) bool {
		return rank(findings[i].Source) < rank(findings[j].Source)
	})
}

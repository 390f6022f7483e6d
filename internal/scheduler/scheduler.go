// Package scheduler drives periodic scans without ever running two at once.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"go.uber.org/zap"
)

var ErrAlreadyRunning = errors.New("scheduler: monitoring is already running")

// ScanFunc performs one full scan.
type ScanFunc func(ctx context.Context) models.ScanVerdict

// Consumer receives every verdict the scheduler produces, on the scan goroutine.
type Consumer func(ctx context.Context, v models.ScanVerdict)

// Stats is a point-in-time view of the scheduler
type Stats struct {
	Active       bool                `json:"isActive"`
	ScanCount    int64               `json:"scanCount"`
	SkippedTicks int64               `json:"skippedTicks"`
	IntervalMs   int64               `json:"interval"`
	LastVerdict  *models.ScanVerdict `json:"lastVerdict,omitempty"`
}

type Scheduler struct {
	scan      ScanFunc
	interval  time.Duration
	consumers []Consumer
	logger    *zap.Logger
	metrics   *metrics.Agent

	// mu serialises Start and Stop
	mu       sync.Mutex
	active   atomic.Bool
	stopCh   chan struct{}
	loopDone chan struct{}

	scanning  atomic.Bool
	scanWG    sync.WaitGroup
	scanCount atomic.Int64
	skipped   atomic.Int64

	lastMu sync.RWMutex
	last   *models.ScanVerdict
}

func New(scan ScanFunc, interval time.Duration, logger *zap.Logger, m *metrics.Agent) *Scheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scheduler{
		scan:     scan,
		interval: interval,
		logger:   logger,
		metrics:  m,
	}
}

// AddConsumer registers a verdict consumer. Call before Start.
func (s *Scheduler) AddConsumer(c Consumer) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.consumers = append(s.consumers, c)
}

// Start runs one scan immediately and then one per interval.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active.Load() {
		s.logger.Warn("Monitoring is already running")
		return ErrAlreadyRunning
	}

	s.scanCount.Store(0)
	s.skipped.Store(0)
	s.stopCh = make(chan struct{})
	s.loopDone = make(chan struct{})
	s.active.Store(true)

	consumers := make([]Consumer, len(s.consumers))
	copy(consumers, s.consumers)

	s.logger.Info("Starting continuous monitoring", zap.Duration("interval", s.interval))
	go s.loop(s.stopCh, s.loopDone, consumers)

	return nil
}

// Stop halts the ticker and waits for any in-flight scan to finish. Stopping an
// inactive scheduler is a no-op.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.active.Load() {
		return
	}

	close(s.stopCh)
	<-s.loopDone
	s.scanWG.Wait()
	s.active.Store(false)

	s.logger.Info("Continuous monitoring stopped",
		zap.Int64("scans", s.scanCount.Load()),
		zap.Int64("skipped_ticks", s.skipped.Load()),
	)
}

func (s *Scheduler) IsActive() bool {
	return s.active.Load()
}

func (s *Scheduler) Stats() Stats {
	s.lastMu.RLock()
	last := s.last
	s.lastMu.RUnlock()

	return Stats{
		Active:       s.active.Load(),
		ScanCount:    s.scanCount.Load(),
		SkippedTicks: s.skipped.Load(),
		IntervalMs:   s.interval.Milliseconds(),
		LastVerdict:  last,
	}
}

func (s *Scheduler) loop(stop <-chan struct{}, done chan<- struct{}, consumers []Consumer) {
	defer close(done)

	ctx := context.Background()
	s.tick(ctx, consumers)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			s.tick(ctx, consumers)
		}
	}
}

// tick starts a scan unless one is still running, in which case the tick is dropped.
func (s *Scheduler) tick(ctx context.Context, consumers []Consumer) {
	if !s.scanning.CompareAndSwap(false, true) {
		s.skipped.Add(1)
		s.metrics.IncSkippedTick()
		s.logger.Warn("Skipping scheduled scan, previous scan still running")
		return
	}

	s.scanWG.Add(1)
	go func() {
		defer s.scanWG.Done()
		defer s.scanning.Store(false)

		n := s.scanCount.Add(1)
		s.logger.Info("Running scan", zap.Int64("scan", n))

		v := s.scan(ctx)

		s.lastMu.Lock()
		s.last = &v
		s.lastMu.Unlock()

		if v.Overall {
			s.logger.Warn("Remote access detected during continuous monitoring", zap.Int64("scan", n))
		}

		for _, c := range consumers {
			c(ctx, v)
		}
	}()
}

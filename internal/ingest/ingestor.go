// Package ingest accepts client reports and serves the collector's admin reads.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/broadcast"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/presence"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/store"
	"go.uber.org/zap"
)

var (
	ErrInvalidReport  = errors.New("invalid report")
	ErrClientNotFound = errors.New("client not found")
)

// EventPublisher receives every stored report after ingestion.
type EventPublisher interface {
	PublishReport(stored models.StoredReport) error
}

// Ingestor keeps the store and the presence tracker in step. A reader holding
// the read lock never sees a presence record without its store entry.
type Ingestor struct {
	mu sync.RWMutex

	store       store.ReportStore
	presence    *presence.Tracker
	broadcaster *broadcast.Broadcaster[models.StoredReport]
	publisher   EventPublisher
	metrics     *metrics.Collector
	logger      *zap.Logger
	now         func() time.Time
}

type Option func(*Ingestor)

func WithPublisher(p EventPublisher) Option {
	return func(i *Ingestor) { i.publisher = p }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(i *Ingestor) { i.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(i *Ingestor) { i.now = now }
}

// NewIngestor wires the ingest path. A nil broadcaster is replaced with a
// private one so Subscribe is always usable.
func NewIngestor(s store.ReportStore, tracker *presence.Tracker, b *broadcast.Broadcaster[models.StoredReport], logger *zap.Logger, opts ...Option) *Ingestor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if b == nil {
		b = broadcast.New[models.StoredReport](broadcast.DefaultBuffer)
	}
	i := &Ingestor{
		store:       s,
		presence:    tracker,
		broadcaster: b,
		logger:      logger,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

// Validate checks the fields the collector cannot work without.
func Validate(report models.ClientReport) error {
	if report.Identity == nil {
		return fmt.Errorf("%w: missing identity", ErrInvalidReport)
	}
	if report.Identity.ID == "" {
		return fmt.Errorf("%w: missing identity id", ErrInvalidReport)
	}
	if !report.Status.Valid() {
		return fmt.Errorf("%w: status must be %q or %q, got %q",
			ErrInvalidReport, models.StatusClean, models.StatusThreat, report.Status)
	}
	return nil
}

// Ingest persists report and records it as its endpoint's latest. Identical
// reports are not deduplicated; each one gets its own sequence.
func (i *Ingestor) Ingest(ctx context.Context, report models.ClientReport) (models.Ack, error) {
	if err := Validate(report); err != nil {
		i.metrics.IncInvalid()
		return models.Ack{Success: false, Message: err.Error()}, err
	}

	stored, dropped, err := i.commit(ctx, report)
	if err != nil {
		i.metrics.IncIngestFailure()
		i.logger.Error("Failed to persist report",
			zap.String("client_id", report.IdentityID()),
			zap.Error(err))
		return models.Ack{Success: false, Message: "Failed to store report"}, err
	}

	if i.publisher != nil {
		if err := i.publisher.PublishReport(stored); err != nil {
			i.metrics.IncNatsPublishError()
			i.logger.Warn("Failed to publish report", zap.Uint64("sequence", stored.Sequence), zap.Error(err))
		}
	}

	i.metrics.IncIngested(report)
	i.metrics.AddBroadcastDropped(dropped)

	fields := []zap.Field{
		zap.Uint64("sequence", stored.Sequence),
		zap.String("client_id", report.IdentityID()),
		zap.String("host", report.Identity.HostName),
		zap.String("status", string(report.Status)),
		zap.Stringer("severity", report.Severity),
	}
	if report.Status == models.StatusThreat {
		i.logger.Warn("Threat reported by client", fields...)
	} else {
		i.logger.Debug("Report received", fields...)
	}

	return models.Ack{Success: true, Message: "Report received", Sequence: stored.Sequence}, nil
}

// Reject counts a submission that could not be decoded into a report.
func (i *Ingestor) Reject() {
	i.metrics.IncInvalid()
}

func (i *Ingestor) commit(ctx context.Context, report models.ClientReport) (models.StoredReport, int, error) {
	i.mu.Lock()
	defer i.mu.Unlock()

	receivedAt := i.now()

	stored, err := i.store.Append(ctx, report, receivedAt)
	if err != nil {
		return models.StoredReport{}, 0, err
	}

	i.presence.Upsert(report, receivedAt)

	return stored, i.broadcaster.Publish(stored), nil
}

// Clients lists every known endpoint ordered by id.
func (i *Ingestor) Clients() []models.ClientView {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.presence.List()
}

// Client returns one endpoint and up to historyLimit of its reports, newest first.
func (i *Ingestor) Client(ctx context.Context, id string, historyLimit int) (models.ClientView, []models.StoredReport, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	view, ok := i.presence.Get(id)
	if !ok {
		return models.ClientView{}, nil, fmt.Errorf("%w: %s", ErrClientNotFound, id)
	}

	history, err := i.store.HistoryFor(ctx, id, historyLimit)
	if err != nil {
		return models.ClientView{}, nil, err
	}
	return view, history, nil
}

func (i *Ingestor) Stats() models.Stats {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.presence.Stats()
}

func (i *Ingestor) Reports(ctx context.Context, limit int) ([]models.StoredReport, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.store.All(ctx, limit)
}

func (i *Ingestor) Latest(ctx context.Context) ([]models.StoredReport, error) {
	i.mu.RLock()
	defer i.mu.RUnlock()
	return i.store.LatestPerIdentity(ctx)
}

// Subscribe registers a live-stream observer of stored reports in ingestion order.
func (i *Ingestor) Subscribe() broadcast.Subscription[models.StoredReport] {
	return i.broadcaster.Subscribe()
}

func (i *Ingestor) Unsubscribe(sub broadcast.Subscription[models.StoredReport]) {
	i.broadcaster.Unsubscribe(sub)
}

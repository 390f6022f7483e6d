// Package eventbus publishes ingested reports to NATS.
package eventbus

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

const (
	SubjectIngested = "reports.ingested"
	SubjectThreat   = "reports.threat"
)

type Publisher struct {
	conn   *nats.Conn
	logger *zap.Logger
}

func NewPublisher(natsURL string, logger *zap.Logger) (*Publisher, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	conn, err := nats.Connect(natsURL,
		nats.Name("remotewatch-collector"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(10),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, err
	}

	logger.Info("Collector connected to NATS", zap.String("url", natsURL))

	return &Publisher{
		conn:   conn,
		logger: logger,
	}, nil
}

// PublishReport sends every report on reports.ingested and threats also on reports.threat.
func (p *Publisher) PublishReport(stored models.StoredReport) error {
	data, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("failed to marshal report: %w", err)
	}

	if err := p.conn.Publish(SubjectIngested, data); err != nil {
		return fmt.Errorf("publish %s: %w", SubjectIngested, err)
	}

	if stored.Report.Status == models.StatusThreat {
		if err := p.conn.Publish(SubjectThreat, data); err != nil {
			return fmt.Errorf("publish %s: %w", SubjectThreat, err)
		}
	}

	p.logger.Debug("Published report to event bus",
		zap.Uint64("sequence", stored.Sequence),
		zap.String("client_id", stored.Report.IdentityID()))

	return nil
}

func (p *Publisher) Close() {
	if p.conn != nil {
		// Drain flushes buffered publishes before closing
		if err := p.conn.Drain(); err != nil {
			p.conn.Close()
		}
		p.logger.Info("Collector disconnected from NATS")
	}
}

func (p *Publisher) IsConnected() bool {
	return p.conn != nil && p.conn.IsConnected()
}

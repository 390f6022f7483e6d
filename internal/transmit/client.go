// Package transmit delivers scan verdicts to the collector.
package transmit

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/metrics"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"go.uber.org/zap"
)

const reportPath = "/api/client/report"

// Client posts reports to the collector. Delivery is at-most-once: a failed
// report is logged and dropped, and the next scan is the retry.
type Client struct {
	endpoint string
	identity models.EndpointIdentity
	http     *http.Client
	logger   *zap.Logger
	metrics  *metrics.Agent
	now      func() time.Time
}

func NewClient(serverURL string, identity models.EndpointIdentity, timeout time.Duration, logger *zap.Logger, m *metrics.Agent) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		endpoint: strings.TrimRight(serverURL, "/") + reportPath,
		identity: identity,
		http:     &http.Client{Timeout: timeout},
		logger:   logger,
		metrics:  m,
		now:      time.Now,
	}
}

// Send wraps the verdict with this endpoint's identity and submits it once.
func (c *Client) Send(ctx context.Context, v models.ScanVerdict) (models.Ack, error) {
	report := models.NewClientReport(c.identity, v, c.now())

	body, err := json.Marshal(report)
	if err != nil {
		return models.Ack{}, fmt.Errorf("encode report: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return models.Ack{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Ack{}, fmt.Errorf("collector unreachable: %w", err)
	}
	defer resp.Body.Close()

	var ack models.Ack
	if err := json.NewDecoder(resp.Body).Decode(&ack); err != nil && resp.StatusCode < 300 {
		return models.Ack{}, fmt.Errorf("decode ack: %w", err)
	}

	if resp.StatusCode >= 300 || !ack.Success {
		return ack, fmt.Errorf("collector rejected report: status %d: %s", resp.StatusCode, ack.Message)
	}

	return ack, nil
}

// Deliver is the scheduler-facing form of Send. Failures are logged and counted, never retried.
func (c *Client) Deliver(ctx context.Context, v models.ScanVerdict) {
	ack, err := c.Send(ctx, v)
	c.metrics.IncTransmit(err == nil)

	if err != nil {
		c.logger.Warn("Failed to send report, dropping", zap.String("endpoint", c.endpoint), zap.Error(err))
		return
	}

	c.logger.Info("Report sent",
		zap.String("status", string(models.StatusFor(v))),
		zap.Uint64("sequence", ack.Sequence),
	)
}

func (c *Client) Identity() models.EndpointIdentity {
	return c.identity
}

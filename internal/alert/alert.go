// Package alert delivers positive verdicts to operators.
package alert

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"go.uber.org/zap"
)

// Sink reacts to a verdict. Implementations ignore verdicts that did not match.
type Sink interface {
	Alert(ctx context.Context, verdict models.ScanVerdict) error
}

// ConsoleSink prints a banner to out and logs the verdict at warn level.
type ConsoleSink struct {
	out    io.Writer
	logger *zap.Logger
}

func NewConsoleSink(out io.Writer, logger *zap.Logger) *ConsoleSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsoleSink{out: out, logger: logger}
}

func (s *ConsoleSink) Alert(_ context.Context, v models.ScanVerdict) error {
	if !v.Overall {
		return nil
	}

	s.logger.Warn("Remote desktop access detected",
		zap.String("severity", v.Severity.String()),
		zap.String("summary", v.Summary),
	)

	if s.out == nil {
		return nil
	}

	bar := strings.Repeat("=", 70)
	var b strings.Builder
	fmt.Fprintf(&b, "\n%s\n  REMOTE DESKTOP ACCESS DETECTED\n%s\n\n", bar, bar)
	fmt.Fprintf(&b, "Summary:\n  %s\n\nDetections:\n", v.Summary)
	for i, f := range v.Findings {
		if f.Matched {
			fmt.Fprintf(&b, "  %d. [%s] %s\n", i+1, strings.ToUpper(f.Severity.String()), f.Detail)
		}
	}
	fmt.Fprintf(&b, "\n%s\n", bar)

	_, err := io.WriteString(s.out, b.String())
	return err
}

// WebhookSink POSTs matched verdicts as JSON. Delivery is best-effort.
type WebhookSink struct {
	url    string
	client *http.Client
	logger *zap.Logger
}

func NewWebhookSink(url string, timeout time.Duration, logger *zap.Logger) *WebhookSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &WebhookSink{
		url:    url,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}
}

type webhookPayload struct {
	Event   string             `json:"event"`
	Verdict models.ScanVerdict `json:"verdict"`
}

func (s *WebhookSink) Alert(ctx context.Context, v models.ScanVerdict) error {
	if !v.Overall {
		return nil
	}

	body, err := json.Marshal(webhookPayload{Event: "remote_access_detected", Verdict: v})
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook delivery: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}

	s.logger.Debug("Webhook alert delivered", zap.String("url", s.url))
	return nil
}

// Multi fans a verdict out to every sink and joins their errors.
type Multi []Sink

func (m Multi) Alert(ctx context.Context, v models.ScanVerdict) error {
	var errs []error
	for _, s := range m {
		if err := s.Alert(ctx, v); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

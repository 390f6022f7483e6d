// Package store provides append-only persistence for client reports.
package store

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
)

// ReportStore is append-only. Sequence ids are assigned here, start at 1 and
// never skip a value. Reads are newest first; a limit <= 0 means no limit.
type ReportStore interface {
	Connect(ctx context.Context) error
	Append(ctx context.Context, report models.ClientReport, receivedAt time.Time) (models.StoredReport, error)
	HistoryFor(ctx context.Context, identityID string, limit int) ([]models.StoredReport, error)
	All(ctx context.Context, limit int) ([]models.StoredReport, error)
	LatestPerIdentity(ctx context.Context) ([]models.StoredReport, error)
	HealthCheck(ctx context.Context) error
	Close() error
}

var (
	// NotConnected - Connect() not called | failed
	ErrNotConnected = errors.New("store: not connected")

	ErrUnsupportedBackend = errors.New("store: unsupported backend")

	// CorruptLog - persisted sequence ids are out of order or have gaps
	ErrCorruptLog = errors.New("store: corrupt report log")

	ErrMissingIdentity = errors.New("store: report has no identity")
)

// Options selects and configures a backend
type Options struct {
	Backend string

	FilePath string

	MongoURI        string
	MongoDatabase   string
	MongoCollection string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	PostgresURL string
	MySQLDSN    string
}

// newer reports whether a should win over b for latest-per-identity.
func newer(a, b models.StoredReport) bool {
	if !a.Report.SubmittedAt.Equal(b.Report.SubmittedAt) {
		return a.Report.SubmittedAt.After(b.Report.SubmittedAt)
	}
	return a.Sequence > b.Sequence
}

func sortNewestFirst(reports []models.StoredReport) {
	sort.Slice(reports, func(i, j int) bool {
		return reports[i].Sequence > reports[j].Sequence
	})
}

func validateForAppend(report models.ClientReport) error {
	if report.IdentityID() == "" {
		return ErrMissingIdentity
	}
	return nil
}

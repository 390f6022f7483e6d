package store

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS report_sequence (
		id    SMALLINT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
	`INSERT INTO report_sequence (id, value) VALUES (1, 0) ON CONFLICT (id) DO NOTHING`,
	`CREATE TABLE IF NOT EXISTS scan_reports (
		sequence     BIGINT PRIMARY KEY,
		identity_id  TEXT NOT NULL,
		host_name    TEXT NOT NULL,
		user_name    TEXT NOT NULL,
		platform     TEXT NOT NULL,
		status       TEXT NOT NULL,
		severity     TEXT NOT NULL,
		findings     JSONB NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		received_at  TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS scan_reports_identity_idx ON scan_reports (identity_id, sequence DESC)`,
}

// PostgresStore takes the next sequence from a single counter row inside the
// insert transaction; the row lock serialises writers and a rollback leaves
// no gap.
type PostgresStore struct {
	connectionString string

	mu   sync.RWMutex
	pool *pgxpool.Pool
}

func NewPostgresStore(connectionString string) *PostgresStore {
	return &PostgresStore{connectionString: connectionString}
}

func (p *PostgresStore) Connect(ctx context.Context) error {
	if p.connectionString == "" {
		return errors.New("postgres: connection string is empty")
	}

	pool, err := pgxpool.New(ctx, p.connectionString)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return fmt.Errorf("failed to connect: %w", err)
	}

	for _, stmt := range postgresSchema {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			pool.Close()
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	p.mu.Lock()
	p.pool = pool
	p.mu.Unlock()
	return nil
}

func (p *PostgresStore) Append(ctx context.Context, report models.ClientReport, receivedAt time.Time) (models.StoredReport, error) {
	if err := validateForAppend(report); err != nil {
		return models.StoredReport{}, err
	}

	pool, err := p.getPool()
	if err != nil {
		return models.StoredReport{}, err
	}

	row, err := newReportRow(report, receivedAt)
	if err != nil {
		return models.StoredReport{}, err
	}

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if err := tx.QueryRow(ctx,
			`UPDATE report_sequence SET value = value + 1 WHERE id = 1 RETURNING value`,
		).Scan(&row.Sequence); err != nil {
			return fmt.Errorf("failed to allocate sequence: %w", err)
		}

		_, err := tx.Exec(ctx,
			`INSERT INTO scan_reports (`+reportColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
			row.Sequence, row.IdentityID, row.HostName, row.UserName, row.Platform,
			row.Status, row.Severity, row.Findings, row.SubmittedAt, row.ReceivedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert report: %w", err)
		}
		return nil
	})
	if err != nil {
		return models.StoredReport{}, err
	}

	return models.StoredReport{Sequence: uint64(row.Sequence), Report: report, ReceivedAt: receivedAt}, nil
}

func (p *PostgresStore) HistoryFor(ctx context.Context, identityID string, limit int) ([]models.StoredReport, error) {
	return p.query(ctx,
		`SELECT `+reportColumns+` FROM scan_reports WHERE identity_id = $1 ORDER BY sequence DESC`+limitClause(limit),
		identityID)
}

func (p *PostgresStore) All(ctx context.Context, limit int) ([]models.StoredReport, error) {
	return p.query(ctx, `SELECT `+reportColumns+` FROM scan_reports ORDER BY sequence DESC`+limitClause(limit))
}

func (p *PostgresStore) LatestPerIdentity(ctx context.Context) ([]models.StoredReport, error) {
	out, err := p.query(ctx,
		`SELECT DISTINCT ON (identity_id) `+reportColumns+`
		   FROM scan_reports
		  ORDER BY identity_id, submitted_at DESC, sequence DESC`)
	if err != nil {
		return nil, err
	}
	sortNewestFirst(out)
	return out, nil
}

func (p *PostgresStore) query(ctx context.Context, sql string, args ...any) ([]models.StoredReport, error) {
	pool, err := p.getPool()
	if err != nil {
		return nil, err
	}

	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer rows.Close()

	out := []models.StoredReport{}
	for rows.Next() {
		stored, err := scanReportRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, stored)
	}
	return out, rows.Err()
}

func (p *PostgresStore) HealthCheck(ctx context.Context) error {
	pool, err := p.getPool()
	if err != nil {
		return err
	}
	if err := pool.Ping(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (p *PostgresStore) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.pool != nil {
		p.pool.Close()
		p.pool = nil
	}
	return nil
}

func (p *PostgresStore) getPool() (*pgxpool.Pool, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.pool == nil {
		return nil, ErrNotConnected
	}
	return p.pool, nil
}

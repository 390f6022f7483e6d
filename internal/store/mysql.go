package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/go-sql-driver/mysql"
)

var mysqlSchema = []string{
	`CREATE TABLE IF NOT EXISTS report_sequence (
		id    TINYINT PRIMARY KEY,
		value BIGINT NOT NULL
	)`,
	`INSERT IGNORE INTO report_sequence (id, value) VALUES (1, 0)`,
	`CREATE TABLE IF NOT EXISTS scan_reports (
		sequence     BIGINT PRIMARY KEY,
		identity_id  VARCHAR(255) NOT NULL,
		host_name    VARCHAR(255) NOT NULL,
		user_name    VARCHAR(255) NOT NULL,
		platform     VARCHAR(64) NOT NULL,
		status       VARCHAR(16) NOT NULL,
		severity     VARCHAR(16) NOT NULL,
		findings     JSON NOT NULL,
		submitted_at DATETIME(6) NOT NULL,
		received_at  DATETIME(6) NOT NULL,
		INDEX scan_reports_identity_idx (identity_id, sequence)
	)`,
}

// MySQLStore allocates sequences with LAST_INSERT_ID on a counter row inside
// the insert transaction.
type MySQLStore struct {
	dsn string

	mu sync.RWMutex
	db *sql.DB
}

func NewMySQLStore(dsn string) *MySQLStore {
	return &MySQLStore{dsn: dsn}
}

func (m *MySQLStore) Connect(ctx context.Context) error {
	if m.dsn == "" {
		return errors.New("mysql: dsn is empty")
	}

	cfg, err := mysql.ParseDSN(m.dsn)
	if err != nil {
		return fmt.Errorf("invalid mysql dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC

	connector, err := mysql.NewConnector(cfg)
	if err != nil {
		return fmt.Errorf("failed to connect: %w", err)
	}

	db := sql.OpenDB(connector)
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to connect: %w", err)
	}

	for _, stmt := range mysqlSchema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return fmt.Errorf("failed to migrate schema: %w", err)
		}
	}

	m.mu.Lock()
	m.db = db
	m.mu.Unlock()
	return nil
}

func (m *MySQLStore) Append(ctx context.Context, report models.ClientReport, receivedAt time.Time) (models.StoredReport, error) {
	if err := validateForAppend(report); err != nil {
		return models.StoredReport{}, err
	}

	db, err := m.getDB()
	if err != nil {
		return models.StoredReport{}, err
	}

	row, err := newReportRow(report, receivedAt)
	if err != nil {
		return models.StoredReport{}, err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `UPDATE report_sequence SET value = LAST_INSERT_ID(value + 1) WHERE id = 1`)
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("failed to allocate sequence: %w", err)
	}
	if row.Sequence, err = res.LastInsertId(); err != nil {
		return models.StoredReport{}, fmt.Errorf("failed to allocate sequence: %w", err)
	}

	// JSON columns reject binary-charset parameters, so findings go as a string
	_, err = tx.ExecContext(ctx,
		`INSERT INTO scan_reports (`+reportColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.Sequence, row.IdentityID, row.HostName, row.UserName, row.Platform,
		row.Status, row.Severity, string(row.Findings), row.SubmittedAt, row.ReceivedAt,
	)
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("failed to insert report: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return models.StoredReport{}, fmt.Errorf("failed to commit report: %w", err)
	}

	return models.StoredReport{Sequence: uint64(row.Sequence), Report: report, ReceivedAt: receivedAt}, nil
}

func (m *MySQLStore) HistoryFor(ctx context.Context, identityID string, limit int) ([]models.StoredReport, error) {
	return m.query(ctx,
		`SELECT `+reportColumns+` FROM scan_reports WHERE identity_id = ? ORDER BY sequence DESC`+limitClause(limit),
		identityID)
}

func (m *MySQLStore) All(ctx context.Context, limit int) ([]models.StoredReport, error) {
	return m.query(ctx, `SELECT `+reportColumns+` FROM scan_reports ORDER BY sequence DESC`+limitClause(limit))
}

func (m *MySQLStore) LatestPerIdentity(ctx context.Context) ([]models.StoredReport, error) {
	return m.query(ctx,
		`SELECT `+reportColumns+` FROM (
			SELECT `+reportColumns+`,
			       ROW_NUMBER() OVER (PARTITION BY identity_id ORDER BY submitted_at DESC, sequence DESC) AS rn
			  FROM scan_reports
		) ranked
		WHERE rn = 1
		ORDER BY sequence DESC`)
}

func (m *MySQLStore) query(ctx context.Context, query string, args ...any) ([]models.StoredReport, error) {
	db, err := m.getDB()
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
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

func (m *MySQLStore) HealthCheck(ctx context.Context) error {
	db, err := m.getDB()
	if err != nil {
		return err
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}

func (m *MySQLStore) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.db == nil {
		return nil
	}
	err := m.db.Close()
	m.db = nil
	return err
}

func (m *MySQLStore) getDB() (*sql.DB, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.db == nil {
		return nil, ErrNotConnected
	}
	return m.db, nil
}

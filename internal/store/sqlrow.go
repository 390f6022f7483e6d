package store

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
)

// reportRow is the column layout shared by the SQL backends.
type reportRow struct {
	Sequence    int64
	IdentityID  string
	HostName    string
	UserName    string
	Platform    string
	Status      string
	Severity    string
	Findings    []byte
	SubmittedAt time.Time
	ReceivedAt  time.Time
}

func newReportRow(report models.ClientReport, receivedAt time.Time) (reportRow, error) {
	findings := report.Findings
	if findings == nil {
		findings = []models.DetectionFinding{}
	}
	raw, err := json.Marshal(findings)
	if err != nil {
		return reportRow{}, fmt.Errorf("failed to marshal findings: %w", err)
	}

	row := reportRow{
		Status:      string(report.Status),
		Severity:    report.Severity.String(),
		Findings:    raw,
		SubmittedAt: report.SubmittedAt.UTC(),
		ReceivedAt:  receivedAt.UTC(),
	}
	if id := report.Identity; id != nil {
		row.IdentityID = id.ID
		row.HostName = id.HostName
		row.UserName = id.UserName
		row.Platform = id.Platform
	}
	return row, nil
}

func (r reportRow) stored() (models.StoredReport, error) {
	severity, err := models.ParseSeverity(r.Severity)
	if err != nil {
		return models.StoredReport{}, fmt.Errorf("report %d: %w", r.Sequence, err)
	}

	var findings []models.DetectionFinding
	if err := json.Unmarshal(r.Findings, &findings); err != nil {
		return models.StoredReport{}, fmt.Errorf("report %d findings: %w", r.Sequence, err)
	}

	return models.StoredReport{
		Sequence: uint64(r.Sequence),
		Report: models.ClientReport{
			Identity: &models.EndpointIdentity{
				ID:       r.IdentityID,
				HostName: r.HostName,
				UserName: r.UserName,
				Platform: r.Platform,
			},
			Status:      models.ReportStatus(r.Status),
			Severity:    severity,
			Findings:    findings,
			SubmittedAt: r.SubmittedAt,
		},
		ReceivedAt: r.ReceivedAt,
	}, nil
}

// rowScanner matches both pgx.Rows and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

const reportColumns = "sequence, identity_id, host_name, user_name, platform, status, severity, findings, submitted_at, received_at"

func scanReportRow(s rowScanner) (models.StoredReport, error) {
	var r reportRow
	if err := s.Scan(&r.Sequence, &r.IdentityID, &r.HostName, &r.UserName, &r.Platform,
		&r.Status, &r.Severity, &r.Findings, &r.SubmittedAt, &r.ReceivedAt); err != nil {
		return models.StoredReport{}, fmt.Errorf("failed to scan report: %w", err)
	}
	return r.stored()
}

func limitClause(limit int) string {
	if limit > 0 {
		return fmt.Sprintf(" LIMIT %d", limit)
	}
	return ""
}

package models

import "time"

// ReportStatus is the coarse outcome a client reports to the collector
type ReportStatus string

const (
	StatusClean  ReportStatus = "clean"
	StatusThreat ReportStatus = "threat"
)

// Valid reports whether the status is one the collector accepts.
func (s ReportStatus) Valid() bool {
	return s == StatusClean || s == StatusThreat
}

// StatusFor maps a verdict onto the report status.
func StatusFor(v ScanVerdict) ReportStatus {
	if v.Overall {
		return StatusThreat
	}
	return StatusClean
}

// EndpointIdentity is stable for the lifetime of an agent process
type EndpointIdentity struct {
	ID       string `json:"id" bson:"id"`
	HostName string `json:"hostName" bson:"hostName"`
	UserName string `json:"userName" bson:"userName"`
	Platform string `json:"platform" bson:"platform"`
}

// ClientReport is the body an agent submits after each scan
type ClientReport struct {
	Identity    *EndpointIdentity  `json:"identity"`
	Status      ReportStatus       `json:"status"`
	Severity    Severity           `json:"severity"`
	Findings    []DetectionFinding `json:"findings"`
	SubmittedAt time.Time          `json:"submittedAt"`
}

// NewClientReport wraps a verdict with the identity of the endpoint that produced it.
func NewClientReport(identity EndpointIdentity, v ScanVerdict, submittedAt time.Time) ClientReport {
	return ClientReport{
		Identity:    &identity,
		Status:      StatusFor(v),
		Severity:    v.Severity,
		Findings:    v.Findings,
		SubmittedAt: submittedAt,
	}
}

// IdentityID returns the identity id or an empty string when identity is missing.
func (r ClientReport) IdentityID() string {
	if r.Identity == nil {
		return ""
	}
	return r.Identity.ID
}

// Ack is the collector's response to a report submission
type Ack struct {
	Success  bool   `json:"success"`
	Message  string `json:"message"`
	Sequence uint64 `json:"sequence,omitempty"`
}

// StoredReport is one append-only history entry
type StoredReport struct {
	Sequence   uint64       `json:"sequence"`
	Report     ClientReport `json:"report"`
	ReceivedAt time.Time    `json:"receivedAt"`
}

// ClientView is the presence read model for one endpoint. Online is derived at read time.
type ClientView struct {
	Identity   EndpointIdentity `json:"identity"`
	LastReport ClientReport     `json:"lastReport"`
	LastSeen   time.Time        `json:"lastSeen"`
	Online     bool             `json:"isOnline"`
}

// Stats are fleet-wide counts over the presence map
type Stats struct {
	TotalClients    int `json:"totalClients"`
	OnlineClients   int `json:"onlineClients"`
	ThreatsDetected int `json:"threatsDetected"`
	CleanSystems    int `json:"cleanSystems"`
}

// PresenceRecord is the collector's live state for one endpoint
type PresenceRecord struct {
	Identity   EndpointIdentity
	LastReport ClientReport
	LastSeen   time.Time
}

// View renders the record with an online flag computed by the caller.
func (p PresenceRecord) View(online bool) ClientView {
	return ClientView{
		Identity:   p.Identity,
		LastReport: p.LastReport,
		LastSeen:   p.LastSeen,
		Online:     online,
	}
}

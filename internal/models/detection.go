package models

import (
	"fmt"
	"time"
)

// SourceKind identifies which detector produced a finding
type SourceKind string

const (
	SourceProcess  SourceKind = "process"
	SourceNetwork  SourceKind = "network"
	SourceRegistry SourceKind = "registry"
)

// SourceOrder is the fixed order findings appear in a verdict.
var SourceOrder = []SourceKind{SourceProcess, SourceNetwork, SourceRegistry}

// Signature describes one known remote-access product
type Signature struct {
	Name         string   `json:"name" yaml:"name"`
	ProcessNames []string `json:"processNames" yaml:"processNames"`
	RegistryKeys []string `json:"registryKeys,omitempty" yaml:"registryKeys,omitempty"`
	CommonPorts  []int    `json:"commonPorts,omitempty" yaml:"commonPorts,omitempty"`
	Severity     Severity `json:"severity" yaml:"severity"`
}

// DetectionFinding is one detector's result for one scan
type DetectionFinding struct {
	Source    SourceKind `json:"source"`
	Matched   bool       `json:"matched"`
	Items     []string   `json:"items,omitempty"`
	Severity  Severity   `json:"severity"`
	Detail    string     `json:"detail"`
	Timestamp time.Time  `json:"timestamp"`
}

// NewFinding creates a non-matching low severity finding stamped with the current time.
func NewFinding(source SourceKind) DetectionFinding {
	return DetectionFinding{
		Source:    source,
		Severity:  SeverityLow,
		Timestamp: time.Now(),
	}
}

// ErrorFinding converts a detector failure into a non-matching finding.
func ErrorFinding(source SourceKind, err error) DetectionFinding {
	f := NewFinding(source)
	f.Detail = fmt.Sprintf("Error during %s detection: %v", source, err)
	return f
}

// ScanVerdict is the aggregated outcome of a full scan
type ScanVerdict struct {
	Overall   bool               `json:"overall"`
	Findings  []DetectionFinding `json:"findings"`
	Severity  Severity           `json:"severity"`
	Summary   string             `json:"summary"`
	ScannedAt time.Time          `json:"scannedAt"`
}

// NewVerdict aggregates findings. Callers pass findings already in SourceOrder.
func NewVerdict(findings []DetectionFinding, scannedAt time.Time) ScanVerdict {
	overall := false
	indicators := 0
	for _, f := range findings {
		if f.Matched {
			overall = true
			indicators += len(f.Items)
		}
	}

	summary := "No remote desktop access detected. System is clean."
	if overall {
		summary = fmt.Sprintf("Remote desktop access DETECTED! Found %d indicator(s).", indicators)
	}

	return ScanVerdict{
		Overall:   overall,
		Findings:  findings,
		Severity:  AggregateSeverity(findings),
		Summary:   summary,
		ScannedAt: scannedAt,
	}
}

// MatchedFindings returns only the findings that matched.
func (v ScanVerdict) MatchedFindings() []DetectionFinding {
	var matched []DetectionFinding
	for _, f := range v.Findings {
		if f.Matched {
			matched = append(matched, f)
		}
	}
	return matched
}

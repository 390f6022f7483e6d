package models

import (
	"fmt"
	"strings"
)

// Severity indicates urgency. Values are ordered so they can be compared directly.
type Severity int

const (
	SeverityLow Severity = iota
	SeverityMedium
	SeverityHigh
	SeverityCritical
)

var severityNames = map[Severity]string{
	SeverityLow:      "low",
	SeverityMedium:   "medium",
	SeverityHigh:     "high",
	SeverityCritical: "critical",
}

func (s Severity) String() string {
	if name, ok := severityNames[s]; ok {
		return name
	}
	return fmt.Sprintf("severity(%d)", int(s))
}

// ParseSeverity accepts the lower-case names used on the wire, case-insensitively.
func ParseSeverity(value string) (Severity, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for sev, name := range severityNames {
		if name == value {
			return sev, nil
		}
	}
	return SeverityLow, fmt.Errorf("unknown severity %q", value)
}

func (s Severity) MarshalText() ([]byte, error) {
	if _, ok := severityNames[s]; !ok {
		return nil, fmt.Errorf("unknown severity %d", int(s))
	}
	return []byte(s.String()), nil
}

func (s *Severity) UnmarshalText(text []byte) error {
	parsed, err := ParseSeverity(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// MaxSeverity returns the more urgent of two severities.
func MaxSeverity(a, b Severity) Severity {
	if a > b {
		return a
	}
	return b
}

// AggregateSeverity is the maximum severity over matched findings, or low when
// nothing matched. Unmatched findings never raise the result.
func AggregateSeverity(findings []DetectionFinding) Severity {
	result := SeverityLow
	for _, f := range findings {
		if f.Matched {
			result = MaxSeverity(result, f.Severity)
		}
	}
	return result
}

package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeverity_Order(t *testing.T) {
	assert.True(t, SeverityCritical > SeverityHigh)
	assert.True(t, SeverityHigh > SeverityMedium)
	assert.True(t, SeverityMedium > SeverityLow)
}

func TestParseSeverity(t *testing.T) {
	sev, err := ParseSeverity("Critical")
	require.NoError(t, err)
	assert.Equal(t, SeverityCritical, sev)

	_, err = ParseSeverity("severe")
	assert.Error(t, err)
}

func TestSeverity_JSON(t *testing.T) {
	data, err := json.Marshal(DetectionFinding{Source: SourceProcess, Severity: SeverityHigh})
	require.NoError(t, err)
	assert.Contains(t, string(data), `"severity":"high"`)

	var f DetectionFinding
	require.NoError(t, json.Unmarshal([]byte(`{"source":"network","severity":"medium"}`), &f))
	assert.Equal(t, SeverityMedium, f.Severity)
	assert.Equal(t, SourceNetwork, f.Source)

	assert.Error(t, json.Unmarshal([]byte(`{"severity":"unknown"}`), &f))
}

func TestAggregateSeverity_IgnoresUnmatched(t *testing.T) {
	findings := []DetectionFinding{
		{Source: SourceProcess, Matched: false, Severity: SeverityCritical},
		{Source: SourceNetwork, Matched: true, Severity: SeverityMedium},
		{Source: SourceRegistry, Matched: true, Severity: SeverityHigh},
	}

	assert.Equal(t, SeverityHigh, AggregateSeverity(findings))
}

func TestAggregateSeverity_NoneMatched(t *testing.T) {
	findings := []DetectionFinding{
		{Source: SourceProcess, Severity: SeverityCritical},
		{Source: SourceNetwork, Severity: SeverityHigh},
	}

	assert.Equal(t, SeverityLow, AggregateSeverity(findings))
	assert.Equal(t, SeverityLow, AggregateSeverity(nil))
}

// Exhaustive over every matched/severity combination of three findings.
func TestNewVerdict_OverallAndSeverityProperties(t *testing.T) {
	severities := []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical}

	for mask := 0; mask < 8; mask++ {
		for _, s0 := range severities {
			for _, s1 := range severities {
				for _, s2 := range severities {
					sevs := []Severity{s0, s1, s2}
					findings := make([]DetectionFinding, 3)
					wantOverall := false
					wantSeverity := SeverityLow
					for i := range findings {
						matched := mask&(1<<i) != 0
						findings[i] = DetectionFinding{Source: SourceOrder[i], Matched: matched, Severity: sevs[i]}
						if matched {
							wantOverall = true
							if sevs[i] > wantSeverity {
								wantSeverity = sevs[i]
							}
						}
					}

					v := NewVerdict(findings, time.Now())
					assert.Equal(t, wantOverall, v.Overall)
					assert.Equal(t, wantSeverity, v.Severity)
				}
			}
		}
	}
}

func TestNewVerdict_Summary(t *testing.T) {
	clean := NewVerdict([]DetectionFinding{{Source: SourceProcess}}, time.Now())
	assert.Equal(t, "No remote desktop access detected. System is clean.", clean.Summary)

	dirty := NewVerdict([]DetectionFinding{
		{Source: SourceProcess, Matched: true, Items: []string{"TeamViewer", "AnyDesk"}, Severity: SeverityCritical},
		{Source: SourceNetwork, Matched: true, Items: []string{"Windows RDP - Port 3389 (Process: Unknown)"}, Severity: SeverityCritical},
	}, time.Now())
	assert.Equal(t, "Remote desktop access DETECTED! Found 3 indicator(s).", dirty.Summary)
	assert.Len(t, dirty.MatchedFindings(), 2)
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, StatusThreat, StatusFor(ScanVerdict{Overall: true}))
	assert.Equal(t, StatusClean, StatusFor(ScanVerdict{}))
	assert.True(t, StatusClean.Valid())
	assert.False(t, ReportStatus("unknown").Valid())
}

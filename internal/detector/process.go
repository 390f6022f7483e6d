package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/catalog"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/system"
)

type ProcessDetector struct {
	catalog *catalog.Catalog
	lister  system.ProcessLister
}

func NewProcessDetector(c *catalog.Catalog, lister system.ProcessLister) *ProcessDetector {
	return &ProcessDetector{
		catalog: c,
		lister:  lister,
	}
}

func (d *ProcessDetector) Name() string {
	return "remote_access_process"
}

func (d *ProcessDetector) Kind() models.SourceKind {
	return models.SourceProcess
}

func (d *ProcessDetector) Detect(ctx context.Context) models.DetectionFinding {
	names, err := d.lister.ProcessNames(ctx)
	if err != nil {
		return models.ErrorFinding(d.Kind(), err)
	}

	running := make(map[string]bool, len(names))
	for _, name := range names {
		running[strings.ToLower(name)] = true
	}

	finding := models.NewFinding(d.Kind())
	seen := make(map[string]bool)
	severity := models.SeverityLow

	for _, sig := range d.catalog.Signatures() {
		if !matchesAny(running, sig.ProcessNames) {
			continue
		}
		severity = models.MaxSeverity(severity, sig.Severity)
		if !seen[sig.Name] {
			seen[sig.Name] = true
			finding.Items = append(finding.Items, sig.Name)
		}
	}

	if len(finding.Items) == 0 {
		finding.Detail = "No remote desktop processes detected"
		return finding
	}

	finding.Matched = true
	finding.Severity = severity
	finding.Detail = fmt.Sprintf("Found %d remote desktop application(s) running: %s",
		len(finding.Items), strings.Join(finding.Items, ", "))

	return finding
}

func matchesAny(running map[string]bool, markers []string) bool {
	for _, marker := range markers {
		if running[strings.ToLower(marker)] {
			return true
		}
	}
	return false
}

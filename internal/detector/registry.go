package detector

import (
	"context"
	"fmt"
	"strings"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/catalog"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/system"
	"go.uber.org/zap"
)

type RegistryDetector struct {
	catalog  *catalog.Catalog
	registry system.RegistryChecker
	policy   SeverityPolicy
	logger   *zap.Logger
}

func NewRegistryDetector(c *catalog.Catalog, registry system.RegistryChecker, policy SeverityPolicy, logger *zap.Logger) *RegistryDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RegistryDetector{
		catalog:  c,
		registry: registry,
		policy:   policy,
		logger:   logger,
	}
}

func (d *RegistryDetector) Name() string {
	return "remote_access_registry"
}

func (d *RegistryDetector) Kind() models.SourceKind {
	return models.SourceRegistry
}

func (d *RegistryDetector) SetPolicy(policy SeverityPolicy) {
	d.policy = policy
}

func (d *RegistryDetector) Detect(ctx context.Context) models.DetectionFinding {
	finding := models.NewFinding(d.Kind())

	if ok, reason := d.registry.Available(); !ok {
		finding.Detail = reason
		return finding
	}

	seen := make(map[string]bool)
	add := func(label string) {
		if !seen[label] {
			seen[label] = true
			finding.Items = append(finding.Items, label)
		}
	}

	for _, sig := range d.catalog.Signatures() {
		if ctx.Err() != nil {
			return models.ErrorFinding(d.Kind(), ctx.Err())
		}
		for _, key := range sig.RegistryKeys {
			if d.exists(key) {
				add(sig.Name)
				break
			}
		}
	}

	for _, key := range d.catalog.SystemKeys() {
		if d.exists(key.Path) {
			add(key.Description)
		}
	}

	if len(finding.Items) == 0 {
		finding.Detail = "No remote desktop registry entries detected"
		return finding
	}

	finding.Matched = true
	finding.Severity = d.policy.RegistrySeverity(len(finding.Items))
	finding.Detail = fmt.Sprintf("Found %d remote desktop registry entry/entries: %s",
		len(finding.Items), strings.Join(finding.Items, ", "))

	return finding
}

// exists treats lookup errors as absence.
func (d *RegistryDetector) exists(path string) bool {
	ok, err := d.registry.KeyExists(path)
	if err != nil {
		d.logger.Debug("Registry lookup failed", zap.String("key", path), zap.Error(err))
		return false
	}
	return ok
}

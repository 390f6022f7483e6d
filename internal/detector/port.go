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

const unknownOwner = "Unknown"

type PortDetector struct {
	catalog  *catalog.Catalog
	checker  system.PortChecker
	resolver system.PortOwnerResolver
	policy   SeverityPolicy
	logger   *zap.Logger
}

// NewPortDetector creates a port detector. resolver may be nil, in which case
// every owner renders as Unknown.
func NewPortDetector(c *catalog.Catalog, checker system.PortChecker, resolver system.PortOwnerResolver, policy SeverityPolicy, logger *zap.Logger) *PortDetector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PortDetector{
		catalog:  c,
		checker:  checker,
		resolver: resolver,
		policy:   policy,
		logger:   logger,
	}
}

func (d *PortDetector) Name() string {
	return "remote_access_port"
}

func (d *PortDetector) Kind() models.SourceKind {
	return models.SourceNetwork
}

func (d *PortDetector) SetPolicy(policy SeverityPolicy) {
	d.policy = policy
}

func (d *PortDetector) Detect(ctx context.Context) models.DetectionFinding {
	finding := models.NewFinding(d.Kind())
	var live []int

	for _, port := range d.catalog.Ports() {
		ok, err := d.checker.IsListening(ctx, port)
		if err != nil {
			d.logger.Debug("Port check failed", zap.Int("port", port), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		live = append(live, port)
		finding.Items = append(finding.Items, fmt.Sprintf("%s - Port %d (Process: %s)",
			strings.Join(d.catalog.AppsForPort(port), "/"), port, d.owner(ctx, port)))
	}

	if len(live) == 0 {
		finding.Detail = "No remote desktop ports detected"
		return finding
	}

	finding.Matched = true
	finding.Severity = d.policy.PortSeverity(live)
	finding.Detail = fmt.Sprintf("Found %d active remote desktop port(s): %s",
		len(live), strings.Join(finding.Items, ", "))

	return finding
}

func (d *PortDetector) owner(ctx context.Context, port int) string {
	if d.resolver == nil {
		return unknownOwner
	}

	name, err := d.resolver.OwnerOf(ctx, port)
	if err != nil || name == "" {
		d.logger.Debug("Port owner lookup failed", zap.Int("port", port), zap.Error(err))
		return unknownOwner
	}
	return name
}

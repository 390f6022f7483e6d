package detector

import (
	"fmt"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
)

// SeverityPolicy holds the count-based escalation thresholds for the port and
// registry detectors.
type SeverityPolicy struct {
	// A live port in this set makes the network finding critical
	CriticalPorts []int

	PortHighCount int

	RegistryCriticalCount int
	RegistryHighCount     int
}

// DefaultPolicy treats RDP and the well-known VNC and TeamViewer ports as critical.
func DefaultPolicy() SeverityPolicy {
	return SeverityPolicy{
		CriticalPorts:         []int{3389, 5900, 5901, 5902, 5938, 5939},
		PortHighCount:         3,
		RegistryCriticalCount: 3,
		RegistryHighCount:     2,
	}
}

func (p SeverityPolicy) Validate() error {
	if p.PortHighCount < 1 {
		return fmt.Errorf("port high count must be at least 1")
	}
	if p.RegistryHighCount < 1 {
		return fmt.Errorf("registry high count must be at least 1")
	}
	if p.RegistryCriticalCount < p.RegistryHighCount {
		return fmt.Errorf("registry critical count (%d) must not be below high count (%d)",
			p.RegistryCriticalCount, p.RegistryHighCount)
	}
	return nil
}

// PortSeverity ranks a set of distinct live ports.
func (p SeverityPolicy) PortSeverity(livePorts []int) models.Severity {
	for _, port := range livePorts {
		for _, critical := range p.CriticalPorts {
			if port == critical {
				return models.SeverityCritical
			}
		}
	}

	switch {
	case len(livePorts) >= p.PortHighCount:
		return models.SeverityHigh
	case len(livePorts) >= 1:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// RegistrySeverity ranks a count of distinct registry matches.
func (p SeverityPolicy) RegistrySeverity(matches int) models.Severity {
	switch {
	case matches >= p.RegistryCriticalCount:
		return models.SeverityCritical
	case matches >= p.RegistryHighCount:
		return models.SeverityHigh
	case matches >= 1:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// Package detector implements the process, port and registry detectors.
package detector

import (
	"context"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
)

// Detector produces exactly one finding per call. Capability failures are
// reported inside the finding, never returned.
type Detector interface {
	Name() string
	Kind() models.SourceKind
	Detect(ctx context.Context) models.DetectionFinding
}

// Package system wraps the operating-system capabilities the detectors depend on.
package system

import (
	"context"
	"fmt"

	"github.com/shirou/gopsutil/v3/process"
)

// ProcessLister enumerates the names of running processes
type ProcessLister interface {
	ProcessNames(ctx context.Context) ([]string, error)
}

// ProcessTable lists processes via gopsutil.
type ProcessTable struct{}

func NewProcessTable() *ProcessTable {
	return &ProcessTable{}
}

func (t *ProcessTable) ProcessNames(ctx context.Context) ([]string, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list processes: %w", err)
	}

	names := make([]string, 0, len(procs))
	for _, p := range procs {
		// Processes can exit between listing and lookup
		name, err := p.NameWithContext(ctx)
		if err != nil || name == "" {
			continue
		}
		names = append(names, name)
	}

	return names, nil
}

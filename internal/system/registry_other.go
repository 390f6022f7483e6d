//go:build !windows

package system

// NewRegistryChecker returns the registry capability for this platform.
func NewRegistryChecker() RegistryChecker {
	return NoopRegistry{Reason: ReasonNotWindows}
}

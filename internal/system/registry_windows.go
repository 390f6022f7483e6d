//go:build windows

package system

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows/registry"
)

type windowsRegistry struct{}

// NewRegistryChecker returns the registry capability for this platform. If the
// registry cannot be opened at all the no-op checker is returned instead.
func NewRegistryChecker() RegistryChecker {
	k, err := registry.OpenKey(registry.LOCAL_MACHINE, `SOFTWARE`, registry.QUERY_VALUE)
	if err != nil {
		return NoopRegistry{Reason: ReasonUnavailable}
	}
	k.Close()
	return windowsRegistry{}
}

func (windowsRegistry) Available() (bool, string) {
	return true, ""
}

func (windowsRegistry) KeyExists(path string) (bool, error) {
	hive, subkey, err := ParseKeyPath(path)
	if err != nil {
		return false, err
	}

	var root registry.Key
	switch hive {
	case HiveLocalMachine:
		root = registry.LOCAL_MACHINE
	case HiveCurrentUser:
		root = registry.CURRENT_USER
	case HiveClassesRoot:
		root = registry.CLASSES_ROOT
	default:
		return false, fmt.Errorf("unsupported hive %s", hive)
	}

	k, err := registry.OpenKey(root, subkey, registry.QUERY_VALUE)
	if err != nil {
		if errors.Is(err, registry.ErrNotExist) {
			return false, nil
		}
		return false, err
	}
	k.Close()
	return true, nil
}

package system

import (
	"fmt"
	"strings"
)

// Hive is a registry root key
type Hive string

const (
	HiveLocalMachine Hive = "HKLM"
	HiveCurrentUser  Hive = "HKCU"
	HiveClassesRoot  Hive = "HKCR"
)

const (
	ReasonNotWindows  = "Registry detection only available on Windows"
	ReasonUnavailable = "Registry module not available"
)

// RegistryChecker reports whether registry keys exist. Available is false
// on builds or hosts where registry access is impossible.
type RegistryChecker interface {
	Available() (bool, string)
	KeyExists(path string) (bool, error)
}

var hivePrefixes = map[string]Hive{
	"HKLM":               HiveLocalMachine,
	"HKEY_LOCAL_MACHINE": HiveLocalMachine,
	"HKCU":               HiveCurrentUser,
	"HKEY_CURRENT_USER":  HiveCurrentUser,
	"HKCR":               HiveClassesRoot,
	"HKEY_CLASSES_ROOT":  HiveClassesRoot,
}

// ParseKeyPath splits a key path into hive and subkey. Paths without a
// recognised hive prefix are rooted at HKLM.
func ParseKeyPath(path string) (Hive, string, error) {
	path = strings.Trim(strings.TrimSpace(path), `\`)
	if path == "" {
		return "", "", fmt.Errorf("empty registry path")
	}

	parts := strings.SplitN(path, `\`, 2)
	if hive, ok := hivePrefixes[strings.ToUpper(parts[0])]; ok {
		if len(parts) < 2 || parts[1] == "" {
			return "", "", fmt.Errorf("registry path %q has no subkey", path)
		}
		return hive, parts[1], nil
	}

	return HiveLocalMachine, path, nil
}

// NoopRegistry always reports itself unavailable.
type NoopRegistry struct {
	Reason string
}

func (n NoopRegistry) Available() (bool, string) {
	return false, n.Reason
}

func (n NoopRegistry) KeyExists(string) (bool, error) {
	return false, fmt.Errorf("%s", n.Reason)
}

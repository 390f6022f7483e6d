// Package catalog holds the signatures of known remote-access products.
package catalog

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"gopkg.in/yaml.v3"
)

// SystemKey is a registry location checked in addition to per-product markers.
type SystemKey struct {
	Path        string `yaml:"path"`
	Description string `yaml:"description"`
}

// Catalog is immutable once built.
type Catalog struct {
	signatures []models.Signature
	systemKeys []SystemKey
	portApps   map[int][]string
}

type catalogFile struct {
	Signatures []models.Signature `yaml:"signatures"`
	SystemKeys []SystemKey        `yaml:"systemKeys"`
}

// Default returns the built-in catalog.
func Default() *Catalog {
	return New(builtinSignatures, builtinSystemKeys)
}

// New copies the given signatures and keys into a catalog.
func New(signatures []models.Signature, systemKeys []SystemKey) *Catalog {
	c := &Catalog{
		signatures: make([]models.Signature, len(signatures)),
		systemKeys: make([]SystemKey, len(systemKeys)),
		portApps:   make(map[int][]string),
	}
	copy(c.signatures, signatures)
	copy(c.systemKeys, systemKeys)

	for _, sig := range c.signatures {
		for _, port := range sig.CommonPorts {
			if !contains(c.portApps[port], sig.Name) {
				c.portApps[port] = append(c.portApps[port], sig.Name)
			}
		}
	}
	return c
}

// Load reads a YAML catalog file. An empty path returns the built-in catalog.
// A file without systemKeys keeps the built-in system keys.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog: %w", err)
	}

	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse catalog %s: %w", path, err)
	}

	if len(file.Signatures) == 0 {
		return nil, fmt.Errorf("catalog %s has no signatures", path)
	}
	for i, sig := range file.Signatures {
		if strings.TrimSpace(sig.Name) == "" {
			return nil, fmt.Errorf("catalog %s: signature %d has no name", path, i)
		}
	}

	keys := file.SystemKeys
	if keys == nil {
		keys = builtinSystemKeys
	}

	return New(file.Signatures, keys), nil
}

// Signatures returns a copy of the signatures in catalog order.
func (c *Catalog) Signatures() []models.Signature {
	out := make([]models.Signature, len(c.signatures))
	copy(out, c.signatures)
	return out
}

func (c *Catalog) SystemKeys() []SystemKey {
	out := make([]SystemKey, len(c.systemKeys))
	copy(out, c.systemKeys)
	return out
}

// Ports returns the union of every signature's ports in ascending order.
func (c *Catalog) Ports() []int {
	ports := make([]int, 0, len(c.portApps))
	for port := range c.portApps {
		ports = append(ports, port)
	}
	sort.Ints(ports)
	return ports
}

// AppsForPort returns the names of products known to use port, in catalog order.
func (c *Catalog) AppsForPort(port int) []string {
	apps := c.portApps[port]
	out := make([]string, len(apps))
	copy(out, apps)
	return out
}

func (c *Catalog) Len() int {
	return len(c.signatures)
}

func contains(list []string, value string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}

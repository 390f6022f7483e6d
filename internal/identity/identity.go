// Package identity determines how this endpoint identifies itself to the collector.
package identity

import (
	"fmt"
	"os"
	"os/user"
	"runtime"
	"strings"

	"github.com/EricMurray-e-m-dev/RemoteWatch/internal/models"
	"github.com/google/uuid"
)

// Resolve builds the endpoint identity. A non-empty override replaces the
// generated id; otherwise the id is "<hostname>-<random suffix>".
func Resolve(override string) models.EndpointIdentity {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "unknown-host"
	}

	id := strings.TrimSpace(override)
	if id == "" {
		id = fmt.Sprintf("%s-%s", host, uuid.NewString()[:8])
	}

	return models.EndpointIdentity{
		ID:       id,
		HostName: host,
		UserName: currentUser(),
		Platform: runtime.GOOS,
	}
}

func currentUser() string {
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	for _, key := range []string{"USER", "USERNAME"} {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "unknown"
}

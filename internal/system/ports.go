package system

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	psnet "github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

const DefaultDialTimeout = 300 * time.Millisecond

// PortChecker tests whether something accepts connections on a local port
type PortChecker interface {
	IsListening(ctx context.Context, port int) (bool, error)
}

// PortOwnerResolver finds the name of the process listening on a local port
type PortOwnerResolver interface {
	OwnerOf(ctx context.Context, port int) (string, error)
}

// DialChecker considers a port live when a TCP connection to it succeeds.
type DialChecker struct {
	Host    string
	Timeout time.Duration
}

func NewDialChecker(timeout time.Duration) *DialChecker {
	if timeout <= 0 {
		timeout = DefaultDialTimeout
	}
	return &DialChecker{
		Host:    "127.0.0.1",
		Timeout: timeout,
	}
}

func (c *DialChecker) IsListening(ctx context.Context, port int) (bool, error) {
	if port <= 0 || port > 65535 {
		return false, fmt.Errorf("invalid port %d", port)
	}

	dialer := net.Dialer{Timeout: c.Timeout}
	conn, err := dialer.DialContext(ctx, "tcp", net.JoinHostPort(c.Host, strconv.Itoa(port)))
	if err != nil {
		// Refused or timed out both mean nothing usable is listening
		return false, nil
	}
	conn.Close()
	return true, nil
}

// ConnectionTable resolves port owners from the OS socket table via gopsutil.
type ConnectionTable struct{}

func NewConnectionTable() *ConnectionTable {
	return &ConnectionTable{}
}

func (t *ConnectionTable) OwnerOf(ctx context.Context, port int) (string, error) {
	conns, err := psnet.ConnectionsWithContext(ctx, "tcp")
	if err != nil {
		return "", fmt.Errorf("failed to read connection table: %w", err)
	}

	for _, c := range conns {
		if c.Status != "LISTEN" || int(c.Laddr.Port) != port || c.Pid <= 0 {
			continue
		}

		p, err := process.NewProcessWithContext(ctx, c.Pid)
		if err != nil {
			return "", fmt.Errorf("owner pid %d: %w", c.Pid, err)
		}
		return p.NameWithContext(ctx)
	}

	return "", fmt.Errorf("no listener found for port %d", port)
}

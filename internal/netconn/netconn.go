// Package netconn reads the host connection table and exposes the established
// connections that have a remote endpoint.
package netconn

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	psnet "github.com/shirou/gopsutil/v4/net"

	"github.com/coral-mesh/netwatch/internal/retry"
)

// StatusEstablished is the only connection status that leaves a Source.
const StatusEstablished = "ESTABLISHED"

// Connection is one established connection from the OS connection table.
type Connection struct {
	// PID is the owning process, 0 when the OS does not report it.
	PID        int32
	RemoteIP   string
	RemotePort uint32
	Status     string
}

// Key identifies a connection across scan cycles.
type Key struct {
	PID        int32
	RemoteIP   string
	RemotePort uint32
}

// Key returns the identity triple of the connection.
func (c Connection) Key() Key {
	return Key{PID: c.PID, RemoteIP: c.RemoteIP, RemotePort: c.RemotePort}
}

// Source provides the current list of established connections.
type Source interface {
	Fetch(ctx context.Context) ([]Connection, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) ([]Connection, error)

// Fetch calls f(ctx).
func (f SourceFunc) Fetch(ctx context.Context) ([]Connection, error) {
	return f(ctx)
}

// SystemSource reads connections through gopsutil.
type SystemSource struct {
	// Kind is the gopsutil connection kind, "inet" when empty.
	Kind string
}

// NewSystemSource returns a Source covering IPv4 and IPv6 sockets.
func NewSystemSource() *SystemSource {
	return &SystemSource{Kind: "inet"}
}

// Fetch returns every established connection with a remote address.
func (s *SystemSource) Fetch(ctx context.Context) ([]Connection, error) {
	kind := s.Kind
	if kind == "" {
		kind = "inet"
	}

	stats, err := psnet.ConnectionsWithContext(ctx, kind)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s connections: %w", kind, err)
	}

	return FromStats(stats), nil
}

// FromStats keeps established connections that have a remote endpoint.
// Enumeration order is preserved.
func FromStats(stats []psnet.ConnectionStat) []Connection {
	conns := make([]Connection, 0, len(stats))
	for _, st := range stats {
		if st.Status != StatusEstablished || st.Raddr.IP == "" {
			continue
		}
		conns = append(conns, Connection{
			PID:        st.Pid,
			RemoteIP:   st.Raddr.IP,
			RemotePort: st.Raddr.Port,
			Status:     st.Status,
		})
	}
	return conns
}

// RetryingSource retries transient fetch failures of the wrapped Source.
// Permission errors are returned on the first attempt.
type RetryingSource struct {
	Source Source
	Config retry.Config
}

// Fetch calls the wrapped Source until it succeeds or retries run out.
func (r *RetryingSource) Fetch(ctx context.Context) ([]Connection, error) {
	if r.Config.MaxRetries <= 1 {
		return r.Source.Fetch(ctx)
	}

	var conns []Connection
	err := retry.Do(ctx, r.Config, func() error {
		var err error
		conns, err = r.Source.Fetch(ctx)
		return err
	}, IsTransient)
	if err != nil {
		return nil, err
	}
	return conns, nil
}

// IsTransient reports whether a fetch error is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, fs.ErrPermission) {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	return true
}

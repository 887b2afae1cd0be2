// Package procname memoizes pid to process name lookups.
package procname

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v4/process"
)

// NotAvailable is cached for pids that cannot be inspected.
const NotAvailable = "N/A"

// Inspector returns the display name of a running process.
type Inspector interface {
	Name(ctx context.Context, pid int32) (string, error)
}

// InspectorFunc adapts a function to the Inspector interface.
type InspectorFunc func(ctx context.Context, pid int32) (string, error)

// Name calls f(ctx, pid).
func (f InspectorFunc) Name(ctx context.Context, pid int32) (string, error) {
	return f(ctx, pid)
}

// GopsutilInspector reads process names from the OS process table.
type GopsutilInspector struct{}

// Name returns the process name for pid.
func (GopsutilInspector) Name(ctx context.Context, pid int32) (string, error) {
	if pid <= 0 {
		return "", fmt.Errorf("invalid pid %d", pid)
	}
	p, err := process.NewProcessWithContext(ctx, pid)
	if err != nil {
		return "", err
	}
	return p.NameWithContext(ctx)
}

// Cache maps pids to names. Entries are never refreshed, so a reused pid
// keeps the name of the first process seen with it.
type Cache struct {
	mu        sync.Mutex
	names     map[int32]string
	inspector Inspector
	logger    zerolog.Logger
}

// NewCache creates an empty cache backed by inspector.
func NewCache(inspector Inspector, logger zerolog.Logger) *Cache {
	return &Cache{
		names:     make(map[int32]string),
		inspector: inspector,
		logger:    logger.With().Str("component", "procname").Logger(),
	}
}

// NameFor returns the cached name for pid, inspecting the process on a miss.
// Inspection failures are cached as NotAvailable.
func (c *Cache) NameFor(ctx context.Context, pid int32) string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if name, ok := c.names[pid]; ok {
		return name
	}

	name, err := c.inspector.Name(ctx, pid)
	if err != nil || name == "" {
		c.logger.Debug().Err(err).Int32("pid", pid).Msg("Process not inspectable")
		name = NotAvailable
	}
	c.names[pid] = name
	return name
}

// Len returns the number of cached pids.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.names)
}

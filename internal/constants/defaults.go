// Package constants defines shared configuration constants and defaults.
package constants

import "time"

// Scanning.
const (
	// DefaultScanInterval of zero means "wait for Enter" between cycles.
	DefaultScanInterval time.Duration = 0

	// DefaultFetchAttempts is how many times a failed connection table
	// read is attempted before the cycle is aborted.
	DefaultFetchAttempts = 2

	// DefaultFetchBackoff is the first retry delay for the connection table.
	DefaultFetchBackoff = 50 * time.Millisecond
)

// Reverse DNS.
const (
	DNSBackendSystem = "system"
	DNSBackendDirect = "direct"

	// DefaultDNSTimeout bounds one reverse lookup.
	DefaultDNSTimeout = 2 * time.Second

	// MaxDNSConcurrency is the ceiling on lookups in flight per batch.
	MaxDNSConcurrency = 30

	// DefaultDNSCacheSize caps the expiring cache. Unused when the cache
	// never expires.
	DefaultDNSCacheSize = 4096

	// DefaultDNSPort is appended to a direct server given without a port.
	DefaultDNSPort = "53"
)

// Output and logging.
const (
	DefaultOutputFormat = "table"
	DefaultLogLevel     = "info"
)

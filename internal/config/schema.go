package config

import (
	"net"
	"time"

	"github.com/coral-mesh/netwatch/internal/constants"
)

// SchemaVersion is the configuration schema version.
var SchemaVersion = constants.ConfigVersion

// Config represents ~/.netwatch/config.yaml.
type Config struct {
	Version    string           `yaml:"version"`
	Scan       ScanConfig       `yaml:"scan"`
	DNS        DNSConfig        `yaml:"dns"`
	Classifier ClassifierConfig `yaml:"classifier"`
	Output     OutputConfig     `yaml:"output"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ScanConfig controls cycle pacing and connection table reads.
type ScanConfig struct {
	// Interval between cycles in watch mode. Zero waits for Enter.
	Interval time.Duration `yaml:"interval" env:"NETWATCH_SCAN_INTERVAL"`
	// FetchRetries is the number of attempts to read the connection table
	// before a cycle fails.
	FetchRetries int `yaml:"fetch_retries" env:"NETWATCH_FETCH_RETRIES"`
}

// DNSConfig configures reverse resolution and its cache.
type DNSConfig struct {
	Backend     string        `yaml:"backend" env:"NETWATCH_DNS_BACKEND"` // "system" or "direct"
	Server      string        `yaml:"server,omitempty" env:"NETWATCH_DNS_SERVER"`
	Timeout     time.Duration `yaml:"timeout" env:"NETWATCH_DNS_TIMEOUT"`
	Concurrency int           `yaml:"concurrency" env:"NETWATCH_DNS_CONCURRENCY"`
	// CacheTTL expires cached answers. Zero keeps them for the process
	// lifetime.
	CacheTTL  time.Duration `yaml:"cache_ttl" env:"NETWATCH_DNS_CACHE_TTL"`
	CacheSize int           `yaml:"cache_size" env:"NETWATCH_DNS_CACHE_SIZE"`
}

// ServerAddr returns Server with the DNS port added when it has none.
func (c DNSConfig) ServerAddr() string {
	if c.Server == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(c.Server); err == nil {
		return c.Server
	}
	return net.JoinHostPort(c.Server, constants.DefaultDNSPort)
}

// ClassifierConfig holds the suspicious-domain patterns.
type ClassifierConfig struct {
	// Patterns are regular expressions matched case-insensitively. The
	// environment form is semicolon-separated since patterns may contain
	// commas.
	Patterns []string `yaml:"patterns" env:"NETWATCH_PATTERNS" envsep:";"`
}

// OutputConfig selects how cycles are printed.
type OutputConfig struct {
	Format         string `yaml:"format" env:"NETWATCH_OUTPUT"` // "table", "json" or "csv"
	OnlySuspicious bool   `yaml:"only_suspicious" env:"NETWATCH_ONLY_SUSPICIOUS"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `yaml:"level" env:"NETWATCH_LOG_LEVEL"`
	Pretty bool   `yaml:"pretty" env:"NETWATCH_LOG_PRETTY"`
}

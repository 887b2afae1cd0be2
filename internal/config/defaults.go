package config

import (
	"github.com/coral-mesh/netwatch/internal/classifier"
	"github.com/coral-mesh/netwatch/internal/constants"
)

// Default returns a config with sensible defaults.
func Default() *Config {
	return &Config{
		Version: SchemaVersion,
		Scan: ScanConfig{
			Interval:     constants.DefaultScanInterval,
			FetchRetries: constants.DefaultFetchAttempts,
		},
		DNS: DNSConfig{
			Backend:     constants.DNSBackendSystem,
			Timeout:     constants.DefaultDNSTimeout,
			Concurrency: constants.MaxDNSConcurrency,
			CacheSize:   constants.DefaultDNSCacheSize,
		},
		Classifier: ClassifierConfig{
			Patterns: append([]string(nil), classifier.DefaultPatterns...),
		},
		Output: OutputConfig{
			Format: constants.DefaultOutputFormat,
		},
		Logging: LoggingConfig{
			Level:  constants.DefaultLogLevel,
			Pretty: true,
		},
	}
}

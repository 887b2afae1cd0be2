package config

import (
	"fmt"
	"net"
	"strings"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/netwatch/internal/classifier"
	"github.com/coral-mesh/netwatch/internal/constants"
)

// Validator is the interface for validating configuration.
type Validator interface {
	Validate() error
}

// ValidationError represents a single validation error.
type ValidationError struct {
	Field   string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// MultiValidationError represents multiple validation errors.
type MultiValidationError struct {
	Errors []ValidationError
}

// Error implements the error interface.
func (e *MultiValidationError) Error() string {
	if len(e.Errors) == 0 {
		return "no validation errors"
	}

	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("validation failed with %d errors:\n", len(e.Errors)))
	for i, err := range e.Errors {
		builder.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return builder.String()
}

// Validate validates Config.
func (c *Config) Validate() error {
	var errors []ValidationError
	add := func(field, msg string, args ...interface{}) {
		errors = append(errors, ValidationError{Field: field, Message: fmt.Sprintf(msg, args...)})
	}

	if c.Version == "" {
		add("version", "version is required")
	}

	if c.Scan.Interval < 0 {
		add("scan.interval", "interval cannot be negative")
	}
	if c.Scan.FetchRetries < 1 {
		add("scan.fetch_retries", "at least one attempt is required")
	}

	switch c.DNS.Backend {
	case constants.DNSBackendSystem:
	case constants.DNSBackendDirect:
		if c.DNS.Server == "" {
			add("dns.server", "server is required for the direct backend")
		} else if _, _, err := net.SplitHostPort(c.DNS.ServerAddr()); err != nil {
			add("dns.server", "invalid server address %q", c.DNS.Server)
		}
	default:
		add("dns.backend", "backend must be '%s' or '%s'", constants.DNSBackendSystem, constants.DNSBackendDirect)
	}
	if c.DNS.Timeout <= 0 {
		add("dns.timeout", "timeout must be positive")
	}
	if c.DNS.Concurrency < 1 || c.DNS.Concurrency > constants.MaxDNSConcurrency {
		add("dns.concurrency", "concurrency must be between 1 and %d", constants.MaxDNSConcurrency)
	}
	if c.DNS.CacheTTL < 0 {
		add("dns.cache_ttl", "cache ttl cannot be negative")
	}
	if c.DNS.CacheTTL > 0 && c.DNS.CacheSize < 1 {
		add("dns.cache_size", "cache size must be positive when cache_ttl is set")
	}

	if len(c.Classifier.Patterns) == 0 {
		add("classifier.patterns", "at least one pattern is required")
	} else if _, err := classifier.New(c.Classifier.Patterns); err != nil {
		add("classifier.patterns", "%v", err)
	}

	switch c.Output.Format {
	case "table", "json", "csv":
	default:
		add("output.format", "format must be 'table', 'json' or 'csv'")
	}

	if c.Logging.Level != "" {
		if _, err := zerolog.ParseLevel(c.Logging.Level); err != nil {
			add("logging.level", "unknown level %q", c.Logging.Level)
		}
	}

	if len(errors) > 0 {
		return &MultiValidationError{Errors: errors}
	}
	return nil
}

// Package config loads netwatch configuration. Values are layered: built-in
// defaults, then the YAML file, then NETWATCH_* environment variables. CLI
// flags are applied on top by the caller.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/coral-mesh/netwatch/internal/constants"
	"github.com/coral-mesh/netwatch/internal/privilege"
	"github.com/coral-mesh/netwatch/internal/safe"
)

// Loader handles loading and saving the configuration file.
type Loader struct {
	homeDir string
	path    string
}

// NewLoader creates a new config loader.
// The base directory is resolved in this order:
//  1. NETWATCH_CONFIG environment variable.
//  2. The invoking user's home directory when running under sudo.
//  3. User home directory (~/).
//  4. /tmp/netwatch-fallback (no home directory at all).
func NewLoader() *Loader {
	if baseDir := os.Getenv(constants.ConfigDirEnv); baseDir != "" {
		return &Loader{homeDir: baseDir}
	}

	if privilege.IsRunningUnderSudo() {
		if u, err := privilege.DetectOriginalUser(); err == nil && u.HomeDir != "" {
			return &Loader{homeDir: u.HomeDir}
		}
	}

	if homeDir, err := os.UserHomeDir(); err == nil {
		return &Loader{homeDir: homeDir}
	}

	return &Loader{homeDir: constants.FallbackConfigDir}
}

// NewLoaderForFile creates a loader bound to an explicit config file.
func NewLoaderForFile(path string) *Loader {
	return &Loader{path: path}
}

// ConfigPath returns the path of the config file.
func (l *Loader) ConfigPath() string {
	if l.path != "" {
		return l.path
	}
	return filepath.Join(l.homeDir, constants.DefaultDir, constants.ConfigFile)
}

// Load returns the layered, validated configuration. A missing file is not
// an error.
func (l *Loader) Load() (*Config, error) {
	cfg := Default()

	path := l.ConfigPath()
	data, err := safe.ReadFile(path, &safe.ReadOptions{AllowSymlinks: true})
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := decode(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	if err := LoadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// decode unmarshals data over cfg, rejecting unknown keys.
func decode(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Save writes cfg to the config path, creating the directory if needed.
func (l *Loader) Save(cfg *Config) error {
	path := l.ConfigPath()

	dir := filepath.Dir(path)
	//nolint:gosec // G301: Directory needs standard permissions for traversal
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := Marshal(cfg)
	if err != nil {
		return err
	}

	//nolint:gosec // G306: Config file is not sensitive
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	// Keep files owned by the sudo user rather than root.
	if privilege.IsRoot() {
		for _, p := range []string{dir, path} {
			if err := privilege.FixFileOwnership(p); err != nil {
				log.Printf("warning: failed to fix ownership of %s: %v", p, err)
			}
		}
	}

	return nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg *Config) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}
	return buf.Bytes(), nil
}

// Package constants defines shared configuration constants.
package constants

var (
	ConfigFile = "config.yaml"

	DefaultDir = ".netwatch"

	// ConfigDirEnv overrides the directory that holds DefaultDir.
	ConfigDirEnv = "NETWATCH_CONFIG"

	// FallbackConfigDir is used when no home directory can be found.
	FallbackConfigDir = "/tmp/netwatch-fallback"

	ConfigVersion = "1"
)

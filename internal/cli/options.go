package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/coral-mesh/netwatch/internal/config"
	"github.com/coral-mesh/netwatch/internal/constants"
	"github.com/coral-mesh/netwatch/internal/logging"
	"github.com/coral-mesh/netwatch/internal/render"
)

// rootOptions holds persistent flags. Flags override the config file and
// environment only when set explicitly.
type rootOptions struct {
	configFile  string
	logLevel    string
	dnsBackend  string
	dnsServer   string
	dnsTimeout  time.Duration
	concurrency int
	cacheTTL    time.Duration
}

func (o *rootOptions) addFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.StringVar(&o.configFile, "config", "", "Config file (default: ~/.netwatch/config.yaml)")
	flags.StringVar(&o.logLevel, "log-level", constants.DefaultLogLevel, "Log level (trace, debug, info, warn, error)")
	flags.StringVar(&o.dnsBackend, "dns-backend", constants.DNSBackendSystem, "Reverse DNS backend (system, direct)")
	flags.StringVar(&o.dnsServer, "dns-server", "", "Nameserver for the direct backend (host[:port])")
	flags.DurationVar(&o.dnsTimeout, "dns-timeout", constants.DefaultDNSTimeout, "Timeout for a single reverse lookup")
	flags.IntVar(&o.concurrency, "concurrency", constants.MaxDNSConcurrency,
		fmt.Sprintf("Maximum reverse lookups in flight (1-%d)", constants.MaxDNSConcurrency))
	flags.DurationVar(&o.cacheTTL, "cache-ttl", 0, "Expire cached lookups after this long (0 keeps them forever)")

	_ = cmd.RegisterFlagCompletionFunc("dns-backend", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return []string{constants.DNSBackendSystem, constants.DNSBackendDirect}, cobra.ShellCompDirectiveNoFileComp
	})
}

func (o *rootOptions) loader() *config.Loader {
	if o.configFile != "" {
		return config.NewLoaderForFile(o.configFile)
	}
	return config.NewLoader()
}

// load returns the effective configuration for cmd and a logger writing to
// its error stream.
func (o *rootOptions) load(cmd *cobra.Command) (*config.Config, zerolog.Logger, error) {
	cfg, err := o.loader().Load()
	if err != nil {
		return nil, zerolog.Nop(), err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("dns-backend") {
		cfg.DNS.Backend = o.dnsBackend
	}
	if flags.Changed("dns-server") {
		cfg.DNS.Server = o.dnsServer
		if !flags.Changed("dns-backend") {
			cfg.DNS.Backend = constants.DNSBackendDirect
		}
	}
	if flags.Changed("dns-timeout") {
		cfg.DNS.Timeout = o.dnsTimeout
	}
	if flags.Changed("concurrency") {
		cfg.DNS.Concurrency = o.concurrency
	}
	if flags.Changed("cache-ttl") {
		cfg.DNS.CacheTTL = o.cacheTTL
	}

	if err := cfg.Validate(); err != nil {
		return nil, zerolog.Nop(), err
	}

	logger := logging.New(logging.Config{
		Level:  cfg.Logging.Level,
		Pretty: cfg.Logging.Pretty,
		Output: cmd.ErrOrStderr(),
	})
	return cfg, logger, nil
}

// outputOptions are the flags of commands that print rows.
type outputOptions struct {
	format         string
	onlySuspicious bool
}

func (o *outputOptions) addFlags(cmd *cobra.Command, withFilter bool) {
	AddFormatFlag(cmd, &o.format, render.FormatTable, []render.OutputFormat{
		render.FormatTable,
		render.FormatJSON,
		render.FormatCSV,
	})
	if withFilter {
		cmd.Flags().BoolVar(&o.onlySuspicious, "only-suspicious", false, "Show only suspicious connections")
	}
}

// apply copies explicitly set flags into cfg.
func (o *outputOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Format = o.format
	}
	if flags.Changed("only-suspicious") {
		cfg.Output.OnlySuspicious = o.onlySuspicious
	}
	_, err := render.ParseFormat(cfg.Output.Format)
	return err
}

// AddFormatFlag adds a standard --format/-o flag to a command.
func AddFormatFlag(cmd *cobra.Command, formatVar *string, defaultFormat render.OutputFormat, supportedFormats []render.OutputFormat) {
	formatNames := make([]string, len(supportedFormats))
	for i, f := range supportedFormats {
		formatNames[i] = string(f)
	}

	description := fmt.Sprintf("Output format (%s)", strings.Join(formatNames, ", "))
	cmd.Flags().StringVarP(formatVar, "format", "o", string(defaultFormat), description)

	_ = cmd.RegisterFlagCompletionFunc("format", func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return formatNames, cobra.ShellCompDirectiveNoFileComp
	})
}

package cli

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/rs/zerolog"

	"github.com/coral-mesh/netwatch/internal/classifier"
	"github.com/coral-mesh/netwatch/internal/config"
	"github.com/coral-mesh/netwatch/internal/constants"
	"github.com/coral-mesh/netwatch/internal/monitor"
	"github.com/coral-mesh/netwatch/internal/netconn"
	"github.com/coral-mesh/netwatch/internal/privilege"
	"github.com/coral-mesh/netwatch/internal/procname"
	"github.com/coral-mesh/netwatch/internal/render"
	"github.com/coral-mesh/netwatch/internal/resolver"
	"github.com/coral-mesh/netwatch/internal/retry"
)

func newLookuper(cfg config.DNSConfig) resolver.Lookuper {
	if cfg.Backend == constants.DNSBackendDirect {
		return resolver.NewDNSLookuper(cfg.ServerAddr(), cfg.Timeout)
	}
	return &resolver.SystemLookuper{}
}

func newStore(cfg config.DNSConfig) resolver.Store {
	if cfg.CacheTTL > 0 {
		return resolver.NewExpiringStore(cfg.CacheSize, cfg.CacheTTL)
	}
	return resolver.NewMapStore()
}

func newResolver(cfg *config.Config, logger zerolog.Logger) *resolver.Resolver {
	return resolver.New(newLookuper(cfg.DNS), newStore(cfg.DNS), resolver.Config{
		Timeout:     cfg.DNS.Timeout,
		Concurrency: cfg.DNS.Concurrency,
	}, logger)
}

func newSource(cfg config.ScanConfig) netconn.Source {
	return &netconn.RetryingSource{
		Source: netconn.NewSystemSource(),
		Config: retry.Config{
			MaxRetries:     cfg.FetchRetries,
			InitialBackoff: constants.DefaultFetchBackoff,
			MaxBackoff:     time.Second,
			Jitter:         0.1,
		},
	}
}

// newMonitor wires a Monitor over the host connection table.
func newMonitor(cfg *config.Config, logger zerolog.Logger) (*monitor.Monitor, *resolver.Resolver, error) {
	cls, err := classifier.New(cfg.Classifier.Patterns)
	if err != nil {
		return nil, nil, err
	}

	domains := newResolver(cfg, logger)
	state := &monitor.State{
		Domains:   domains,
		Processes: procname.NewCache(procname.GopsutilInspector{}, logger),
	}

	return monitor.New(newSource(cfg.Scan), state, cls, logger), domains, nil
}

func newCycleWriter(w io.Writer, cfg config.OutputConfig) (*render.CycleWriter, error) {
	format, err := render.ParseFormat(cfg.Format)
	if err != nil {
		return nil, err
	}
	return render.NewCycleWriter(w, render.Options{
		Format:         format,
		OnlySuspicious: cfg.OnlySuspicious,
		Color:          format == render.FormatTable && render.ColorEnabled(w),
	})
}

// explainFetchError adds a privilege hint to fatal fetch failures.
func explainFetchError(w io.Writer, err error) error {
	if !errors.Is(err, monitor.ErrFetchConnections) {
		return err
	}
	if hint := privilege.FetchHint(err, privilege.IsRoot()); hint != "" {
		_, _ = fmt.Fprintf(w, "hint: %s\n", hint)
	}
	return err
}

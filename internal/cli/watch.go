package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/chzyer/readline"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	errs "github.com/coral-mesh/netwatch/internal/errors"
	"github.com/coral-mesh/netwatch/internal/poller"
)

const refreshPrompt = "[Enter] to refresh | Ctrl+C to exit... "

// errStopped ends a watch loop without reporting a failure.
var errStopped = errors.New("stopped")

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var (
		out      outputOptions
		interval time.Duration
	)

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Scan repeatedly, on Enter or on an interval",
		Long: `Scan the connection table in a loop. Without --interval each refresh
waits for Enter; with --interval scans run on a timer. Only connections that
appeared since the previous scan trigger reverse lookups.

Press Ctrl+C or Ctrl+D to stop. At the refresh prompt, typing q, quit or
exit also stops.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := out.apply(cmd, cfg); err != nil {
				return err
			}
			if cmd.Flags().Changed("interval") {
				cfg.Scan.Interval = interval
			}
			if cfg.Scan.Interval < 0 {
				return fmt.Errorf("interval cannot be negative")
			}

			mon, domains, err := newMonitor(cfg, logger)
			if err != nil {
				return err
			}
			writer, err := newCycleWriter(cmd.OutOrStdout(), cfg.Output)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cycle := func(ctx context.Context) error {
				res, err := mon.Scan(ctx)
				if err != nil {
					if ctx.Err() != nil {
						return errStopped
					}
					return explainFetchError(cmd.ErrOrStderr(), err)
				}
				return writer.Write(res)
			}

			logger.Debug().
				Str("session", mon.SessionID()).
				Dur("interval", cfg.Scan.Interval).
				Msg("Watching connections")

			if cfg.Scan.Interval > 0 {
				err = runInterval(ctx, cfg.Scan.Interval, cycle, logger)
			} else {
				err = runPrompt(ctx, cycle, logger)
			}

			logger.Debug().Interface("resolver", domains.Stats()).Msg("Watch finished")

			if err != nil && !errors.Is(err, errStopped) {
				return err
			}
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "\n[!] Stopped.")
			return nil
		},
	}

	out.addFlags(cmd, true)
	cmd.Flags().DurationVarP(&interval, "interval", "i", 0, "Scan on this interval instead of waiting for Enter")

	return cmd
}

// runInterval scans on a timer until ctx is done or a scan fails.
func runInterval(ctx context.Context, interval time.Duration, cycle func(context.Context) error, logger zerolog.Logger) error {
	p := poller.NewBasePoller(ctx, poller.Config{
		Name:     "watch",
		Interval: interval,
		Logger:   logger,
	})
	if err := p.Start(poller.ScannerFunc(cycle)); err != nil {
		return err
	}
	err := p.Wait()
	_ = p.Stop()
	return err
}

// runPrompt scans once, then again each time a line is read.
func runPrompt(ctx context.Context, cycle func(context.Context) error, logger zerolog.Logger) error {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:          refreshPrompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	})
	if err != nil {
		return fmt.Errorf("failed to initialize readline: %w", err)
	}
	defer errs.DeferClose(logger, rl, "failed to close prompt")

	// SIGTERM does not interrupt a blocked Readline on its own.
	unblock := context.AfterFunc(ctx, func() { _ = rl.Close() })
	defer unblock()

	return promptLoop(ctx, rl, cycle)
}

// lineReader is the part of *readline.Instance the loop needs.
type lineReader interface {
	Readline() (string, error)
}

func promptLoop(ctx context.Context, rl lineReader, cycle func(context.Context) error) error {
	for {
		if err := cycle(ctx); err != nil {
			return err
		}

		line, err := rl.Readline()
		switch {
		case errors.Is(err, readline.ErrInterrupt), errors.Is(err, io.EOF):
			return errStopped
		case err != nil:
			if ctx.Err() != nil {
				return errStopped
			}
			return fmt.Errorf("readline error: %w", err)
		}

		if ctx.Err() != nil {
			return errStopped
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "q", "quit", "exit":
			return errStopped
		}
	}
}

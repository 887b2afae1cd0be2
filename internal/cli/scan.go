package cli

import (
	"github.com/spf13/cobra"
)

func newScanCmd(opts *rootOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single scan and exit",
		Long: `Run one scan cycle: read the established connections, resolve every
remote address and print the enriched list ordered by PID.

Examples:
  netwatch scan
  netwatch scan -o json --only-suspicious
  sudo netwatch scan --dns-server 1.1.1.1`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := out.apply(cmd, cfg); err != nil {
				return err
			}

			mon, _, err := newMonitor(cfg, logger)
			if err != nil {
				return err
			}
			writer, err := newCycleWriter(cmd.OutOrStdout(), cfg.Output)
			if err != nil {
				return err
			}

			res, err := mon.Scan(cmd.Context())
			if err != nil {
				return explainFetchError(cmd.ErrOrStderr(), err)
			}
			return writer.Write(res)
		},
	}

	out.addFlags(cmd, true)
	return cmd
}

package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/netwatch/internal/classifier"
	"github.com/coral-mesh/netwatch/internal/render"
)

// lookupRow is one answer of the resolve command.
type lookupRow struct {
	IP         string `header:"IP" json:"ip"`
	Domain     string `header:"Domain" json:"domain"`
	State      string `header:"State" json:"state"`
	Suspicious bool   `header:"Suspicious" json:"suspicious"`
}

func (r lookupRow) Flagged() bool { return r.Suspicious }

func newResolveCmd(opts *rootOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "resolve <ip>...",
		Short: "Reverse-resolve addresses the way scans do",
		Long: `Resolve each address concurrently with the configured backend, timeout and
concurrency limit, then classify the resulting domain.

Examples:
  netwatch resolve 8.8.8.8 1.1.1.1
  netwatch resolve --dns-server 9.9.9.9 -o json 2606:4700::1111`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load(cmd)
			if err != nil {
				return err
			}
			if err := out.apply(cmd, cfg); err != nil {
				return err
			}

			cls, err := classifier.New(cfg.Classifier.Patterns)
			if err != nil {
				return err
			}
			r := newResolver(cfg, logger)
			r.ResolveMany(cmd.Context(), args)

			rows := make([]lookupRow, 0, len(args))
			for _, ip := range args {
				res := r.Resolve(cmd.Context(), ip)
				rows = append(rows, lookupRow{
					IP:         ip,
					Domain:     res.Domain,
					State:      res.State.String(),
					Suspicious: cls.IsSuspicious(res.Domain),
				})
			}

			return writeRows(cmd, cfg.Output.Format, rows)
		},
	}

	out.addFlags(cmd, false)
	return cmd
}

func writeRows(cmd *cobra.Command, format string, rows interface{}) error {
	f, err := render.ParseFormat(format)
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	formatter, err := render.NewFormatter(f, f == render.FormatTable && render.ColorEnabled(w))
	if err != nil {
		return err
	}
	return formatter.Format(rows, w)
}

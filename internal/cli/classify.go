package cli

import (
	"github.com/spf13/cobra"

	"github.com/coral-mesh/netwatch/internal/classifier"
)

type verdictRow struct {
	Domain     string `header:"Domain" json:"domain"`
	Suspicious bool   `header:"Suspicious" json:"suspicious"`
	Pattern    string `header:"Matched" json:"pattern,omitempty"`
}

func (r verdictRow) Flagged() bool { return r.Suspicious }

func newClassifyCmd(opts *rootOptions) *cobra.Command {
	var out outputOptions

	cmd := &cobra.Command{
		Use:   "classify <domain>...",
		Short: "Check domains against the suspicious patterns",
		Long: `Report whether each domain would be flagged and which pattern matched
first. Patterns come from the config file or the built-in list.

Examples:
  netwatch classify mail.google.com tracker7123456.xyz`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := opts.load(cmd)
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

			rows := make([]verdictRow, 0, len(args))
			for _, domain := range args {
				pattern, ok := cls.Match(domain)
				rows = append(rows, verdictRow{Domain: domain, Suspicious: ok, Pattern: pattern})
			}

			return writeRows(cmd, cfg.Output.Format, rows)
		},
	}

	out.addFlags(cmd, false)
	return cmd
}

// Package cli implements the netwatch command line.
package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/coral-mesh/netwatch/pkg/version"
)

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:   "netwatch",
		Short: "Netwatch - live view of established connections and who they talk to",
		Long: `Netwatch lists the established TCP/UDP connections of this host, resolves
each remote address to a domain name and flags domains that look suspicious.

Reverse lookups run only for connections that are new since the previous
scan and every answer is cached, so refreshing is cheap.

Seeing other users' sockets usually requires root.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	opts.addFlags(rootCmd)

	rootCmd.AddCommand(newWatchCmd(opts))
	rootCmd.AddCommand(newScanCmd(opts))
	rootCmd.AddCommand(newResolveCmd(opts))
	rootCmd.AddCommand(newClassifyCmd(opts))
	rootCmd.AddCommand(newConfigCmd(opts))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

func newVersionCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		RunE: func(cmd *cobra.Command, args []string) error {
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(version.Get())
			}
			cmd.Printf("Netwatch version %s\n", version.Version)
			cmd.Printf("Git commit: %s\n", version.GitCommit)
			cmd.Printf("Build date: %s\n", version.BuildDate)
			cmd.Printf("Go version: %s\n", version.GoVersion)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print version information as JSON")

	return cmd
}

// Execute runs the root command
func Execute() error {
	return NewRootCmd().Execute()
}

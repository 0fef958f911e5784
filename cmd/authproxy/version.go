package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"simplesalt/authproxy/pkg/cli"
)

// Build metadata, set with -ldflags "-X main.Version=...".
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		formatter, format, err := outputFormatter()
		if err != nil {
			return err
		}

		info := cli.Record{
			{Key: "commit", Value: GitCommit},
			{Key: "build_date", Value: BuildDate},
			{Key: "go_version", Value: runtime.Version()},
			{Key: "platform", Value: runtime.GOOS + "/" + runtime.GOARCH},
		}
		out := cmd.OutOrStdout()
		if format == cli.FormatJSON {
			return formatter.FormatTo(out, append(cli.Record{{Key: "version", Value: Version}}, info...))
		}
		fmt.Fprintf(out, "authproxy %s\n", Version)
		return formatter.FormatTo(out, info)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}

package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"simplesalt/authproxy/pkg/cli"
	"simplesalt/authproxy/pkg/config"
)

var (
	// Global flags
	cfgFile      string
	outputFormat string
)

var rootCmd = &cobra.Command{
	Use:   "authproxy",
	Short: "Authenticating reverse proxy for internal applications",
	Long: `authproxy sits between internal web applications and third-party APIs.

Each request is authenticated with a bearer token or a signed access
assertion, matched against a remotely hosted routing document, given the
upstream API credentials named by the matching rule and forwarded.

Configuration is read from a YAML file (--config) and AUTHPROXY_*
environment variables. Without --config only defaults and the environment
are used.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text", "output format: text, json")
}

// loadConfig loads the configuration named by --config with environment
// overrides applied.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfigWithEnvOverrides(cfgFile)
	if err != nil {
		return nil, cli.NewConfigError(cfgFile, err)
	}
	return cfg, nil
}

func outputFormatter() (cli.Formatter, cli.OutputFormat, error) {
	format, err := cli.ParseOutputFormat(outputFormat)
	if err != nil {
		return nil, "", err
	}
	return cli.NewFormatter(format), format, nil
}

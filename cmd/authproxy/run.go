package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"simplesalt/authproxy/pkg/cli"
	"simplesalt/authproxy/pkg/config"
	"simplesalt/authproxy/pkg/server"
	"simplesalt/authproxy/pkg/telemetry/logging"
	"simplesalt/authproxy/pkg/telemetry/tracing"
)

var runFlags struct {
	listenAddress string
	logLevel      string
	dryRun        bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the proxy server",
	Long: `Start the proxy server with the specified configuration.

The proxy listener authenticates and forwards every request. Health checks
and Prometheus metrics are served on the separate admin listener.

Examples:
  # Start with defaults and AUTHPROXY_* environment variables
  authproxy run

  # Start with a config file (the log level reloads when it changes)
  authproxy run --config /etc/authproxy/config.yaml

  # Override listen address
  authproxy run --listen 0.0.0.0:8080

  # Build every component without starting listeners
  authproxy run --dry-run`,
	RunE: runServer,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runFlags.listenAddress, "listen", "l", "", "override listen address")
	runCmd.Flags().StringVar(&runFlags.logLevel, "log-level", "", "override log level (debug, info, warn, error)")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "validate config without starting server")
}

func runServer(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// Apply flag overrides
	if runFlags.listenAddress != "" {
		cfg.Proxy.ListenAddress = runFlags.listenAddress
	}
	if runFlags.logLevel != "" {
		cfg.Telemetry.Logging.Level = runFlags.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return cli.NewConfigError(cfgFile, err)
	}

	out := cmd.OutOrStdout()
	logCfg := logging.ConfigFrom(cfg.Telemetry.Logging)
	if runFlags.dryRun {
		logCfg.Writer = io.Discard
	}
	logger, err := logging.New(logCfg)
	if err != nil {
		return cli.NewConfigError(cfgFile, err)
	}
	slog.SetDefault(logger.Logger)
	tracing.Version = Version

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

	srv, err := server.New(ctx, cfg, server.Options{
		ConfigPath: cfgFile,
		Version:    Version,
		Commit:     GitCommit,
		BuildTime:  BuildDate,
		Logger:     logger,
	})
	if err != nil {
		return cli.NewCommandError("run", err)
	}

	if runFlags.dryRun {
		if err := srv.Close(); err != nil {
			return cli.NewCommandError("run", err)
		}
		fmt.Fprintln(out, "✓ Configuration valid")
		return nil
	}

	printBanner(out, cfg)

	if err := srv.Start(ctx); err != nil {
		return cli.NewCommandError("run", err)
	}

	fmt.Fprintln(out, "✓ Server stopped")
	return nil
}

func printBanner(out io.Writer, cfg *config.Config) {
	fmt.Fprintf(out, "authproxy v%s\n", Version)
	if cfgFile != "" {
		fmt.Fprintf(out, "Loaded configuration from: %s\n", cfgFile)
	}
	fmt.Fprintf(out, "✓ Proxy listening on %s (%s mode)\n", cfg.Proxy.ListenAddress, cfg.Proxy.Mode)
	if addr := cfg.Telemetry.AdminAddress; addr != server.AdminDisabled {
		fmt.Fprintf(out, "✓ Health endpoint: http://%s/healthz\n", addr)
		if config.IsEnabled(cfg.Telemetry.Metrics.Enabled, true) {
			fmt.Fprintf(out, "✓ Metrics endpoint: http://%s%s\n", addr, cfg.Telemetry.Metrics.Path)
		}
	}
	fmt.Fprintln(out, "\nPress Ctrl+C to stop")
}

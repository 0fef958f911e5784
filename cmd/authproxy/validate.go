package main

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/spf13/cobra"

	"simplesalt/authproxy/pkg/cli"
	"simplesalt/authproxy/pkg/config"
	"simplesalt/authproxy/pkg/routing"
)

var validateFlags struct {
	routes bool
}

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the configuration",
	Long: `Load the configuration, apply defaults and environment overrides, and
report every invalid field.

With --routes the routing document is also fetched and parsed, and rules
whose pattern does not compile are listed.

Examples:
  authproxy validate --config config.yaml
  authproxy validate --config config.yaml --routes --output json`,
	RunE: validateConfig,
}

func init() {
	rootCmd.AddCommand(validateCmd)

	validateCmd.Flags().BoolVar(&validateFlags.routes, "routes", false, "also fetch and check the routing document")
}

func validateConfig(cmd *cobra.Command, args []string) error {
	f, _, err := outputFormatter()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	rec := configSummary(cfg)
	if validateFlags.routes {
		src := routing.NewSource(cfg.Routing, cfg.Proxy.UserAgent)
		rules, err := src.Fetch(context.Background())
		if err != nil {
			return cli.NewCommandError("validate", err)
		}
		rec = append(rec, cli.Field{Key: "rules", Value: len(rules)})
		if bad := invalidPatterns(rules); len(bad) > 0 {
			rec = append(rec, cli.Field{Key: "invalid_patterns", Value: bad})
		}
	}

	return f.FormatTo(cmd.OutOrStdout(), rec)
}

func configSummary(cfg *config.Config) cli.Record {
	source := cfg.Routing.URL
	if cfg.Routing.File != "" {
		source = cfg.Routing.File
	}
	return cli.Record{
		{Key: "status", Value: "valid"},
		{Key: "mode", Value: cfg.Proxy.Mode},
		{Key: "listen_address", Value: cfg.Proxy.ListenAddress},
		{Key: "admin_address", Value: cfg.Telemetry.AdminAddress},
		{Key: "routing_source", Value: source},
		{Key: "match_policy", Value: routing.PolicyForMode(cfg.Proxy.Mode, cfg.Routing.MatchPolicy)},
		{Key: "credential_sources", Value: strings.Join(cfg.Credentials.Sources, ",")},
		{Key: "kv_backend", Value: cfg.KV.Backend},
		{Key: "assertion_verifier", Value: cfg.Auth.Verifier},
		{Key: "tracing", Value: cfg.Telemetry.Tracing.Enabled},
	}
}

// invalidPatterns lists the pattern rules the resolver will skip.
func invalidPatterns(rules []routing.Rule) []string {
	var bad []string
	for i, r := range rules {
		if r.Pattern == "" {
			continue
		}
		if _, err := regexp.Compile(r.Pattern); err != nil {
			bad = append(bad, fmt.Sprintf("#%d %s", i, r.Pattern))
		}
	}
	return bad
}

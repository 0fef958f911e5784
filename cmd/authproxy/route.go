package main

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/spf13/cobra"

	"simplesalt/authproxy/pkg/cli"
	"simplesalt/authproxy/pkg/config"
	"simplesalt/authproxy/pkg/routing"
)

var routeCmd = &cobra.Command{
	Use:   "route [host|url|path]",
	Short: "Resolve a request against the routing document",
	Long: `Fetch the configured routing document and show the rule a request would
use. In domain mode the argument is a hostname or a full URL; in path mode
it is a request path, optionally with a query string, and the upstream URL
the proxy would call is shown as well.

Without an argument every rule in the document is listed.

Examples:
  authproxy route api.example.com
  authproxy route https://api.example.com/v1/items
  authproxy route /api/weather/today?city=Utrecht --output json`,
	Args: cobra.MaximumNArgs(1),
	RunE: resolveRoute,
}

func init() {
	rootCmd.AddCommand(routeCmd)
}

func resolveRoute(cmd *cobra.Command, args []string) error {
	f, _, err := outputFormatter()
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	src := routing.NewSource(cfg.Routing, cfg.Proxy.UserAgent)
	rules, err := src.Fetch(context.Background())
	if err != nil {
		return cli.NewCommandError("route", err)
	}

	if len(args) == 0 {
		records := make([]cli.Record, 0, len(rules))
		for _, r := range rules {
			records = append(records, ruleRecord(r))
		}
		return f.FormatTo(cmd.OutOrStdout(), records)
	}

	resolver, err := routing.NewResolver(routing.PolicyForMode(cfg.Proxy.Mode, cfg.Routing.MatchPolicy), nil)
	if err != nil {
		return err
	}

	byPath := cfg.Proxy.Mode == config.ModePath
	key, u, err := routeKey(args[0], byPath)
	if err != nil {
		return err
	}

	rule, ok := resolver.Resolve(rules, key)
	if !ok {
		return cli.NewCommandError("route", fmt.Errorf("no routing rule matches %q", key))
	}

	rec := ruleRecord(*rule)
	if byPath {
		target, err := routing.PathTarget(*rule, u.Path, u.RawQuery)
		if err != nil {
			return cli.NewCommandError("route", err)
		}
		rec = append(rec, cli.Field{Key: "upstream", Value: target.String()})
	}
	return f.FormatTo(cmd.OutOrStdout(), rec)
}

// routeKey derives the lookup key the proxy would use for arg.
func routeKey(arg string, byPath bool) (string, *url.URL, error) {
	if byPath {
		u, err := url.Parse(arg)
		if err != nil {
			return "", nil, fmt.Errorf("invalid path %q: %w", arg, err)
		}
		return u.Path, u, nil
	}

	if !strings.Contains(arg, "://") {
		return strings.ToLower(arg), nil, nil
	}
	u, err := url.Parse(arg)
	if err != nil || u.Hostname() == "" {
		return "", nil, fmt.Errorf("invalid URL %q", arg)
	}
	return strings.ToLower(u.Hostname()), u, nil
}

func ruleRecord(r routing.Rule) cli.Record {
	rec := cli.Record{}
	if r.Domain != "" {
		rec = append(rec, cli.Field{Key: "domain", Value: r.Domain})
	}
	if r.Pattern != "" {
		rec = append(rec, cli.Field{Key: "pattern", Value: r.Pattern})
	}
	if r.Target != "" {
		rec = append(rec, cli.Field{Key: "target", Value: r.Target})
	}
	return append(rec,
		cli.Field{Key: "secret_name", Value: r.SecretName},
		cli.Field{Key: "auth_type", Value: r.AuthType.String()},
	)
}

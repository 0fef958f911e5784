package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"simplesalt/authproxy/pkg/cli"
	"simplesalt/authproxy/pkg/kvstore"
)

var kvFlags struct {
	ttl time.Duration
}

var kvCmd = &cobra.Command{
	Use:   "kv",
	Short: "Inspect and seed the fallback key/value store",
	Long: `Read and write the key/value store the proxy falls back to when a binding
is not configured. Secrets live under secret_<NAME> and the bearer token
table under the key configured by auth.token_table_key.

Only persistent backends (sqlite, redis) can be used from the command line.

Examples:
  authproxy kv put secret_WEATHER_API '{"apiKey":"abc","headers":{"X-Version":"2"}}'
  authproxy kv put oauth2_tokens - < tokens.json
  authproxy kv put session_probe ok --ttl 10m
  authproxy kv get secret_WEATHER_API
  authproxy kv delete secret_WEATHER_API`,
}

var kvGetCmd = &cobra.Command{
	Use:   "get <key>",
	Short: "Print the value stored under a key",
	Args:  cobra.ExactArgs(1),
	RunE:  kvGet,
}

var kvPutCmd = &cobra.Command{
	Use:   "put <key> <value|->",
	Short: "Store a value (\"-\" reads it from stdin)",
	Args:  cobra.ExactArgs(2),
	RunE:  kvPut,
}

var kvDeleteCmd = &cobra.Command{
	Use:   "delete <key>",
	Short: "Remove a key",
	Args:  cobra.ExactArgs(1),
	RunE:  kvDelete,
}

func init() {
	rootCmd.AddCommand(kvCmd)
	kvCmd.AddCommand(kvGetCmd, kvPutCmd, kvDeleteCmd)

	kvPutCmd.Flags().DurationVar(&kvFlags.ttl, "ttl", 0, "expire the value after this duration (0 keeps it)")
}

func openStore(ctx context.Context) (kvstore.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	switch cfg.KV.Backend {
	case "none":
		return nil, errors.New("kv backend is disabled")
	case "", "memory":
		return nil, fmt.Errorf("kv backend %q does not persist between commands", "memory")
	}
	store, err := kvstore.New(ctx, cfg.KV)
	if err != nil {
		return nil, cli.NewCommandError("kv", err)
	}
	return store, nil
}

func kvGet(cmd *cobra.Command, args []string) error {
	f, format, err := outputFormatter()
	if err != nil {
		return err
	}
	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	value, err := store.Get(ctx, args[0])
	if errors.Is(err, kvstore.ErrNotFound) {
		return cli.NewCommandError("kv get", fmt.Errorf("key %q not found", args[0]))
	}
	if err != nil {
		return cli.NewCommandError("kv get", err)
	}

	if format == cli.FormatText {
		_, err = fmt.Fprintln(cmd.OutOrStdout(), value)
		return err
	}
	return f.FormatTo(cmd.OutOrStdout(), cli.Record{
		{Key: "key", Value: args[0]},
		{Key: "value", Value: value},
	})
}

func kvPut(cmd *cobra.Command, args []string) error {
	if kvFlags.ttl < 0 {
		return fmt.Errorf("--ttl must not be negative")
	}

	value := args[1]
	if value == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("failed to read value from stdin: %w", err)
		}
		value = strings.TrimRight(string(data), "\r\n")
	}

	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Put(ctx, args[0], value, kvFlags.ttl); err != nil {
		return cli.NewCommandError("kv put", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Stored %s\n", args[0])
	return nil
}

func kvDelete(cmd *cobra.Command, args []string) error {
	ctx := context.Background()
	store, err := openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	if err := store.Delete(ctx, args[0]); err != nil {
		return cli.NewCommandError("kv delete", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "✓ Deleted %s\n", args[0])
	return nil
}

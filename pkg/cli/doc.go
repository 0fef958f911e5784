/*
Package cli provides helpers shared by the authproxy commands.

Output Formatting:

Commands describe their result as a Record and let the formatter selected
by --output render it:

	rec := cli.Record{
		{Key: "domain", Value: rule.Domain},
		{Key: "secret_name", Value: rule.SecretName},
	}
	if err := cli.NewFormatter(cli.FormatJSON).FormatTo(cmd.OutOrStdout(), rec); err != nil {
		return err
	}

Text output aligns keys in a column; JSON output is an object keyed by the
record keys in order.

Signal Handling:

For graceful shutdown on SIGINT/SIGTERM:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()
*/
package cli

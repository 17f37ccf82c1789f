/*
Package cli provides helpers shared by the relay commands.

Output formatting:

	formatter := cli.NewFormatter(cli.FormatText)
	formatter.FormatTo(os.Stdout, cli.Rows{
		{Key: "active", Value: "12"},
		{Key: "expired", Value: "3"},
	})

Rows render as an aligned two-column table in text mode and as a JSON
object in JSON mode; any other value is encoded as-is.

Signal handling:

	ctx, stop := cli.SetupSignalHandler()
	defer stop()

Errors:

ConfigError and CommandError wrap failures with the field or command they
belong to. ExitCode maps an error to the process exit status.
*/
package cli

package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/bgunnarsson/sqlrest/internal/app"
	"github.com/bgunnarsson/sqlrest/internal/config"
)

// targetOptions select a database other than the configured SQLite file.
type targetOptions struct {
	Driver string
	DSN    string
}

func (o *targetOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Driver, "driver", "", "Database driver (sqlite|postgres|mysql|mssql)")
	cmd.Flags().StringVar(&o.DSN, "dsn", "", "Connection string, or SQLite path (default: the configured database)")
	_ = cmd.RegisterFlagCompletionFunc("driver", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"sqlite", "postgres", "mysql", "mssql"}, cobra.ShellCompDirectiveNoFileComp
	})
}

func (o *targetOptions) target() app.Target {
	return app.Target{Driver: app.Driver(o.Driver), DSN: o.DSN}
}

// outputOptions control how results are written.
type outputOptions struct {
	Format string
	Limit  int
}

func (o *outputOptions) register(cmd *cobra.Command, limit bool) {
	cmd.Flags().StringVarP(&o.Format, "format", "f", "", "Output format (table|json, default: table on a terminal)")
	if limit {
		cmd.Flags().IntVar(&o.Limit, "limit", 0, "Maximum rows to print (0 for all)")
	}
}

func (o *outputOptions) output(w io.Writer) (app.Output, error) {
	switch o.Format {
	case app.FormatAuto, app.FormatTable, app.FormatJSON:
	default:
		return app.Output{}, fmt.Errorf("unknown output format %q", o.Format)
	}
	return app.Output{W: w, Format: o.Format, TTY: isTerminal(w), Limit: o.Limit}, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newVersionCommand(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, _ []string) {
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "sqlrest v%s (%s)\n", version, GitCommit)
		},
	}
}

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the database over HTTP",
		Example: `  # Serve ./db.sqlite on :8000
  sqlrest serve

  # Serve another file on another port
  sqlrest serve --database app.db --listen 127.0.0.1:9000`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			return app.RunServe(ctx, getConfig(ctx), config.GetLogger(ctx))
		},
	}
	cmd.Flags().String("listen", "", "Address to listen on (default: :8000)")
	return cmd
}

func newTablesCommand() *cobra.Command {
	var (
		target targetOptions
		out    outputOptions
	)
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "List tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			o, err := out.output(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return app.RunTables(ctx, getConfig(ctx), target.target(), o, config.GetLogger(ctx))
		},
	}
	target.register(cmd)
	out.register(cmd, false)
	return cmd
}

func newDescribeCommand() *cobra.Command {
	var out outputOptions
	cmd := &cobra.Command{
		Use:   "describe <table>",
		Short: "Show the columns of a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := out.output(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return app.RunDescribe(ctx, getConfig(ctx), app.Target{}, args[0], o, config.GetLogger(ctx))
		},
	}
	out.register(cmd, false)
	return cmd
}

func newQueryCommand() *cobra.Command {
	var (
		target targetOptions
		out    outputOptions
	)
	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run a query and print its rows",
		Long: `Run one SQL statement and print its rows as they arrive.

Without a statement the tables are listed.`,
		Example: `  sqlrest query "select * from users"
  sqlrest query --driver postgres --dsn postgres://localhost/app "select 1"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			o, err := out.output(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			var query string
			if len(args) == 1 {
				query = args[0]
			}
			ctx := cmd.Context()
			return app.RunQuery(ctx, getConfig(ctx), target.target(), query, o, config.GetLogger(ctx))
		},
	}
	target.register(cmd)
	out.register(cmd, true)
	return cmd
}

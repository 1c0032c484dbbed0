package cmd

import (
	"context"
	"errors"
	"os"

	"github.com/spf13/cobra"

	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
	"github.com/felixgeelhaar/stockbook/internal/exitcode"
	"github.com/felixgeelhaar/stockbook/internal/ux"
)

func newRootCmd(a *App) *cobra.Command {
	root := &cobra.Command{
		Use:   "stockbook",
		Short: "Inventory ledger client",
		Long: `stockbook signs you in to an inventory backend and works with its clients,
products, warehouses and transactions from the terminal or a local web console.

The session is kept in ~/.stockbook/session (or Redis, see 'stockbook config show')
and is dropped as soon as the server rejects it.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.bootstrap(cmd)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.flags.configPath, "config", "", "config file (default $HOME/.stockbook/config.yaml)")
	pf.StringVarP(&a.flags.output, "output", "o", "text", "output format: text, json or yaml")
	pf.BoolVar(&a.flags.noColor, "no-color", false, "disable colored output")
	pf.BoolVarP(&a.flags.verbose, "verbose", "v", false, "log debug output to stderr")
	pf.String("api-url", "", "backend base URL (env STOCKBOOK_API_URL)")
	pf.String("api-timeout", "", "request timeout, e.g. 10s or 10000 (milliseconds)")
	pf.String("session-backend", "", "session store: file, redis or memory")
	pf.String("session-dir", "", "directory of the file session store")
	pf.String("log-level", "", "log level: debug, info, warn or error")
	pf.String("log-format", "", "log format: text or json")

	root.AddCommand(
		newAuthCmd(a),
		newResourceCmd(a, "clients", "Work with clients", resourceClients),
		newResourceCmd(a, "products", "Work with products", resourceProducts),
		newResourceCmd(a, "warehouses", "Work with warehouses", resourceWarehouses),
		newResourceCmd(a, "transactions", "Work with purchases and sales", resourceTransactions),
		newServeCmd(a),
		newConfigCmd(a),
		newVersionCmd(a),
	)
	return root
}

// Execute runs the CLI with args and returns the command error.
func Execute(ctx context.Context, args []string, opts Options) error {
	a := newApp(opts)
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetIn(a.opts.In)
	root.SetOut(a.opts.Out)
	root.SetErr(a.opts.Err)

	cmd, err := root.ExecuteContextC(ctx)
	if cmd != nil {
		a.Metrics.RecordCommand(cmd.CommandPath(), err == nil)
	}
	if err != nil {
		a.Logger.WithError(err).Debug("command failed")
		a.Metrics.RecordError(errorCode(err))
	}
	if cerr := a.close(); err == nil {
		err = cerr
	}
	return err
}

// Run executes the CLI, prints any error and returns the exit code.
func Run(ctx context.Context, args []string, opts Options) int {
	opts = opts.withDefaults()
	err := Execute(ctx, args, opts)
	if err == nil {
		return exitcode.Success
	}
	if ctx.Err() != nil && errors.Is(ctx.Err(), context.Canceled) {
		return exitcode.Interrupted
	}
	ux.PrintError(opts.Err, err, hasNoColor(args))
	return exitcode.DetermineExitCode(err)
}

func errorCode(err error) string {
	var coded *sberrors.StockbookError
	if errors.As(err, &coded) {
		return string(coded.Code)
	}
	return ""
}

func hasNoColor(args []string) bool {
	if os.Getenv("NO_COLOR") != "" {
		return true
	}
	for _, a := range args {
		if a == "--no-color" {
			return true
		}
	}
	return false
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stockbook/internal/version"
)

func newVersionCmd(a *App) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Long: `Print version information including version number, git commit,
build date, Go version, and platform.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.GetInfo()
			if a.flags.output == "json" || a.flags.output == "yaml" {
				f, err := a.formatter()
				if err != nil {
					return err
				}
				return f.Format(info)
			}
			if verbose {
				fmt.Fprintln(a.opts.Out, info.String())
				return nil
			}
			fmt.Fprintf(a.opts.Out, "stockbook %s\n", info.Short())
			return nil
		},
	}
	cmd.Flags().BoolVar(&verbose, "long", false, "show commit, build date and platform")
	return annotate(cmd, annotationSession, sessionBare)
}

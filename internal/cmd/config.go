package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stockbook/internal/config"
	sberrors "github.com/felixgeelhaar/stockbook/internal/errors"
)

func newConfigCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect and create the configuration file",
		Long: `Configuration is read from, in increasing precedence: built-in defaults,
~/.stockbook/config.yaml, STOCKBOOK_* environment variables and flags.`,
	}
	cmd.AddCommand(newConfigShowCmd(a), newConfigInitCmd(a))
	return cmd
}

func newConfigShowCmd(a *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			data, err := a.Config.YAML()
			if err != nil {
				return err
			}
			st := a.styles()
			if a.Config.File != "" {
				fmt.Fprintln(a.opts.Out, st.Muted.Render("# "+a.Config.File))
			} else {
				fmt.Fprintln(a.opts.Out, st.Muted.Render("# no config file, defaults and environment only"))
			}
			_, err = a.opts.Out.Write(data)
			return err
		},
	}
	return annotate(cmd, annotationSession, sessionNone)
}

func newConfigInitCmd(a *App) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := a.flags.configPath
			if path == "" {
				path = config.DefaultPath()
			}

			if !force {
				if _, err := os.Stat(path); err == nil {
					ok, perr := a.opts.Prompter.Confirm(fmt.Sprintf("Overwrite %s?", path), false)
					if perr == nil && !ok {
						fmt.Fprintln(a.opts.Out, "Aborted.")
						return nil
					}
					force = perr == nil
				}
			}

			if err := config.WriteDefault(path, force); err != nil {
				if sberrors.HasCode(err, sberrors.ErrCodeConfigWrite) {
					return err
				}
				return sberrors.Wrap(sberrors.ErrCodeConfigWrite, "failed to write config", err)
			}
			fmt.Fprintf(a.opts.Out, "%s Wrote %s\n", a.styles().Success.Render("✓"), path)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return annotate(cmd, annotationSession, sessionBare)
}

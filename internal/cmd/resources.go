package cmd

import (
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/felixgeelhaar/stockbook/internal/backend"
	"github.com/felixgeelhaar/stockbook/internal/domain"
	"github.com/felixgeelhaar/stockbook/internal/ux"
)

// resourceSpec binds one backend collection to its table rendering.
type resourceSpec[T any] struct {
	pick  func(*backend.API) *backend.Resource[T]
	table func([]T) ux.Tabular
}

var (
	resourceClients = resourceSpec[domain.Client]{
		pick:  func(api *backend.API) *backend.Resource[domain.Client] { return api.Clients },
		table: func(v []domain.Client) ux.Tabular { return ux.ClientTable(v) },
	}
	resourceProducts = resourceSpec[domain.Product]{
		pick:  func(api *backend.API) *backend.Resource[domain.Product] { return api.Products },
		table: func(v []domain.Product) ux.Tabular { return ux.ProductTable(v) },
	}
	resourceWarehouses = resourceSpec[domain.Warehouse]{
		pick:  func(api *backend.API) *backend.Resource[domain.Warehouse] { return api.Warehouses },
		table: func(v []domain.Warehouse) ux.Tabular { return ux.WarehouseTable(v) },
	}
	resourceTransactions = resourceSpec[domain.Transaction]{
		pick:  func(api *backend.API) *backend.Resource[domain.Transaction] { return api.Transactions },
		table: func(v []domain.Transaction) ux.Tabular { return ux.TransactionTable(v) },
	}
)

func newResourceCmd[T any](a *App, name, short string, spec resourceSpec[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   name,
		Short: short,
	}
	cmd.AddCommand(
		newListCmd(a, name, spec),
		newGetCmd(a, name, spec),
		newDeleteCmd(a, name, spec),
	)
	return cmd
}

func newListCmd[T any](a *App, name string, spec resourceSpec[T]) *cobra.Command {
	var filters map[string]string
	cmd := &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List " + name,
		Example: fmt.Sprintf("  stockbook %s list\n  stockbook %s list --filter page=2 -o json", name, name),
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			params := url.Values{}
			for k, v := range filters {
				params.Set(k, v)
			}
			items, err := spec.pick(a.API).List(a.ctx(cmd), params)
			if err != nil {
				return fmt.Errorf("list %s: %w", name, err)
			}
			return a.print(items, spec.table(items))
		},
	}
	cmd.Flags().StringToStringVar(&filters, "filter", nil, "query parameters passed to the backend (key=value)")
	return requiresAuth(cmd)
}

func newGetCmd[T any](a *App, name string, spec resourceSpec[T]) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get <id>",
		Short: "Show one of the " + name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			item, err := spec.pick(a.API).Get(a.ctx(cmd), id)
			if err != nil {
				return fmt.Errorf("get %s %d: %w", name, id, err)
			}
			return a.print(item, spec.table([]T{item}))
		},
	}
	return requiresAuth(cmd)
}

func newDeleteCmd[T any](a *App, name string, spec resourceSpec[T]) *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete one of the " + name,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if !yes {
				ok, err := a.opts.Prompter.Confirm(fmt.Sprintf("Delete %s %d?", name, id), false)
				if err != nil {
					return notInteractive(err, "Pass --yes to delete without confirmation")
				}
				if !ok {
					fmt.Fprintln(a.opts.Out, "Aborted.")
					return nil
				}
			}
			if err := spec.pick(a.API).Delete(a.ctx(cmd), id); err != nil {
				return fmt.Errorf("delete %s %d: %w", name, id, err)
			}
			fmt.Fprintf(a.opts.Out, "%s Deleted %s %d\n", a.styles().Success.Render("✓"), name, id)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip the confirmation prompt")
	return requiresAuth(cmd)
}

// print renders data as JSON/YAML, or tab as a table in text mode.
func (a *App) print(data any, tab ux.Tabular) error {
	f, err := a.formatter()
	if err != nil {
		return err
	}
	if a.flags.output == "" || a.flags.output == "text" {
		return f.Format(tab)
	}
	return f.Format(data)
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid argument %q: id must be a positive integer", s)
	}
	return id, nil
}

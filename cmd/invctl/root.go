package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"stocknest/internal/domain/collab"
	"stocknest/internal/domain/inventory/port"
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "invctl",
		Short:         "StockNest — inventory client with shared-inventory switching",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, _ []string) error { return cmd.Help() },
	}

	root.AddCommand(
		newContextCmd(),
		newUseCmd(),
		newItemsCmd(),
	)
	return root
}

// withApp 统一组装/收尾。
func withApp(fn func(ctx context.Context, a *app) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, _ []string) error {
		a, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()
		return fn(cmd.Context(), a)
	}
}

// newContextCmd 显示当前库存上下文：选中的库存、权限、可切换列表。
func newContextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context",
		Short: "Show the current inventory context",
		RunE: withApp(func(ctx context.Context, a *app) error {
			printContext(a)
			return nil
		}),
	}
}

func newUseCmd() *cobra.Command {
	var own bool
	cmd := &cobra.Command{
		Use:   "use [owner-id]",
		Short: "Switch to a shared inventory (or back to your own with --own)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if own || len(args) == 0 {
					a.mgr.SelectOwnInventory(ctx)
					printContext(a)
					return nil
				}

				ownerID := args[0]
				for _, g := range a.mgr.Snapshot().SharedInventories {
					if g.OwnerID == ownerID || g.Owner.Email == ownerID {
						a.mgr.SelectInventory(ctx, collab.GrantSelection(g))
						printContext(a)
						return nil
					}
				}
				return fmt.Errorf("no accepted share grant from %q", ownerID)
			})(c, args)
		},
	}
	cmd.Flags().BoolVar(&own, "own", false, "switch back to your own inventory")
	return cmd
}

func newItemsCmd() *cobra.Command {
	items := &cobra.Command{
		Use:   "items",
		Short: "Work with items in the selected inventory",
	}

	var query string
	list := &cobra.Command{
		Use:   "list",
		Short: "List items",
		RunE: withApp(func(ctx context.Context, a *app) error {
			result, err := a.api.ListItems(ctx, query)
			if err != nil {
				return err
			}
			for _, it := range result.Items {
				fmt.Printf("%-36s  %-24s  qty=%d\n", it.ID, it.Name, it.Quantity)
			}
			fmt.Printf("(%d items)\n", result.Total)
			return nil
		}),
	}
	list.Flags().StringVarP(&query, "query", "q", "", "filter by name")

	var name, category, location string
	var qty string
	add := &cobra.Command{
		Use:   "add",
		Short: "Add an item to the selected inventory",
		RunE: withApp(func(ctx context.Context, a *app) error {
			if !a.mgr.CanEdit() {
				return fmt.Errorf("current selection is read-only (viewer grant)")
			}
			quantity, _ := strconv.Atoi(qty)
			item, err := a.api.CreateItem(ctx, &port.Item{
				Name:     name,
				Category: category,
				Location: location,
				Quantity: quantity,
			})
			if err != nil {
				return err
			}
			fmt.Printf("created %s (%s)\n", item.Name, item.ID)
			return nil
		}),
	}
	add.Flags().StringVar(&name, "name", "", "item name (required)")
	add.Flags().StringVar(&category, "category", "", "item category")
	add.Flags().StringVar(&location, "location", "", "item location")
	add.Flags().StringVar(&qty, "qty", "0", "quantity")
	_ = add.MarkFlagRequired("name")

	rm := &cobra.Command{
		Use:   "rm <id>",
		Short: "Remove an item from the selected inventory",
		Args:  cobra.ExactArgs(1),
		RunE: func(c *cobra.Command, args []string) error {
			return withApp(func(ctx context.Context, a *app) error {
				if !a.mgr.CanEdit() {
					return fmt.Errorf("current selection is read-only (viewer grant)")
				}
				if err := a.api.DeleteItem(ctx, args[0]); err != nil {
					return err
				}
				fmt.Printf("removed %s\n", args[0])
				return nil
			})(c, args)
		},
	}

	items.AddCommand(list, add, rm)
	return items
}

func printContext(a *app) {
	state := a.mgr.Snapshot()
	sel := state.SelectedInventory
	if sel == nil {
		fmt.Println("no inventory selected (signed out?)")
		return
	}

	if sel.IsOwn {
		fmt.Printf("viewing: your own inventory (%s)\n", sel.Email)
	} else {
		fmt.Printf("viewing: %s's inventory (%s, role=%s)\n", displayName(sel.Name, sel.Email), sel.Email, sel.Role)
	}
	fmt.Printf("can edit: %v\n", a.mgr.CanEdit())

	if len(state.SharedInventories) > 0 {
		fmt.Println("\nshared with you:")
		for _, g := range state.SharedInventories {
			marker := " "
			if !sel.IsOwn && g.OwnerID == sel.ID {
				marker = "*"
			}
			fmt.Printf(" %s %-36s  %-24s  role=%s\n", marker, g.OwnerID, g.Owner.Email, g.Role)
		}
	}
}

func displayName(name, email string) string {
	if name != "" {
		return name
	}
	return email
}

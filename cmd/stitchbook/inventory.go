package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stitchbook/internal/types"
)

var (
	itemCategory string
	itemUnit     string
	itemMinStock float64
	lowOnly      bool
)

var inventoryCmd = &cobra.Command{
	Use:   "inventory",
	Short: "Manage fabric and supply stock",
}

var inventoryAddCmd = &cobra.Command{
	Use:   "add <name> <quantity>",
	Short: "Register a stock item",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		quantity, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid quantity %q", args[1])
		}
		rec, err := a.inventory.Add(cmd.Context(), args[0], itemCategory, itemUnit, quantity, itemMinStock)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", rec.StringField("name"), rec.ID)
		return nil
	},
}

var inventoryAdjustCmd = &cobra.Command{
	Use:   "adjust <id> <delta>",
	Short: "Change an item's quantity, negative to consume",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		delta, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return fmt.Errorf("invalid delta %q", args[1])
		}
		rec, err := a.inventory.AdjustStock(cmd.Context(), args[0], delta)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %g %s\n",
			rec.StringField("name"), rec.FloatField("quantity"), rec.StringField("unit"))
		return nil
	},
}

var inventoryListCmd = &cobra.Command{
	Use:   "list",
	Short: "List stock items",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var records []types.Record
		if lowOnly {
			records, err = a.inventory.LowStock(cmd.Context())
		} else {
			records, err = a.inventory.List(cmd.Context())
		}
		if err != nil {
			return err
		}

		w := newTabWriter(cmd.OutOrStdout())
		defer w.Flush()
		fmt.Fprintln(w, "ID\tNAME\tQUANTITY\tMIN\tSYNC")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%g %s\t%g\t%s\n",
				rec.ID,
				rec.StringField("name"),
				rec.FloatField("quantity"),
				rec.StringField("unit"),
				rec.FloatField("minStock"),
				syncState(rec),
			)
		}
		return nil
	},
}

func init() {
	inventoryAddCmd.Flags().StringVar(&itemCategory, "category", "", "Item category")
	inventoryAddCmd.Flags().StringVar(&itemUnit, "unit", "pcs", "Unit of measure")
	inventoryAddCmd.Flags().Float64Var(&itemMinStock, "min", 0, "Restock threshold (0 for default)")
	inventoryListCmd.Flags().BoolVar(&lowOnly, "low", false, "Only items at or below their threshold")

	inventoryCmd.AddCommand(inventoryAddCmd)
	inventoryCmd.AddCommand(inventoryAdjustCmd)
	inventoryCmd.AddCommand(inventoryListCmd)
	rootCmd.AddCommand(inventoryCmd)
}

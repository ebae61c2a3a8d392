package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stitchbook/internal/types"
)

var (
	orderPrice    float64
	orderDeadline string
	orderNotes    string
)

var orderCmd = &cobra.Command{
	Use:   "order",
	Short: "Manage garment orders",
}

var orderPlaceCmd = &cobra.Command{
	Use:   "place <customer-id> <garment-type>",
	Short: "Place a new order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var deadline time.Time
		if orderDeadline != "" {
			deadline, err = time.Parse("2006-01-02", orderDeadline)
			if err != nil {
				return fmt.Errorf("invalid deadline %q, want YYYY-MM-DD", orderDeadline)
			}
		}

		rec, err := a.orders.Place(cmd.Context(), args[0], args[1], orderPrice, deadline, orderNotes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Placed %s (%s)\n", rec.StringField("orderNumber"), rec.ID)
		return nil
	},
}

var orderListCmd = &cobra.Command{
	Use:   "list [customer-id]",
	Short: "List orders, optionally for one customer",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var records []types.Record
		if len(args) == 1 {
			records, err = a.orders.ForCustomer(cmd.Context(), args[0])
		} else {
			records, err = a.orders.List(cmd.Context())
		}
		if err != nil {
			return err
		}
		printOrders(cmd, records)
		return nil
	},
}

var orderStatusCmd = &cobra.Command{
	Use:   "set-status <id> <status>",
	Short: "Move an order through the workflow",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.orders.SetStatus(cmd.Context(), args[0], args[1])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s is now %s\n", rec.StringField("orderNumber"), rec.StringField("status"))
		return nil
	},
}

var orderDueCmd = &cobra.Command{
	Use:   "due",
	Short: "Show orders due within the next week",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.orders.UpcomingDeadlines(cmd.Context(), time.Now())
		if err != nil {
			return err
		}
		printOrders(cmd, records)
		return nil
	},
}

func printOrders(cmd *cobra.Command, records []types.Record) {
	w := newTabWriter(cmd.OutOrStdout())
	defer w.Flush()
	fmt.Fprintln(w, "NUMBER\tGARMENT\tSTATUS\tPRICE\tDEADLINE\tSYNC")
	for _, rec := range records {
		deadline := "-"
		if t, err := time.Parse(time.RFC3339Nano, rec.StringField("deadline")); err == nil {
			deadline = t.Local().Format("2006-01-02")
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%.2f\t%s\t%s\n",
			rec.StringField("orderNumber"),
			rec.StringField("garmentType"),
			rec.StringField("status"),
			rec.FloatField("price"),
			deadline,
			syncState(rec),
		)
	}
}

func init() {
	orderPlaceCmd.Flags().Float64Var(&orderPrice, "price", 0, "Agreed price")
	orderPlaceCmd.Flags().StringVar(&orderDeadline, "deadline", "", "Due date (YYYY-MM-DD)")
	orderPlaceCmd.Flags().StringVar(&orderNotes, "notes", "", "Free-form notes")

	orderCmd.AddCommand(orderPlaceCmd)
	orderCmd.AddCommand(orderListCmd)
	orderCmd.AddCommand(orderStatusCmd)
	orderCmd.AddCommand(orderDueCmd)
	rootCmd.AddCommand(orderCmd)
}

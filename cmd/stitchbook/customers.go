package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stitchbook/internal/types"
)

var (
	customerPhone   string
	customerEmail   string
	customerAddress string
	customerNotes   string
)

var customerCmd = &cobra.Command{
	Use:   "customer",
	Short: "Manage the customer book",
}

var customerAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.customers.Add(cmd.Context(), args[0], customerPhone, customerEmail, customerAddress, customerNotes)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s (%s)\n", rec.StringField("name"), rec.ID)
		return nil
	},
}

var customerListCmd = &cobra.Command{
	Use:   "list [query]",
	Short: "List or search customers",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		query := ""
		if len(args) == 1 {
			query = args[0]
		}
		records, err := a.customers.Search(cmd.Context(), query)
		if err != nil {
			return err
		}
		printCustomers(cmd, records)
		return nil
	},
}

var customerRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "Show the most recently added customers",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.customers.Recent(cmd.Context())
		if err != nil {
			return err
		}
		printCustomers(cmd, records)
		return nil
	},
}

var customerRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a customer",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.customers.Remove(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Removed")
		return nil
	},
}

func printCustomers(cmd *cobra.Command, records []types.Record) {
	w := newTabWriter(cmd.OutOrStdout())
	defer w.Flush()
	fmt.Fprintln(w, "ID\tNAME\tPHONE\tSYNC")
	for _, rec := range records {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			rec.ID,
			rec.StringField("name"),
			rec.StringField("phone"),
			syncState(rec),
		)
	}
}

// syncState renders the pending flag for table output.
func syncState(rec types.Record) string {
	if rec.PendingSync {
		return "pending"
	}
	return "synced"
}

func init() {
	customerAddCmd.Flags().StringVar(&customerPhone, "phone", "", "Phone number")
	customerAddCmd.Flags().StringVar(&customerEmail, "email", "", "Email address")
	customerAddCmd.Flags().StringVar(&customerAddress, "address", "", "Street address")
	customerAddCmd.Flags().StringVar(&customerNotes, "notes", "", "Free-form notes")

	customerCmd.AddCommand(customerAddCmd)
	customerCmd.AddCommand(customerListCmd)
	customerCmd.AddCommand(customerRecentCmd)
	customerCmd.AddCommand(customerRemoveCmd)
	rootCmd.AddCommand(customerCmd)
}

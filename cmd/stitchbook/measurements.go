package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stitchbook/internal/domain"
)

var measurementLabel string

var measureCmd = &cobra.Command{
	Use:   "measure",
	Short: "Manage customer measurements",
}

var measureRecordCmd = &cobra.Command{
	Use:   "record <customer-id> <field=value>...",
	Short: "Record a measurement set in centimeters",
	Long: "Record a new measurement set for a customer. Standard fields:\n  " +
		strings.Join(domain.MeasurementFields, ", "),
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		values := make(map[string]float64, len(args)-1)
		for _, pair := range args[1:] {
			name, raw, ok := strings.Cut(pair, "=")
			if !ok {
				return fmt.Errorf("invalid measurement %q, want field=value", pair)
			}
			v, err := strconv.ParseFloat(raw, 64)
			if err != nil {
				return fmt.Errorf("invalid value for %s: %q", name, raw)
			}
			values[name] = v
		}

		rec, err := a.measurements.Record(cmd.Context(), args[0], measurementLabel, values)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Recorded set %s\n", rec.ID)
		return nil
	},
}

var measureShowCmd = &cobra.Command{
	Use:   "show <customer-id>",
	Short: "Show the customer's current measurements",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		current, ok, err := a.measurements.Current(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(cmd.OutOrStdout(), "No measurements on file")
			return nil
		}

		out := cmd.OutOrStdout()
		if label := current.StringField("label"); label != "" {
			fmt.Fprintf(out, "Set: %s (taken %s)\n", label, current.CreatedAt.Local().Format("2006-01-02"))
		}
		w := newTabWriter(out)
		defer w.Flush()
		for _, field := range domain.MeasurementFields {
			if v, ok := current.Field(field).(float64); ok {
				fmt.Fprintf(w, "%s\t%g cm\n", field, v)
			}
		}
		return nil
	},
}

func init() {
	measureRecordCmd.Flags().StringVar(&measurementLabel, "label", "", "Label for this set")

	measureCmd.AddCommand(measureRecordCmd)
	measureCmd.AddCommand(measureShowCmd)
	rootCmd.AddCommand(measureCmd)
}

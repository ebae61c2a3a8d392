package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stitchbook/internal/types"
)

var (
	taskPriority string
	taskOrderID  string
	taskDue      string
	taskToday    bool
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage the workshop to-do list",
}

var taskAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var due time.Time
		if taskDue != "" {
			due, err = time.Parse("2006-01-02", taskDue)
			if err != nil {
				return fmt.Errorf("invalid due date %q, want YYYY-MM-DD", taskDue)
			}
		}

		rec, err := a.tasks.Add(cmd.Context(), args[0], taskPriority, taskOrderID, due)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added %q (%s)\n", rec.StringField("title"), rec.ID)
		return nil
	},
}

var taskListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tasks",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		var records []types.Record
		if taskToday {
			records, err = a.tasks.DueToday(cmd.Context(), time.Now())
		} else {
			records, err = a.tasks.List(cmd.Context())
		}
		if err != nil {
			return err
		}

		w := newTabWriter(cmd.OutOrStdout())
		defer w.Flush()
		fmt.Fprintln(w, "ID\tTITLE\tPRIORITY\tDONE\tSYNC")
		for _, rec := range records {
			done := " "
			if completed, ok := rec.Field("completed").(bool); ok && completed {
				done = "x"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
				rec.ID,
				rec.StringField("title"),
				rec.StringField("priority"),
				done,
				syncState(rec),
			)
		}
		return nil
	},
}

var taskDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Mark a task completed",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		rec, err := a.tasks.Toggle(cmd.Context(), args[0], true)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Done: %s\n", rec.StringField("title"))
		return nil
	},
}

func init() {
	taskAddCmd.Flags().StringVar(&taskPriority, "priority", "", "low, medium, or high")
	taskAddCmd.Flags().StringVar(&taskOrderID, "order", "", "Link to an order id")
	taskAddCmd.Flags().StringVar(&taskDue, "due", "", "Due date (YYYY-MM-DD)")
	taskListCmd.Flags().BoolVar(&taskToday, "today", false, "Only open tasks due today")

	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	taskCmd.AddCommand(taskDoneCmd)
	rootCmd.AddCommand(taskCmd)
}

package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/hyperengineering/stitchbook/internal/types"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Push all pending local changes to the backend",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.engine.SyncNow(cmd.Context()); err != nil {
			return err
		}
		status := a.engine.Status()
		fmt.Fprintf(cmd.OutOrStdout(), "Pending operations: %d\n", status.PendingOperations)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show sync state",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		status := a.engine.Status()
		out := cmd.OutOrStdout()

		state := "offline"
		if status.Online {
			state = "online"
		}
		fmt.Fprintf(out, "Connection:   %s\n", state)
		fmt.Fprintf(out, "Pending ops:  %d\n", status.PendingOperations)
		if status.LastSync != nil {
			fmt.Fprintf(out, "Last sync:    %s\n", status.LastSync.Local().Format(time.RFC1123))
		} else {
			fmt.Fprintln(out, "Last sync:    never")
		}
		return nil
	},
}

var fetchCmd = &cobra.Command{
	Use:   "fetch [collection]",
	Short: "Refresh local data from the backend",
	Long: "Refresh one collection, or every collection when none is named.\n" +
		"Valid collections: " + strings.Join(types.Collections(), ", "),
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		collections := types.Collections()
		if len(args) == 1 {
			if !validCollection(args[0]) {
				return fmt.Errorf("unknown collection %q", args[0])
			}
			collections = []string{args[0]}
		}

		for _, collection := range collections {
			records, err := a.engine.Fetch(cmd.Context(), collection)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%-14s %d records\n", collection, len(records))
		}
		return nil
	},
}

func validCollection(name string) bool {
	for _, c := range types.Collections() {
		if c == name {
			return true
		}
	}
	return false
}

func init() {
	rootCmd.AddCommand(syncCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(fetchCmd)
}

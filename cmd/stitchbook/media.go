package main

import (
	"fmt"
	"mime"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var mediaCmd = &cobra.Command{
	Use:   "media",
	Short: "Manage design photos and sketches",
}

var mediaAttachCmd = &cobra.Command{
	Use:   "attach <owner-id> <file>",
	Short: "Upload an image and attach it to a customer or order",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		path := args[1]
		f, err := os.Open(path)
		if err != nil {
			return err
		}
		defer f.Close()

		info, err := f.Stat()
		if err != nil {
			return err
		}
		contentType := mime.TypeByExtension(filepath.Ext(path))

		rec, err := a.media.Attach(cmd.Context(), args[0], filepath.Base(path), f, info.Size(), contentType)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Attached %s (%s)\n", rec.StringField("name"), rec.ID)
		return nil
	},
}

var mediaListCmd = &cobra.Command{
	Use:   "list <owner-id>",
	Short: "List media attached to a customer or order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		records, err := a.media.ForOwner(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		w := newTabWriter(cmd.OutOrStdout())
		defer w.Flush()
		fmt.Fprintln(w, "ID\tNAME\tSIZE\tTYPE\tSYNC")
		for _, rec := range records {
			fmt.Fprintf(w, "%s\t%s\t%.0f\t%s\t%s\n",
				rec.ID,
				rec.StringField("name"),
				rec.FloatField("size"),
				rec.StringField("contentType"),
				syncState(rec),
			)
		}
		return nil
	},
}

var mediaDetachCmd = &cobra.Command{
	Use:   "detach <id>",
	Short: "Remove a media attachment and its stored file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		if err := a.media.Detach(cmd.Context(), args[0]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Detached")
		return nil
	},
}

var mediaURLCmd = &cobra.Command{
	Use:   "url <id>",
	Short: "Print a fresh download URL for a media file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := buildApp(cmd.Context())
		if err != nil {
			return err
		}
		defer a.Close()

		url, err := a.media.FreshURL(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), url)
		return nil
	},
}

func init() {
	mediaCmd.AddCommand(mediaAttachCmd)
	mediaCmd.AddCommand(mediaListCmd)
	mediaCmd.AddCommand(mediaDetachCmd)
	mediaCmd.AddCommand(mediaURLCmd)
	rootCmd.AddCommand(mediaCmd)
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newVideosCommand(ctx *commandContext) *cobra.Command {
	videosCmd := &cobra.Command{
		Use:   "videos",
		Short: "Inspect and manage transcode jobs",
	}

	videosCmd.AddCommand(newVideosListCommand(ctx))
	videosCmd.AddCommand(newVideosShowCommand(ctx))
	videosCmd.AddCommand(newVideosDeleteCommand(ctx))

	return videosCmd
}

func newVideosListCommand(ctx *commandContext) *cobra.Command {
	var page int
	var pageSize int
	var title string
	var caseSensitive bool
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List videos, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			listing, err := client.list(cmd.Context(), page, pageSize, title, caseSensitive)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, listing)
			}

			out := cmd.OutOrStdout()
			if len(listing.Items) == 0 {
				fmt.Fprintln(out, "No videos found.")
				return nil
			}

			rows := make([][]string, 0, len(listing.Items))
			for _, item := range listing.Items {
				rows = append(rows, []string{
					item.ID,
					item.Title,
					item.Status,
					item.StreamURL,
					item.CreatedAt,
				})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Title", "Status", "Stream", "Created"},
				rows,
				nil,
			))
			fmt.Fprintf(out, "Page %d of %d videos (page size %d)\n",
				listing.Page, listing.Total, listing.PageSize)
			return nil
		},
	}

	cmd.Flags().IntVar(&page, "page", 1, "Page number")
	cmd.Flags().IntVar(&pageSize, "page-size", 20, "Videos per page")
	cmd.Flags().StringVar(&title, "title", "", "Filter by title substring")
	cmd.Flags().BoolVar(&caseSensitive, "case-sensitive", false, "Match the title filter case sensitively")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable JSON")
	return cmd
}

func newVideosShowCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show a single video",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			record, err := client.get(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, record)
			}

			rows := [][]string{
				{"ID", record.ID},
				{"Title", record.Title},
				{"Filename", record.Filename},
				{"Status", record.Status},
				{"Remote URL", record.S3URL},
				{"Stream URL", record.StreamURL},
				{"Created", record.CreatedAt},
				{"Updated", record.UpdatedAt},
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Field", "Value"},
				rows,
				nil,
			))
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable JSON")
	return cmd
}

func newVideosDeleteCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a video and its renditions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			if err := client.delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted video %s\n", args[0])
			return nil
		},
	}
	return cmd
}

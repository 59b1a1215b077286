package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUploadCommand(ctx *commandContext) *cobra.Command {
	var title string
	var qualities []string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "upload <file>",
		Short: "Upload a video for transcoding",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			record, err := client.upload(cmd.Context(), args[0], title, qualities)
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, record)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Accepted %q as job %s\n", record.Title, record.ID)
			fmt.Fprintf(out, "Track progress with: vodmill videos show %s\n", record.ID)
			return nil
		},
	}

	cmd.Flags().StringVarP(&title, "title", "t", "", "Display title (derived from the filename when omitted)")
	cmd.Flags().StringSliceVarP(&qualities, "quality", "q", nil, "Rendition qualities, e.g. 360p,720p (defaults to the full ladder)")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable JSON")
	return cmd
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Stream job lifecycle events until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			return client.events(cmd.Context(), func(evt streamEvent) {
				switch evt.Kind {
				case "job-deleted":
					fmt.Fprintf(out, "%s deleted\n", evt.JobID)
				default:
					if evt.RemoteURL != "" {
						fmt.Fprintf(out, "%s %s (%s)\n", evt.JobID, evt.Status, evt.RemoteURL)
					} else {
						fmt.Fprintf(out, "%s %s\n", evt.JobID, evt.Status)
					}
				}
			})
		},
	}
	return cmd
}

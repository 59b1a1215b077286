package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show daemon status and job counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			client, err := ctx.client()
			if err != nil {
				return err
			}
			status, err := client.status(cmd.Context())
			if err != nil {
				return err
			}

			if jsonOutput {
				return writeJSON(cmd, status)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Daemon running (pid %d)\n", status.PID)
			fmt.Fprintf(out, "Job database: %s\n", status.JobDBPath)
			fmt.Fprintf(out, "Lock file:    %s\n", status.LockFilePath)
			fmt.Fprintf(out, "In flight:    %d\n", status.InFlight)

			rows := make([][]string, 0, len(status.Jobs))
			for _, key := range []string{"processing", "finished", "failed"} {
				rows = append(rows, []string{key, strconv.Itoa(status.Jobs[key])})
			}
			fmt.Fprintln(out, renderTable(
				[]string{"Status", "Jobs"},
				rows,
				[]columnAlignment{alignLeft, alignRight},
			))

			for _, dep := range status.Dependencies {
				if dep.Available {
					fmt.Fprintf(out, "%s: available (%s)\n", dep.Name, dep.Command)
				} else {
					fmt.Fprintf(out, "%s: unavailable (%s)\n", dep.Name, dep.Detail)
				}
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Emit machine readable JSON")
	return cmd
}

package main

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"dubctl/internal/config"
	"dubctl/internal/dubclient"
)

func newCleanupCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "cleanup <job-id>",
		Short: "Delete a job's temporary files on the service",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			return ctx.withClient(cmd, func(_ *config.Config, client *dubclient.Client, _ *slog.Logger) error {
				resp, err := client.Cleanup(cmd.Context(), jobID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Job %s: %s\n", jobID, firstNonEmpty(resp.Status, "cleaned"))
				return nil
			})
		},
	}
}

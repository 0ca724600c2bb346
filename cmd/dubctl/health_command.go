package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"dubctl/internal/config"
	"dubctl/internal/dubclient"
	"dubctl/internal/preflight"
)

func newHealthCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check the dubbing service and local directories",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.withClient(cmd, func(cfg *config.Config, client *dubclient.Client, _ *slog.Logger) error {
				results := preflight.RunAll(cmd.Context(), cfg, client)
				failed := preflight.Failed(results)
				if asJSON {
					if err := writeJSON(cmd, results); err != nil {
						return err
					}
				} else {
					out := cmd.OutOrStdout()
					colorize := shouldColorize(cfg, out)
					for _, line := range renderSectionHeader("dubctl health", colorize) {
						fmt.Fprintln(out, line)
					}
					fmt.Fprintln(out, renderStatusLine("Service URL", statusInfo, client.BaseURL(), colorize))
					for _, result := range results {
						kind := statusOK
						if !result.Passed {
							kind = statusError
						}
						fmt.Fprintln(out, renderStatusLine(result.Name, kind, result.Detail, colorize))
					}
				}
				if len(failed) > 0 {
					return errors.New(pluralChecks(len(failed)) + " failed")
				}
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print results as JSON")
	return cmd
}

func pluralChecks(n int) string {
	if n == 1 {
		return "1 check"
	}
	return fmt.Sprintf("%d checks", n)
}

package main

import (
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"dubctl/internal/config"
	"dubctl/internal/dubclient"
	"dubctl/internal/language"
	"dubctl/internal/session"
)

func newWatchCommand(ctx *commandContext) *cobra.Command {
	var opts followOptions

	cmd := &cobra.Command{
		Use:   "watch <job-id>",
		Short: "Reattach to a submitted job and follow it to completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			return ctx.withClient(cmd, func(cfg *config.Config, client *dubclient.Client, logger *slog.Logger) error {
				lock, err := session.AcquireLock(cfg.Session.StateDir)
				if err != nil {
					return err
				}
				defer lock.Release()

				target, err := language.Parse(cfg.Session.DefaultLanguage)
				if err != nil {
					return err
				}
				machine := session.NewMachine(session.NewRemote(client), target, logger)
				defer machine.Close()
				view := attachView(cmd, cfg, machine, opts)

				if err := machine.Watch(cmd.Context(), jobID); err != nil {
					return err
				}
				if err := waitSettled(cmd.Context(), machine); err != nil {
					return err
				}
				return finishJob(cmd, cfg, client, logger, machine, view, opts)
			})
		},
	}

	addFollowFlags(cmd, &opts)
	return cmd
}

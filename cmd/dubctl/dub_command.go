package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"dubctl/internal/artifact"
	"dubctl/internal/config"
	"dubctl/internal/dubclient"
	"dubctl/internal/language"
	"dubctl/internal/logging"
	"dubctl/internal/notifications"
	"dubctl/internal/preflight"
	"dubctl/internal/session"
	"dubctl/internal/stages"
)

type followOptions struct {
	download   bool
	output     string
	cleanup    bool
	json       bool
	noProgress bool
}

type dubOptions struct {
	followOptions
	language string
	pick     bool
	retries  int
}

// jobReport is the --json result of dub and watch.
type jobReport struct {
	session.Snapshot
	Pipeline    stages.Projection `json:"stages"`
	DownloadURL string            `json:"download_url,omitempty"`
	Output      string            `json:"output,omitempty"`
	Cleaned     bool              `json:"cleaned,omitempty"`
}

func newDubCommand(ctx *commandContext) *cobra.Command {
	var opts dubOptions

	cmd := &cobra.Command{
		Use:   "dub [file]",
		Short: "Upload a video and follow its dubbing job to completion",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("retries") {
				opts.retries = -1
			}
			return ctx.withClient(cmd, func(cfg *config.Config, client *dubclient.Client, logger *slog.Logger) error {
				return runDub(cmd, cfg, client, logger, args, opts)
			})
		},
	}

	cmd.Flags().StringVarP(&opts.language, "language", "l", "", "Target language (default session.default_language)")
	cmd.Flags().BoolVar(&opts.pick, "pick", false, "Choose the video with a file dialog")
	cmd.Flags().IntVar(&opts.retries, "retries", 0, "Resubmit a failed job up to N times (default session.retries)")
	addFollowFlags(cmd, &opts.followOptions)
	return cmd
}

func addFollowFlags(cmd *cobra.Command, opts *followOptions) {
	cmd.Flags().BoolVarP(&opts.download, "download", "d", false, "Download the dubbed video when the job completes")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "Download destination file or directory")
	cmd.Flags().BoolVar(&opts.cleanup, "cleanup", false, "Delete the job's files on the service after downloading")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the final job state as JSON")
	cmd.Flags().BoolVar(&opts.noProgress, "no-progress", false, "Print plain status lines instead of a progress bar")
}

func runDub(cmd *cobra.Command, cfg *config.Config, client *dubclient.Client, logger *slog.Logger, args []string, opts dubOptions) error {
	art, err := resolveArtifact(args, opts.pick)
	if err != nil {
		return err
	}
	langValue := opts.language
	if strings.TrimSpace(langValue) == "" {
		langValue = cfg.Session.DefaultLanguage
	}
	target, err := language.Parse(langValue)
	if err != nil {
		return err
	}
	retries := opts.retries
	if retries < 0 {
		retries = cfg.Session.Retries
	}

	lock, err := session.AcquireLock(cfg.Session.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	if err := checkService(cmd.Context(), client, logger); err != nil {
		return err
	}

	machine := session.NewMachine(session.NewRemote(client), target, logger)
	defer machine.Close()
	view := attachView(cmd, cfg, machine, opts.followOptions)
	if err := machine.Select(art); err != nil {
		return err
	}

	for attempt := 0; ; attempt++ {
		if err := machine.Start(cmd.Context()); err != nil {
			return err
		}
		if err := waitSettled(cmd.Context(), machine); err != nil {
			return err
		}
		snap := machine.Snapshot()
		// An interrupted job may still be running remotely, so it is never
		// resubmitted.
		if snap.Phase != session.PhaseFailed || snap.Interrupted || attempt >= retries {
			break
		}
		logger.Info("retrying failed job",
			logging.String(logging.FieldJobID, snap.JobID),
			logging.Int("attempt", attempt+2),
		)
		if err := machine.Retry(); err != nil {
			return err
		}
	}

	return finishJob(cmd, cfg, client, logger, machine, view, opts.followOptions)
}

func resolveArtifact(args []string, pick bool) (*artifact.Artifact, error) {
	switch {
	case pick && len(args) > 0:
		return nil, errors.New("pass either a file or --pick, not both")
	case pick:
		return artifact.Pick()
	case len(args) == 1:
		return artifact.Load(args[0])
	default:
		return nil, errors.New("a video file is required (pass a path or use --pick)")
	}
}

// checkService refuses to upload to an unreachable service. A missing FFmpeg
// only warns; the job will report its own failure.
func checkService(ctx context.Context, client *dubclient.Client, logger *slog.Logger) error {
	for _, result := range preflight.CheckService(ctx, client) {
		if result.Passed {
			continue
		}
		if result.Name == "Dubbing service" {
			return fmt.Errorf("dubbing service at %s unavailable: %s", client.BaseURL(), result.Detail)
		}
		logging.WarnWithContext(logger, "service preflight warning", "preflight_warning",
			logging.String("check", result.Name),
			logging.String("detail", result.Detail),
			logging.String(logging.FieldImpact, "the job is likely to fail"),
		)
	}
	return nil
}

func attachView(cmd *cobra.Command, cfg *config.Config, machine *session.Machine, opts followOptions) *liveView {
	out := cmd.OutOrStdout()
	if opts.json {
		return nil
	}
	interactive := cfg.Display.ProgressBar && !opts.noProgress && isTerminal(out)
	view := newLiveView(out, stages.Default(), interactive, shouldColorize(cfg, out))
	machine.OnChange(view.update)
	return view
}

func waitSettled(ctx context.Context, machine *session.Machine) error {
	select {
	case <-machine.Settled():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// finishJob renders the outcome, downloads and cleans up when asked, and
// turns a failed job into the command's error.
func finishJob(cmd *cobra.Command, cfg *config.Config, client *dubclient.Client, logger *slog.Logger, machine *session.Machine, view *liveView, opts followOptions) error {
	snap := machine.Snapshot()
	out := cmd.OutOrStdout()
	report := jobReport{Snapshot: snap, Pipeline: snap.Stages(stages.Default())}
	if view != nil {
		view.finish(snap)
	}

	if snap.Phase == session.PhaseCompleted {
		report.DownloadURL, _ = machine.DownloadURL()
		if !opts.json {
			fmt.Fprintf(out, "Job %s completed\n", snap.JobID)
			fmt.Fprintf(out, "Download: %s\n", report.DownloadURL)
		}
		if opts.download || cfg.Session.AutoDownload {
			saved, err := saveArtifact(cmd, cfg, client, snap.JobID, opts.output, !opts.json && !opts.noProgress)
			if err != nil {
				return err
			}
			report.Output = saved.path
			if !opts.json {
				fmt.Fprintf(out, "Saved %s (%s)\n", saved.path, saved.size())
			}
			if opts.cleanup {
				if _, err := client.Cleanup(cmd.Context(), snap.JobID); err != nil {
					logging.WarnWithContext(logger, "cleanup failed", "cleanup_failed",
						logging.String(logging.FieldJobID, snap.JobID),
						logging.Error(err),
						logging.String(logging.FieldErrorHint, "run `dubctl cleanup "+snap.JobID+"` later"),
					)
				} else {
					report.Cleaned = true
				}
			}
		}
	}

	jobErr := jobError(snap)
	notifyOutcome(cmd.Context(), cfg, logger, snap, report.Output, jobErr)

	if opts.json {
		if err := writeJSON(cmd, report); err != nil {
			return err
		}
	}
	return jobErr
}

// notifyOutcome publishes the job result. Delivery problems never fail the
// command.
func notifyOutcome(ctx context.Context, cfg *config.Config, logger *slog.Logger, snap session.Snapshot, output string, jobErr error) {
	job := notifications.Job{ID: snap.JobID, Language: snap.Language.DisplayName()}
	if snap.Artifact != nil {
		job.File = snap.Artifact.Name
	}
	notifier := notifications.NewService(cfg)
	var err error
	switch {
	case snap.Phase == session.PhaseCompleted:
		err = notifier.NotifyJobCompleted(ctx, job, output)
	case jobErr != nil:
		err = notifier.NotifyJobFailed(ctx, job, jobErr.Error())
	}
	if err != nil {
		logging.WarnWithContext(logger, "notification failed", "notify_failed",
			logging.String(logging.FieldJobID, snap.JobID),
			logging.Error(err),
			logging.String(logging.FieldImpact, "job outcome was not announced"),
		)
	}
}

func jobError(snap session.Snapshot) error {
	if snap.Phase != session.PhaseFailed {
		return nil
	}
	if snap.Interrupted {
		reason := snap.StreamError
		if reason == "" {
			reason = "connection lost"
		}
		if snap.JobID == "" {
			return fmt.Errorf("status stream ended early: %s", reason)
		}
		return fmt.Errorf("status stream for job %s ended early: %s (run `dubctl watch %s` to reattach)", snap.JobID, reason, snap.JobID)
	}
	message := "unknown error"
	if snap.Status != nil {
		message = firstNonEmpty(snap.Status.Error, snap.Status.Message, message)
	}
	if snap.JobID == "" {
		return fmt.Errorf("dubbing failed: %s", message)
	}
	return fmt.Errorf("dubbing job %s failed: %s", snap.JobID, message)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

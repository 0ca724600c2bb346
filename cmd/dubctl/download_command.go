package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"dubctl/internal/config"
	"dubctl/internal/dubclient"
	"dubctl/internal/fileutil"
	"dubctl/internal/textutil"
)

type savedArtifact struct {
	path  string
	bytes int64
}

func (s savedArtifact) size() string {
	return humanize.Bytes(uint64(s.bytes))
}

func newDownloadCommand(ctx *commandContext) *cobra.Command {
	var output string
	var noProgress bool

	cmd := &cobra.Command{
		Use:   "download <job-id>",
		Short: "Download the dubbed video of a completed job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jobID := strings.TrimSpace(args[0])
			return ctx.withClient(cmd, func(cfg *config.Config, client *dubclient.Client, _ *slog.Logger) error {
				saved, err := saveArtifact(cmd, cfg, client, jobID, output, !noProgress)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Saved %s (%s)\n", saved.path, saved.size())
				return nil
			})
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Destination file or directory (default session.download_dir)")
	cmd.Flags().BoolVar(&noProgress, "no-progress", false, "Disable the download progress bar")
	return cmd
}

// saveArtifact downloads jobID's result into a partial file beside the
// destination and moves it into place once the transfer is complete.
func saveArtifact(cmd *cobra.Command, cfg *config.Config, client *dubclient.Client, jobID, output string, showProgress bool) (savedArtifact, error) {
	dir, name, err := resolveDestination(cfg, output)
	if err != nil {
		return savedArtifact{}, err
	}
	part, err := fileutil.CreatePartial(dir)
	if err != nil {
		return savedArtifact{}, err
	}
	defer part.Abort()

	var sink io.Writer = part
	var bar *progressbar.ProgressBar
	progressOut := cmd.ErrOrStderr()
	if showProgress && cfg.Display.ProgressBar && isTerminal(progressOut) {
		bar = progressbar.NewOptions64(-1,
			progressbar.OptionSetWriter(progressOut),
			progressbar.OptionSetDescription("Downloading "+jobID),
			progressbar.OptionShowBytes(true),
			progressbar.OptionClearOnFinish(),
		)
		sink = io.MultiWriter(part, bar)
	}

	result, err := client.Download(cmd.Context(), jobID, sink)
	if bar != nil {
		_ = bar.Finish()
	}
	if err != nil {
		return savedArtifact{}, err
	}

	if name == "" {
		name = firstNonEmpty(textutil.SanitizeFileName(result.Filename), dubclient.DefaultFilename(jobID))
	}
	dest, err := part.Commit(name)
	if err != nil {
		return savedArtifact{}, err
	}
	return savedArtifact{path: dest, bytes: result.Bytes}, nil
}

// resolveDestination splits output into a directory and file name. An empty
// name means the service's filename is used.
func resolveDestination(cfg *config.Config, output string) (string, string, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		if cfg.Session.DownloadDir == "" {
			return "", "", errors.New("no download destination: pass --output or set session.download_dir")
		}
		return cfg.Session.DownloadDir, "", nil
	}
	expanded, err := config.ExpandPath(output)
	if err != nil {
		return "", "", fmt.Errorf("resolve output path: %w", err)
	}
	if info, err := os.Stat(expanded); err == nil && info.IsDir() {
		return expanded, "", nil
	}
	if strings.HasSuffix(output, string(os.PathSeparator)) {
		return expanded, "", nil
	}
	return filepath.Dir(expanded), filepath.Base(expanded), nil
}

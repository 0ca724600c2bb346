package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/schollz/progressbar/v3"

	"dubctl/internal/api"
	"dubctl/internal/session"
	"dubctl/internal/stages"
)

// liveView renders machine snapshots as they arrive. On a terminal it keeps a
// single progress bar; elsewhere it prints one line per distinct update.
type liveView struct {
	out      io.Writer
	catalog  stages.Catalog
	colorize bool

	mu       sync.Mutex
	bar      *progressbar.ProgressBar
	lastLine string
	finished bool
}

func newLiveView(out io.Writer, catalog stages.Catalog, interactive, colorize bool) *liveView {
	v := &liveView{out: out, catalog: catalog, colorize: colorize}
	if interactive {
		v.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(out),
			progressbar.OptionSetDescription("Submitting"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionEnableColorCodes(colorize),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
			progressbar.OptionShowDescriptionAtLineEnd(),
		)
	}
	return v
}

// update is registered with Machine.OnChange.
func (v *liveView) update(snap session.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.finished {
		return
	}
	if v.bar != nil {
		v.bar.Describe(v.describe(snap))
		_ = v.bar.Set(progressOf(snap))
		return
	}
	line := v.describe(snap)
	if line == v.lastLine {
		return
	}
	v.lastLine = line
	fmt.Fprintln(v.out, line)
}

// finish clears the bar and draws the final stage table. Notifications that
// arrive afterwards are dropped so nothing interleaves with the summary.
func (v *liveView) finish(snap session.Snapshot) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.finished = true
	if v.bar != nil {
		_ = v.bar.Clear()
		v.bar = nil
	}
	if line := v.describe(snap); line != v.lastLine {
		v.lastLine = line
		fmt.Fprintln(v.out, line)
	}
	fmt.Fprintln(v.out, renderStageTable(snap.Stages(v.catalog), v.colorize))
}

func (v *liveView) describe(snap session.Snapshot) string {
	switch snap.Phase {
	case session.PhaseIdle:
		return "Ready"
	case session.PhaseSubmitting:
		if snap.Artifact != nil {
			return fmt.Sprintf("Uploading %s (%s)", snap.Artifact.Name, snap.Artifact.HumanSize())
		}
		return "Uploading"
	}
	if snap.Status == nil {
		return fmt.Sprintf("Waiting for job %s", snap.JobID)
	}

	parts := []string{v.stageLabel(snap.Status.Step)}
	parts = append(parts, fmt.Sprintf("%3d%%", snap.Status.ClampedProgress()))
	if msg := strings.TrimSpace(snap.Status.Message); msg != "" {
		parts = append(parts, msg)
	}
	if snap.Interrupted {
		parts = append(parts, "(connection lost)")
	}
	return strings.Join(parts, "  ")
}

func (v *liveView) stageLabel(step string) string {
	if def, ok := v.catalog.Lookup(step); ok {
		return def.Icon + " " + def.Label
	}
	if step == "" {
		return "Queued"
	}
	return step
}

func progressOf(snap session.Snapshot) int {
	if snap.Status == nil {
		return 0
	}
	if snap.Status.Status == api.JobStatusCompleted {
		return 100
	}
	return snap.Status.ClampedProgress()
}

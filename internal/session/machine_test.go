package session_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"dubctl/internal/api"
	"dubctl/internal/artifact"
	"dubctl/internal/dubclient"
	"dubctl/internal/language"
	"dubctl/internal/logging"
	"dubctl/internal/session"
	"dubctl/internal/stages"
)

func newMachine(svc session.Service, target language.Target) *session.Machine {
	return session.NewMachine(svc, target, logging.NewNop())
}

func TestCompletedJobMarksEveryStageCompleted(t *testing.T) {
	svc := newFakeService(submitResult{jobID: "abc123"})
	m := newMachine(svc, language.French)
	t.Cleanup(m.Close)

	if err := m.Select(loadVideo(t, "trip.mp4", 12_400_000)); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}

	stream := svc.stream(t, "abc123", 0)
	stream.send(running("separating", 35, "Separating audio"))
	snap := waitFor(t, m, "separating", func(s session.Snapshot) bool {
		return s.Status != nil && s.Status.Step == "separating"
	})
	if snap.Phase != session.PhaseStreaming || !snap.Processing {
		t.Fatalf("expected streaming while running, got %+v", snap)
	}
	proj := snap.Stages(stages.Default())
	if proj.State(stages.KeyIngesting) != stages.StateCompleted || proj.State(stages.KeySeparating) != stages.StateActive {
		t.Fatalf("unexpected mid-job projection %v", proj.Map())
	}

	stream.send(api.StatusPayload{Status: api.JobStatusCompleted, Step: "mixing", Progress: 100, Message: "Done"})
	snap = waitSettled(t, m)

	if snap.Phase != session.PhaseCompleted || snap.Processing {
		t.Fatalf("expected completed, got %+v", snap)
	}
	for key, state := range snap.Stages(stages.Default()).Map() {
		if state != stages.StateCompleted {
			t.Fatalf("stage %s = %s, want completed", key, state)
		}
	}
	url, err := m.DownloadURL()
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if url != "http://service.test/api/download/abc123" {
		t.Fatalf("DownloadURL = %q", url)
	}
	if !stream.isClosed() {
		t.Fatal("expected subscription closed after terminal payload")
	}
	if got := svc.target(0); got != language.French {
		t.Fatalf("submitted language %q", got)
	}
}

func TestSubmissionErrorBecomesFailedStatus(t *testing.T) {
	subErr := &dubclient.SubmissionError{Kind: dubclient.KindHTTPStatus, StatusCode: 500, Message: "ffmpeg missing"}
	svc := newFakeService(submitResult{err: subErr})
	m := newMachine(svc, language.Spanish)
	t.Cleanup(m.Close)

	art := loadVideo(t, "talk.mov", 2048)
	if err := m.Select(art); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := waitSettled(t, m)

	if snap.Phase != session.PhaseFailed || snap.Processing {
		t.Fatalf("expected failed, got %+v", snap)
	}
	if snap.Status == nil || snap.Status.Status != api.JobStatusFailed || snap.Status.Message != "ffmpeg missing" || snap.Status.Progress != 0 {
		t.Fatalf("unexpected status %+v", snap.Status)
	}
	if snap.Interrupted {
		t.Fatal("submission failure is not a stream interruption")
	}
	if svc.subscribeCount() != 0 {
		t.Fatal("no subscription should open after a failed submission")
	}

	if err := m.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	snap = m.Snapshot()
	if snap.Phase != session.PhaseIdle || snap.Status != nil || snap.JobID != "" {
		t.Fatalf("expected clean idle state, got %+v", snap)
	}
	if snap.Artifact != art {
		t.Fatal("retry must keep the selected artifact")
	}
}

func TestDroppedStreamLeavesLastStageActive(t *testing.T) {
	svc := newFakeService(submitResult{jobID: "job-c"})
	m := newMachine(svc, language.German)
	t.Cleanup(m.Close)

	_ = m.Select(loadVideo(t, "lecture.mkv", 4096))
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	stream := svc.stream(t, "job-c", 0)
	stream.send(running("transcribing", 50, "Transcribing"))
	stream.end(dubclient.ErrStreamEnded)
	snap := waitSettled(t, m)

	if snap.Processing {
		t.Fatal("processing must clear when the stream drops")
	}
	if snap.Phase != session.PhaseFailed || !snap.Interrupted {
		t.Fatalf("expected interrupted failure, got %+v", snap)
	}
	if snap.Status == nil || snap.Status.Status != api.JobStatusRunning || snap.Status.Step != "transcribing" {
		t.Fatalf("last payload must remain, got %+v", snap.Status)
	}
	if got := snap.Stages(stages.Default()).State(stages.KeyTranscribing); got != stages.StateActive {
		t.Fatalf("transcribing = %s, want active", got)
	}
	if snap.StreamError == "" {
		t.Fatal("expected stream error to be recorded")
	}
}

func TestDuplicateTerminalPayloadIsIgnored(t *testing.T) {
	svc := newFakeService(submitResult{jobID: "dup"})
	m := newMachine(svc, language.Italian)
	t.Cleanup(m.Close)

	var (
		mu     sync.Mutex
		phases []session.Phase
	)
	m.OnChange(func(s session.Snapshot) {
		mu.Lock()
		phases = append(phases, s.Phase)
		mu.Unlock()
	})

	_ = m.Select(loadVideo(t, "a.webm", 10))
	_ = m.Start(context.Background())
	stream := svc.stream(t, "dup", 0)
	failed := api.StatusPayload{Status: api.JobStatusFailed, Step: "translating", Message: "quota"}
	stream.mu.Lock()
	stream.updates <- failed
	stream.updates <- failed
	stream.mu.Unlock()
	waitSettled(t, m)

	if svc.subscribeCount() != 1 {
		t.Fatalf("expected exactly one subscription, got %d", svc.subscribeCount())
	}
	mu.Lock()
	defer mu.Unlock()
	terminal := 0
	for _, p := range phases {
		if p == session.PhaseFailed {
			terminal++
		}
	}
	if terminal != 1 {
		t.Fatalf("expected a single terminal transition, saw phases %v", phases)
	}
	snap := m.Snapshot()
	if snap.Interrupted {
		t.Fatal("terminal payload must not be reported as interruption")
	}
	if got := snap.Stages(stages.Default()).State(stages.KeyTranslating); got != stages.StateFailed {
		t.Fatalf("translating = %s, want failed", got)
	}
}

func TestStartWithoutArtifactIsNoop(t *testing.T) {
	svc := newFakeService(submitResult{jobID: "x"})
	m := newMachine(svc, language.Spanish)
	t.Cleanup(m.Close)

	if err := m.Start(context.Background()); !errors.Is(err, session.ErrNoArtifact) {
		t.Fatalf("Start = %v, want ErrNoArtifact", err)
	}
	snap := m.Snapshot()
	if snap.Processing || snap.Phase != session.PhaseIdle {
		t.Fatalf("state changed: %+v", snap)
	}
	if svc.submitCount() != 0 {
		t.Fatal("no network call expected")
	}
}

func TestInputsLockedWhileProcessing(t *testing.T) {
	svc := newFakeService(submitResult{jobID: "busy"})
	svc.gate = make(chan struct{})
	m := newMachine(svc, language.Spanish)
	t.Cleanup(m.Close)

	first := loadVideo(t, "one.mp4", 10)
	_ = m.Select(first)
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if snap := m.Snapshot(); snap.Phase != session.PhaseSubmitting || !snap.Processing {
		t.Fatalf("expected submitting, got %+v", snap)
	}
	if err := m.Start(context.Background()); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("second Start = %v, want ErrBusy", err)
	}
	if err := m.Select(loadVideo(t, "two.mp4", 10)); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("Select while submitting = %v, want ErrBusy", err)
	}
	if err := m.SetLanguage(language.Korean); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("SetLanguage while submitting = %v, want ErrBusy", err)
	}
	if err := m.Retry(); !errors.Is(err, session.ErrNotRetryable) {
		t.Fatalf("Retry while submitting = %v", err)
	}
	if _, err := m.DownloadURL(); !errors.Is(err, session.ErrNotCompleted) {
		t.Fatalf("DownloadURL while submitting = %v", err)
	}
	close(svc.gate)
	waitFor(t, m, "streaming", func(s session.Snapshot) bool { return s.Phase == session.PhaseStreaming })
	if m.Snapshot().Artifact != first {
		t.Fatal("artifact changed while processing")
	}
	if svc.submitCount() != 1 {
		t.Fatalf("expected one submission, got %d", svc.submitCount())
	}
}

func TestSelectRejectsNonVideo(t *testing.T) {
	m := newMachine(newFakeService(), language.Spanish)
	t.Cleanup(m.Close)
	doc := &artifact.Artifact{Path: "/tmp/notes.txt", Name: "notes.txt", MediaType: "text/plain", Size: 3}
	if err := m.Select(doc); !errors.Is(err, artifact.ErrNotVideo) {
		t.Fatalf("Select = %v, want ErrNotVideo", err)
	}
	if m.Snapshot().Artifact != nil {
		t.Fatal("non-video must not be selected")
	}
}

func TestRetryResubmitsSameFile(t *testing.T) {
	svc := newFakeService(
		submitResult{err: &dubclient.SubmissionError{Kind: dubclient.KindNetwork, Message: "Network error: refused"}},
		submitResult{jobID: "second"},
	)
	m := newMachine(svc, language.Hindi)
	t.Cleanup(m.Close)

	_ = m.Select(loadVideo(t, "clip.avi", 10))
	_ = m.Start(context.Background())
	first := waitSettled(t, m)
	if first.Status.Message != "Network error: refused" {
		t.Fatalf("unexpected message %q", first.Status.Message)
	}
	if err := m.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start after retry: %v", err)
	}
	snap := waitFor(t, m, "second job", func(s session.Snapshot) bool { return s.JobID == "second" })
	if snap.Attempts != 2 || snap.AttemptID == first.AttemptID {
		t.Fatalf("expected a fresh attempt, got %+v", snap)
	}
}

func TestRetryOpensFreshSubscription(t *testing.T) {
	svc := newFakeService(submitResult{jobID: "old"}, submitResult{jobID: "new"})
	m := newMachine(svc, language.Russian)
	t.Cleanup(m.Close)

	_ = m.Select(loadVideo(t, "v.mp4", 10))
	_ = m.Start(context.Background())
	oldStream := svc.stream(t, "old", 0)
	oldStream.end(errors.New("connection reset"))
	waitSettled(t, m)
	if !oldStream.isClosed() {
		t.Fatal("interrupted subscription must be released")
	}

	if err := m.Retry(); err != nil {
		t.Fatalf("Retry: %v", err)
	}
	_ = m.Start(context.Background())
	newStream := svc.stream(t, "new", 0)
	newStream.send(running("ingesting", 5, "Reading"))
	waitFor(t, m, "new payload", func(s session.Snapshot) bool { return s.Status != nil && s.Status.Step == "ingesting" })

	oldStream.send(running("mixing", 99, "stale"))
	if snap := m.Snapshot(); snap.Status.Step != "ingesting" || snap.JobID != "new" {
		t.Fatalf("stale stream leaked into new attempt: %+v", snap)
	}
}

func TestWatchAttachesToExistingJob(t *testing.T) {
	svc := newFakeService()
	m := newMachine(svc, language.Turkish)
	t.Cleanup(m.Close)

	if err := m.Watch(context.Background(), "existing"); err != nil {
		t.Fatalf("Watch: %v", err)
	}
	if snap := m.Snapshot(); snap.Phase != session.PhaseStreaming || snap.JobID != "existing" {
		t.Fatalf("expected streaming, got %+v", snap)
	}
	if err := m.Watch(context.Background(), "other"); !errors.Is(err, session.ErrBusy) {
		t.Fatalf("second Watch = %v, want ErrBusy", err)
	}
	stream := svc.stream(t, "existing", 0)
	stream.send(api.StatusPayload{Status: api.JobStatusCompleted, Step: "mixing", Progress: 100})
	snap := waitSettled(t, m)
	if snap.Phase != session.PhaseCompleted {
		t.Fatalf("expected completed, got %+v", snap)
	}
	if svc.submitCount() != 0 {
		t.Fatal("watch must not upload")
	}
}

func TestCloseAbandonsAttempt(t *testing.T) {
	svc := newFakeService(submitResult{jobID: "bye"})
	m := newMachine(svc, language.Arabic)

	_ = m.Select(loadVideo(t, "v.mp4", 10))
	_ = m.Start(context.Background())
	stream := svc.stream(t, "bye", 0)
	m.Close()
	waitSettled(t, m)
	if !stream.isClosed() {
		t.Fatal("Close must release the subscription")
	}
	if err := m.Start(context.Background()); !errors.Is(err, session.ErrClosed) {
		t.Fatalf("Start after Close = %v", err)
	}
}

func TestResetFromCompleted(t *testing.T) {
	svc := newFakeService(submitResult{jobID: "done"})
	m := newMachine(svc, language.Portuguese)
	t.Cleanup(m.Close)

	_ = m.Select(loadVideo(t, "v.mp4", 10))
	_ = m.Start(context.Background())
	svc.stream(t, "done", 0).send(api.StatusPayload{Status: api.JobStatusCompleted, Step: "mixing", Progress: 100})
	waitSettled(t, m)

	if err := m.Retry(); !errors.Is(err, session.ErrNotRetryable) {
		t.Fatalf("Retry after success = %v, want ErrNotRetryable", err)
	}
	if err := m.Reset(); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if snap := m.Snapshot(); snap.Phase != session.PhaseIdle || snap.Artifact == nil {
		t.Fatalf("unexpected state after reset: %+v", snap)
	}
}

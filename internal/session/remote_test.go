package session_test

import (
	"context"
	"testing"

	"dubctl/internal/dubclient"
	"dubctl/internal/language"
	"dubctl/internal/logging"
	"dubctl/internal/session"
	"dubctl/internal/stages"
	"dubctl/internal/testsupport"
)

func TestMachineAgainstFakeService(t *testing.T) {
	svc := testsupport.NewFakeService(t)
	svc.QueueJobIDs("abc123")
	svc.Script("abc123", testsupport.Script{Frames: []testsupport.Frame{
		testsupport.Running("separating", 35, "Separating audio"),
		testsupport.Completed("Done"),
	}})
	client, err := dubclient.New(svc.URL)
	if err != nil {
		t.Fatalf("dubclient.New: %v", err)
	}
	m := session.NewMachine(session.NewRemote(client), language.French, logging.NewNop())
	t.Cleanup(m.Close)

	if err := m.Select(loadVideo(t, "holiday.mp4", 1024)); err != nil {
		t.Fatalf("Select: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("Start: %v", err)
	}
	snap := waitSettled(t, m)
	if snap.Phase != session.PhaseCompleted {
		t.Fatalf("expected completed, got %+v", snap)
	}
	for key, state := range snap.Stages(stages.Default()).Map() {
		if state != stages.StateCompleted {
			t.Fatalf("stage %s = %s", key, state)
		}
	}
	url, err := m.DownloadURL()
	if err != nil {
		t.Fatalf("DownloadURL: %v", err)
	}
	if url != svc.URL+"/api/download/abc123" {
		t.Fatalf("DownloadURL = %q", url)
	}
	uploads := svc.Uploads()
	if len(uploads) != 1 || uploads[0].RequestID != snap.AttemptID {
		t.Fatalf("expected upload tagged with attempt id %q, got %+v", snap.AttemptID, uploads)
	}
}

func TestMachineReportsDroppedServiceStream(t *testing.T) {
	svc := testsupport.NewFakeService(t)
	svc.QueueJobIDs("job-c")
	svc.Script("job-c", testsupport.Script{Frames: []testsupport.Frame{
		testsupport.Running("transcribing", 50, "Transcribing"),
	}})
	client, err := dubclient.New(svc.URL)
	if err != nil {
		t.Fatalf("dubclient.New: %v", err)
	}
	m := session.NewMachine(session.NewRemote(client), language.Japanese, logging.NewNop())
	t.Cleanup(m.Close)

	_ = m.Select(loadVideo(t, "clip.mp4", 512))
	_ = m.Start(context.Background())
	snap := waitSettled(t, m)
	if !snap.Interrupted || snap.Processing {
		t.Fatalf("expected interrupted, got %+v", snap)
	}
	if snap.Stages(stages.Default()).State(stages.KeyTranscribing) != stages.StateActive {
		t.Fatalf("expected transcribing to stay active")
	}
}

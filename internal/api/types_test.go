package api

import (
	"encoding/json"
	"testing"
)

func TestStatusPayloadDecodesServiceFrame(t *testing.T) {
	var p StatusPayload
	raw := `{"status":"running","step":"transcribing","progress":140,"message":"Transcribing audio"}`
	if err := json.Unmarshal([]byte(raw), &p); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if err := p.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
	if p.Terminal() {
		t.Fatal("running payload reported terminal")
	}
	if p.ClampedProgress() != 100 {
		t.Fatalf("ClampedProgress = %d, want 100", p.ClampedProgress())
	}
	if (StatusPayload{Status: JobStatusRunning, Progress: -5}).ClampedProgress() != 0 {
		t.Fatal("negative progress not clamped")
	}
}

func TestStatusPayloadWithoutStatusIsInvalid(t *testing.T) {
	if err := (StatusPayload{Step: "mixing"}).Validate(); err == nil {
		t.Fatal("expected error for missing status")
	}
}

func TestTerminalStatuses(t *testing.T) {
	for _, s := range []JobStatus{JobStatusQueued, JobStatusProcessing, JobStatusRunning} {
		if s.Terminal() {
			t.Fatalf("%s should not be terminal", s)
		}
	}
	for _, s := range []JobStatus{JobStatusCompleted, JobStatusFailed} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestFailedPayload(t *testing.T) {
	p := FailedPayload("Network error: connection refused")
	if p.Status != JobStatusFailed || p.Progress != 0 || p.Step != "" {
		t.Fatalf("unexpected payload %+v", p)
	}
	if p.Message != "Network error: connection refused" {
		t.Fatalf("message = %q", p.Message)
	}
}

func TestPathsEscapeJobID(t *testing.T) {
	if got := StatusPath("a/b"); got != "/api/status/a%2Fb" {
		t.Fatalf("StatusPath = %q", got)
	}
	if got := DownloadPath("job1"); got != "/api/download/job1" {
		t.Fatalf("DownloadPath = %q", got)
	}
	if got := CleanupPath("job1"); got != "/api/cleanup/job1" {
		t.Fatalf("CleanupPath = %q", got)
	}
}

func TestErrorResponseMessage(t *testing.T) {
	cases := []struct {
		body string
		want string
	}{
		{`{"detail":"  queue full "}`, "queue full"},
		{`{"detail":[{"msg":"Field required"},{"msg":" "},{"msg":"bad"}]}`, "Field required; bad"},
		{`{"detail":null}`, ""},
		{`{"detail":42}`, ""},
		{`{}`, ""},
	}
	for _, tc := range cases {
		var resp ErrorResponse
		if err := json.Unmarshal([]byte(tc.body), &resp); err != nil {
			t.Fatalf("unmarshal %s: %v", tc.body, err)
		}
		if got := resp.Message(); got != tc.want {
			t.Errorf("Message(%s) = %q, want %q", tc.body, got, tc.want)
		}
	}
}

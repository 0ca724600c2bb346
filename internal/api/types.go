package api

import (
	"encoding/json"
	"errors"
	"net/url"
	"strings"
)

// JobStatus is the service-side lifecycle label of a dubbing job.
type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusRunning    JobStatus = "running"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
)

// Terminal reports whether the status ends the job's status stream.
func (s JobStatus) Terminal() bool {
	return s == JobStatusCompleted || s == JobStatusFailed
}

// StatusPayload is the most recent known server-side state of a job.
type StatusPayload struct {
	Status   JobStatus `json:"status"`
	Step     string    `json:"step"`
	Progress int       `json:"progress"`
	Message  string    `json:"message"`
	Error    string    `json:"error,omitempty"`
}

var errMissingStatus = errors.New("status payload: missing status")

// Validate rejects payloads that cannot drive a transition.
func (p StatusPayload) Validate() error {
	if p.Status == "" {
		return errMissingStatus
	}
	return nil
}

// Terminal reports whether the payload carries a terminal status.
func (p StatusPayload) Terminal() bool {
	return p.Status.Terminal()
}

// ClampedProgress returns Progress bounded to 0..100 for display.
func (p StatusPayload) ClampedProgress() int {
	switch {
	case p.Progress < 0:
		return 0
	case p.Progress > 100:
		return 100
	default:
		return p.Progress
	}
}

// FailedPayload builds the synthetic payload shown when a job fails before
// the service ever reported on it.
func FailedPayload(message string) StatusPayload {
	return StatusPayload{
		Status:   JobStatusFailed,
		Progress: 0,
		Message:  message,
	}
}

// SubmitResponse is the success body of the upload endpoint.
type SubmitResponse struct {
	JobID string `json:"job_id"`
}

// ErrorResponse is the failure body returned by the service. Detail is a
// string for handled errors and a list of ValidationIssue for rejected
// requests, so it stays raw until Message decodes it.
type ErrorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

// ValidationIssue is one entry of a request validation failure.
type ValidationIssue struct {
	Msg string `json:"msg"`
}

// Message flattens Detail into one readable line. It returns "" when the
// body carried no usable detail.
func (r ErrorResponse) Message() string {
	if len(r.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(r.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var issues []ValidationIssue
	if err := json.Unmarshal(r.Detail, &issues); err != nil {
		return ""
	}
	msgs := make([]string, 0, len(issues))
	for _, issue := range issues {
		if msg := strings.TrimSpace(issue.Msg); msg != "" {
			msgs = append(msgs, msg)
		}
	}
	return strings.Join(msgs, "; ")
}

// HealthResponse reports service readiness.
type HealthResponse struct {
	Status          string `json:"status"`
	FFmpegAvailable bool   `json:"ffmpeg_available"`
}

// CleanupResponse acknowledges removal of a job's temporary files.
type CleanupResponse struct {
	Status string `json:"status"`
}

const (
	// ProcessPath accepts the multipart upload that starts a job.
	ProcessPath = "/api/process"
	// HealthPath reports service readiness.
	HealthPath = "/api/health"
)

// StatusPath is the server-sent-events stream for one job.
func StatusPath(jobID string) string {
	return "/api/status/" + url.PathEscape(jobID)
}

// DownloadPath serves the finished artifact of one job.
func DownloadPath(jobID string) string {
	return "/api/download/" + url.PathEscape(jobID)
}

// CleanupPath removes a job's temporary files on the service.
func CleanupPath(jobID string) string {
	return "/api/cleanup/" + url.PathEscape(jobID)
}

package notifications

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"dubctl/internal/config"
)

const userAgent = "dubctl"

// Job identifies the job a notification is about.
type Job struct {
	ID       string
	File     string
	Language string
}

func (j Job) label() string {
	file := strings.TrimSpace(j.File)
	if file == "" {
		file = "job " + j.ID
	}
	if lang := strings.TrimSpace(j.Language); lang != "" {
		return fmt.Sprintf("%s (%s)", file, lang)
	}
	return file
}

// Service announces job outcomes.
type Service interface {
	NotifyJobCompleted(ctx context.Context, job Job, output string) error
	NotifyJobFailed(ctx context.Context, job Job, reason string) error
	TestNotification(ctx context.Context) error
}

// NewService builds an ntfy-backed service, or a no-op one when
// notifications.ntfy_topic is empty.
func NewService(cfg *config.Config) Service {
	if cfg == nil || strings.TrimSpace(cfg.Notifications.NtfyTopic) == "" {
		return noopService{}
	}
	return &ntfyService{
		endpoint: cfg.Notifications.NtfyTopic,
		client:   &http.Client{Timeout: cfg.NotificationTimeoutDuration()},
	}
}

type payload struct {
	title    string
	message  string
	tags     []string
	priority string
}

type ntfyService struct {
	endpoint string
	client   *http.Client
}

func (n *ntfyService) NotifyJobCompleted(ctx context.Context, job Job, output string) error {
	message := fmt.Sprintf("✅ Dubbed: %s", job.label())
	if output = strings.TrimSpace(output); output != "" {
		message += "\nSaved to " + output
	}
	return n.send(ctx, payload{
		title:   "dubctl - Job Complete",
		message: message,
		tags:    []string{"dubctl", "job", "completed"},
	})
}

func (n *ntfyService) NotifyJobFailed(ctx context.Context, job Job, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = "unknown error"
	}
	return n.send(ctx, payload{
		title:    "dubctl - Job Failed",
		message:  fmt.Sprintf("❌ Dubbing failed: %s\n%s", job.label(), reason),
		tags:     []string{"dubctl", "job", "failed"},
		priority: "high",
	})
}

func (n *ntfyService) TestNotification(ctx context.Context) error {
	return n.send(ctx, payload{
		title:    "dubctl - Test",
		message:  "🧪 Notification test",
		tags:     []string{"dubctl", "test"},
		priority: "low",
	})
}

func (n *ntfyService) send(ctx context.Context, data payload) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.endpoint, strings.NewReader(data.message))
	if err != nil {
		return fmt.Errorf("build ntfy request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Content-Type", "text/plain; charset=utf-8")
	req.Header.Set("Title", data.title)
	if len(data.tags) > 0 {
		req.Header.Set("Tags", strings.Join(data.tags, ","))
	}
	if data.priority != "" {
		req.Header.Set("Priority", data.priority)
	}

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send ntfy notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("ntfy returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

type noopService struct{}

func (noopService) NotifyJobCompleted(context.Context, Job, string) error { return nil }
func (noopService) NotifyJobFailed(context.Context, Job, string) error    { return nil }
func (noopService) TestNotification(context.Context) error                { return nil }

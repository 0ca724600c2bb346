package testsupport

import (
	"path/filepath"
	"testing"

	"dubctl/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Colour and the progress bar are off so rendered output is stable.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Session.StateDir = filepath.Join(base, "state")
	cfgVal.Session.DownloadDir = filepath.Join(base, "downloads")
	cfgVal.Display.Color = config.ColorNever
	cfgVal.Display.ProgressBar = false

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return builder.cfg
}

// WithServiceURL points the config at a test server.
func WithServiceURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Service.BaseURL = url
	}
}

// WithLanguage overrides the default target language.
func WithLanguage(lang string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.DefaultLanguage = lang
	}
}

// WithRetries sets the automatic retry count.
func WithRetries(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.Retries = n
	}
}

// WithAutoDownload enables downloading after completion.
func WithAutoDownload() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Session.AutoDownload = true
	}
}

// WithLogFile mirrors logs into a file under the test's base directory.
func WithLogFile(name string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Logging.File = filepath.Join(b.baseDir, name)
	}
}

// WithNtfyTopic enables job notifications to topic.
func WithNtfyTopic(topic string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Notifications.NtfyTopic = topic
	}
}

package config

import "time"

const (
	defaultBaseURL        = "http://127.0.0.1:8000"
	defaultRequestTimeout = 30
	defaultUploadTimeout  = 0
	defaultLanguage       = "spanish"
	defaultStateDir       = "~/.local/share/dubctl"
	defaultDownloadDir    = "~/Videos/dubbed"
	defaultColorMode      = ColorAuto
	defaultLogFormat      = "console"
	defaultLogLevel       = "warn"
	defaultNtfyTimeout    = 10
	maxRetries            = 10
	defaultConfigLocation = "~/.config/dubctl/config.toml"
	projectConfigFilename = "dubctl.toml"
	serviceURLEnvVariable = "DUBCTL_SERVICE_URL"
)

// Color modes accepted by display.color.
const (
	ColorAuto   = "auto"
	ColorAlways = "always"
	ColorNever  = "never"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Service: Service{
			BaseURL:        defaultBaseURL,
			RequestTimeout: defaultRequestTimeout,
			UploadTimeout:  defaultUploadTimeout,
		},
		Session: Session{
			DefaultLanguage: defaultLanguage,
			StateDir:        defaultStateDir,
			DownloadDir:     defaultDownloadDir,
		},
		Display: Display{
			Color:       defaultColorMode,
			ProgressBar: true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNtfyTimeout,
		},
	}
}

// RequestTimeoutDuration converts service.request_timeout into a duration.
func (c *Config) RequestTimeoutDuration() time.Duration {
	return time.Duration(c.Service.RequestTimeout) * time.Second
}

// UploadTimeoutDuration converts service.upload_timeout into a duration. Zero
// means uploads are bounded only by the caller's context.
func (c *Config) UploadTimeoutDuration() time.Duration {
	return time.Duration(c.Service.UploadTimeout) * time.Second
}

// NotificationTimeoutDuration converts notifications.request_timeout into a
// duration.
func (c *Config) NotificationTimeoutDuration() time.Duration {
	return time.Duration(c.Notifications.RequestTimeout) * time.Second
}

package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	c.normalizeService()
	if err := c.normalizeSession(); err != nil {
		return err
	}
	c.normalizeDisplay()
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	return c.normalizeLogging()
}

func (c *Config) normalizeService() {
	if value, ok := os.LookupEnv(serviceURLEnvVariable); ok && strings.TrimSpace(value) != "" {
		c.Service.BaseURL = value
	}
	c.Service.BaseURL = strings.TrimRight(strings.TrimSpace(c.Service.BaseURL), "/")
	if c.Service.BaseURL == "" {
		c.Service.BaseURL = defaultBaseURL
	}
}

func (c *Config) normalizeSession() error {
	var err error
	c.Session.DefaultLanguage = strings.ToLower(strings.TrimSpace(c.Session.DefaultLanguage))
	if c.Session.DefaultLanguage == "" {
		c.Session.DefaultLanguage = defaultLanguage
	}
	if strings.TrimSpace(c.Session.StateDir) == "" {
		c.Session.StateDir = defaultStateDir
	}
	if c.Session.StateDir, err = expandPath(c.Session.StateDir); err != nil {
		return fmt.Errorf("session.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Session.DownloadDir) == "" {
		c.Session.DownloadDir = defaultDownloadDir
	}
	if c.Session.DownloadDir, err = expandPath(c.Session.DownloadDir); err != nil {
		return fmt.Errorf("session.download_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeDisplay() {
	c.Display.Color = strings.ToLower(strings.TrimSpace(c.Display.Color))
	if c.Display.Color == "" {
		c.Display.Color = defaultColorMode
	}
}

func (c *Config) normalizeLogging() error {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if format == "" {
		format = defaultLogFormat
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch level {
	case "":
		level = defaultLogLevel
	case "warning":
		level = "warn"
	}
	c.Logging.Level = level

	if strings.TrimSpace(c.Logging.File) != "" {
		file, err := expandPath(c.Logging.File)
		if err != nil {
			return fmt.Errorf("logging.file: %w", err)
		}
		c.Logging.File = file
	}
	return nil
}

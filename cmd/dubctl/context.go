package main

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/spf13/cobra"

	"dubctl/internal/config"
	"dubctl/internal/dubclient"
	"dubctl/internal/logging"
)

type commandContext struct {
	configFlag   *string
	serverFlag   *string
	logLevelFlag *string

	configOnce   sync.Once
	config       *config.Config
	configPath   string
	configExists bool
	configErr    error
}

func newCommandContext(configFlag, serverFlag, logLevelFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		serverFlag:   serverFlag,
		logLevelFlag: logLevelFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, exists, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		if server := flagValue(c.serverFlag); server != "" {
			cfg.Service.BaseURL = strings.TrimRight(server, "/")
		}
		if level := strings.ToLower(flagValue(c.logLevelFlag)); level != "" {
			if level == "warning" {
				level = "warn"
			}
			cfg.Logging.Level = level
		}
		if err := cfg.Validate(); err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
		c.configExists = exists
	})
	return c.config, c.configErr
}

// logger builds the command's logger. Console output goes to the command's
// error stream so stdout stays free for rendering.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	logger, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr())
	if err != nil {
		return nil, fmt.Errorf("configure logging: %w", err)
	}
	return logger, nil
}

func (c *commandContext) newClient(cfg *config.Config, logger *slog.Logger) (*dubclient.Client, error) {
	client, err := dubclient.New(cfg.Service.BaseURL,
		dubclient.WithRequestTimeout(cfg.RequestTimeoutDuration()),
		dubclient.WithUploadTimeout(cfg.UploadTimeoutDuration()),
		dubclient.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}
	return client, nil
}

// withClient loads config, logger, and client for commands that talk to the
// service.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(*config.Config, *dubclient.Client, *slog.Logger) error) error {
	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger(cmd)
	if err != nil {
		return err
	}
	client, err := c.newClient(cfg, logger)
	if err != nil {
		return err
	}
	return fn(cfg, client, logger)
}

func flagValue(flag *string) string {
	if flag == nil {
		return ""
	}
	return strings.TrimSpace(*flag)
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}

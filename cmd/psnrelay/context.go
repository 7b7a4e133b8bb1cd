package main

import (
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"syscall"

	"github.com/spf13/cobra"

	"psnrelay/internal/api"
	"psnrelay/internal/config"
)

type commandContext struct {
	configFlag   *string
	logLevelFlag *string
	urlFlag      *string

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(configFlag, logLevelFlag, urlFlag *string) *commandContext {
	return &commandContext{
		configFlag:   configFlag,
		logLevelFlag: logLevelFlag,
		urlFlag:      urlFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(flagValue(c.configFlag))
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = path
	})
	return c.config, c.configErr
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

func (c *commandContext) logLevel() string {
	return flagValue(c.logLevelFlag)
}

func (c *commandContext) baseURL() string {
	if url := flagValue(c.urlFlag); url != "" {
		return url
	}
	if cfg := c.configValue(); cfg != nil {
		return cfg.APIBaseURL()
	}
	return ""
}

func (c *commandContext) apiClient() (*api.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	return api.NewClient(c.baseURL(), cfg.Server.APIToken, nil), nil
}

func (c *commandContext) withClient(fn func(*api.Client) error) error {
	client, err := c.apiClient()
	if err != nil {
		return err
	}
	return wrapDialError(fn(client), c.baseURL())
}

func wrapDialError(err error, baseURL string) error {
	if err == nil {
		return nil
	}
	var statusErr *api.StatusError
	if errors.As(err, &statusErr) {
		return err
	}
	var opErr *net.OpError
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("connect to daemon: %s refused the connection; start the daemon with `psnrelay start`", baseURL)
	case errors.As(err, &opErr):
		return fmt.Errorf("connect to daemon at %s: %w", baseURL, err)
	default:
		return err
	}
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

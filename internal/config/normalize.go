package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeServer()
	c.normalizeFeed()
	c.normalizePSN()
	c.normalizeScene()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Server.StaticDir) != "" {
		if c.Server.StaticDir, err = expandPath(c.Server.StaticDir); err != nil {
			return fmt.Errorf("server.static_dir: %w", err)
		}
	}
	return nil
}

func (c *Config) normalizeServer() {
	c.Server.Bind = strings.TrimSpace(c.Server.Bind)
	if c.Server.Bind == "" {
		c.Server.Bind = defaultServerBind
	}
	c.Server.APIToken = strings.TrimSpace(c.Server.APIToken)
	if c.Server.ClientQueue <= 0 {
		c.Server.ClientQueue = defaultClientQueue
	}
}

func (c *Config) normalizeFeed() {
	c.Feed.Bind = strings.TrimSpace(c.Feed.Bind)
	if c.Feed.Bind == "" {
		c.Feed.Bind = defaultFeedBind
	}
	c.Feed.AddressPrefix = strings.TrimRight(strings.TrimSpace(c.Feed.AddressPrefix), "/")
	if c.Feed.AddressPrefix == "" {
		c.Feed.AddressPrefix = defaultAddressPrefix
	}
}

func (c *Config) normalizePSN() {
	c.PSN.Group = strings.TrimSpace(c.PSN.Group)
	c.PSN.Interface = strings.TrimSpace(c.PSN.Interface)
	c.PSN.SystemName = strings.TrimSpace(c.PSN.SystemName)
	if c.PSN.SystemName == "" {
		c.PSN.SystemName = defaultSystemName
	}
	if c.PSN.MaxPacketSize == 0 {
		c.PSN.MaxPacketSize = defaultMaxPacketSize
	}
}

func (c *Config) normalizeScene() {
	if len(c.Scene.Presets) == 0 {
		c.Scene.Presets = DefaultPresets()
	}
	for i := range c.Scene.Presets {
		c.Scene.Presets[i].Name = strings.TrimSpace(c.Scene.Presets[i].Name)
		c.Scene.Presets[i].BackgroundImage = strings.TrimSpace(c.Scene.Presets[i].BackgroundImage)
	}
	c.Scene.DefaultMode = strings.TrimSpace(c.Scene.DefaultMode)
	if c.Scene.DefaultMode == "" {
		c.Scene.DefaultMode = c.Scene.Presets[0].Name
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	switch c.Logging.Level {
	case "":
		c.Logging.Level = defaultLogLevel
	case "warning":
		c.Logging.Level = "warn"
	}
	if len(c.Logging.ComponentLevels) > 0 {
		levels := make(map[string]string, len(c.Logging.ComponentLevels))
		for component, level := range c.Logging.ComponentLevels {
			key := strings.ToLower(strings.TrimSpace(component))
			if key == "" {
				continue
			}
			levels[key] = strings.ToLower(strings.TrimSpace(level))
		}
		c.Logging.ComponentLevels = levels
	}
}

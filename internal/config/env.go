package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/caarlos0/env/v11"
)

// envOverrides lists the environment variables that take precedence over the
// config file. Unset variables leave the file value alone.
type envOverrides struct {
	WebPort     *int    `env:"WEB_SERVER_PORT"`
	OSCPort     *int    `env:"OSC_SERVER_PORT"`
	PSNPort     *int    `env:"PSN_DEFAULT_UDP_PORT"`
	PSNGroup    *string `env:"PSN_DEFAULT_UDP_MCAST_ADDRESS"`
	NumTrackers *int    `env:"NUM_TRACKERS"`
	LogLevel    *string `env:"PSNRELAY_LOG_LEVEL"`
	LogFormat   *string `env:"PSNRELAY_LOG_FORMAT"`
	APIToken    *string `env:"PSNRELAY_API_TOKEN"`
}

func (c *Config) applyEnv() error {
	var o envOverrides
	if err := env.Parse(&o); err != nil {
		return fmt.Errorf("environment overrides: %w", err)
	}
	if o.WebPort != nil {
		c.Server.Bind = replacePort(c.Server.Bind, *o.WebPort)
	}
	if o.OSCPort != nil {
		c.Feed.Bind = replacePort(c.Feed.Bind, *o.OSCPort)
	}
	if o.PSNPort != nil {
		c.PSN.Port = *o.PSNPort
	}
	if o.PSNGroup != nil {
		c.PSN.Group = *o.PSNGroup
	}
	if o.NumTrackers != nil {
		c.Trackers.InitialCount = *o.NumTrackers
	}
	if o.LogLevel != nil {
		c.Logging.Level = *o.LogLevel
	}
	if o.LogFormat != nil {
		c.Logging.Format = *o.LogFormat
	}
	if o.APIToken != nil {
		c.Server.APIToken = *o.APIToken
	}
	return nil
}

func replacePort(bind string, port int) string {
	host, _ := splitBind(bind)
	return joinHostPort(host, strconv.Itoa(port))
}

func splitBind(bind string) (string, string) {
	host, port, err := net.SplitHostPort(strings.TrimSpace(bind))
	if err != nil {
		return strings.TrimSpace(bind), ""
	}
	return host, port
}

func joinHostPort(host, port string) string {
	return net.JoinHostPort(host, port)
}

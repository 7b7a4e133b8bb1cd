package config

import (
	"errors"
	"fmt"
	"math"
	"net"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"psnrelay/internal/scene"
)

var structValidator = newStructValidator()

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := structValidator.Struct(c); err != nil {
		return describeValidation(err)
	}
	if err := c.validatePSN(); err != nil {
		return err
	}
	if err := c.validateTrackers(); err != nil {
		return err
	}
	if err := c.validateScene(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validatePSN() error {
	ip := net.ParseIP(c.PSN.Group)
	if ip == nil || !ip.IsMulticast() {
		return fmt.Errorf("psn.group %q is not an IPv4 multicast address", c.PSN.Group)
	}
	if c.PSN.InfoIntervalMS > 0 && c.PSN.InfoIntervalMS < c.PSN.TickMS {
		return errors.New("psn.info_interval_ms must be 0 (disabled) or at least psn.tick_ms")
	}
	return nil
}

func (c *Config) validateTrackers() error {
	for name, value := range map[string]float64{
		"trackers.start_x": c.Trackers.StartX,
		"trackers.start_y": c.Trackers.StartY,
		"trackers.start_z": c.Trackers.StartZ,
	} {
		if math.IsNaN(value) || math.IsInf(value, 0) {
			return fmt.Errorf("%s must be a finite number", name)
		}
	}
	return nil
}

func (c *Config) validateScene() error {
	if _, err := scene.NewConfig(c.ScenePresets(), c.Scene.DefaultMode); err != nil {
		return fmt.Errorf("scene: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	for component, level := range c.Logging.ComponentLevels {
		switch level {
		case "debug", "info", "warn", "error":
		default:
			return fmt.Errorf("logging.component_levels.%s: unsupported level %q", component, level)
		}
	}
	return nil
}

func describeValidation(err error) error {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	fe := fieldErrs[0]
	field := fe.Namespace()
	if idx := strings.Index(field, "."); idx >= 0 {
		field = field[idx+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s must be set", field)
	case "min", "max":
		return fmt.Errorf("%s must satisfy %s=%s (got %v)", field, fe.Tag(), fe.Param(), fe.Value())
	case "oneof":
		return fmt.Errorf("%s must be one of [%s] (got %v)", field, fe.Param(), fe.Value())
	default:
		return fmt.Errorf("%s failed %s validation (got %v)", field, fe.Tag(), fe.Value())
	}
}

package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"

	"psnrelay/internal/scene"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir" validate:"required"`
	LogDir   string `toml:"log_dir" validate:"required"`
}

// Server configures the HTTP and WebSocket listener.
type Server struct {
	Bind            string `toml:"bind" validate:"required,hostname_port"`
	StaticDir       string `toml:"static_dir"`
	APIToken        string `toml:"api_token"`
	WriteTimeoutMS  int    `toml:"write_timeout_ms" validate:"min=1"`
	PingIntervalMS  int    `toml:"ping_interval_ms" validate:"min=0"`
	ClientQueue     int    `toml:"client_queue" validate:"min=1,max=4096"`
	MaxMessageBytes int64  `toml:"max_message_bytes" validate:"min=64"`
}

// Feed configures the inbound OSC listener.
type Feed struct {
	Enabled       bool   `toml:"enabled"`
	Bind          string `toml:"bind" validate:"required,hostname_port"`
	AddressPrefix string `toml:"address_prefix" validate:"required,startswith=/"`
	ReusePort     bool   `toml:"reuse_port"`
}

// PSN configures the outbound multicast broadcaster.
type PSN struct {
	Group          string `toml:"group" validate:"required,ipv4"`
	Port           int    `toml:"port" validate:"min=1,max=65535"`
	Interface      string `toml:"interface"`
	TTL            int    `toml:"ttl" validate:"min=0,max=255"`
	Loopback       bool   `toml:"loopback"`
	TickMS         int    `toml:"tick_ms" validate:"min=1,max=1000"`
	InfoIntervalMS int    `toml:"info_interval_ms" validate:"min=0"`
	SystemName     string `toml:"system_name" validate:"required,max=255"`
	MaxPacketSize  int    `toml:"max_packet_size" validate:"min=64,max=32767"`
}

// Trackers describes the roster present at startup.
type Trackers struct {
	InitialCount int     `toml:"initial_count" validate:"min=0,max=1024"`
	StartX       float64 `toml:"start_x"`
	StartY       float64 `toml:"start_y"`
	StartZ       float64 `toml:"start_z"`
}

// Preset is one named scene bounds configuration.
type Preset struct {
	Name            string  `toml:"name" validate:"required"`
	XMin            float64 `toml:"x_min"`
	XMax            float64 `toml:"x_max"`
	YMin            float64 `toml:"y_min"`
	YMax            float64 `toml:"y_max"`
	ZMin            float64 `toml:"z_min"`
	ZMax            float64 `toml:"z_max"`
	ZOffset         float64 `toml:"z_offset"`
	BackgroundImage string  `toml:"background_image"`
}

// Scene holds the preset list and the mode selected at startup.
type Scene struct {
	DefaultMode string   `toml:"default_mode" validate:"required"`
	WatchConfig bool     `toml:"watch_config"`
	Presets     []Preset `toml:"presets" validate:"required,min=1,dive"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format          string            `toml:"format" validate:"oneof=console json"`
	Level           string            `toml:"level" validate:"oneof=debug info warn error"`
	ComponentLevels map[string]string `toml:"component_levels"`
}

// Config encapsulates all configuration values for psnrelay.
//
// Configuration sections by subsystem:
//   - Paths: lock, pid, and log locations
//   - Server: browser UI, WebSocket, and control API listener
//   - Feed: inbound OSC tracker positions
//   - PSN: outbound multicast stream
//   - Trackers: roster created at startup
//   - Scene: coordinate presets
//   - Logging: log format and levels
type Config struct {
	Paths    Paths    `toml:"paths"`
	Server   Server   `toml:"server"`
	Feed     Feed     `toml:"feed"`
	PSN      PSN      `toml:"psn"`
	Trackers Trackers `toml:"trackers"`
	Scene    Scene    `toml:"scene"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned
// config has environment overrides applied and path fields expanded.
func Load(path string) (*Config, string, bool, error) {
	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}
	cfg, err := loadFile(resolvedPath, exists)
	if err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

// Reload re-reads the file at path. It is used by the preset watcher, which
// must never see a half-applied config.
func Reload(path string) (*Config, error) {
	_, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config: %w", err)
	}
	return loadFile(path, true)
}

func loadFile(path string, exists bool) (*Config, error) {
	cfg := Default()
	// A file that lists presets replaces the built-in ones rather than extending them.
	cfg.Scene.Presets = nil
	if exists {
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}
	projectPath, err := filepath.Abs("psnrelay.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// LockPath is the single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.StateDir, "psnrelay.lock")
}

// PIDPath is where the running daemon records its process id.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.StateDir, "psnrelay.pid")
}

// LogPath is the run log written next to stdout output.
func (c *Config) LogPath() string {
	return filepath.Join(c.Paths.LogDir, "psnrelay.log")
}

// APIBaseURL returns the URL CLI commands use to reach the daemon.
func (c *Config) APIBaseURL() string {
	host, port := splitBind(c.Server.Bind)
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return "http://" + joinHostPort(host, port)
}

// FeedTarget returns the address local tools send OSC positions to.
func (c *Config) FeedTarget() string {
	host, port := splitBind(c.Feed.Bind)
	switch host {
	case "", "0.0.0.0", "::", "[::]":
		host = "127.0.0.1"
	}
	return joinHostPort(host, port)
}

// ScenePresets converts the configured presets into scene presets in file order.
func (c *Config) ScenePresets() []scene.Preset {
	out := make([]scene.Preset, 0, len(c.Scene.Presets))
	for _, p := range c.Scene.Presets {
		out = append(out, scene.Preset{
			Name: p.Name,
			Bounds: scene.Bounds{
				XMin: p.XMin, XMax: p.XMax,
				YMin: p.YMin, YMax: p.YMax,
				ZMin: p.ZMin, ZMax: p.ZMax,
				ZOffset: p.ZOffset,
			},
			BackgroundImage: p.BackgroundImage,
		})
	}
	return out
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

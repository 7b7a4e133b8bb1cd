package testsupport

import (
	"path/filepath"
	"testing"

	"psnrelay/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// Every listener binds an ephemeral loopback port and the feed is enabled.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.StateDir = filepath.Join(base, "state")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Server.Bind = "127.0.0.1:0"
	cfgVal.Server.PingIntervalMS = 0
	cfgVal.Feed.Enabled = true
	cfgVal.Feed.Bind = "127.0.0.1:0"
	cfgVal.PSN.Interface = ""

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.EnsureDirectories(); err != nil {
		t.Fatalf("create test directories: %v", err)
	}
	return builder.cfg
}

// WithTrackers sets the roster created at startup.
func WithTrackers(count int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Trackers.InitialCount = count
	}
}

// WithAPIToken requires a bearer token on /api routes.
func WithAPIToken(token string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.APIToken = token
	}
}

// WithStaticDir serves static files from a "static" directory under the test
// root.
func WithStaticDir() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Server.StaticDir = filepath.Join(b.baseDir, "static")
	}
}

// WithoutFeed disables the OSC listener.
func WithoutFeed() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Feed.Enabled = false
	}
}

// WithMode selects the startup scene mode.
func WithMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Scene.DefaultMode = mode
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}

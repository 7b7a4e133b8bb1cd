package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/pelletier/go-toml/v2"

	"psnrelay/internal/config"
	"psnrelay/internal/daemon"
	"psnrelay/internal/logging"
	"psnrelay/internal/testsupport"
)

type discardSender struct {
	mu      sync.Mutex
	packets int
}

func (s *discardSender) Send([]byte) error {
	s.mu.Lock()
	s.packets++
	s.mu.Unlock()
	return nil
}

func (s *discardSender) Close() error { return nil }

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	configPath string
}

// setupCLITestEnv runs a daemon in-process and writes a config file that
// points the CLI at its bound ports.
func setupCLITestEnv(t *testing.T, opts ...testsupport.ConfigOption) *cliTestEnv {
	t.Helper()
	t.Setenv("HOME", t.TempDir())

	cfg := testsupport.NewConfig(t, opts...)
	d, err := daemon.New(cfg, logging.NewNop(), daemon.WithPSNSender(&discardSender{}))
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	if err := d.Start(context.Background()); err != nil {
		t.Fatalf("daemon start: %v", err)
	}
	t.Cleanup(func() {
		if err := d.Stop(); err != nil {
			t.Errorf("daemon stop: %v", err)
		}
	})

	written := *cfg
	written.Server.Bind = d.Addr()
	if addr := d.FeedAddr(); addr != "" {
		written.Feed.Bind = addr
	} else {
		written.Feed.Bind = "127.0.0.1:9"
	}
	configPath := filepath.Join(testsupport.BaseDir(cfg), "config.toml")
	writeTestConfig(t, configPath, &written)

	return &cliTestEnv{cfg: cfg, daemon: d, configPath: configPath}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	var flags []string
	if configPath != "" {
		flags = append(flags, "--config", configPath)
	}
	cmd.SetArgs(append(flags, args...))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content, err := toml.Marshal(cfg)
	if err != nil {
		t.Fatalf("marshal config: %v", err)
	}
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}

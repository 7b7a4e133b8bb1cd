package daemonrun

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/google/uuid"

	"psnrelay/internal/config"
	"psnrelay/internal/daemon"
	"psnrelay/internal/logging"
	"psnrelay/internal/preflight"
)

// Options configures daemon process runtime behavior.
type Options struct {
	ConfigPath  string
	LogLevel    string
	Development bool
	Diagnostic  bool
}

// Run starts the psnrelay daemon and blocks until a signal arrives or a
// component fails.
func Run(cmdCtx context.Context, cfg *config.Config, opts Options) error {
	if cfg == nil {
		return fmt.Errorf("config is required")
	}
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	runID := time.Now().UTC().Format("20060102T150405.000Z")
	logPath := filepath.Join(cfg.Paths.LogDir, fmt.Sprintf("psnrelay-%s.log", runID))

	level := opts.LogLevel
	if level == "" {
		level = cfg.Logging.Level
	}
	logger, err := logging.New(logging.Options{
		Level:       level,
		Format:      cfg.Logging.Format,
		OutputPaths: []string{"stdout", logPath},
		Development: opts.Development,
		RunID:       runID,
	})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}

	if opts.Diagnostic {
		sessionID := uuid.NewString()
		debugDir := filepath.Join(cfg.Paths.LogDir, "debug")
		debugLogPath := filepath.Join(debugDir, fmt.Sprintf("psnrelay-%s.log", runID))
		debugLogger, debugErr := logging.New(logging.Options{
			Level:       "debug",
			Format:      "json",
			OutputPaths: []string{debugLogPath},
			Development: true,
			RunID:       runID,
		})
		if debugErr != nil {
			fmt.Fprintf(os.Stderr, "warn: unable to initialize debug logger: %v\n", debugErr)
		} else {
			logger = logging.TeeLogger(logger, debugLogger.Handler())
		}
		logger.Info("diagnostic mode enabled",
			logging.String(logging.FieldEventType, "diagnostic_mode_enabled"),
			logging.String(logging.FieldSessionID, sessionID),
			logging.String("debug_log_path", debugLogPath),
		)
	}

	if err := ensureCurrentLogPointer(cfg.LogPath(), logPath); err != nil {
		fmt.Fprintf(os.Stderr, "warn: unable to update psnrelay.log link: %v\n", err)
	}
	logStartupSnapshot(logger, cfg, opts.ConfigPath)
	for _, check := range preflight.Failed(preflight.RunAll(signalCtx, cfg, preflight.Options{})) {
		logging.WarnWithContext(logger, "preflight check failed", "preflight_failed",
			logging.String("check", check.Name),
			logging.String("detail", check.Detail),
			logging.String(logging.FieldErrorHint, "run psnrelay status for the full check list"),
			logging.String(logging.FieldImpact, "the affected feature may not work"),
		)
	}

	pidPath := cfg.PIDPath()
	if err := writePIDFile(pidPath); err != nil {
		return fmt.Errorf("write pid file: %w", err)
	}
	defer os.Remove(pidPath)

	d, err := daemon.New(cfg, logger, daemon.WithConfigPath(opts.ConfigPath))
	if err != nil {
		return fmt.Errorf("create daemon: %w", err)
	}
	if err := d.Start(signalCtx); err != nil {
		logging.ErrorWithContext(logger, "daemon start failed", "daemon_start_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "check that the HTTP, OSC, and PSN ports are free and the lock is not held"),
			logging.String(logging.FieldImpact, "relay is not running"),
		)
		return err
	}

	select {
	case <-signalCtx.Done():
		logger.Info("psnrelay daemon shutting down")
	case <-d.Done():
	}
	if err := d.Stop(); err != nil {
		logging.ErrorWithContext(logger, "daemon component failed", "daemon_component_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "see the preceding log records for the failing component"),
			logging.String(logging.FieldImpact, "relay stopped"),
		)
		return err
	}
	return nil
}

func ensureCurrentLogPointer(current, target string) error {
	if current == "" || target == "" {
		return nil
	}
	if err := os.Remove(current); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove existing log pointer: %w", err)
	}
	if err := os.Symlink(target, current); err == nil {
		return nil
	}
	if err := os.Link(target, current); err != nil {
		return fmt.Errorf("link log pointer: %w", err)
	}
	return nil
}

func writePIDFile(path string) error {
	if path == "" {
		return nil
	}
	value := strconv.Itoa(os.Getpid()) + "\n"
	return os.WriteFile(path, []byte(value), 0o644)
}

func logStartupSnapshot(logger *slog.Logger, cfg *config.Config, configPath string) {
	if logger == nil || cfg == nil {
		return
	}
	logger.Info("startup snapshot",
		logging.String(logging.FieldEventType, "startup_snapshot"),
		logging.String("config_path", configPath),
		logging.String("http_bind", cfg.Server.Bind),
		logging.Bool("api_token_set", cfg.Server.APIToken != ""),
		logging.Bool("feed_enabled", cfg.Feed.Enabled),
		logging.String("feed_bind", cfg.Feed.Bind),
		logging.String("psn_group", fmt.Sprintf("%s:%d", cfg.PSN.Group, cfg.PSN.Port)),
		logging.Int("psn_tick_ms", cfg.PSN.TickMS),
		logging.Int("trackers", cfg.Trackers.InitialCount),
		logging.String(logging.FieldMode, cfg.Scene.DefaultMode),
		logging.Bool("watch_config", cfg.Scene.WatchConfig),
	)
}

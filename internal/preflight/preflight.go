package preflight

import (
	"context"
	"path/filepath"
	"strings"

	"psnrelay/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// Options selects optional checks.
type Options struct {
	// Ports probes the HTTP and feed listen addresses. Leave it off while a
	// daemon is running.
	Ports bool
}

// RunAll executes all applicable preflight checks for the given config.
// Checks are only run when the corresponding feature is enabled.
func RunAll(ctx context.Context, cfg *config.Config, opts Options) []Result {
	if cfg == nil {
		return nil
	}

	results := []Result{
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
	}

	if staticDir := strings.TrimSpace(cfg.Server.StaticDir); staticDir != "" {
		results = append(results, CheckDirectoryAccess("Static UI", staticDir))
		results = append(results, CheckFile("UI index", filepath.Join(staticDir, "index.html")))
		for _, preset := range cfg.Scene.Presets {
			if image := strings.TrimSpace(preset.BackgroundImage); image != "" {
				results = append(results, CheckBackgroundImage(preset.Name, staticDir, image))
			}
		}
	}

	if opts.Ports {
		results = append(results, CheckTCPBind("HTTP listener", cfg.Server.Bind))
		if cfg.Feed.Enabled {
			results = append(results, CheckUDPBind(ctx, "OSC feed", cfg.Feed.Bind, cfg.Feed.ReusePort))
		}
	}

	results = append(results, CheckMulticast(cfg.PSN))
	return results
}

// Failed returns the results that did not pass.
func Failed(results []Result) []Result {
	var out []Result
	for _, r := range results {
		if !r.Passed {
			out = append(out, r)
		}
	}
	return out
}

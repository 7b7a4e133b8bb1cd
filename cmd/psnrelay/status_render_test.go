package main

import (
	"strings"
	"testing"

	"psnrelay/internal/api"
)

func TestRenderStatusLineColorize(t *testing.T) {
	plain := renderStatusLine("Daemon", statusOK, "running", false)
	if plain != "  Daemon:              [OK] running" {
		t.Fatalf("unexpected plain line %q", plain)
	}
	colored := renderStatusLine("Daemon", statusWarn, "", true)
	if !strings.HasPrefix(colored, ansiYellow) || !strings.HasSuffix(colored, ansiReset) {
		t.Fatalf("expected yellow line, got %q", colored)
	}
}

func TestRenderStatusFlagsProblems(t *testing.T) {
	status := api.StatusResponse{
		Running:       true,
		PID:           42,
		UptimeSeconds: 3725,
		Mode:          "full_arena",
		Modes:         []string{"scene_only", "full_arena"},
		Trackers:      3,
		Hub:           api.HubStats{Sessions: 2, Evicted: 1},
		Broadcaster:   &api.BroadcasterStats{Destination: "236.10.10.10:56565", Ticks: 10, Packets: 10, SendErrors: 2},
	}
	out := strings.Join(renderStatus(status, false), "\n")
	for _, want := range []string{
		"[OK] running (pid 42)",
		"[INFO] 1h2m5s",
		"[INFO] Full Arena",
		"Scene Only, Full Arena",
		"[WARN] 1",
		"Send errors:         [WARN] 2",
		"[INFO] disabled",
	} {
		requireContains(t, out, want)
	}
}

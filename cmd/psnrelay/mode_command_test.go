package main

import (
	"testing"
)

func TestModeCommandShowsAndSwitches(t *testing.T) {
	env := setupCLITestEnv(t)

	out, _, err := runCLI(t, []string{"mode"}, env.configPath)
	if err != nil {
		t.Fatalf("mode: %v", err)
	}
	requireContains(t, out, "scene_only")
	requireContains(t, out, "Full Arena")

	out, _, err = runCLI(t, []string{"mode", "full_arena"}, env.configPath)
	if err != nil {
		t.Fatalf("mode full_arena: %v", err)
	}
	requireContains(t, out, "Switched to Full Arena")
	if got := env.daemon.Relay().Mode(); got != "full_arena" {
		t.Fatalf("expected daemon mode full_arena, got %q", got)
	}

	if _, _, err := runCLI(t, []string{"mode", "nope"}, env.configPath); err == nil {
		t.Fatal("expected unknown mode to fail")
	} else {
		requireContains(t, err.Error(), "unknown scene mode")
	}
}

func TestDisplayMode(t *testing.T) {
	cases := map[string]string{
		"scene_only":      "Scene Only",
		"scene-and-crowd": "Scene And Crowd",
		"":                "-",
	}
	for in, want := range cases {
		if got := displayMode(in); got != want {
			t.Fatalf("displayMode(%q) = %q, want %q", in, got, want)
		}
	}
}

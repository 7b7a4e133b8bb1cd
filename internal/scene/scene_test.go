package scene_test

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"psnrelay/internal/scene"
)

const tolerance = 1e-9

func sceneOnly() scene.Preset {
	return scene.Preset{
		Name:   "scene_only",
		Bounds: scene.Bounds{XMin: -6.5, XMax: 6.5, YMin: 0, YMax: 6.3, ZMin: 0, ZMax: 4},
	}
}

func fullArena() scene.Preset {
	return scene.Preset{
		Name:   "full_arena",
		Bounds: scene.Bounds{XMin: -6.5, XMax: 6.5, YMin: -9.7, YMax: 6.3, ZMin: 0, ZMax: 4},
	}
}

func closeTo(a, b float64) bool {
	return math.Abs(a-b) <= tolerance
}

func TestToSceneStartPosition(t *testing.T) {
	got := scene.ToScene(scene.Point{X: 0.5, Y: 0.5, Z: 2}, sceneOnly().Bounds)
	if !closeTo(got.X, 0) || !closeTo(got.Y, 3.15) || !closeTo(got.Z, 2) {
		t.Fatalf("unexpected scene point: %+v", got)
	}
}

func TestToSceneInvertsYAxis(t *testing.T) {
	b := sceneOnly().Bounds
	top := scene.ToScene(scene.Point{X: 0, Y: 0}, b)
	bottom := scene.ToScene(scene.Point{X: 1, Y: 1}, b)
	if !closeTo(top.X, -6.5) || !closeTo(top.Y, 6.3) {
		t.Fatalf("unexpected top-left mapping: %+v", top)
	}
	if !closeTo(bottom.X, 6.5) || !closeTo(bottom.Y, 0) {
		t.Fatalf("unexpected bottom-right mapping: %+v", bottom)
	}
}

func TestRoundTripRecoversInternalPoint(t *testing.T) {
	bounds := []scene.Bounds{
		sceneOnly().Bounds,
		fullArena().Bounds,
		{XMin: 0, XMax: 1, YMin: 0, YMax: 1, ZMin: 0, ZMax: 1},
		{XMin: -1000, XMax: 0.001, YMin: 12.5, YMax: 13, ZMin: -2, ZMax: 2, ZOffset: 0.75},
	}
	for _, b := range bounds {
		for xi := 0; xi <= 10; xi++ {
			for yi := 0; yi <= 10; yi++ {
				in := scene.Point{X: float64(xi) / 10, Y: float64(yi) / 10, Z: float64(xi+yi) / 7}
				out := scene.ToInternal(scene.ToScene(in, b), b)
				if math.Abs(out.X-in.X) > 1e-6 || math.Abs(out.Y-in.Y) > 1e-6 || math.Abs(out.Z-in.Z) > 1e-9 {
					t.Fatalf("round trip mismatch for bounds %+v: in=%+v out=%+v", b, in, out)
				}
			}
		}
	}
}

func TestZOffsetAppliedSymmetrically(t *testing.T) {
	b := sceneOnly().Bounds
	b.ZOffset = 1.5
	if got := scene.ToScene(scene.Point{Z: 2}, b); !closeTo(got.Z, 3.5) {
		t.Fatalf("expected offset z 3.5, got %v", got.Z)
	}
	if got := scene.ToInternal(scene.Point{Z: 3.5}, b); !closeTo(got.Z, 2) {
		t.Fatalf("expected internal z 2, got %v", got.Z)
	}
}

func TestBoundsValidate(t *testing.T) {
	if err := sceneOnly().Bounds.Validate(); err != nil {
		t.Fatalf("expected valid bounds, got %v", err)
	}
	bad := []scene.Bounds{
		{XMin: 1, XMax: 1, YMin: 0, YMax: 1, ZMin: 0, ZMax: 1},
		{XMin: 0, XMax: 1, YMin: 2, YMax: 1, ZMin: 0, ZMax: 1},
		{XMin: 0, XMax: 1, YMin: 0, YMax: 1, ZMin: 0, ZMax: math.NaN()},
		{XMin: 0, XMax: 1, YMin: 0, YMax: 1, ZMin: 0, ZMax: 1, ZOffset: math.Inf(1)},
	}
	for _, b := range bad {
		if err := b.Validate(); !errors.Is(err, scene.ErrInvalidBounds) {
			t.Fatalf("expected ErrInvalidBounds for %+v, got %v", b, err)
		}
	}
}

func TestConfigSetMode(t *testing.T) {
	cfg, err := scene.NewConfig([]scene.Preset{sceneOnly(), fullArena()}, "scene_only")
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	if cfg.Mode() != "scene_only" {
		t.Fatalf("unexpected initial mode %q", cfg.Mode())
	}

	preset, err := cfg.SetMode("full_arena")
	if err != nil {
		t.Fatalf("SetMode returned error: %v", err)
	}
	if preset.Bounds.YMin != -9.7 || cfg.Active().Bounds.YMin != -9.7 {
		t.Fatalf("expected full arena bounds, got %+v", cfg.Active().Bounds)
	}

	if _, err := cfg.SetMode("backstage"); !errors.Is(err, scene.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
	if _, err := cfg.SetMode(" scene_only "); !errors.Is(err, scene.ErrUnknownMode) {
		t.Fatalf("expected padded name to be rejected, got %v", err)
	}
	if cfg.Mode() != "full_arena" {
		t.Fatalf("failed switch must leave mode unchanged, got %q", cfg.Mode())
	}
}

func TestNewConfigRejectsInvalidPresets(t *testing.T) {
	broken := sceneOnly()
	broken.Bounds.XMax = -10
	if _, err := scene.NewConfig([]scene.Preset{broken}, "scene_only"); !errors.Is(err, scene.ErrInvalidBounds) {
		t.Fatalf("expected ErrInvalidBounds, got %v", err)
	}
	if _, err := scene.NewConfig([]scene.Preset{sceneOnly(), sceneOnly()}, "scene_only"); err == nil {
		t.Fatal("expected duplicate preset error")
	}
	if _, err := scene.NewConfig([]scene.Preset{sceneOnly()}, "missing"); !errors.Is(err, scene.ErrUnknownMode) {
		t.Fatalf("expected ErrUnknownMode, got %v", err)
	}
}

func TestReplacePresetsKeepsActiveMode(t *testing.T) {
	cfg, err := scene.NewConfig([]scene.Preset{sceneOnly(), fullArena()}, "full_arena")
	if err != nil {
		t.Fatalf("NewConfig returned error: %v", err)
	}
	wider := fullArena()
	wider.Bounds.XMin, wider.Bounds.XMax = -8, 8

	active, err := cfg.ReplacePresets([]scene.Preset{sceneOnly(), wider}, "scene_only")
	if err != nil {
		t.Fatalf("ReplacePresets returned error: %v", err)
	}
	if active.Name != "full_arena" || active.Bounds.XMax != 8 {
		t.Fatalf("expected widened full_arena to stay active, got %+v", active)
	}

	active, err = cfg.ReplacePresets([]scene.Preset{sceneOnly()}, "scene_only")
	if err != nil {
		t.Fatalf("ReplacePresets returned error: %v", err)
	}
	if active.Name != "scene_only" {
		t.Fatalf("expected fallback to scene_only, got %q", active.Name)
	}
	if modes := cfg.Modes(); len(modes) != 1 || modes[0] != "scene_only" {
		t.Fatalf("unexpected modes after replace: %v", modes)
	}
}

func TestReplacePresetsDoesNotRevertConcurrentSetMode(t *testing.T) {
	// A large table keeps ReplacePresets busy long enough to overlap SetMode.
	presets := []scene.Preset{sceneOnly(), fullArena()}
	for i := range 50000 {
		extra := sceneOnly()
		extra.Name = fmt.Sprintf("extra_%d", i)
		presets = append(presets, extra)
	}

	for round := range 10 {
		cfg, err := scene.NewConfig([]scene.Preset{sceneOnly(), fullArena()}, "scene_only")
		if err != nil {
			t.Fatalf("NewConfig returned error: %v", err)
		}
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			if _, err := cfg.ReplacePresets(presets, "scene_only"); err != nil {
				t.Errorf("ReplacePresets returned error: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			time.Sleep(time.Duration(round) * time.Millisecond)
			if _, err := cfg.SetMode("full_arena"); err != nil {
				t.Errorf("SetMode returned error: %v", err)
			}
		}()
		wg.Wait()
		if cfg.Mode() != "full_arena" {
			t.Fatalf("round %d: mode switch was reverted, active mode %q", round, cfg.Mode())
		}
		if cfg.Active().Bounds.YMin != -9.7 {
			t.Fatalf("round %d: expected full arena bounds, got %+v", round, cfg.Active().Bounds)
		}
	}
}

package logs_test

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"psnrelay/internal/logs"
)

func TestLastLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psnrelay.log")
	if err := os.WriteFile(path, []byte("a\nb\nc\n"), 0o644); err != nil {
		t.Fatalf("write log: %v", err)
	}

	lines, offset, err := logs.Last(path, 2)
	if err != nil {
		t.Fatalf("Last returned error: %v", err)
	}
	if len(lines) != 2 || lines[0] != "b" || lines[1] != "c" {
		t.Fatalf("unexpected lines: %#v", lines)
	}
	if offset != 6 {
		t.Fatalf("expected offset 6, got %d", offset)
	}

	lines, _, err = logs.Last(path, 10)
	if err != nil || len(lines) != 3 || lines[0] != "a" {
		t.Fatalf("Last(10) = %#v, %v", lines, err)
	}
}

func TestLastMissingFile(t *testing.T) {
	lines, offset, err := logs.Last(filepath.Join(t.TempDir(), "nope.log"), 5)
	if err != nil || lines != nil || offset != 0 {
		t.Fatalf("Last on missing file = %#v, %d, %v", lines, offset, err)
	}
}

type collector struct {
	mu    sync.Mutex
	lines []string
}

func (c *collector) emit(line string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lines = append(c.lines, line)
	return nil
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lines...)
}

func waitLines(t *testing.T, c *collector, want int) []string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if got := c.snapshot(); len(got) >= want {
			return got
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("expected %d lines, got %#v", want, c.snapshot())
	return nil
}

func appendTo(t *testing.T, path, text string) {
	t.Helper()
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open append: %v", err)
	}
	defer f.Close()
	if _, err := f.WriteString(text); err != nil {
		t.Fatalf("append log: %v", err)
	}
}

func TestFollowEmitsCompleteLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "psnrelay.log")
	appendTo(t, path, "start\n")
	_, offset, err := logs.Last(path, 1)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	c := &collector{}
	done := make(chan error, 1)
	go func() { done <- logs.Follow(ctx, path, offset, 10*time.Millisecond, c.emit) }()

	appendTo(t, path, "later\npart")
	got := waitLines(t, c, 1)
	if got[0] != "later" {
		t.Fatalf("unexpected first line %q", got[0])
	}
	appendTo(t, path, "ial\n")
	got = waitLines(t, c, 2)
	if got[1] != "partial" {
		t.Fatalf("expected partial line to be joined, got %#v", got)
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Follow returned error: %v", err)
	}
}

func TestFollowRestartsWhenPointerMoves(t *testing.T) {
	dir := t.TempDir()
	first := filepath.Join(dir, "psnrelay-1.log")
	second := filepath.Join(dir, "psnrelay-2.log")
	pointer := filepath.Join(dir, "psnrelay.log")
	appendTo(t, first, "old run\n")
	if err := os.Symlink(first, pointer); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}
	_, offset, err := logs.Last(pointer, 0)
	if err != nil {
		t.Fatalf("Last: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	c := &collector{}
	go func() { _ = logs.Follow(ctx, pointer, offset, 10*time.Millisecond, c.emit) }()

	time.Sleep(50 * time.Millisecond)
	appendTo(t, second, "new run\n")
	if err := os.Remove(pointer); err != nil {
		t.Fatalf("remove pointer: %v", err)
	}
	if err := os.Symlink(second, pointer); err != nil {
		t.Fatalf("relink pointer: %v", err)
	}

	got := waitLines(t, c, 1)
	if got[0] != "new run" {
		t.Fatalf("expected new run line, got %#v", got)
	}
}

package logs

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"time"
)

const maxLineBytes = 1 << 20

// Last returns up to n trailing lines of path and the file size at open,
// which is where a follower should continue. A missing file yields no lines
// and offset 0.
func Last(path string, n int) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, 0, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, fmt.Errorf("stat log file: %w", err)
	}
	if info.IsDir() {
		return nil, 0, fmt.Errorf("log path %q is a directory", path)
	}
	if n <= 0 {
		return nil, info.Size(), nil
	}

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	ring := make([]string, n)
	count, idx := 0, 0
	for scanner.Scan() {
		ring[idx] = scanner.Text()
		idx = (idx + 1) % n
		if count < n {
			count++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, 0, fmt.Errorf("read log file: %w", err)
	}

	lines := make([]string, count)
	start := 0
	if count == n {
		start = idx
	}
	for i := range lines {
		lines[i] = ring[(start+i)%n]
	}
	return lines, info.Size(), nil
}

// Follow polls path from offset and calls emit for every complete line until
// ctx is done. When the file is replaced or truncated it restarts at 0.
func Follow(ctx context.Context, path string, offset int64, poll time.Duration, emit func(string) error) error {
	if poll <= 0 {
		poll = 250 * time.Millisecond
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	current, _ := os.Stat(path)
	for {
		info, err := os.Stat(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			offset = 0
		case err != nil:
			return fmt.Errorf("stat log file: %w", err)
		default:
			if current != nil && !os.SameFile(current, info) || info.Size() < offset {
				offset = 0
			}
			current = info
			lines, next, err := readLines(path, offset)
			if err != nil {
				return err
			}
			offset = next
			for _, line := range lines {
				if err := emit(line); err != nil {
					return err
				}
			}
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// readLines returns the complete lines after offset. A trailing partial line
// is left for the next poll.
func readLines(path string, offset int64) ([]string, int64, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, 0, nil
		}
		return nil, offset, fmt.Errorf("open log file: %w", err)
	}
	defer file.Close()

	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		return nil, offset, fmt.Errorf("seek log file: %w", err)
	}
	chunk, err := io.ReadAll(io.LimitReader(file, 16*maxLineBytes))
	if err != nil {
		return nil, offset, fmt.Errorf("read log file: %w", err)
	}
	end := bytes.LastIndexByte(chunk, '\n')
	if end < 0 {
		return nil, offset, nil
	}
	complete := chunk[:end]
	lines := make([]string, 0, bytes.Count(complete, []byte{'\n'})+1)
	for _, line := range bytes.Split(complete, []byte{'\n'}) {
		lines = append(lines, string(line))
	}
	return lines, offset + int64(end) + 1, nil
}

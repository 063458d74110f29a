package logging

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
)

// Follow prints entries appended to path until ctx is done, like tail -f.
// When the writer rotates the file, the new file is read from the start.
func (v *Viewer) Follow(ctx context.Context, path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("failed to seek log file: %w", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create log watcher: %w", err)
	}
	defer func() { _ = w.Close() }()
	if err := w.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("failed to watch %s: %w", filepath.Dir(path), err)
	}
	target := filepath.Clean(path)

	reader := bufio.NewReaderSize(f, 64*1024)
	var partial strings.Builder
	drain := func() {
		for {
			chunk, err := reader.ReadString('\n')
			if err != nil {
				// Incomplete last line; finished by the next write.
				partial.WriteString(chunk)
				return
			}
			partial.WriteString(strings.TrimRight(chunk, "\r\n"))
			entry := ParseLine(partial.String())
			partial.Reset()
			if v.matches(entry) {
				_, _ = fmt.Fprintln(v.out, v.FormatEntry(entry))
			}
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			switch {
			case ev.Op&fsnotify.Write != 0:
				drain()
			case ev.Op&fsnotify.Create != 0:
				drain()
				next, err := os.Open(path)
				if err != nil {
					continue
				}
				_ = f.Close()
				f = next
				reader.Reset(f)
				partial.Reset()
				drain()
			}
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			return fmt.Errorf("log watcher: %w", err)
		}
	}
}

// Package trajectory implements the append-only JSONL event journal:
// crash-durable appends and an O(k) reverse-seek tail read, independent of
// total file size.
package trajectory

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	blockSize     = 4096
	defaultMaxCap = 1 << 20 // 1 MiB
)

// Logger appends events to, and tails, a single JSONL file. The append path
// relies on O_APPEND kernel-level atomicity and never takes a lock; only the
// tail read path and directory creation are guarded by mu, per the lock
// hierarchy in the original spec §5 (never held while the state engine's
// lock is held).
type Logger struct {
	path string
	mu   sync.Mutex

	// MaxTailBytes bounds how much trailing data Tail will read, so a
	// pathologically long single line cannot OOM the process. Zero means
	// the default of 1 MiB.
	MaxTailBytes int
}

// New returns a Logger writing to path.
func New(path string) *Logger {
	return &Logger{path: path}
}

// Log appends event as one line of JSON, flushing and fsyncing before
// returning so the write is crash-durable.
func (l *Logger) Log(event map[string]any) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("trajectory: marshal event: %w", err)
	}
	data = append(data, '\n')

	l.mu.Lock()
	dir := filepath.Dir(l.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		l.mu.Unlock()
		return fmt.Errorf("trajectory: create dir: %w", err)
	}
	l.mu.Unlock()

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("trajectory: open: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("trajectory: append: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("trajectory: fsync: %w", err)
	}
	return nil
}

// Tail returns the last n events in chronological order. A missing journal
// file returns an empty slice, not an error. Lines that fail to parse as
// JSON (a crash may have left a partial last line) are silently skipped.
//
// Implementation: seek to the end and read backward in 4 KiB blocks,
// accumulating raw bytes until n newlines have been seen or the file is
// exhausted or MaxTailBytes is reached; only then are the accumulated lines
// parsed, so parse cost never appears inside the block-read loop.
func (l *Logger) Tail(n int) ([]map[string]any, error) {
	if n <= 0 {
		return nil, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("trajectory: open: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("trajectory: stat: %w", err)
	}
	size := info.Size()
	if size == 0 {
		return nil, nil
	}

	maxCap := l.MaxTailBytes
	if maxCap <= 0 {
		maxCap = defaultMaxCap
	}

	raw, reachedStart, err := readTailBlocks(f, size, n, maxCap)
	if err != nil {
		return nil, err
	}

	return parseTailLines(raw, n, reachedStart), nil
}

// CountForTask scans the full journal and returns how many events so far
// carry task_id == taskID. Used by the daemon's task_claim handler to
// attach a retry-count to reclaim events (original spec §4.7). Unlike Tail,
// this is a full forward scan: it answers "how many total", a question
// reverse-seek cannot shortcut, and is only called on the much rarer
// reclaim path.
func (l *Logger) CountForTask(taskID string) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		return 0
	}
	defer f.Close()

	count := 0
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for scanner.Scan() {
		var ev map[string]any
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		if id, _ := ev["task_id"].(string); id == taskID {
			count++
		}
	}
	return count
}

// readTailBlocks reads backward from the end of f in blockSize chunks,
// stopping once at least n newlines are present in the accumulated buffer,
// the start of the file is reached, or cap bytes have been read. The second
// return value reports whether the read reached byte offset 0 (meaning buf's
// first line is whole, not a fragment of an earlier line).
func readTailBlocks(f *os.File, size int64, n int, cap int) ([]byte, bool, error) {
	var buf []byte
	pos := size
	newlines := 0

	for pos > 0 && newlines < n && len(buf) < cap {
		readSize := int64(blockSize)
		if readSize > pos {
			readSize = pos
		}
		pos -= readSize

		block := make([]byte, readSize)
		if _, err := f.ReadAt(block, pos); err != nil && err != io.EOF {
			return nil, false, fmt.Errorf("trajectory: read: %w", err)
		}

		newlines += bytes.Count(block, []byte{'\n'})
		buf = append(block, buf...)
	}

	reachedStart := pos == 0
	if len(buf) > cap {
		buf = buf[len(buf)-cap:]
		reachedStart = false
	}
	return buf, reachedStart, nil
}

// parseTailLines splits raw on newlines, parses each non-empty line as JSON,
// skipping any that fail to parse, and returns the last n parsed events.
func parseTailLines(raw []byte, n int, reachedStart bool) []map[string]any {
	lines := bytes.Split(raw, []byte{'\n'})

	// If we didn't read from the true start of the file, the first element
	// of lines is a fragment of an earlier (unread) line and must be
	// dropped rather than treated as a corrupt line to skip.
	candidates := lines
	if !reachedStart && len(candidates) > 1 {
		candidates = candidates[1:]
	}

	events := make([]map[string]any, 0, n)
	for _, line := range candidates {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var ev map[string]any
		if err := json.Unmarshal(line, &ev); err != nil {
			continue
		}
		events = append(events, ev)
	}

	if len(events) > n {
		events = events[len(events)-n:]
	}
	return events
}

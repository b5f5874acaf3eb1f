// Package skiplog records input blocks the loaders chose not to insert, one CSV
// row per block, so an operator can fix and replay them later.
package skiplog

import (
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/zeebo/xxh3"
)

// Header is the first row of every skip log.
var Header = []string{"run_id", "reason", "line_number", "field", "fingerprint", "raw"}

// Log appends skipped blocks to a CSV file and keeps per-reason counts.
// A nil *Log is valid and discards everything.
type Log struct {
	mu      sync.Mutex
	runID   string
	reasons map[string]int
	f       *os.File
	w       *csv.Writer
	err     error // first write error
}

// Open creates (or truncates) path, creating parent directories as needed,
// and writes the header row.
func Open(path, runID string) (*Log, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", filepath.Dir(path), err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	w := csv.NewWriter(f)
	if err := w.Write(Header); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write header %s: %w", path, err)
	}
	return &Log{runID: runID, reasons: make(map[string]int), f: f, w: w}, nil
}

// Fingerprint is the hex xxh3 hash of raw, used to spot the same bad block
// across runs.
func Fingerprint(raw string) string {
	return fmt.Sprintf("%016x", xxh3.HashString(raw))
}

// Add records one skipped block.
func (l *Log) Add(reason string, line int, field, raw string) {
	if l == nil {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reasons[reason]++
	if err := l.w.Write([]string{l.runID, reason, strconv.Itoa(line), field, Fingerprint(raw), raw}); err != nil && l.err == nil {
		l.err = fmt.Errorf("write skip log: %w", err)
	}
}

// Err returns the first error seen while writing rows. Close reports it too.
func (l *Log) Err() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.err
}

// Counts returns a copy of the per-reason totals.
func (l *Log) Counts() map[string]int {
	out := map[string]int{}
	if l == nil {
		return out
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	for k, v := range l.reasons {
		out[k] = v
	}
	return out
}

// Close flushes buffered rows and closes the file.
func (l *Log) Close() error {
	if l == nil {
		return nil
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.w.Flush()
	werr := l.err
	if werr == nil {
		werr = l.w.Error()
	}
	if err := l.f.Close(); err != nil && werr == nil {
		return err
	}
	return werr
}

package skiplog

import (
	"encoding/csv"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

// readAll re-opens path and returns every CSV row.
func readAll(t *testing.T, path string) [][]string {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open for read: %v", err)
	}
	defer f.Close()
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("readall: %v", err)
	}
	return rows
}

// TestOpen_CreatesDirFileAndHeader verifies that Open creates missing parent
// directories and writes the header immediately.
func TestOpen_CreatesDirFileAndHeader(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "skipped", "orders.csv")
	l, err := Open(target, "run-1")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readAll(t, target)
	if len(rows) != 1 || !reflect.DeepEqual(rows[0], Header) {
		t.Fatalf("want only the header, got %#v", rows)
	}
}

func TestAdd_WritesRowsAndCounts(t *testing.T) {
	t.Parallel()

	target := filepath.Join(t.TempDir(), "orders.csv")
	l, err := Open(target, "run-2")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	raw := "order,not-a-date\n1,Thing"
	l.Add("invalid_date", 3, "not-a-date", raw)
	l.Add("invalid_date", 9, "2024-13-01", "order,2024-13-01")
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	rows := readAll(t, target)
	if len(rows) != 3 {
		t.Fatalf("want header + 2 rows, got %d", len(rows))
	}
	want := []string{"run-2", "invalid_date", "3", "not-a-date", Fingerprint(raw), raw}
	if !reflect.DeepEqual(rows[1], want) {
		t.Fatalf("row mismatch\ngot : %#v\nwant: %#v", rows[1], want)
	}
	if got := l.Counts()["invalid_date"]; got != 2 {
		t.Fatalf("count = %d; want 2", got)
	}
}

func TestFingerprint_StableAndDistinct(t *testing.T) {
	t.Parallel()

	a := Fingerprint("order,not-a-date")
	if a != Fingerprint("order,not-a-date") {
		t.Fatalf("fingerprint not stable")
	}
	if a == Fingerprint("order,2024-01-05") {
		t.Fatalf("fingerprints should differ")
	}
	if len(a) != 16 {
		t.Fatalf("fingerprint should be 16 hex chars, got %q", a)
	}
}

func TestNilLogIsNoop(t *testing.T) {
	t.Parallel()

	var l *Log
	l.Add("invalid_date", 1, "x", "y")
	if len(l.Counts()) != 0 {
		t.Fatalf("nil log should have no counts")
	}
	if err := l.Close(); err != nil {
		t.Fatalf("nil Close: %v", err)
	}
}

func TestOpen_FailsOnUnwritablePath(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	// A regular file where a directory is expected.
	if _, err := Open(filepath.Join(blocker, "sub", "orders.csv"), "r"); err == nil {
		t.Fatalf("expected error")
	}
}

func TestAdd_KeepsFirstWriteError(t *testing.T) {
	t.Parallel()

	l, err := Open(filepath.Join(t.TempDir(), "orders_skipped.csv"), "run-3")
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if l.Err() != nil {
		t.Fatalf("fresh log has error: %v", l.Err())
	}
	// Closing the file underneath makes the next buffer spill fail.
	_ = l.f.Close()
	big := strings.Repeat("1,widget\n", 1024)
	l.Add("invalid_date", 1, "bad", big)
	l.Add("invalid_date", 2, "bad", big)

	if l.Err() == nil {
		t.Fatalf("write error was dropped")
	}
	if got := l.Counts()["invalid_date"]; got != 2 {
		t.Fatalf("count = %d; want 2", got)
	}
	if err := l.Close(); err == nil || !strings.Contains(err.Error(), "write skip log") {
		t.Fatalf("Close = %v; want the first write error", err)
	}
}

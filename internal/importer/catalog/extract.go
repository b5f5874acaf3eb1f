package catalog

import (
	"bufio"
	"fmt"
	"io"
	"iter"
	"strconv"
	"strings"

	"recordloader/internal/csvutil"
	"recordloader/internal/domain"
)

// fieldCount is the fixed shape of a catalog line: artist, album, track, title.
const fieldCount = 4

// Records lazily reads one CatalogRecord per non-blank line of r. Any
// malformed line is fatal: it is yielded with its error and iteration stops.
func Records(r io.Reader) iter.Seq2[domain.CatalogRecord, error] {
	return func(yield func(domain.CatalogRecord, error) bool) {
		sc := bufio.NewScanner(r)
		line := 0
		for sc.Scan() {
			line++
			text := sc.Text()
			if line == 1 {
				text = csvutil.StripBOM(text)
			}
			if csvutil.IsBlank(text) {
				continue
			}
			rec, err := parseRecord(text, line)
			if !yield(rec, err) || err != nil {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(domain.CatalogRecord{}, fmt.Errorf("read catalog: %w", err))
		}
	}
}

func parseRecord(text string, line int) (domain.CatalogRecord, error) {
	f := csvutil.SplitFields(text)
	if len(f) != fieldCount {
		return domain.CatalogRecord{Line: line}, fmt.Errorf("line %d: want %d fields, got %d", line, fieldCount, len(f))
	}
	track, err := strconv.Atoi(strings.TrimSpace(f[2]))
	if err != nil {
		return domain.CatalogRecord{Line: line}, fmt.Errorf("line %d: track: %w", line, err)
	}
	return domain.CatalogRecord{
		Line:   line,
		Artist: csvutil.Clean(f[0]),
		Album:  csvutil.Clean(f[1]),
		Track:  track,
		Title:  csvutil.Clean(f[3]),
	}, nil
}

package orders

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"iter"
	"regexp"
	"strconv"
	"strings"
	"time"

	"recordloader/internal/csvutil"
	"recordloader/internal/domain"
)

// headerPrefix opens every order block. Matching is case-sensitive.
const headerPrefix = "order,"

// headerRE finds the start of the next block inside a buffered chunk.
var headerRE = regexp.MustCompile(`(?m)^order,`)

// maxBlockSize caps a single block held in memory by the scanner.
const maxBlockSize = 16 << 20

// ErrInvalidDate marks a block whose header date does not parse. The block is
// skipped; it is not a fatal error.
var ErrInvalidDate = errors.New("invalid order date")

// splitBlocks is a bufio.SplitFunc that yields one block per token: the
// header line plus every following line up to (not including) the next
// header. Tokens keep their newlines so callers can count lines. Text before
// the first header comes out as its own token.
func splitBlocks(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	// The current token always owns its first line, so the search for the
	// next header starts after it.
	if nl := bytes.IndexByte(data, '\n'); nl >= 0 {
		if loc := headerRE.FindIndex(data[nl+1:]); loc != nil {
			end := nl + 1 + loc[0]
			return end, data[:end], nil
		}
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}

// Blocks lazily splits r into order blocks. A non-nil error paired with a
// block is either ErrInvalidDate (skip the block and keep going) or a fatal
// malformed-line error; scanner I/O errors are yielded with a zero block.
// Iteration stops after the first fatal error.
func Blocks(r io.Reader) iter.Seq2[domain.OrderBlock, error] {
	return func(yield func(domain.OrderBlock, error) bool) {
		sc := bufio.NewScanner(r)
		sc.Buffer(make([]byte, 0, 64*1024), maxBlockSize)
		sc.Split(splitBlocks)

		line := 1
		first := true
		for sc.Scan() {
			raw := sc.Text()
			start := line
			line += strings.Count(raw, "\n")
			if first {
				raw = csvutil.StripBOM(raw)
				first = false
			}
			if !strings.HasPrefix(raw, headerPrefix) {
				continue // preamble or blank lines before the first header
			}

			blk, err := parseBlock(raw, start)
			if err != nil && !errors.Is(err, ErrInvalidDate) {
				yield(blk, err)
				return
			}
			if !yield(blk, err) {
				return
			}
		}
		if err := sc.Err(); err != nil {
			yield(domain.OrderBlock{}, fmt.Errorf("read orders: %w", err))
		}
	}
}

// parseBlock turns one raw block into an OrderBlock. Detail lines are only
// parsed once the header date is known to be valid.
func parseBlock(raw string, line int) (domain.OrderBlock, error) {
	lines := strings.Split(strings.TrimRight(raw, "\r\n"), "\n")
	blk := domain.OrderBlock{Line: line, Raw: strings.TrimRight(raw, "\r\n")}

	header := csvutil.SplitFields(lines[0])
	if len(header) > 1 {
		blk.DateField = strings.TrimSpace(header[1])
	}
	date, err := parseOrderDate(blk.DateField)
	if err != nil {
		return blk, fmt.Errorf("line %d: %w %q", line, ErrInvalidDate, blk.DateField)
	}
	blk.Order.Date = date

	for i, l := range lines[1:] {
		if csvutil.IsBlank(l) {
			continue
		}
		d, err := parseDetail(l)
		if err != nil {
			return blk, fmt.Errorf("line %d: %w", line+1+i, err)
		}
		blk.Details = append(blk.Details, d)
	}
	return blk, nil
}

// parseOrderDate accepts "YYYY-MM-DD" optionally followed by a space and a
// time of day. Only the date part decides validity; a time that does not
// parse is dropped.
func parseOrderDate(field string) (time.Time, error) {
	datePart, timePart, _ := strings.Cut(field, " ")
	d, err := time.Parse(domain.DateLayout, datePart)
	if err != nil {
		return time.Time{}, err
	}
	timePart = strings.TrimSpace(timePart)
	for _, layout := range []string{time.TimeOnly, "15:04"} {
		if t, err := time.Parse(layout, timePart); err == nil {
			return d.Add(time.Duration(t.Hour())*time.Hour +
				time.Duration(t.Minute())*time.Minute +
				time.Duration(t.Second())*time.Second), nil
		}
	}
	return d, nil
}

// parseDetail reads "item,<qty>,<description>" (three or more fields) or
// "<qty>,<description>" (exactly two).
func parseDetail(line string) (domain.OrderDetail, error) {
	f := csvutil.SplitFields(line)
	var qty, desc string
	switch {
	case len(f) >= 3:
		qty, desc = f[1], f[2]
	case len(f) == 2:
		qty, desc = f[0], f[1]
	default:
		return domain.OrderDetail{}, fmt.Errorf("detail %q: want quantity and description", csvutil.TrimEOL(line))
	}
	n, err := strconv.Atoi(strings.TrimSpace(qty))
	if err != nil {
		return domain.OrderDetail{}, fmt.Errorf("detail %q: quantity: %w", csvutil.TrimEOL(line), err)
	}
	return domain.OrderDetail{Quantity: n, Description: csvutil.Clean(desc)}, nil
}

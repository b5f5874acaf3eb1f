// Package csvutil contains the small text helpers shared by the loaders. The
// input files are plain comma-separated text with no quoting or escaping, so
// splitting is a literal strings.Split; the interesting work is cleaning up
// individual fields (stray BOMs, CRLF endings, mixed Unicode forms).
package csvutil

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

const utf8BOM = "\uFEFF"

// SplitFields splits one physical line on commas. A trailing CR (from CRLF
// files) is dropped first. Quotes are not interpreted.
func SplitFields(line string) []string {
	return strings.Split(TrimEOL(line), ",")
}

// TrimEOL removes any trailing CR/LF characters.
func TrimEOL(s string) string {
	return strings.TrimRight(s, "\r\n")
}

// StripBOM removes a leading UTF-8 byte order mark if present.
func StripBOM(s string) string {
	return strings.TrimPrefix(s, utf8BOM)
}

// Clean trims surrounding whitespace and normalizes s to NFC so the same
// title typed with combining marks and with precomposed characters compares
// equal. Non-breaking spaces, including the U+00C2 U+00A0 pair left by
// double-encoded files, become plain spaces.
func Clean(s string) string {
	s = strings.ReplaceAll(s, "\u00c2\u00a0", " ")
	s = strings.ReplaceAll(s, "\u00a0", " ")
	return strings.TrimSpace(norm.NFC.String(s))
}

// IsBlank reports whether line holds nothing but whitespace.
func IsBlank(line string) bool {
	return strings.TrimSpace(line) == ""
}

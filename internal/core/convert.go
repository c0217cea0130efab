package core

// convert.go turns raw CSV cells into member and inventory field values.
//
// Text and count cells never fail: bad input falls back to a default.
// Date cells are required and fail with *DateFormatError, which makes the
// importer skip the row.

import (
	"strconv"
	"strings"
	"time"
)

// DateLayouts are tried in order; the first layout that parses wins.
// Day, month, hour, minute and second accept one or two digits. Two-digit
// years map 69-99 to 19xx and 00-68 to 20xx.
var DateLayouts = []string{
	"2006-1-2T15:4:5", // YYYY-MM-DDThh:mm:ss
	"2/1/2006",        // DD/MM/YYYY
	"2-1-2006",        // DD-MM-YYYY
	"2006-1-2",        // YYYY-MM-DD
	"2/1/06",          // DD/MM/YY
	"2-1-06",          // DD-MM-YY
}

// ParseText trims s. Missing cells arrive as "" and stay "".
func ParseText(s string) string {
	return strings.TrimSpace(s)
}

// ParseCount parses a non-negative integer cell. Empty, non-numeric and
// negative input all yield 0.
func ParseCount(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0
	}
	return n
}

// ParseDate parses a date cell against DateLayouts. Calendar validity is
// enforced, so "31/02/2024" fails even though it has the right shape, and
// fractional seconds are rejected.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s != "" {
		for _, layout := range DateLayouts {
			// time.Parse accepts a fraction after seconds the layout does
			// not name; none of the layouts carries one.
			if t, err := time.Parse(layout, s); err == nil && t.Nanosecond() == 0 {
				return t, nil
			}
		}
	}
	return time.Time{}, &DateFormatError{Value: s}
}

// MakeHeaderIndex creates a HeaderIndex from a CSV header row.
// Keys are lowercased for case-insensitive matching; the first occurrence
// of a duplicated header wins.
func MakeHeaderIndex(header []string) HeaderIndex {
	idx := make(HeaderIndex, len(header))
	for i, h := range header {
		key := strings.ToLower(CleanCell(h))
		if _, dup := idx[key]; !dup {
			idx[key] = i
		}
	}
	return idx
}

// Cell returns the value of the named column, or "" when the column is
// absent from the header or the row is short.
func Cell(row []string, idx HeaderIndex, name string) string {
	pos, ok := idx[strings.ToLower(name)]
	if !ok || pos >= len(row) {
		return ""
	}
	return row[pos]
}

// CleanCell removes spreadsheet artifacts from a header cell:
// surrounding whitespace, an Excel formula prefix (="...") and
// surrounding quotes.
func CleanCell(s string) string {
	s = strings.TrimSpace(s)

	if strings.HasPrefix(s, "=\"") && strings.HasSuffix(s, "\"") {
		s = s[2 : len(s)-1]
	} else if strings.HasPrefix(s, "=") {
		s = s[1:]
	}

	return strings.TrimSpace(strings.Trim(s, `"'`))
}

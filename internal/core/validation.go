package core

// validation.go checks import headers and turns rows into typed field values.
//
// A missing column is not fatal: its cells read as "" so text and count
// fields take their defaults while required date fields fail row by row.
// The importer logs the missing columns once per pass.

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// MissingColumns returns the field names absent from the header, in field order.
func MissingColumns(idx HeaderIndex, specs []FieldSpec) []string {
	var missing []string
	for _, spec := range specs {
		if _, ok := idx[strings.ToLower(spec.Name)]; !ok {
			missing = append(missing, spec.Name)
		}
	}
	return missing
}

// RowValues is a parsed row keyed by field name.
type RowValues struct {
	text   map[string]string
	counts map[string]int
	dates  map[string]time.Time
}

// Text returns a parsed text field.
func (v RowValues) Text(name string) string { return v.text[name] }

// Count returns a parsed count field.
func (v RowValues) Count(name string) int { return v.counts[name] }

// Date returns a parsed date field.
func (v RowValues) Date(name string) time.Time { return v.dates[name] }

// ParseRow applies each FieldSpec to its cell. Only date fields can fail;
// the error names the field and is a *DateFormatError.
func ParseRow(row []string, idx HeaderIndex, specs []FieldSpec) (RowValues, error) {
	v := RowValues{
		text:   make(map[string]string),
		counts: make(map[string]int),
		dates:  make(map[string]time.Time),
	}

	for _, spec := range specs {
		raw := Cell(row, idx, spec.Name)
		switch spec.Type {
		case FieldText:
			v.text[spec.Name] = ParseText(raw)
		case FieldCount:
			v.counts[spec.Name] = ParseCount(raw)
		case FieldDate:
			t, err := ParseDate(raw)
			if err != nil {
				var dateErr *DateFormatError
				if errors.As(err, &dateErr) {
					dateErr.Field = spec.Name
				}
				if spec.Required {
					return RowValues{}, err
				}
				continue
			}
			v.dates[spec.Name] = t
		default:
			return RowValues{}, fmt.Errorf("%s: unknown field type %d", spec.Name, spec.Type)
		}
	}

	return v, nil
}

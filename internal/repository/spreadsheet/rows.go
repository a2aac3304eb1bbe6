// Package spreadsheet loads article rows from tabular sources and checks the
// expected column set before any row is handed out.
package spreadsheet

import (
	"errors"
	"fmt"
	"strings"
)

// Column names, lowercase, as they appear in the header row.
const (
	ColumnDesignation = "designation"
	ColumnQuantity    = "qte"
	ColumnAcquiredOn  = "date acquisition"
	ColumnFamily      = "famille"
	ColumnLocation    = "emplacement"
	ColumnBrand       = "marque"
	ColumnModel       = "model"
	ColumnPrefix      = "prefixe"
)

// RequiredColumns must all be present after header normalization.
var RequiredColumns = []string{
	ColumnDesignation,
	ColumnQuantity,
	ColumnAcquiredOn,
	ColumnFamily,
	ColumnLocation,
	ColumnBrand,
	ColumnModel,
	ColumnPrefix,
}

var (
	// ErrFileNotFound is returned when the source does not exist.
	ErrFileNotFound = errors.New("spreadsheet not found")
	// ErrParse is returned when the source cannot be decoded.
	ErrParse = errors.New("spreadsheet cannot be read")
	// ErrSchema is returned when required columns are missing.
	ErrSchema = errors.New("spreadsheet schema mismatch")
)

// SchemaError lists the required columns absent from the header row.
type SchemaError struct {
	Missing []string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("spreadsheet must contain the columns %s; missing %s",
		strings.Join(RequiredColumns, ", "), strings.Join(e.Missing, ", "))
}

func (e *SchemaError) Unwrap() error { return ErrSchema }

// Row is one data line. Values maps a lowercase column name to the raw cell
// value: nil, string, float64, bool or time.Time.
type Row struct {
	// Line is the 1-based line number in the source, header included.
	Line   int
	Values map[string]any
}

// Value returns the raw cell of a column, nil when absent or empty.
func (r Row) Value(column string) any {
	return r.Values[column]
}

// NormalizeHeader lowercases and trims a column name.
func NormalizeHeader(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateSchema checks normalized headers against RequiredColumns.
func ValidateSchema(headers []string) error {
	present := make(map[string]struct{}, len(headers))
	for _, h := range headers {
		present[h] = struct{}{}
	}

	var missing []string
	for _, col := range RequiredColumns {
		if _, ok := present[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &SchemaError{Missing: missing}
	}
	return nil
}

// BuildRows turns a table whose first line is the header into rows. Headers
// are normalized and validated before any row is built; lines with only empty
// cells are dropped and short lines are padded with nil.
func BuildRows(table [][]any) ([]Row, error) {
	if len(table) == 0 {
		return nil, &SchemaError{Missing: append([]string(nil), RequiredColumns...)}
	}

	headers := make([]string, len(table[0]))
	for i, cell := range table[0] {
		if cell != nil {
			headers[i] = NormalizeHeader(fmt.Sprint(cell))
		}
	}
	if err := ValidateSchema(headers); err != nil {
		return nil, err
	}

	rows := make([]Row, 0, len(table)-1)
	for i, line := range table[1:] {
		if isBlank(line) {
			continue
		}
		row := Row{Line: i + 2, Values: make(map[string]any, len(headers))}
		for col, name := range headers {
			if name == "" {
				continue
			}
			// Duplicate headers keep the leftmost value.
			if _, seen := row.Values[name]; seen {
				continue
			}
			var value any
			if col < len(line) {
				value = blankToNil(line[col])
			}
			row.Values[name] = value
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func isBlank(line []any) bool {
	for _, cell := range line {
		if blankToNil(cell) != nil {
			return false
		}
	}
	return true
}

func blankToNil(v any) any {
	if s, ok := v.(string); ok && strings.TrimSpace(s) == "" {
		return nil
	}
	return v
}

package importer

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/mamadbah2/inventaire/internal/domain/dates"
	"github.com/mamadbah2/inventaire/internal/domain/models"
	"github.com/mamadbah2/inventaire/internal/repository/spreadsheet"
)

var (
	// ErrMissingField is returned when a required cell is empty.
	ErrMissingField = errors.New("required field is empty")
	// ErrInvalidQuantity is returned when qte is not a non-negative integer.
	ErrInvalidQuantity = errors.New("quantity must be a non-negative integer")
)

// RowError attributes a row-local failure.
type RowError struct {
	Line        int
	Designation string
	Err         error
}

func (e *RowError) Error() string {
	return fmt.Sprintf("line %d (%q): %v", e.Line, e.Designation, e.Err)
}

func (e *RowError) Unwrap() error { return e.Err }

// parseFields validates a row and converts it into the article tuple.
func parseFields(row spreadsheet.Row) (models.Fields, error) {
	designation := text(row.Value(spreadsheet.ColumnDesignation))
	if designation == "" {
		return models.Fields{}, fmt.Errorf("%w: %s", ErrMissingField, spreadsheet.ColumnDesignation)
	}

	acquired, err := dates.Normalize(row.Value(spreadsheet.ColumnAcquiredOn), designation)
	if err != nil {
		return models.Fields{}, err
	}

	qty, err := parseQuantity(row.Value(spreadsheet.ColumnQuantity))
	if err != nil {
		return models.Fields{}, err
	}

	return models.Fields{
		Designation: designation,
		Quantity:    qty,
		AcquiredOn:  &acquired,
		Family:      text(row.Value(spreadsheet.ColumnFamily)),
		Location:    text(row.Value(spreadsheet.ColumnLocation)),
		Brand:       text(row.Value(spreadsheet.ColumnBrand)),
		Model:       text(row.Value(spreadsheet.ColumnModel)),
		Prefix:      text(row.Value(spreadsheet.ColumnPrefix)),
	}, nil
}

func parseQuantity(value any) (int, error) {
	var n float64
	switch v := value.(type) {
	case nil:
		return 0, fmt.Errorf("%w: %s", ErrMissingField, spreadsheet.ColumnQuantity)
	case float64:
		n = v
	case int:
		n = float64(v)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrInvalidQuantity, v)
		}
		n = f
	default:
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantity, value)
	}

	if math.IsNaN(n) || n < 0 || n != math.Trunc(n) || n > math.MaxInt32 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidQuantity, value)
	}
	return int(n), nil
}

// text renders a cell as trimmed text. Whole numbers lose their ".0" so a
// numeric model such as 2024 stays "2024".
func text(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case float64:
		if math.IsNaN(v) {
			return ""
		}
		return strconv.FormatFloat(v, 'f', -1, 64)
	case time.Time:
		return v.Format(time.DateOnly)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

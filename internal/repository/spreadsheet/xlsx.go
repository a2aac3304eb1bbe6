package spreadsheet

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
)

// ReadFile loads the first worksheet of an Excel workbook.
func ReadFile(path string) ([]Row, error) {
	info, err := os.Stat(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("%w: %s is a directory", ErrParse, path)
	}

	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	defer f.Close()

	table, err := readTable(f)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, path, err)
	}
	return BuildRows(table)
}

// workbook resolves typed cell values of one worksheet.
type workbook struct {
	file       *excelize.File
	sheet      string
	dateStyles map[int]bool
}

func readTable(f *excelize.File) ([][]any, error) {
	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, errors.New("workbook has no worksheet")
	}
	wb := &workbook{file: f, sheet: sheets[0], dateStyles: map[int]bool{}}

	raw, err := f.GetRows(wb.sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, err
	}

	table := make([][]any, len(raw))
	for r, cols := range raw {
		line := make([]any, len(cols))
		for c, value := range cols {
			axis, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return nil, err
			}
			if line[c], err = wb.cellValue(axis, value); err != nil {
				return nil, fmt.Errorf("cell %s: %w", axis, err)
			}
		}
		table[r] = line
	}
	return table, nil
}

// cellValue converts the raw text of a cell according to its type and number
// format: dates become time.Time, numbers float64, booleans bool.
func (wb *workbook) cellValue(axis, raw string) (any, error) {
	if raw == "" {
		return nil, nil
	}

	typ, err := wb.file.GetCellType(wb.sheet, axis)
	if err != nil {
		return nil, err
	}

	switch typ {
	case excelize.CellTypeBool:
		return raw == "1" || strings.EqualFold(raw, "true"), nil
	case excelize.CellTypeDate:
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		return raw, nil
	case excelize.CellTypeNumber, excelize.CellTypeUnset:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return raw, nil
		}
		isDate, err := wb.hasDateFormat(axis)
		if err != nil {
			return nil, err
		}
		if isDate {
			return excelize.ExcelDateToTime(n, false)
		}
		return n, nil
	default:
		return raw, nil
	}
}

func (wb *workbook) hasDateFormat(axis string) (bool, error) {
	styleID, err := wb.file.GetCellStyle(wb.sheet, axis)
	if err != nil {
		return false, err
	}
	if isDate, ok := wb.dateStyles[styleID]; ok {
		return isDate, nil
	}

	style, err := wb.file.GetStyle(styleID)
	if err != nil {
		return false, err
	}
	isDate := isDateNumFmt(style.NumFmt)
	if style.CustomNumFmt != nil {
		isDate = isDateFormatCode(*style.CustomNumFmt)
	}
	wb.dateStyles[styleID] = isDate
	return isDate, nil
}

// isDateNumFmt reports whether a built-in number format id renders a date.
func isDateNumFmt(id int) bool {
	switch {
	case id >= 14 && id <= 22,
		id >= 27 && id <= 36,
		id >= 45 && id <= 47,
		id >= 50 && id <= 58:
		return true
	}
	return false
}

// isDateFormatCode reports whether a custom format code contains day, month
// or year tokens outside quoted literals and bracketed sections.
func isDateFormatCode(code string) bool {
	inQuote, inBracket := false, false
	for i := 0; i < len(code); i++ {
		ch := code[i]
		switch {
		case ch == '\\':
			i++
		case ch == '"':
			inQuote = !inQuote
		case inQuote:
		case ch == '[':
			inBracket = true
		case ch == ']':
			inBracket = false
		case inBracket:
		case ch == 'd' || ch == 'D' || ch == 'y' || ch == 'Y':
			return true
		}
	}
	return false
}

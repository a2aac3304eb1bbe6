// Package dates turns acquisition date cells into calendar dates.
//
// Cells arrive either as native date-times (typed spreadsheet cells) or as
// free text holding a day/month/year date such as "acheté le 15/03/2023".
// Text is always read day first.
package dates

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Failure reasons, matchable with errors.Is on a *DateError.
var (
	ErrMissingDate         = errors.New("missing acquisition date")
	ErrUnparsableText      = errors.New("no day/month/year date found")
	ErrInvalidCalendarDate = errors.New("invalid calendar date")
	ErrUnsupportedType     = errors.New("unsupported acquisition date type")
)

var datePattern = regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`)

// DateError attributes a normalization failure to the row's designation.
type DateError struct {
	Designation string
	Value       any
	Reason      error
}

func (e *DateError) Error() string {
	switch {
	case errors.Is(e.Reason, ErrMissingDate):
		return fmt.Sprintf("article %q: %v", e.Designation, e.Reason)
	case errors.Is(e.Reason, ErrUnsupportedType):
		return fmt.Sprintf("article %q: %v %T (%v)", e.Designation, e.Reason, e.Value, e.Value)
	default:
		return fmt.Sprintf("article %q: %v in %q", e.Designation, e.Reason, fmt.Sprint(e.Value))
	}
}

func (e *DateError) Unwrap() error { return e.Reason }

// Normalize converts a raw cell value into a date at midnight UTC.
func Normalize(value any, designation string) (time.Time, error) {
	fail := func(reason error) (time.Time, error) {
		return time.Time{}, &DateError{Designation: designation, Value: value, Reason: reason}
	}

	switch v := value.(type) {
	case nil:
		return fail(ErrMissingDate)
	case time.Time:
		if v.IsZero() {
			return fail(ErrMissingDate)
		}
		return truncate(v), nil
	case *time.Time:
		if v == nil || v.IsZero() {
			return fail(ErrMissingDate)
		}
		return truncate(*v), nil
	case float64:
		// Empty numeric cells surface as NaN in some exports.
		if math.IsNaN(v) {
			return fail(ErrMissingDate)
		}
		return fail(ErrUnsupportedType)
	case string:
		if strings.TrimSpace(v) == "" {
			return fail(ErrMissingDate)
		}
		t, err := parseText(v)
		if err != nil {
			return fail(err)
		}
		return t, nil
	default:
		return fail(ErrUnsupportedType)
	}
}

// parseText returns the first day/month/year date found in text, or the
// failure reason.
func parseText(text string) (time.Time, error) {
	match := datePattern.FindStringSubmatch(text)
	if match == nil {
		return time.Time{}, ErrUnparsableText
	}

	day, _ := strconv.Atoi(match[1])
	month, _ := strconv.Atoi(match[2])
	year, _ := strconv.Atoi(match[3])

	if year < 1 || month < 1 || month > 12 || day < 1 {
		return time.Time{}, ErrInvalidCalendarDate
	}
	t := time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
	// time.Date rolls overflowing days into the next month.
	if t.Day() != day || int(t.Month()) != month {
		return time.Time{}, ErrInvalidCalendarDate
	}
	return t, nil
}

func truncate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

package dates

import (
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestNormalizeValid(t *testing.T) {
	paris, err := time.LoadLocation("Europe/Paris")
	require.NoError(t, err)

	testCases := []struct {
		name  string
		value any
		want  time.Time
	}{
		{name: "slash separated", value: "15/03/2023", want: day(2023, time.March, 15)},
		{name: "dash separated", value: "15-03-2023", want: day(2023, time.March, 15)},
		{name: "mixed separators", value: "15/03-2023", want: day(2023, time.March, 15)},
		{name: "single digits", value: "1/2/2020", want: day(2020, time.February, 1)},
		{name: "embedded in text", value: "acheté le 07/11/2019 chez Acme", want: day(2019, time.November, 7)},
		{name: "first match wins", value: "01/01/2001 puis 02/02/2002", want: day(2001, time.January, 1)},
		{name: "leap day", value: "29/02/2024", want: day(2024, time.February, 29)},
		{name: "native time keeps date only", value: time.Date(2022, time.June, 30, 23, 15, 0, 0, time.UTC), want: day(2022, time.June, 30)},
		{name: "native time uses its own location", value: time.Date(2022, time.July, 1, 0, 30, 0, 0, paris), want: day(2022, time.July, 1)},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.value, "Laptop X")
			require.NoError(t, err)
			assert.True(t, tc.want.Equal(got), "want %s got %s", tc.want, got)
			assert.Equal(t, time.UTC, got.Location())
		})
	}
}

func TestNormalizeAllCalendarDays(t *testing.T) {
	for d := day(2023, time.January, 1); d.Year() == 2023; d = d.AddDate(0, 0, 1) {
		for _, sep := range []string{"/", "-"} {
			text := fmt.Sprintf("%d%s%d%s%d", d.Day(), sep, int(d.Month()), sep, d.Year())
			got, err := Normalize(text, "x")
			require.NoError(t, err, text)
			require.True(t, d.Equal(got), text)
		}
	}
}

func TestNormalizeFailures(t *testing.T) {
	testCases := []struct {
		name   string
		value  any
		reason error
	}{
		{name: "nil", value: nil, reason: ErrMissingDate},
		{name: "NaN", value: math.NaN(), reason: ErrMissingDate},
		{name: "blank text", value: "   ", reason: ErrMissingDate},
		{name: "zero time", value: time.Time{}, reason: ErrMissingDate},
		{name: "no pattern", value: "mars 2023", reason: ErrUnparsableText},
		{name: "two digit year", value: "15/03/23", reason: ErrUnparsableText},
		{name: "iso format", value: "2023-03-15", reason: ErrUnparsableText},
		{name: "february 31st", value: "31/02/2023", reason: ErrInvalidCalendarDate},
		{name: "not a leap year", value: "29/02/2023", reason: ErrInvalidCalendarDate},
		{name: "thirty day month", value: "31/04/2023", reason: ErrInvalidCalendarDate},
		{name: "month first is not accepted", value: "03/15/2023", reason: ErrInvalidCalendarDate},
		{name: "day zero", value: "0/3/2023", reason: ErrInvalidCalendarDate},
		{name: "year zero", value: "1/1/0000", reason: ErrInvalidCalendarDate},
		{name: "integer", value: 44999, reason: ErrUnsupportedType},
		{name: "number", value: 44999.0, reason: ErrUnsupportedType},
		{name: "bool", value: true, reason: ErrUnsupportedType},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize(tc.value, "Laptop X")
			require.Error(t, err)
			assert.True(t, got.IsZero())
			assert.ErrorIs(t, err, tc.reason)

			var dateErr *DateError
			require.True(t, errors.As(err, &dateErr))
			assert.Equal(t, "Laptop X", dateErr.Designation)
			assert.Contains(t, err.Error(), "Laptop X")
		})
	}
}

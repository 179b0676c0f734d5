package domain

import (
	"fmt"
	"strings"
	"time"
)

// Month identifies a calendar month as a (year, month) pair.
// Day-of-month is not part of the data model; any day information on
// input is discarded at construction.
type Month struct {
	Year  int
	Month time.Month
}

// NewMonth creates a Month from a year and a month number.
func NewMonth(year int, month time.Month) Month {
	return Month{Year: year, Month: month}
}

// MonthOf returns the calendar month containing t.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// ParseMonth parses a month string in "2006-01" form. Full dates
// ("2006-01-02") are accepted and truncated to their month.
func ParseMonth(s string) (Month, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Month{}, fmt.Errorf("empty month")
	}

	formats := []string{
		"2006-01",
		"2006-01-02",
		"2006/01",
		"2006/01/02",
		"01/2006",
	}

	for _, format := range formats {
		if t, err := time.Parse(format, s); err == nil {
			return MonthOf(t), nil
		}
	}

	return Month{}, fmt.Errorf("unable to parse month: %s", s)
}

// IsZero reports whether m is the zero value (no month set).
func (m Month) IsZero() bool {
	return m.Year == 0 && m.Month == 0
}

// IsValid reports whether m names a real calendar month.
func (m Month) IsValid() bool {
	return m.Year > 0 && m.Month >= time.January && m.Month <= time.December
}

// String formats the month as "2006-01".
func (m Month) String() string {
	return fmt.Sprintf("%04d-%02d", m.Year, int(m.Month))
}

// index maps the month onto a continuous scale so that consecutive
// calendar months differ by exactly 1 across year boundaries.
func (m Month) index() int {
	return m.Year*12 + int(m.Month) - 1
}

// AddMonths returns the month n calendar months after m (n may be
// negative). Arithmetic is calendar-based and carries across year
// boundaries; it never approximates with day offsets.
func (m Month) AddMonths(n int) Month {
	t := time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	return MonthOf(t)
}

// PrevYear returns the same calendar month one year earlier.
func (m Month) PrevYear() Month {
	return Month{Year: m.Year - 1, Month: m.Month}
}

// Before reports whether m is strictly earlier than other.
func (m Month) Before(other Month) bool {
	return m.index() < other.index()
}

// After reports whether m is strictly later than other.
func (m Month) After(other Month) bool {
	return m.index() > other.index()
}

// Compare returns -1, 0, or +1 depending on whether m is earlier than,
// equal to, or later than other.
func (m Month) Compare(other Month) int {
	switch {
	case m.index() < other.index():
		return -1
	case m.index() > other.index():
		return 1
	default:
		return 0
	}
}

// Time returns midnight UTC on the first day of the month. Useful for
// interop with APIs that want a time.Time.
func (m Month) Time() time.Time {
	return time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC)
}

// MonthRange returns every calendar month from from to to inclusive,
// in chronological order. Returns nil when to is before from.
func MonthRange(from, to Month) []Month {
	if to.Before(from) {
		return nil
	}
	months := make([]Month, 0, to.index()-from.index()+1)
	for m := from; !m.After(to); m = m.AddMonths(1) {
		months = append(months, m)
	}
	return months
}

// MarshalText implements encoding.TextMarshaler, emitting "2006-01".
// Text marshaling also lets Month key JSON maps.
func (m Month) MarshalText() ([]byte, error) {
	return []byte(m.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (m *Month) UnmarshalText(text []byte) error {
	parsed, err := ParseMonth(string(text))
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

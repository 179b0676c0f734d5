package domain

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMonth(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected Month
		wantErr  bool
	}{
		{"year_month", "2025-02", NewMonth(2025, time.February), false},
		{"full_date_day_discarded", "2025-02-17", NewMonth(2025, time.February), false},
		{"slash_form", "2025/02", NewMonth(2025, time.February), false},
		{"slash_date", "2025/02/17", NewMonth(2025, time.February), false},
		{"month_slash_year", "02/2025", NewMonth(2025, time.February), false},
		{"surrounding_whitespace", " 2025-02 ", NewMonth(2025, time.February), false},
		{"empty", "", Month{}, true},
		{"garbage", "febuary", Month{}, true},
		{"month_out_of_range", "2025-13", Month{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMonth(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestMonthAddMonths(t *testing.T) {
	tests := []struct {
		name     string
		start    Month
		n        int
		expected Month
	}{
		{"forward_within_year", NewMonth(2025, time.March), 2, NewMonth(2025, time.May)},
		{"backward_within_year", NewMonth(2025, time.May), -2, NewMonth(2025, time.March)},
		{"backward_across_year", NewMonth(2025, time.February), -3, NewMonth(2024, time.November)},
		{"forward_across_year", NewMonth(2024, time.November), 3, NewMonth(2025, time.February)},
		{"january_minus_one", NewMonth(2025, time.January), -1, NewMonth(2024, time.December)},
		{"multi_year_back", NewMonth(2025, time.January), -25, NewMonth(2022, time.December)},
		{"zero", NewMonth(2025, time.June), 0, NewMonth(2025, time.June)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.start.AddMonths(tt.n))
		})
	}
}

func TestMonthOrdering(t *testing.T) {
	dec := NewMonth(2024, time.December)
	jan := NewMonth(2025, time.January)

	assert.True(t, dec.Before(jan))
	assert.True(t, jan.After(dec))
	assert.False(t, jan.Before(jan))
	assert.Equal(t, -1, dec.Compare(jan))
	assert.Equal(t, 1, jan.Compare(dec))
	assert.Equal(t, 0, jan.Compare(jan))
}

func TestMonthPrevYear(t *testing.T) {
	assert.Equal(t, NewMonth(2024, time.February), NewMonth(2025, time.February).PrevYear())
}

func TestMonthRange(t *testing.T) {
	got := MonthRange(NewMonth(2024, time.November), NewMonth(2025, time.January))
	require.Len(t, got, 3)
	assert.Equal(t, NewMonth(2024, time.November), got[0])
	assert.Equal(t, NewMonth(2024, time.December), got[1])
	assert.Equal(t, NewMonth(2025, time.January), got[2])

	assert.Nil(t, MonthRange(NewMonth(2025, time.March), NewMonth(2025, time.January)))
	assert.Len(t, MonthRange(NewMonth(2025, time.March), NewMonth(2025, time.March)), 1)
}

func TestMonthOfDiscardsDay(t *testing.T) {
	ts := time.Date(2025, time.July, 23, 14, 30, 0, 0, time.UTC)
	assert.Equal(t, NewMonth(2025, time.July), MonthOf(ts))
}

func TestMonthJSONRoundTrip(t *testing.T) {
	m := NewMonth(2025, time.February)

	data, err := json.Marshal(m)
	require.NoError(t, err)
	assert.Equal(t, `"2025-02"`, string(data))

	var back Month
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, m, back)

	// Month must be usable as a JSON map key.
	keyed := map[Month]float64{m: 42}
	data, err = json.Marshal(keyed)
	require.NoError(t, err)
	assert.JSONEq(t, `{"2025-02": 42}`, string(data))
}

func TestMonthValidity(t *testing.T) {
	assert.True(t, NewMonth(2025, time.January).IsValid())
	assert.False(t, Month{}.IsValid())
	assert.True(t, Month{}.IsZero())
	assert.False(t, Month{Year: 2025, Month: 13}.IsValid())
}

func TestMonthString(t *testing.T) {
	assert.Equal(t, "2025-02", NewMonth(2025, time.February).String())
	assert.Equal(t, "0850-11", NewMonth(850, time.November).String())
}

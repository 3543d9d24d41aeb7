package calendar_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williambergmann/timesheet/calendar"
)

func TestWeekStart_NormalizesToMonday(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"monday stays", "2026-01-05", "2026-01-05"},
		{"wednesday", "2026-01-07", "2026-01-05"},
		{"sunday belongs to previous monday", "2026-01-11", "2026-01-05"},
		{"across year boundary", "2026-01-01", "2025-12-29"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := calendar.WeekStart(calendar.MustParseDate(tt.in))
			assert.Equal(t, tt.want, got.String())
			assert.True(t, calendar.IsWeekStart(got))
		})
	}
}

func TestPayPeriodFor_AnchorGrid(t *testing.T) {
	grid := calendar.DefaultPayPeriods()

	tests := []struct {
		name      string
		date      string
		wantStart string
		wantEnd   string
	}{
		{"anchor itself", "2025-01-06", "2025-01-06", "2025-01-19"},
		{"last day of first period", "2025-01-19", "2025-01-06", "2025-01-19"},
		{"one year of periods later", "2026-01-10", "2026-01-05", "2026-01-18"},
		{"next period", "2026-01-19", "2026-01-19", "2026-02-01"},
		{"before anchor floors down", "2025-01-05", "2024-12-23", "2025-01-05"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := grid.PeriodFor(calendar.MustParseDate(tt.date))
			assert.Equal(t, tt.wantStart, p.Start.String())
			assert.Equal(t, tt.wantEnd, p.End.String())
			assert.Equal(t, calendar.PayPeriodDays, p.Len())
		})
	}
}

func TestPayPeriodCurrent_IsPureFunctionOfClock(t *testing.T) {
	grid := calendar.DefaultPayPeriods()
	now := time.Date(2026, time.January, 12, 15, 30, 0, 0, time.UTC)

	p := grid.Current(now)

	assert.Equal(t, "2026-01-05", p.Start.String())
	assert.Equal(t, p, grid.Current(now))
}

func TestPayPeriodValidate(t *testing.T) {
	grid := calendar.DefaultPayPeriods()

	ok := calendar.Period{Start: calendar.MustParseDate("2026-01-05"), End: calendar.MustParseDate("2026-01-18")}
	require.NoError(t, grid.Validate(ok))

	offGrid := calendar.Period{Start: calendar.MustParseDate("2026-01-12"), End: calendar.MustParseDate("2026-01-25")}
	assert.ErrorIs(t, grid.Validate(offGrid), calendar.ErrInvalidPeriod)

	tooShort := calendar.Period{Start: calendar.MustParseDate("2026-01-05"), End: calendar.MustParseDate("2026-01-11")}
	assert.ErrorIs(t, grid.Validate(tooShort), calendar.ErrInvalidPeriod)

	reversed := calendar.Period{Start: calendar.MustParseDate("2026-01-18"), End: calendar.MustParseDate("2026-01-05")}
	assert.ErrorIs(t, grid.Validate(reversed), calendar.ErrInvalidPeriod)
}

func TestPeriod_NextPrevious(t *testing.T) {
	p := calendar.Period{Start: calendar.MustParseDate("2026-01-05"), End: calendar.MustParseDate("2026-01-18")}

	assert.Equal(t, "2026-01-19", p.NextPeriod().Start.String())
	assert.Equal(t, "2026-02-01", p.NextPeriod().End.String())
	assert.Equal(t, "2025-12-22", p.PreviousPeriod().Start.String())
	assert.Equal(t, "2026-01-04", p.PreviousPeriod().End.String())
	assert.True(t, p.Contains(calendar.MustParseDate("2026-01-18")))
	assert.False(t, p.Contains(calendar.MustParseDate("2026-01-19")))
}

func TestHolidays(t *testing.T) {
	cal := calendar.DefaultHolidays()

	name, ok := cal.HolidayName(calendar.MustParseDate("2026-12-25"))
	assert.True(t, ok)
	assert.Equal(t, "Christmas Day", name)
	assert.False(t, cal.IsHoliday(calendar.MustParseDate("2026-12-26")))

	h2026 := cal.Holidays(2026)
	require.Len(t, h2026, 9)
	assert.Equal(t, "2026-01-01", h2026[0].Date.String())
}

func TestDate_JSON(t *testing.T) {
	var d calendar.Date
	require.NoError(t, json.Unmarshal([]byte(`"2026-01-05"`), &d))
	assert.Equal(t, time.Monday, d.Weekday())

	out, err := json.Marshal(d)
	require.NoError(t, err)
	assert.JSONEq(t, `"2026-01-05"`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`"01/05/2026"`), &d))
}

package timesheet_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/timesheet"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func hours(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func day(s string) calendar.Date {
	return calendar.MustParseDate(s)
}

func entry(date string, ht timesheet.HourType, h string) timesheet.TimeEntry {
	return timesheet.TimeEntry{Date: day(date), HourType: ht, Hours: hours(h)}
}

func input(date, ht, h string) timesheet.EntryInput {
	return timesheet.EntryInput{Date: day(date), HourType: ht, Hours: hours(h)}
}

var week = day("2026-01-05")

// =============================================================================
// TOTALS
// =============================================================================

func TestAggregate_TotalsInvariant(t *testing.T) {
	// GIVEN: One entry of every hour type
	entries := []timesheet.TimeEntry{
		entry("2026-01-05", timesheet.HourField, "8"),
		entry("2026-01-06", timesheet.HourInternal, "2"),
		entry("2026-01-06", timesheet.HourTraining, "1.5"),
		entry("2026-01-07", timesheet.HourPTO, "4"),
		entry("2026-01-08", timesheet.HourHoliday, "8"),
		entry("2026-01-09", timesheet.HourUnpaid, "3"),
	}

	// WHEN: Aggregated
	totals, err := timesheet.Aggregate(entries)
	require.NoError(t, err)

	// THEN: Every category sums its classified hours, and total is their sum
	assert.Equal(t, "8", totals.Billable.String())
	assert.Equal(t, "15.5", totals.PayableNonBillable.String())
	assert.Equal(t, "3", totals.Unpaid.String())
	assert.Equal(t, "23.5", totals.Payable.String())
	assert.Equal(t, "26.5", totals.Total.String())
	assert.True(t, totals.Total.Equal(totals.Billable.Add(totals.PayableNonBillable).Add(totals.Unpaid)))

	assert.Equal(t, "3.5", totals.ForDate(day("2026-01-06")).String())
	assert.Equal(t, "1.5", totals.ForType(timesheet.HourTraining).String())
}

func TestAggregate_UnknownHourTypeFails(t *testing.T) {
	_, err := timesheet.Aggregate([]timesheet.TimeEntry{entry("2026-01-05", "Overtime", "1")})

	assert.ErrorIs(t, err, timesheet.ErrUnknownHourType)
}

func TestAggregate_Empty(t *testing.T) {
	totals, err := timesheet.Aggregate(nil)

	require.NoError(t, err)
	assert.True(t, totals.Total.IsZero())
}

// =============================================================================
// DAILY CAP
// =============================================================================

func TestNormalize_ClampsLastWrittenEntryToDailyCap(t *testing.T) {
	// GIVEN: 16 Field + 14 Internal on the same date (30 hours)
	agg := timesheet.Aggregator{}

	// WHEN: Normalized
	batch, err := agg.Normalize(week, timesheet.RoleStaff, []timesheet.EntryInput{
		input("2026-01-06", "Field", "16"),
		input("2026-01-06", "Internal", "14"),
	})

	// THEN: Internal is clamped to 8, the day sums to exactly 24, and the adjustment is reported
	require.NoError(t, err)
	require.Len(t, batch.Entries, 2)
	assert.Equal(t, "24", batch.Totals.ForDate(day("2026-01-06")).String())
	assert.Equal(t, "8", batch.Totals.ForType(timesheet.HourInternal).String())

	require.Len(t, batch.Warnings, 1)
	w := batch.Warnings[0]
	assert.Equal(t, timesheet.WarningClamped, w.Kind)
	assert.Equal(t, timesheet.KindDailyCapExceeded, w.Code)
	assert.Equal(t, timesheet.HourInternal, w.HourType)
	assert.Equal(t, "14", w.Requested.String())
	assert.Equal(t, "8", w.Applied.String())
}

func TestClampDailyCap_DropsEntryClampedToZero(t *testing.T) {
	out, warnings := timesheet.ClampDailyCap([]timesheet.TimeEntry{
		entry("2026-01-06", timesheet.HourField, "24"),
		entry("2026-01-06", timesheet.HourInternal, "4"),
	})

	require.Len(t, out, 1)
	assert.Equal(t, timesheet.HourField, out[0].HourType)
	require.Len(t, warnings, 1)
	assert.True(t, warnings[0].Applied.IsZero())
}

func TestClampDailyCap_OtherDaysUnaffected(t *testing.T) {
	out, warnings := timesheet.ClampDailyCap([]timesheet.TimeEntry{
		entry("2026-01-06", timesheet.HourField, "20"),
		entry("2026-01-07", timesheet.HourField, "20"),
	})

	assert.Len(t, out, 2)
	assert.Empty(t, warnings)
}

// =============================================================================
// VALIDATION
// =============================================================================

func TestNormalize_ZeroHourEntriesAreAbsent(t *testing.T) {
	batch, err := timesheet.Aggregator{}.Normalize(week, timesheet.RoleStaff, []timesheet.EntryInput{
		input("2026-01-05", "Field", "0"),
		input("2026-01-06", "Field", "7.5"),
	})

	require.NoError(t, err)
	require.Len(t, batch.Entries, 1)
	assert.Equal(t, "2026-01-06", batch.Entries[0].Date.String())
}

func TestNormalize_CollectsEveryProblem(t *testing.T) {
	// GIVEN: An unknown type, an off-grid hour value and a date in another week
	inputs := []timesheet.EntryInput{
		input("2026-01-05", "Overtime", "8"),
		input("2026-01-06", "Field", "0.25"),
		input("2026-01-12", "Field", "8"),
	}

	// WHEN: Normalized
	_, err := timesheet.Aggregator{}.Normalize(week, timesheet.RoleStaff, inputs)

	// THEN: All three are reported and the whole batch fails
	var ve timesheet.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve, 3)
	assert.ErrorIs(t, err, timesheet.ErrUnknownHourType)
	assert.ErrorIs(t, err, timesheet.ErrInvalidHours)
	assert.ErrorIs(t, err, timesheet.ErrEntryOutOfWeek)
	assert.Equal(t, timesheet.KindValidationFailed, timesheet.Kind(err))
}

func TestNormalize_RejectsDuplicateDateAndType(t *testing.T) {
	_, err := timesheet.Aggregator{}.Normalize(week, timesheet.RoleStaff, []timesheet.EntryInput{
		input("2026-01-05", "Field", "4"),
		input("2026-01-05", "field", "4"),
	})

	assert.ErrorIs(t, err, timesheet.ErrDuplicateEntry)
}

func TestNormalize_RejectsHoursAboveOneDay(t *testing.T) {
	_, err := timesheet.Aggregator{}.Normalize(week, timesheet.RoleStaff, []timesheet.EntryInput{
		input("2026-01-05", "Field", "24.5"),
	})

	assert.ErrorIs(t, err, timesheet.ErrInvalidHours)
	assert.Equal(t, timesheet.KindInvalidHours, timesheet.Kind(err))
}

func TestNormalize_TraineeRoleRestriction(t *testing.T) {
	agg := timesheet.Aggregator{}

	// GIVEN/WHEN: A trainee logs Field hours
	_, err := agg.Normalize(week, timesheet.RoleTrainee, []timesheet.EntryInput{input("2026-01-05", "Field", "8")})

	// THEN: ForbiddenHourType
	assert.ErrorIs(t, err, timesheet.ErrForbiddenHourType)
	assert.Equal(t, timesheet.KindForbiddenHourType, timesheet.Kind(err))

	// WHEN: The same call with Training
	batch, err := agg.Normalize(week, timesheet.RoleTrainee, []timesheet.EntryInput{input("2026-01-05", "Training", "8")})

	// THEN: Accepted
	require.NoError(t, err)
	assert.Equal(t, "8", batch.Totals.PayableNonBillable.String())
}

func TestNormalize_HolidayWarning(t *testing.T) {
	// GIVEN: Christmas week 2025
	agg := timesheet.Aggregator{Holidays: calendar.DefaultHolidays()}
	xmasWeek := day("2025-12-22")

	// WHEN: Field hours on Christmas Day, and Holiday hours on Christmas Eve
	batch, err := agg.Normalize(xmasWeek, timesheet.RoleStaff, []timesheet.EntryInput{
		input("2025-12-25", "Field", "8"),
		input("2025-12-24", "Holiday", "8"),
	})

	// THEN: Only the worked holiday is flagged, and nothing is blocked
	require.NoError(t, err)
	require.Len(t, batch.Warnings, 1)
	assert.Equal(t, timesheet.WarningHoliday, batch.Warnings[0].Kind)
	assert.Equal(t, "2025-12-25", batch.Warnings[0].Date.String())
	assert.Contains(t, batch.Warnings[0].Message, "Christmas Day")
}

func TestNormalize_SortsEntries(t *testing.T) {
	batch, err := timesheet.Aggregator{}.Normalize(week, timesheet.RoleStaff, []timesheet.EntryInput{
		input("2026-01-07", "Internal", "1"),
		input("2026-01-05", "PTO", "2"),
		input("2026-01-05", "Field", "3"),
	})

	require.NoError(t, err)
	require.Len(t, batch.Entries, 3)
	assert.Equal(t, timesheet.HourField, batch.Entries[0].HourType)
	assert.Equal(t, timesheet.HourPTO, batch.Entries[1].HourType)
	assert.Equal(t, "2026-01-07", batch.Entries[2].Date.String())
}

func TestDefaultWeekEntries(t *testing.T) {
	staff := timesheet.DefaultWeekEntries(week, timesheet.RoleStaff)
	require.Len(t, staff, 5)
	for _, e := range staff {
		assert.Equal(t, timesheet.HourField, e.HourType)
		assert.NotEqual(t, time.Saturday, e.Date.Weekday())
		assert.NotEqual(t, time.Sunday, e.Date.Weekday())
	}
	totals, err := timesheet.Aggregate(staff)
	require.NoError(t, err)
	assert.Equal(t, "40", totals.Total.String())

	trainee := timesheet.DefaultWeekEntries(week, timesheet.RoleTrainee)
	assert.Equal(t, timesheet.HourTraining, trainee[0].HourType)
}

/*
Package calendar provides the date arithmetic the timesheet engine runs on.

PURPOSE:
  Timesheets, entries and pay periods are all keyed by calendar days, never
  by instants. This package owns that concept so the rest of the engine can
  compare, shift and normalize days without caring about time zones.

KEY CONCEPTS:
  - Date:            A calendar day (UTC midnight, day granularity)
  - WeekStart:       Canonical first day of a week (Monday, ISO-8601)
  - Period:          An inclusive [Start, End] range of days
  - PayPeriodConfig: Biweekly pay-period grid anchored on a fixed Monday
  - Holidays:        Static company holiday table keyed by ISO date

WEEK CONVENTION:
  Weeks start on Monday. Every timesheet's week_start is normalized through
  WeekStart before it is stored or compared, so a Sunday-first date coming
  from a client ends up in the same week as the Monday before it.

SEE ALSO:
  - period.go:   Period and the biweekly pay-period grid
  - holidays.go: Holiday lookup
*/
package calendar

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the ISO-8601 calendar date format used on the wire and in storage.
const DateLayout = "2006-01-02"

// =============================================================================
// DATE - A calendar day
// =============================================================================

// Date is a calendar day. The wrapped time is always midnight UTC.
type Date struct {
	Time time.Time
}

// NewDate builds a Date from its components.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates an instant to its calendar day in the instant's own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Today returns the current calendar day in UTC.
func Today() Date {
	return DateOf(time.Now().UTC())
}

// ParseDate parses an ISO-8601 date ("2006-01-02").
func ParseDate(s string) (Date, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q (use YYYY-MM-DD): %w", s, err)
	}
	return Date{Time: t}, nil
}

// MustParseDate parses an ISO date and panics on failure. For tests and tables.
func MustParseDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date { return Date{Time: d.Time.AddDate(0, 0, n)} }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }
func (d Date) IsWeekend() bool {
	wd := d.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func (d Date) String() string { return d.Time.Format(DateLayout) }

// MarshalJSON encodes the date as "YYYY-MM-DD" (empty string for the zero date).
func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return json.Marshal("")
	}
	return json.Marshal(d.String())
}

// UnmarshalJSON accepts "YYYY-MM-DD" or an empty string.
func (d *Date) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// =============================================================================
// WEEKS
// =============================================================================

// WeekStart normalizes any date to the Monday of its ISO week.
func WeekStart(d Date) Date {
	// time.Weekday: Sunday=0 ... Saturday=6; shift so Monday=0 ... Sunday=6
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDays(-offset)
}

// IsWeekStart reports whether d is already the canonical first day of its week.
func IsWeekStart(d Date) bool {
	return d.Weekday() == time.Monday
}

// WeekDays returns the seven days of the week beginning at weekStart.
func WeekDays(weekStart Date) []Date {
	days := make([]Date, 7)
	for i := range days {
		days[i] = weekStart.AddDays(i)
	}
	return days
}

// DaysBetween returns the number of whole days from `from` to `to` (negative if to is earlier).
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

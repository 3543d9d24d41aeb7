package timesheet

import (
	"time"

	"github.com/williambergmann/timesheet/calendar"
)

// =============================================================================
// PAY PERIOD LOCK
// =============================================================================
//
// A confirmed PayPeriod is stored as its own (start, end) row. Membership of
// a timesheet is computed from its week_start on every mutation and never
// stored on the timesheet, so timesheets created after confirmation are
// still covered.

// PayPeriod is a confirmed 14-day payroll window.
type PayPeriod struct {
	ID          string
	Period      calendar.Period
	ConfirmedAt time.Time
	ConfirmedBy string
}

// Covers reports whether a week starting at weekStart is frozen by p.
func (p PayPeriod) Covers(weekStart calendar.Date) bool {
	return p.Period.Contains(weekStart)
}

// LockFor returns the confirmed period covering weekStart, or nil.
func LockFor(periods []PayPeriod, weekStart calendar.Date) *calendar.Period {
	for _, p := range periods {
		if p.Covers(weekStart) {
			period := p.Period
			return &period
		}
	}
	return nil
}

// ConfirmResult reports the outcome of confirming a pay period.
type ConfirmResult struct {
	PayPeriod        PayPeriod
	Confirmed        bool
	AlreadyConfirmed bool
	Locked           int // timesheets frozen by this confirmation
}

// PayPeriodStatus describes a pay period for display.
type PayPeriodStatus struct {
	Period      calendar.Period
	Confirmed   bool
	ConfirmedAt *time.Time
	ConfirmedBy string
}

// StatusOf merges the grid period p with any confirmation record.
func StatusOf(p calendar.Period, confirmed []PayPeriod) PayPeriodStatus {
	st := PayPeriodStatus{Period: p}
	for _, c := range confirmed {
		if c.Period.Start.Equal(p.Start) && c.Period.End.Equal(p.End) {
			at := c.ConfirmedAt
			st.Confirmed = true
			st.ConfirmedAt = &at
			st.ConfirmedBy = c.ConfirmedBy
			break
		}
	}
	return st
}

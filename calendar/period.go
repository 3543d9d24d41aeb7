package calendar

import (
	"errors"
	"fmt"
	"time"
)

// PayPeriodDays is the length of a pay period.
const PayPeriodDays = 14

// DefaultPayPeriodAnchor is the first day of a known pay period.
// 2025-01-06 is a Monday; every pay period starts 14*n days from it.
var DefaultPayPeriodAnchor = NewDate(2025, time.January, 6)

// ErrInvalidPeriod is returned when a period is malformed or off the pay-period grid.
var ErrInvalidPeriod = errors.New("invalid period")

// =============================================================================
// PERIOD - Inclusive range of days
// =============================================================================

// Period is an inclusive range of days [Start, End].
type Period struct {
	Start Date `json:"start_date"`
	End   Date `json:"end_date"`
}

// Contains returns true if d is within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlaps reports whether two periods share at least one day.
func (p Period) Overlaps(other Period) bool {
	return p.Start.BeforeOrEqual(other.End) && other.Start.BeforeOrEqual(p.End)
}

// Days returns every day in the period.
func (p Period) Days() []Date {
	var days []Date
	for current := p.Start; current.BeforeOrEqual(p.End); current = current.AddDays(1) {
		days = append(days, current)
	}
	return days
}

// Len returns the number of days in the period.
func (p Period) Len() int {
	return DaysBetween(p.Start, p.End) + 1
}

// NextPeriod returns the contiguous period of the same length after this one.
func (p Period) NextPeriod() Period {
	length := p.Len()
	return Period{Start: p.End.AddDays(1), End: p.End.AddDays(length)}
}

// PreviousPeriod returns the contiguous period of the same length before this one.
func (p Period) PreviousPeriod() Period {
	length := p.Len()
	return Period{Start: p.Start.AddDays(-length), End: p.Start.AddDays(-1)}
}

func (p Period) String() string {
	return "[" + p.Start.String() + ", " + p.End.String() + "]"
}

// =============================================================================
// PAY PERIOD GRID - Biweekly periods from a fixed anchor
// =============================================================================

// PayPeriodConfig describes the biweekly pay-period grid.
type PayPeriodConfig struct {
	// Anchor is the first day of any pay period. All periods start on
	// Anchor + 14*n days.
	Anchor Date
}

// DefaultPayPeriods returns the grid anchored on DefaultPayPeriodAnchor.
func DefaultPayPeriods() PayPeriodConfig {
	return PayPeriodConfig{Anchor: DefaultPayPeriodAnchor}
}

// PeriodFor returns the pay period containing d:
// start = anchor + floor((d - anchor) / 14) * 14, end = start + 13.
func (pc PayPeriodConfig) PeriodFor(d Date) Period {
	days := DaysBetween(pc.Anchor, d)
	index := days / PayPeriodDays
	if days%PayPeriodDays != 0 && days < 0 {
		index-- // floor, not truncation, for dates before the anchor
	}
	start := pc.Anchor.AddDays(index * PayPeriodDays)
	return Period{Start: start, End: start.AddDays(PayPeriodDays - 1)}
}

// Current returns the pay period containing today according to now.
func (pc PayPeriodConfig) Current(now time.Time) Period {
	return pc.PeriodFor(DateOf(now.UTC()))
}

// Validate checks that p is exactly one pay period on this grid.
func (pc PayPeriodConfig) Validate(p Period) error {
	if p.End.Before(p.Start) {
		return fmt.Errorf("%w: end %s before start %s", ErrInvalidPeriod, p.End, p.Start)
	}
	if p.Len() != PayPeriodDays {
		return fmt.Errorf("%w: %s spans %d days, want %d", ErrInvalidPeriod, p, p.Len(), PayPeriodDays)
	}
	if expected := pc.PeriodFor(p.Start); !expected.Start.Equal(p.Start) {
		return fmt.Errorf("%w: %s does not start on the pay-period grid (nearest start %s)",
			ErrInvalidPeriod, p, expected.Start)
	}
	return nil
}

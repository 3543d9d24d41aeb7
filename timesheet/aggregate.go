package timesheet

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/williambergmann/timesheet/calendar"
)

// MaxHoursPerDay is the ceiling on the sum of all entries for one date.
var MaxHoursPerDay = decimal.NewFromInt(24)

var (
	two     = decimal.NewFromInt(2)
	workday = decimal.NewFromInt(8)
)

// =============================================================================
// TOTALS - Derived sums, recomputed on every read
// =============================================================================

// Totals are the classification sums of a set of entries.
// Total == Billable + PayableNonBillable + Unpaid and Payable == Billable + PayableNonBillable.
type Totals struct {
	Total              decimal.Decimal
	Billable           decimal.Decimal
	PayableNonBillable decimal.Decimal
	Payable            decimal.Decimal
	Unpaid             decimal.Decimal

	ByDate map[string]decimal.Decimal   // ISO date -> hours
	ByType map[HourType]decimal.Decimal // hour type -> hours
}

// ForType returns the hours logged against h.
func (t Totals) ForType(h HourType) decimal.Decimal {
	return t.ByType[h]
}

// ForDate returns the hours logged on d.
func (t Totals) ForDate(d calendar.Date) decimal.Decimal {
	return t.ByDate[d.String()]
}

// Aggregate sums entries by date, by hour type and by classification.
func Aggregate(entries []TimeEntry) (Totals, error) {
	t := Totals{
		ByDate: make(map[string]decimal.Decimal),
		ByType: make(map[HourType]decimal.Decimal),
	}
	for _, e := range entries {
		class, err := Classify(e.HourType)
		if err != nil {
			return Totals{}, err
		}
		key := e.Date.String()
		t.ByDate[key] = t.ByDate[key].Add(e.Hours)
		t.ByType[e.HourType] = t.ByType[e.HourType].Add(e.Hours)

		switch class {
		case ClassBillable:
			t.Billable = t.Billable.Add(e.Hours)
		case ClassPayableNonBillable:
			t.PayableNonBillable = t.PayableNonBillable.Add(e.Hours)
		case ClassUnpaid:
			t.Unpaid = t.Unpaid.Add(e.Hours)
		}
	}
	t.Payable = t.Billable.Add(t.PayableNonBillable)
	t.Total = t.Payable.Add(t.Unpaid)
	return t, nil
}

// =============================================================================
// WARNINGS - Reported adjustments, never failures
// =============================================================================

// WarningKind distinguishes reported adjustments.
type WarningKind string

const (
	WarningClamped WarningKind = "Clamped"
	WarningHoliday WarningKind = "Holiday"
)

// Warning is a non-fatal note returned alongside a successful write.
type Warning struct {
	Kind      WarningKind
	Code      string // machine-readable, e.g. DailyCapExceeded
	Date      calendar.Date
	HourType  HourType
	Requested decimal.Decimal
	Applied   decimal.Decimal
	Message   string
}

// floorHalf rounds down to the nearest 0.5.
func floorHalf(d decimal.Decimal) decimal.Decimal {
	return d.Mul(two).Floor().Div(two)
}

// onHalfGrid reports whether d is a multiple of 0.5.
func onHalfGrid(d decimal.Decimal) bool {
	doubled := d.Mul(two)
	return doubled.Equal(doubled.Truncate(0))
}

// ClampDailyCap walks entries in write order and reduces any entry that
// would push its date over MaxHoursPerDay to max(0, 24 - earlier entries
// that day), rounded down to 0.5. Entries clamped to zero are dropped.
func ClampDailyCap(entries []TimeEntry) ([]TimeEntry, []Warning) {
	out := make([]TimeEntry, 0, len(entries))
	var warnings []Warning
	perDay := make(map[string]decimal.Decimal)

	for _, e := range entries {
		key := e.Date.String()
		used := perDay[key]
		if used.Add(e.Hours).GreaterThan(MaxHoursPerDay) {
			applied := floorHalf(decimal.Max(decimal.Zero, MaxHoursPerDay.Sub(used)))
			warnings = append(warnings, Warning{
				Kind:      WarningClamped,
				Code:      KindDailyCapExceeded,
				Date:      e.Date,
				HourType:  e.HourType,
				Requested: e.Hours,
				Applied:   applied,
				Message: fmt.Sprintf("%s on %s reduced from %s to %s hours to stay within %s hours per day",
					e.HourType, e.Date, e.Hours, applied, MaxHoursPerDay),
			})
			e.Hours = applied
		}
		if e.Hours.IsZero() {
			continue
		}
		perDay[key] = used.Add(e.Hours)
		out = append(out, e)
	}
	return out, warnings
}

// =============================================================================
// BATCH NORMALIZATION
// =============================================================================

// EntryInput is an unvalidated entry as it arrives from a caller.
type EntryInput struct {
	Date     calendar.Date
	HourType string
	Hours    decimal.Decimal
}

// EntryBatch is the validated, clamped replacement set for a timesheet.
type EntryBatch struct {
	Entries  []TimeEntry
	Totals   Totals
	Warnings []Warning
}

// Aggregator validates and normalizes entry batches.
type Aggregator struct {
	Holidays calendar.HolidayCalendar
}

// Normalize validates a full replacement batch for the week at weekStart.
//
// Every problem is collected; any problem fails the whole batch. On success
// the batch has zero-hour entries removed, the daily cap applied in input
// order, and holiday warnings for non-Holiday hours logged on a holiday.
// Entries come back sorted by date then hour type.
func (a Aggregator) Normalize(weekStart calendar.Date, role Role, inputs []EntryInput) (EntryBatch, error) {
	week := calendar.Period{Start: weekStart, End: weekStart.AddDays(6)}
	var errs ValidationErrors
	seen := make(map[string]int)
	entries := make([]TimeEntry, 0, len(inputs))

	for i, in := range inputs {
		field := fmt.Sprintf("entries[%d]", i)

		ht, err := ParseHourType(in.HourType)
		if err != nil {
			errs = append(errs, ValidationError{Kind: ErrUnknownHourType, Field: field + ".hour_type",
				Message: fmt.Sprintf("unknown hour type %q", in.HourType)})
			continue
		}
		if err := CheckAllowed(role, ht); err != nil {
			errs = append(errs, ValidationError{Kind: ErrForbiddenHourType, Field: field + ".hour_type",
				Message: fmt.Sprintf("role %s cannot log %s hours", role, ht)})
		}
		if in.Hours.IsNegative() || in.Hours.GreaterThan(MaxHoursPerDay) || !onHalfGrid(in.Hours) {
			errs = append(errs, ValidationError{Kind: ErrInvalidHours, Field: field + ".hours",
				Message: fmt.Sprintf("hours must be between 0 and 24 in steps of 0.5, got %s", in.Hours)})
		}
		if in.Date.IsZero() || !week.Contains(in.Date) {
			errs = append(errs, ValidationError{Kind: ErrEntryOutOfWeek, Field: field + ".entry_date",
				Message: fmt.Sprintf("date %s is outside week %s", in.Date, week)})
		}
		key := in.Date.String() + "|" + string(ht)
		if prev, dup := seen[key]; dup {
			errs = append(errs, ValidationError{Kind: ErrDuplicateEntry, Field: field,
				Message: fmt.Sprintf("duplicates entries[%d] for %s %s", prev, in.Date, ht)})
		}
		seen[key] = i

		entries = append(entries, TimeEntry{Date: in.Date, HourType: ht, Hours: in.Hours})
	}
	if len(errs) > 0 {
		return EntryBatch{}, errs
	}

	clamped, warnings := ClampDailyCap(entries)
	warnings = append(warnings, a.holidayWarnings(clamped)...)
	SortEntries(clamped)

	totals, err := Aggregate(clamped)
	if err != nil {
		return EntryBatch{}, err
	}
	return EntryBatch{Entries: clamped, Totals: totals, Warnings: warnings}, nil
}

func (a Aggregator) holidayWarnings(entries []TimeEntry) []Warning {
	if a.Holidays == nil {
		return nil
	}
	var warnings []Warning
	for _, e := range entries {
		if e.HourType == HourHoliday {
			continue
		}
		name, ok := a.Holidays.HolidayName(e.Date)
		if !ok {
			continue
		}
		warnings = append(warnings, Warning{
			Kind:      WarningHoliday,
			Code:      "Holiday",
			Date:      e.Date,
			HourType:  e.HourType,
			Requested: e.Hours,
			Applied:   e.Hours,
			Message:   fmt.Sprintf("%s is a company holiday (%s); confirm %s hours were worked", e.Date, name, e.HourType),
		})
	}
	return warnings
}

// SortEntries orders entries by date, then by hour type display order.
func SortEntries(entries []TimeEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		if !entries[i].Date.Equal(entries[j].Date) {
			return entries[i].Date.Before(entries[j].Date)
		}
		return hourTypeRank(entries[i].HourType) < hourTypeRank(entries[j].HourType)
	})
}

func hourTypeRank(h HourType) int {
	for i, t := range hourTypeOrder {
		if t == h {
			return i
		}
	}
	return len(hourTypeOrder)
}

// DefaultWeekEntries builds the auto-populated week: 8 hours Monday to
// Friday of the role's default hour type.
func DefaultWeekEntries(weekStart calendar.Date, role Role) []TimeEntry {
	ht := DefaultHourType(role)
	entries := make([]TimeEntry, 0, 5)
	for _, d := range calendar.WeekDays(weekStart) {
		if d.IsWeekend() {
			continue
		}
		entries = append(entries, TimeEntry{Date: d, HourType: ht, Hours: workday})
	}
	return entries
}

package calendar

import "sort"

// =============================================================================
// HOLIDAY CALENDAR - Company-observed holidays
// =============================================================================

// Holiday is a company-observed holiday.
type Holiday struct {
	Date Date   `json:"date"`
	Name string `json:"name"`
}

// HolidayCalendar looks up company holidays. Holidays are informational:
// the engine surfaces them as warnings and never blocks on them.
type HolidayCalendar interface {
	IsHoliday(d Date) bool
	HolidayName(d Date) (string, bool)
	Holidays(year int) []Holiday
}

// StaticCalendar is a HolidayCalendar over a fixed ISO-date table.
type StaticCalendar struct {
	names map[string]string
}

// NewStaticCalendar builds a calendar from an ISO date -> name table.
func NewStaticCalendar(table map[string]string) *StaticCalendar {
	names := make(map[string]string, len(table))
	for k, v := range table {
		names[k] = v
	}
	return &StaticCalendar{names: names}
}

// DefaultHolidays returns the built-in company calendar.
func DefaultHolidays() *StaticCalendar {
	return NewStaticCalendar(companyHolidays)
}

func (c *StaticCalendar) IsHoliday(d Date) bool {
	_, ok := c.names[d.String()]
	return ok
}

func (c *StaticCalendar) HolidayName(d Date) (string, bool) {
	name, ok := c.names[d.String()]
	return name, ok
}

// Holidays returns the holidays of a year in date order.
func (c *StaticCalendar) Holidays(year int) []Holiday {
	var out []Holiday
	for iso, name := range c.names {
		d, err := ParseDate(iso)
		if err != nil || d.Year() != year {
			continue
		}
		out = append(out, Holiday{Date: d, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out
}

var companyHolidays = map[string]string{
	"2025-01-01": "New Year's Day",
	"2025-05-26": "Memorial Day",
	"2025-07-04": "Independence Day",
	"2025-09-01": "Labor Day",
	"2025-11-27": "Thanksgiving",
	"2025-11-28": "Day After Thanksgiving",
	"2025-12-24": "Christmas Eve",
	"2025-12-25": "Christmas Day",

	"2026-01-01": "New Year's Day",
	"2026-05-25": "Memorial Day",
	"2026-07-03": "Independence Day (Observed)",
	"2026-07-04": "Independence Day",
	"2026-09-07": "Labor Day",
	"2026-11-26": "Thanksgiving",
	"2026-11-27": "Day After Thanksgiving",
	"2026-12-24": "Christmas Eve",
	"2026-12-25": "Christmas Day",

	"2027-01-01": "New Year's Day",
	"2027-05-31": "Memorial Day",
	"2027-07-04": "Independence Day",
	"2027-07-05": "Independence Day (Observed)",
	"2027-09-06": "Labor Day",
	"2027-11-25": "Thanksgiving",
	"2027-11-26": "Day After Thanksgiving",
	"2027-12-24": "Christmas Eve (Observed)",
	"2027-12-25": "Christmas Day",
}

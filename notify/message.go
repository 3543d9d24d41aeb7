package notify

import (
	"fmt"
	"strings"

	"github.com/williambergmann/timesheet/timesheet"
)

// MaxMessageLen keeps messages within a single SMS segment.
const MaxMessageLen = 160

// Message renders the human-readable text for an event.
func Message(e timesheet.Event) string {
	week := e.WeekStart.Time.Format("Jan 02, 2006")

	var msg string
	switch e.Type {
	case timesheet.EventApproved:
		msg = fmt.Sprintf("Your timesheet for week of %s has been approved.", week)
	case timesheet.EventNeedsApproval:
		if e.Reason != "" {
			msg = fmt.Sprintf("Your timesheet for week of %s needs attention: %s", week, e.Reason)
		} else {
			msg = fmt.Sprintf("Your timesheet for week of %s needs attention. Please add the required attachment.", week)
		}
	case timesheet.EventSubmitted:
		if e.Status == timesheet.StatusNeedsApproval {
			msg = fmt.Sprintf("Timesheet for week of %s submitted without attachments (%s hours).", week, e.TotalHours)
		} else {
			msg = fmt.Sprintf("Timesheet for week of %s submitted (%s hours).", week, e.TotalHours)
		}
	case timesheet.EventUnapproved:
		msg = fmt.Sprintf("Approval of your timesheet for week of %s was withdrawn.", week)
	case timesheet.EventDeleted:
		msg = fmt.Sprintf("Draft timesheet for week of %s was deleted.", week)
	case timesheet.EventReminder:
		msg = fmt.Sprintf("Reminder: don't forget to submit your timesheet for week of %s!", e.WeekStart.Time.Format("Jan 02"))
	case timesheet.EventPayPeriodConfirmed:
		if e.Period != nil {
			msg = fmt.Sprintf("Pay period %s to %s confirmed by %s.", e.Period.Start, e.Period.End, e.ActorID)
		} else {
			msg = fmt.Sprintf("Pay period confirmed by %s.", e.ActorID)
		}
	default:
		msg = fmt.Sprintf("%s for week of %s", strings.ReplaceAll(string(e.Type), "_", " "), week)
	}

	if len(msg) > MaxMessageLen {
		msg = msg[:MaxMessageLen-3] + "..."
	}
	return msg
}

// toOwner reports whether the event is addressed to the timesheet owner
// rather than to reviewers.
func toOwner(e timesheet.Event) bool {
	switch e.Type {
	case timesheet.EventApproved, timesheet.EventNeedsApproval, timesheet.EventUnapproved, timesheet.EventReminder:
		return true
	}
	return false
}

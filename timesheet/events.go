package timesheet

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/williambergmann/timesheet/calendar"
)

// EventType names a lifecycle notification.
type EventType string

const (
	EventSubmitted          EventType = "timesheet_submitted"
	EventApproved           EventType = "timesheet_approved"
	EventNeedsApproval      EventType = "timesheet_needs_approval"
	EventUnapproved         EventType = "timesheet_unapproved"
	EventDeleted            EventType = "timesheet_deleted"
	EventPayPeriodConfirmed EventType = "pay_period_confirmed"
	EventReminder           EventType = "timesheet_reminder"
)

// Event is emitted after a lifecycle change commits.
type Event struct {
	Type        EventType
	TimesheetID string
	UserID      string // timesheet owner, or reminder recipient
	ActorID     string
	WeekStart   calendar.Date
	Status      Status
	Period      *calendar.Period // pay-period events only
	Reason      string
	TotalHours  decimal.Decimal
	OccurredAt  time.Time
}

// Payload flattens the event for transports that take a generic map.
func (e Event) Payload() map[string]any {
	p := map[string]any{
		"event":       string(e.Type),
		"actor_id":    e.ActorID,
		"occurred_at": e.OccurredAt.UTC().Format(time.RFC3339),
	}
	if e.TimesheetID != "" {
		p["timesheet_id"] = e.TimesheetID
		p["status"] = string(e.Status)
		p["total_hours"] = e.TotalHours.String()
	}
	if e.UserID != "" {
		p["user_id"] = e.UserID
	}
	if !e.WeekStart.IsZero() {
		p["week_start"] = e.WeekStart.String()
	}
	if e.Period != nil {
		p["start_date"] = e.Period.Start.String()
		p["end_date"] = e.Period.End.String()
	}
	if e.Reason != "" {
		p["reason"] = e.Reason
	}
	return p
}

// Notifier delivers events. Emit must not block the caller for long and
// must never fail a committed transition; implementations log their own
// delivery failures.
type Notifier interface {
	Emit(ctx context.Context, e Event)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, e Event)

func (f NotifierFunc) Emit(ctx context.Context, e Event) { f(ctx, e) }

// NopNotifier discards events.
type NopNotifier struct{}

func (NopNotifier) Emit(context.Context, Event) {}

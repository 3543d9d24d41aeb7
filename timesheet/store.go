/*
store.go - Persistence interfaces for timesheets and pay periods

PURPOSE:
  Defines the boundary between the lifecycle rules and the database. The
  rules never hold state between calls: every operation loads what it
  needs inside WithTx, decides, and writes back in the same transaction.

KEY INTERFACES:
  Store:           Timesheets, entries, reimbursements, notes, pay periods, users
  TxStore:         Store plus atomic multi-table writes
  AttachmentStore: Receipt metadata (external collaborator)
  RoleProvider:    User role lookup (external collaborator)

OPTIMISTIC CONCURRENCY:
  UpdateTimesheet succeeds only if the stored version equals ts.Version,
  and returns the record with the version incremented. A mismatch is a
  *ConflictError (ErrConcurrentModification).

PAY PERIODS:
  Confirmations are discrete (start, end) rows with a unique key on the
  pair. A racing duplicate insert fails with ErrDuplicatePayPeriod, which
  the service reports as already confirmed.

IMPLEMENTATIONS:
  - store/sqlite: Production SQLite
  - store/memory: In-memory for tests and local runs

SEE ALSO:
  - service.go: The only caller of WithTx
*/
package timesheet

import (
	"context"
	"errors"
	"time"

	"github.com/williambergmann/timesheet/calendar"
)

// ErrDuplicatePayPeriod is returned by InsertPayPeriod when the exact
// (start, end) pair is already confirmed.
var ErrDuplicatePayPeriod = errors.New("pay period already confirmed")

// =============================================================================
// STORE
// =============================================================================

// TimesheetFilter narrows ListTimesheets. Zero fields match everything.
type TimesheetFilter struct {
	UserID    string
	Statuses  []Status
	WeekStart *calendar.Date
}

// Matches reports whether ts passes the filter.
func (f TimesheetFilter) Matches(ts Timesheet) bool {
	if f.UserID != "" && ts.UserID != f.UserID {
		return false
	}
	if f.WeekStart != nil && !ts.WeekStart.Equal(*f.WeekStart) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if ts.Status == s {
			return true
		}
	}
	return false
}

// Store persists timesheets and their owned collections.
type Store interface {
	// InsertTimesheet creates ts at version 1. Fails with ErrTimesheetExists
	// if the user already has a timesheet for ts.WeekStart.
	InsertTimesheet(ctx context.Context, ts Timesheet) error

	// GetTimesheet loads a timesheet with its entries and reimbursement items.
	GetTimesheet(ctx context.Context, id string) (Timesheet, error)

	// FindTimesheet loads the user's timesheet for a week, or ErrNotFound.
	FindTimesheet(ctx context.Context, userID string, weekStart calendar.Date) (Timesheet, error)

	// ListTimesheets returns headers (no entries) ordered by week_start desc.
	ListTimesheets(ctx context.Context, filter TimesheetFilter) ([]Timesheet, error)

	// UpdateTimesheet writes header fields if the stored version matches.
	UpdateTimesheet(ctx context.Context, ts Timesheet) (Timesheet, error)

	// ReplaceEntries swaps the full entry set of a timesheet.
	ReplaceEntries(ctx context.Context, timesheetID string, entries []TimeEntry) error

	// ReplaceReimbursements swaps the full reimbursement item set.
	ReplaceReimbursements(ctx context.Context, timesheetID string, items []ReimbursementItem) error

	// DeleteTimesheet removes a timesheet and everything it owns.
	DeleteTimesheet(ctx context.Context, id string) error

	// TouchTimesheets bumps the version of every timesheet whose week starts
	// in period, so stale writers conflict. Returns how many were touched.
	TouchTimesheets(ctx context.Context, period calendar.Period, at time.Time) (int, error)

	AddNote(ctx context.Context, note Note) error
	ListNotes(ctx context.Context, timesheetID string) ([]Note, error)

	// Pay periods
	InsertPayPeriod(ctx context.Context, p PayPeriod) error
	GetPayPeriod(ctx context.Context, period calendar.Period) (PayPeriod, error)
	ListPayPeriods(ctx context.Context) ([]PayPeriod, error)

	// Users
	SaveUser(ctx context.Context, u User) error
	GetUser(ctx context.Context, id string) (User, error)
	ListUsers(ctx context.Context) ([]User, error)

	AttachmentStore
}

// TxStore wraps Store with transaction support.
type TxStore interface {
	Store

	// WithTx executes fn within a transaction.
	// If fn returns error, transaction is rolled back.
	// If fn returns nil, transaction is committed.
	WithTx(ctx context.Context, fn func(Store) error) error
}

// =============================================================================
// EXTERNAL COLLABORATORS
// =============================================================================

// AttachmentStore holds receipt metadata. File bytes live elsewhere.
type AttachmentStore interface {
	AddAttachment(ctx context.Context, a Attachment) error
	ListAttachments(ctx context.Context, timesheetID string) ([]Attachment, error)

	// HasAttachment reports whether any attachment exists, or one tagged
	// reimbursementType when it is non-empty.
	HasAttachment(ctx context.Context, timesheetID, reimbursementType string) (bool, error)
}

// RoleProvider resolves a user's role.
type RoleProvider interface {
	Role(ctx context.Context, userID string) (Role, error)
}

// RoleProviderFunc adapts a function to RoleProvider.
type RoleProviderFunc func(ctx context.Context, userID string) (Role, error)

func (f RoleProviderFunc) Role(ctx context.Context, userID string) (Role, error) { return f(ctx, userID) }

// UserRoles is a RoleProvider over a Store's users.
type UserRoles struct {
	Users interface {
		GetUser(ctx context.Context, id string) (User, error)
	}
}

func (r UserRoles) Role(ctx context.Context, userID string) (Role, error) {
	u, err := r.Users.GetUser(ctx, userID)
	if err != nil {
		return "", err
	}
	return u.Role, nil
}

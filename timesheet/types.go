/*
Package timesheet implements the weekly timesheet lifecycle.

PURPOSE:
  A user records hours per day and hour type for one week, optionally with
  reimbursement items and receipts, then moves the timesheet through
  submission and review. Confirming a biweekly pay period freezes every
  timesheet whose week starts inside it.

KEY CONCEPTS:
  - Timesheet:         One user-week. Unique per (user, week_start).
  - TimeEntry:         Hours for one (date, hour type) within the week
  - HourType:          Closed registry, each type classified for payroll
  - Totals:            Derived sums, never stored
  - ReimbursementItem: Expense line; typed items need a matching receipt
  - PayPeriod:         Confirmed 14-day window. Confirmation is the lock.

LIFECYCLE:
  NEW ──submit──► SUBMITTED ──approve──► APPROVED
   │       │          │    ◄──unapprove──┘
   │       │          └──reject──► NEEDS_APPROVAL ──submit──► ...
   │       └──────────────────────►(NEEDS_APPROVAL when unverified)
   └──delete──► (gone)

  Every transition and every entry mutation is refused while the
  timesheet's week lies in a confirmed pay period.

SEE ALSO:
  - statemachine.go: Transition table and preconditions
  - aggregate.go:    Entry normalization, daily cap, totals
  - service.go:      Transactional orchestration over a Store
*/
package timesheet

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/williambergmann/timesheet/calendar"
)

// =============================================================================
// STATUS
// =============================================================================

// Status is a timesheet lifecycle state.
type Status string

const (
	StatusNew           Status = "NEW"
	StatusSubmitted     Status = "SUBMITTED"
	StatusApproved      Status = "APPROVED"
	StatusNeedsApproval Status = "NEEDS_APPROVAL"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusSubmitted, StatusApproved, StatusNeedsApproval:
		return true
	}
	return false
}

// Editable reports whether entries and details may change in this status.
func (s Status) Editable() bool {
	return s == StatusNew || s == StatusNeedsApproval
}

// =============================================================================
// TIMESHEET
// =============================================================================

// Timesheet is one user's record for one week.
type Timesheet struct {
	ID        string
	UserID    string
	WeekStart calendar.Date
	Status    Status

	// Version increments on every write. Writers pass the version they read.
	Version int64

	TravelFlag          bool
	ExpensesFlag        bool
	ReimbursementNeeded bool
	UserNotes           string
	AdminNotes          string

	Entries        []TimeEntry
	Reimbursements []ReimbursementItem

	CreatedAt   time.Time
	UpdatedAt   time.Time
	SubmittedAt *time.Time
	ApprovedAt  *time.Time
	ApprovedBy  string
}

// WeekEnd returns the last day of the timesheet's week.
func (t Timesheet) WeekEnd() calendar.Date {
	return t.WeekStart.AddDays(6)
}

// Week returns the timesheet's week as a period.
func (t Timesheet) Week() calendar.Period {
	return calendar.Period{Start: t.WeekStart, End: t.WeekEnd()}
}

// OwnedBy reports whether userID owns the timesheet.
func (t Timesheet) OwnedBy(userID string) bool {
	return t.UserID == userID
}

// Clone returns a copy that shares no slices with t.
func (t Timesheet) Clone() Timesheet {
	c := t
	c.Entries = append([]TimeEntry(nil), t.Entries...)
	c.Reimbursements = append([]ReimbursementItem(nil), t.Reimbursements...)
	if t.SubmittedAt != nil {
		v := *t.SubmittedAt
		c.SubmittedAt = &v
	}
	if t.ApprovedAt != nil {
		v := *t.ApprovedAt
		c.ApprovedAt = &v
	}
	return c
}

// TimeEntry is hours for one (date, hour type) in a timesheet.
type TimeEntry struct {
	Date     calendar.Date
	HourType HourType
	Hours    decimal.Decimal
}

// =============================================================================
// SUPPORTING RECORDS
// =============================================================================

// SyncStatus tracks whether an attachment has been pushed to the external
// document store.
type SyncStatus string

const (
	SyncPending SyncStatus = "pending"
	SyncSynced  SyncStatus = "synced"
	SyncFailed  SyncStatus = "failed"
)

// Attachment is a receipt or supporting document on a timesheet.
type Attachment struct {
	ID                string
	TimesheetID       string
	Filename          string
	ContentType       string
	SizeBytes         int64
	ReimbursementType string // empty if not tied to an expense type
	SyncStatus        SyncStatus
	UploadedAt        time.Time
}

// Note is a comment thread entry on a timesheet.
type Note struct {
	ID          string
	TimesheetID string
	AuthorID    string
	Content     string
	CreatedAt   time.Time
}

// User is a directory entry the engine needs for authorization and reminders.
type User struct {
	ID          string
	Email       string
	DisplayName string
	Role        Role
	SlackID     string
}

// Field limits.
const (
	MaxUserNotesLen = 255
	MaxItemNotesLen = 200
	MaxNoteLen      = 2000
)

package timesheet

import (
	"fmt"
	"strings"
	"time"

	"github.com/williambergmann/timesheet/calendar"
)

// =============================================================================
// COMMANDS & TRANSITION TABLE
// =============================================================================

// Command is an action requested against a timesheet.
type Command string

const (
	CmdSubmit    Command = "submit"
	CmdApprove   Command = "approve"
	CmdReject    Command = "reject"
	CmdUnapprove Command = "unapprove"
	CmdDelete    Command = "delete"
	CmdEdit      Command = "edit"
)

type edge struct {
	from Status
	cmd  Command
}

// transitions maps each defined edge to its default target. Submit's real
// target is decided by submitTarget. Delete has no target.
var transitions = map[edge]Status{
	{StatusNew, CmdSubmit}:           StatusSubmitted,
	{StatusNeedsApproval, CmdSubmit}: StatusSubmitted,
	{StatusNew, CmdDelete}:           "",
	{StatusSubmitted, CmdApprove}:    StatusApproved,
	{StatusSubmitted, CmdReject}:     StatusNeedsApproval,
	{StatusApproved, CmdUnapprove}:   StatusSubmitted,
}

// Allowed reports whether cmd is a defined edge out of from.
func Allowed(from Status, cmd Command) bool {
	if cmd == CmdEdit {
		return from.Editable()
	}
	_, ok := transitions[edge{from, cmd}]
	return ok
}

// Facts are the inputs a transition is decided on. The caller loads them
// inside the same transaction that will persist the result.
type Facts struct {
	Now       time.Time
	ActorID   string
	ActorRole Role

	// LockedBy is the confirmed pay period covering the week, if any.
	LockedBy *calendar.Period

	Totals          Totals
	AttachmentCount int
	Reimbursements  ReimbursementReport

	AcknowledgeMissingAttachments bool
	Reason                        string
}

// Outcome is the result of a successful transition.
type Outcome struct {
	Timesheet Timesheet
	Events    []Event
	Removed   bool // delete: the caller must remove the record
}

// =============================================================================
// APPLY
// =============================================================================

// Apply decides cmd against ts. It never mutates ts and performs no I/O.
//
// Checks run in this order: pay-period lock, edge defined, caller
// authorized, command preconditions.
func Apply(ts Timesheet, cmd Command, f Facts) (Outcome, error) {
	if f.LockedBy != nil {
		return Outcome{}, &LockedError{WeekStart: ts.WeekStart, Period: *f.LockedBy}
	}
	if !Allowed(ts.Status, cmd) {
		return Outcome{}, &TransitionError{From: ts.Status, Command: cmd}
	}
	if err := authorize(ts, cmd, f.ActorID, f.ActorRole); err != nil {
		return Outcome{}, err
	}

	next := ts.Clone()
	next.UpdatedAt = f.Now

	switch cmd {
	case CmdSubmit:
		return submit(next, f)

	case CmdApprove:
		now := f.Now
		next.Status = StatusApproved
		next.ApprovedAt = &now
		next.ApprovedBy = f.ActorID
		return outcome(next, EventApproved, f), nil

	case CmdReject:
		next.Status = StatusNeedsApproval
		if reason := strings.TrimSpace(f.Reason); reason != "" {
			next.AdminNotes = reason
		}
		return outcome(next, EventNeedsApproval, f), nil

	case CmdUnapprove:
		next.Status = StatusSubmitted
		next.ApprovedAt = nil
		next.ApprovedBy = ""
		return outcome(next, EventUnapproved, f), nil

	case CmdDelete:
		o := outcome(next, EventDeleted, f)
		o.Removed = true
		return o, nil

	case CmdEdit:
		return Outcome{Timesheet: next}, nil
	}
	return Outcome{}, &TransitionError{From: ts.Status, Command: cmd, Reason: "unknown command"}
}

// CanEdit checks that ts may have its entries or details changed by the actor.
func CanEdit(ts Timesheet, actorID string, role Role, lockedBy *calendar.Period) error {
	_, err := Apply(ts, CmdEdit, Facts{ActorID: actorID, ActorRole: role, LockedBy: lockedBy})
	return err
}

func submit(next Timesheet, f Facts) (Outcome, error) {
	if !f.Totals.Total.IsPositive() {
		return Outcome{}, &TransitionError{From: next.Status, Command: CmdSubmit, Reason: "timesheet has no hours"}
	}
	if errs := f.Reimbursements.Errors(f.AcknowledgeMissingAttachments); len(errs) > 0 {
		return Outcome{}, errs
	}

	now := f.Now
	next.Status = submitTarget(f)
	next.SubmittedAt = &now
	return outcome(next, EventSubmitted, f), nil
}

// submitTarget routes a submission to NEEDS_APPROVAL when it lacks evidence:
// billable hours with no attachment at all, or acknowledged-but-missing
// reimbursement receipts.
func submitTarget(f Facts) Status {
	if f.Totals.ForType(HourField).IsPositive() && f.AttachmentCount == 0 {
		return StatusNeedsApproval
	}
	if len(f.Reimbursements.MissingAttachmentTypes) > 0 {
		return StatusNeedsApproval
	}
	return StatusSubmitted
}

func authorize(ts Timesheet, cmd Command, actorID string, role Role) error {
	switch cmd {
	case CmdSubmit, CmdDelete, CmdEdit:
		if ts.OwnedBy(actorID) || role.IsAdmin() {
			return nil
		}
		return fmt.Errorf("%w: only the owner may %s this timesheet", ErrForbidden, cmd)
	case CmdApprove, CmdReject:
		if role.IsApprover() {
			return nil
		}
		return fmt.Errorf("%w: %s requires an approver role", ErrForbidden, cmd)
	case CmdUnapprove:
		if role.IsAdmin() {
			return nil
		}
		return fmt.Errorf("%w: %s requires the admin role", ErrForbidden, cmd)
	}
	return nil
}

func outcome(ts Timesheet, typ EventType, f Facts) Outcome {
	return Outcome{
		Timesheet: ts,
		Events: []Event{{
			Type:        typ,
			TimesheetID: ts.ID,
			UserID:      ts.UserID,
			ActorID:     f.ActorID,
			WeekStart:   ts.WeekStart,
			Status:      ts.Status,
			Reason:      strings.TrimSpace(f.Reason),
			TotalHours:  f.Totals.Total,
			OccurredAt:  f.Now,
		}},
	}
}

// AvailableCommands lists the commands role could run on ts right now,
// ignoring per-command preconditions such as hours or receipts.
func AvailableCommands(ts Timesheet, actorID string, role Role, lockedBy *calendar.Period) []Command {
	if lockedBy != nil {
		return nil
	}
	var out []Command
	for _, cmd := range []Command{CmdEdit, CmdSubmit, CmdDelete, CmdApprove, CmdReject, CmdUnapprove} {
		if Allowed(ts.Status, cmd) && authorize(ts, cmd, actorID, role) == nil {
			out = append(out, cmd)
		}
	}
	return out
}

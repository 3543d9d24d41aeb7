/*
errors.go - Error kinds of the timesheet engine

PURPOSE:
  Every failure the engine reports maps to one machine-readable kind so the
  transport layer can translate it into a 4xx response without string
  matching. Sentinels work with errors.Is; structured errors carry context
  and unwrap to their sentinel.

PROPAGATION:
  - Aggregation and ledger checks collect problems into ValidationErrors
    (not fail-fast) so a caller can show everything at once.
  - State-machine and lock errors are fail-fast: one authoritative
    precondition failed.
  - ErrDailyCapExceeded is never returned as an error. It only names the
    kind of a Clamped warning.

RETRIES:
  ErrConcurrentModification is retryable: re-fetch the timesheet and
  resend with the new version.
*/
package timesheet

import (
	"errors"
	"fmt"
	"strings"

	"github.com/williambergmann/timesheet/calendar"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	ErrInvalidTransition               = errors.New("invalid transition")
	ErrPayPeriodLocked                 = errors.New("pay period has been confirmed and is locked")
	ErrForbiddenHourType               = errors.New("hour type not allowed for role")
	ErrUnknownHourType                 = errors.New("unknown hour type")
	ErrReimbursementAttachmentRequired = errors.New("reimbursement attachment required")
	ErrInvalidAmount                   = errors.New("invalid reimbursement amount")
	ErrDailyCapExceeded                = errors.New("daily hour cap exceeded")
	ErrConcurrentModification          = errors.New("concurrent modification detected")

	ErrNotFound        = errors.New("not found")
	ErrTimesheetExists = errors.New("timesheet already exists for week")
	ErrForbidden       = errors.New("forbidden")
	ErrInvalidInput    = errors.New("invalid input")
	ErrInvalidHours    = errors.New("invalid hours")
	ErrEntryOutOfWeek  = errors.New("entry date outside timesheet week")
	ErrDuplicateEntry  = errors.New("duplicate entry for date and hour type")

	// ErrInvalidPeriod is re-exported so callers need not import calendar.
	ErrInvalidPeriod = calendar.ErrInvalidPeriod
)

// Machine-readable kinds.
const (
	KindInvalidTransition               = "InvalidTransition"
	KindPayPeriodLocked                 = "PayPeriodLocked"
	KindForbiddenHourType               = "ForbiddenHourType"
	KindUnknownHourType                 = "UnknownHourType"
	KindReimbursementAttachmentRequired = "ReimbursementAttachmentRequired"
	KindInvalidAmount                   = "InvalidAmount"
	KindDailyCapExceeded                = "DailyCapExceeded"
	KindConcurrentModification          = "ConcurrentModification"
	KindNotFound                        = "NotFound"
	KindTimesheetExists                 = "TimesheetExists"
	KindForbidden                       = "Forbidden"
	KindInvalidInput                    = "InvalidInput"
	KindInvalidHours                    = "InvalidHours"
	KindEntryOutOfWeek                  = "EntryOutOfWeek"
	KindDuplicateEntry                  = "DuplicateEntry"
	KindInvalidPeriod                   = "InvalidPeriod"
	KindValidationFailed                = "ValidationFailed"
	KindInternal                        = "Internal"
)

var kindBySentinel = []struct {
	err  error
	kind string
}{
	{ErrInvalidTransition, KindInvalidTransition},
	{ErrPayPeriodLocked, KindPayPeriodLocked},
	{ErrForbiddenHourType, KindForbiddenHourType},
	{ErrUnknownHourType, KindUnknownHourType},
	{ErrReimbursementAttachmentRequired, KindReimbursementAttachmentRequired},
	{ErrInvalidAmount, KindInvalidAmount},
	{ErrDailyCapExceeded, KindDailyCapExceeded},
	{ErrConcurrentModification, KindConcurrentModification},
	{ErrNotFound, KindNotFound},
	{ErrTimesheetExists, KindTimesheetExists},
	{ErrForbidden, KindForbidden},
	{ErrInvalidInput, KindInvalidInput},
	{ErrInvalidHours, KindInvalidHours},
	{ErrEntryOutOfWeek, KindEntryOutOfWeek},
	{ErrDuplicateEntry, KindDuplicateEntry},
	{ErrInvalidPeriod, KindInvalidPeriod},
}

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// TransitionError reports a state-machine rule violation.
type TransitionError struct {
	From    Status
	Command Command
	Reason  string
}

func (e *TransitionError) Error() string {
	msg := fmt.Sprintf("cannot %s timesheet in status %s", e.Command, e.From)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	return msg
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// LockedError reports a mutation attempted inside a confirmed pay period.
type LockedError struct {
	WeekStart calendar.Date
	Period    calendar.Period
}

func (e *LockedError) Error() string {
	return fmt.Sprintf("week of %s is in confirmed pay period %s", e.WeekStart, e.Period)
}

func (e *LockedError) Unwrap() error { return ErrPayPeriodLocked }

// ConflictError reports an optimistic-lock failure.
type ConflictError struct {
	TimesheetID string
	Expected    int64
	Actual      int64
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("timesheet %s was modified concurrently (expected version %d, found %d)",
		e.TimesheetID, e.Expected, e.Actual)
}

func (e *ConflictError) Unwrap() error { return ErrConcurrentModification }

// ValidationError is one problem found while validating a batch.
type ValidationError struct {
	Kind    error  // sentinel, e.g. ErrUnknownHourType
	Field   string // e.g. "entries[3].hour_type"
	Message string
}

func (e ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return e.Field + ": " + e.Message
}

func (e ValidationError) Unwrap() error { return e.Kind }

// ValidationErrors collects every problem found in one request.
// errors.Is matches any contained kind.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	parts := make([]string, len(ve))
	for i, e := range ve {
		parts[i] = e.Error()
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (ve ValidationErrors) Unwrap() []error {
	errs := make([]error, len(ve))
	for i, e := range ve {
		errs[i] = e
	}
	return errs
}

// OrNil returns nil for an empty collection so callers can `return ve.OrNil()`.
func (ve ValidationErrors) OrNil() error {
	if len(ve) == 0 {
		return nil
	}
	return ve
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// Kind returns the machine-readable kind of err.
func Kind(err error) string {
	if err == nil {
		return ""
	}
	var ve ValidationErrors
	if errors.As(err, &ve) {
		return ve.kind()
	}
	for _, k := range kindBySentinel {
		if errors.Is(err, k.err) {
			return k.kind
		}
	}
	return KindInternal
}

// kind is the single kind shared by every item. A bad amount outranks a
// missing receipt, since the amount has to be fixed before anything else.
func (ve ValidationErrors) kind() string {
	kinds := make(map[string]bool, len(ve))
	for _, e := range ve {
		kinds[Kind(e.Kind)] = true
	}
	switch {
	case len(kinds) == 1:
		for k := range kinds {
			return k
		}
	case len(kinds) == 2 && kinds[KindInvalidAmount] && kinds[KindReimbursementAttachmentRequired]:
		return KindInvalidAmount
	}
	return KindValidationFailed
}

// IsRetryable returns true if the error might succeed on retry.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrConcurrentModification)
}

// IsNotFound returns true if the error indicates a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsClientError returns true if the error is due to the request rather than the system.
func IsClientError(err error) bool {
	return Kind(err) != KindInternal
}

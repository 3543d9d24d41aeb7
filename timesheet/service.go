/*
service.go - Timesheet lifecycle operations

PURPOSE:
  Service is the operation set exposed to callers. Each operation:
  1. Resolves the caller's role (outside the transaction)
  2. Loads the timesheet and the confirmed pay periods inside WithTx
  3. Decides with the pure rules (Normalize, Apply, ValidateReimbursements)
  4. Writes back with a version check in the same transaction
  5. Emits events after commit, never before

LOCK EVALUATION:
  Whether a week is frozen is recomputed from the pay-period rows inside
  every mutating transaction. Nothing about the lock is cached on the
  timesheet, so a confirmation that commits first always wins.

EXAMPLE:
  svc := timesheet.NewService(store, timesheet.UserRoles{Users: store}, notifier, logger)

  ts, err := svc.CreateTimesheet(ctx, timesheet.CreateRequest{UserID: "u1", WeekStart: monday})
  res, err := svc.ReplaceEntries(ctx, timesheet.ReplaceEntriesRequest{TimesheetID: ts.ID, ActorID: "u1", Entries: in})
  ts, err = svc.Submit(ctx, timesheet.SubmitRequest{TimesheetID: ts.ID, ActorID: "u1"})

SEE ALSO:
  - statemachine.go: Transition rules
  - store.go:        Persistence contract
*/
package timesheet

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/williambergmann/timesheet/calendar"
)

// =============================================================================
// SERVICE
// =============================================================================

type Service struct {
	Store      TxStore
	Roles      RoleProvider
	Notifier   Notifier
	Holidays   calendar.HolidayCalendar
	PayPeriods calendar.PayPeriodConfig
	Logger     *slog.Logger

	Now   func() time.Time
	NewID func() string
}

// NewService wires a Service with default holidays, pay-period grid and clock.
func NewService(store TxStore, roles RoleProvider, notifier Notifier, logger *slog.Logger) *Service {
	if notifier == nil {
		notifier = NopNotifier{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		Store:      store,
		Roles:      roles,
		Notifier:   notifier,
		Holidays:   calendar.DefaultHolidays(),
		PayPeriods: calendar.DefaultPayPeriods(),
		Logger:     logger,
		Now:        func() time.Time { return time.Now().UTC() },
		NewID:      uuid.NewString,
	}
}

// =============================================================================
// REQUESTS & RESULTS
// =============================================================================

type CreateRequest struct {
	UserID       string
	ActorID      string // defaults to UserID
	WeekStart    calendar.Date
	AutoPopulate bool
}

type ReplaceEntriesRequest struct {
	TimesheetID     string
	ActorID         string
	Entries         []EntryInput
	ExpectedVersion int64 // 0 skips the check; only in-process callers send it
}

// EntriesResult is the outcome of a successful entry replacement.
type EntriesResult struct {
	Timesheet Timesheet
	Totals    Totals
	Warnings  []Warning
}

type SubmitRequest struct {
	TimesheetID                   string
	ActorID                       string
	AcknowledgeMissingAttachments bool
	ExpectedVersion               int64
}

type ReviewRequest struct {
	TimesheetID     string
	ActorID         string
	Reason          string // reject only
	ExpectedVersion int64
}

type UpdateDetailsRequest struct {
	TimesheetID         string
	ActorID             string
	TravelFlag          *bool
	ExpensesFlag        *bool
	ReimbursementNeeded *bool
	UserNotes           *string
	Reimbursements      *[]ReimbursementInput
	ExpectedVersion     int64
}

type NoteRequest struct {
	TimesheetID string
	ActorID     string
	Content     string
}

type AttachmentRequest struct {
	TimesheetID       string
	ActorID           string
	Filename          string
	ContentType       string
	SizeBytes         int64
	ReimbursementType string
}

type ConfirmRequest struct {
	Start   calendar.Date
	End     calendar.Date
	ActorID string
}

// TimesheetView is a timesheet with everything derived for display.
type TimesheetView struct {
	Timesheet          Timesheet
	Totals             Totals
	Attachments        []Attachment
	Notes              []Note
	Reimbursement      ReimbursementReport
	ReimbursementTotal string
	LockedBy           *calendar.Period
	Actions            []Command
}

// PayPeriodConfirmed reports whether the timesheet's week is frozen.
func (v TimesheetView) PayPeriodConfirmed() bool { return v.LockedBy != nil }

// =============================================================================
// USERS
// =============================================================================

// RegisterUser creates or updates a directory entry.
func (s *Service) RegisterUser(ctx context.Context, u User) (User, error) {
	u.ID = strings.TrimSpace(u.ID)
	if u.ID == "" {
		u.ID = s.NewID()
	}
	if !u.Role.Valid() {
		return User{}, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, u.Role)
	}
	if err := s.Store.SaveUser(ctx, u); err != nil {
		return User{}, fmt.Errorf("failed to save user: %w", err)
	}
	s.Logger.Info("user registered", "user_id", u.ID, "role", u.Role)
	return u, nil
}

// ListUsers returns every known user.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.Store.ListUsers(ctx)
}

// =============================================================================
// CREATE & EDIT
// =============================================================================

// CreateTimesheet opens a NEW timesheet for the week containing req.WeekStart.
func (s *Service) CreateTimesheet(ctx context.Context, req CreateRequest) (Timesheet, error) {
	if req.ActorID == "" {
		req.ActorID = req.UserID
	}
	if req.WeekStart.IsZero() {
		return Timesheet{}, fmt.Errorf("%w: week_start is required", ErrInvalidInput)
	}

	// 1. Resolve roles
	ownerRole, err := s.role(ctx, req.UserID)
	if err != nil {
		return Timesheet{}, err
	}
	if req.ActorID != req.UserID {
		actorRole, err := s.role(ctx, req.ActorID)
		if err != nil {
			return Timesheet{}, err
		}
		if !actorRole.IsAdmin() {
			return Timesheet{}, fmt.Errorf("%w: cannot create a timesheet for another user", ErrForbidden)
		}
	}

	now := s.Now()
	ts := Timesheet{
		ID:        s.NewID(),
		UserID:    req.UserID,
		WeekStart: calendar.WeekStart(req.WeekStart),
		Status:    StatusNew,
		Version:   1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if req.AutoPopulate {
		ts.Entries = DefaultWeekEntries(ts.WeekStart, ownerRole)
	}

	// 2. Insert, refusing frozen weeks and duplicates
	err = s.Store.WithTx(ctx, func(tx Store) error {
		locked, err := s.lockFor(ctx, tx, ts.WeekStart)
		if err != nil {
			return err
		}
		if locked != nil {
			return &LockedError{WeekStart: ts.WeekStart, Period: *locked}
		}
		if _, err := tx.FindTimesheet(ctx, ts.UserID, ts.WeekStart); err == nil {
			return fmt.Errorf("%w: user %s week %s", ErrTimesheetExists, ts.UserID, ts.WeekStart)
		} else if !errors.Is(err, ErrNotFound) {
			return err
		}
		if err := tx.InsertTimesheet(ctx, ts); err != nil {
			return err
		}
		if len(ts.Entries) > 0 {
			return tx.ReplaceEntries(ctx, ts.ID, ts.Entries)
		}
		return nil
	})
	if err != nil {
		return Timesheet{}, err
	}

	s.Logger.Info("timesheet created",
		"timesheet_id", ts.ID, "user_id", ts.UserID, "week_start", ts.WeekStart.String(),
		"auto_populated", req.AutoPopulate)
	return ts, nil
}

// ReplaceEntries swaps the full entry set of an editable timesheet.
// Totals in the result are recomputed from the stored entries.
func (s *Service) ReplaceEntries(ctx context.Context, req ReplaceEntriesRequest) (EntriesResult, error) {
	actorRole, ownerRole, err := s.roles(ctx, req.TimesheetID, req.ActorID)
	if err != nil {
		return EntriesResult{}, err
	}

	var result EntriesResult
	err = s.Store.WithTx(ctx, func(tx Store) error {
		ts, locked, err := s.loadForWrite(ctx, tx, req.TimesheetID, req.ExpectedVersion)
		if err != nil {
			return err
		}
		if err := CanEdit(ts, req.ActorID, actorRole, locked); err != nil {
			return err
		}

		batch, err := s.aggregator().Normalize(ts.WeekStart, ownerRole, req.Entries)
		if err != nil {
			return err
		}
		if err := tx.ReplaceEntries(ctx, ts.ID, batch.Entries); err != nil {
			return err
		}

		ts.UpdatedAt = s.Now()
		saved, err := tx.UpdateTimesheet(ctx, ts)
		if err != nil {
			return err
		}
		saved.Entries = batch.Entries
		result = EntriesResult{Timesheet: saved, Totals: batch.Totals, Warnings: batch.Warnings}
		return nil
	})
	if err != nil {
		return EntriesResult{}, err
	}

	for _, w := range result.Warnings {
		s.Logger.Info("entry adjusted",
			"timesheet_id", req.TimesheetID, "kind", w.Kind, "date", w.Date.String(),
			"hour_type", w.HourType, "requested", w.Requested.String(), "applied", w.Applied.String())
	}
	return result, nil
}

// UpdateDetails changes flags, user notes and reimbursement items.
func (s *Service) UpdateDetails(ctx context.Context, req UpdateDetailsRequest) (Timesheet, error) {
	if req.UserNotes != nil && utf8.RuneCountInString(*req.UserNotes) > MaxUserNotesLen {
		return Timesheet{}, ValidationErrors{{Kind: ErrInvalidInput, Field: "user_notes",
			Message: fmt.Sprintf("must be at most %d characters", MaxUserNotesLen)}}
	}
	var items []ReimbursementItem
	if req.Reimbursements != nil {
		var err error
		if items, err = NormalizeReimbursements(*req.Reimbursements, s.NewID); err != nil {
			return Timesheet{}, err
		}
	}

	actorRole, err := s.role(ctx, req.ActorID)
	if err != nil {
		return Timesheet{}, err
	}

	var saved Timesheet
	err = s.Store.WithTx(ctx, func(tx Store) error {
		ts, locked, err := s.loadForWrite(ctx, tx, req.TimesheetID, req.ExpectedVersion)
		if err != nil {
			return err
		}
		if err := CanEdit(ts, req.ActorID, actorRole, locked); err != nil {
			return err
		}

		if req.TravelFlag != nil {
			ts.TravelFlag = *req.TravelFlag
		}
		if req.ExpensesFlag != nil {
			ts.ExpensesFlag = *req.ExpensesFlag
		}
		if req.ReimbursementNeeded != nil {
			ts.ReimbursementNeeded = *req.ReimbursementNeeded
		}
		if req.UserNotes != nil {
			ts.UserNotes = *req.UserNotes
		}
		if req.Reimbursements != nil {
			if err := tx.ReplaceReimbursements(ctx, ts.ID, items); err != nil {
				return err
			}
			ts.Reimbursements = items
		}

		ts.UpdatedAt = s.Now()
		saved, err = tx.UpdateTimesheet(ctx, ts)
		if err != nil {
			return err
		}
		saved.Entries = ts.Entries
		saved.Reimbursements = ts.Reimbursements
		return nil
	})
	if err != nil {
		return Timesheet{}, err
	}
	return saved, nil
}

// AddAttachment records receipt metadata on an editable timesheet.
func (s *Service) AddAttachment(ctx context.Context, req AttachmentRequest) (Attachment, error) {
	if strings.TrimSpace(req.Filename) == "" {
		return Attachment{}, fmt.Errorf("%w: filename is required", ErrInvalidInput)
	}
	actorRole, err := s.role(ctx, req.ActorID)
	if err != nil {
		return Attachment{}, err
	}

	a := Attachment{
		ID:                s.NewID(),
		TimesheetID:       req.TimesheetID,
		Filename:          strings.TrimSpace(req.Filename),
		ContentType:       req.ContentType,
		SizeBytes:         req.SizeBytes,
		ReimbursementType: strings.TrimSpace(req.ReimbursementType),
		SyncStatus:        SyncPending,
		UploadedAt:        s.Now(),
	}
	err = s.Store.WithTx(ctx, func(tx Store) error {
		ts, locked, err := s.loadForWrite(ctx, tx, req.TimesheetID, 0)
		if err != nil {
			return err
		}
		if err := CanEdit(ts, req.ActorID, actorRole, locked); err != nil {
			return err
		}
		if err := tx.AddAttachment(ctx, a); err != nil {
			return err
		}
		ts.UpdatedAt = a.UploadedAt
		_, err = tx.UpdateTimesheet(ctx, ts)
		return err
	})
	if err != nil {
		return Attachment{}, err
	}
	return a, nil
}

// AddNote appends a comment. Notes are commentary and stay open after a
// pay period is confirmed.
func (s *Service) AddNote(ctx context.Context, req NoteRequest) (Note, error) {
	content := strings.TrimSpace(req.Content)
	if content == "" || utf8.RuneCountInString(content) > MaxNoteLen {
		return Note{}, fmt.Errorf("%w: note must be 1 to %d characters", ErrInvalidInput, MaxNoteLen)
	}
	actorRole, err := s.role(ctx, req.ActorID)
	if err != nil {
		return Note{}, err
	}

	n := Note{ID: s.NewID(), TimesheetID: req.TimesheetID, AuthorID: req.ActorID, Content: content, CreatedAt: s.Now()}
	err = s.Store.WithTx(ctx, func(tx Store) error {
		ts, err := tx.GetTimesheet(ctx, req.TimesheetID)
		if err != nil {
			return err
		}
		if !canView(ts, req.ActorID, actorRole) {
			return fmt.Errorf("%w: not your timesheet", ErrForbidden)
		}
		return tx.AddNote(ctx, n)
	})
	if err != nil {
		return Note{}, err
	}
	return n, nil
}

// =============================================================================
// TRANSITIONS
// =============================================================================

// Submit moves an editable timesheet to review. The target status depends
// on attachments; see submitTarget.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (Timesheet, error) {
	return s.transition(ctx, CmdSubmit, req.TimesheetID, req.ActorID, req.ExpectedVersion, func(f *Facts) {
		f.AcknowledgeMissingAttachments = req.AcknowledgeMissingAttachments
	})
}

// Approve accepts a SUBMITTED timesheet.
func (s *Service) Approve(ctx context.Context, req ReviewRequest) (Timesheet, error) {
	return s.transition(ctx, CmdApprove, req.TimesheetID, req.ActorID, req.ExpectedVersion, nil)
}

// Reject returns a SUBMITTED timesheet to its owner with a reason.
func (s *Service) Reject(ctx context.Context, req ReviewRequest) (Timesheet, error) {
	return s.transition(ctx, CmdReject, req.TimesheetID, req.ActorID, req.ExpectedVersion, func(f *Facts) {
		f.Reason = req.Reason
	})
}

// Unapprove reverts an APPROVED timesheet to SUBMITTED.
func (s *Service) Unapprove(ctx context.Context, req ReviewRequest) (Timesheet, error) {
	return s.transition(ctx, CmdUnapprove, req.TimesheetID, req.ActorID, req.ExpectedVersion, nil)
}

// Delete removes a NEW timesheet and everything it owns.
func (s *Service) Delete(ctx context.Context, timesheetID, actorID string) error {
	_, err := s.transition(ctx, CmdDelete, timesheetID, actorID, 0, nil)
	return err
}

func (s *Service) transition(
	ctx context.Context,
	cmd Command,
	timesheetID, actorID string,
	expectedVersion int64,
	configure func(*Facts),
) (Timesheet, error) {
	actorRole, err := s.role(ctx, actorID)
	if err != nil {
		return Timesheet{}, err
	}

	var out Outcome
	err = s.Store.WithTx(ctx, func(tx Store) error {
		// 1. Load and check the lock fresh
		ts, locked, err := s.loadForWrite(ctx, tx, timesheetID, expectedVersion)
		if err != nil {
			return err
		}

		// 2. Gather facts
		totals, err := Aggregate(ts.Entries)
		if err != nil {
			return err
		}
		facts := Facts{Now: s.Now(), ActorID: actorID, ActorRole: actorRole, LockedBy: locked, Totals: totals}
		if configure != nil {
			configure(&facts)
		}
		if cmd == CmdSubmit {
			attachments, err := tx.ListAttachments(ctx, ts.ID)
			if err != nil {
				return err
			}
			facts.AttachmentCount = len(attachments)
			facts.Reimbursements = ValidateReimbursements(ts.Reimbursements, attachments)
		}

		// 3. Decide
		out, err = Apply(ts, cmd, facts)
		if err != nil {
			return err
		}

		// 4. Persist
		if out.Removed {
			return tx.DeleteTimesheet(ctx, ts.ID)
		}
		saved, err := tx.UpdateTimesheet(ctx, out.Timesheet)
		if err != nil {
			return err
		}
		saved.Entries = out.Timesheet.Entries
		saved.Reimbursements = out.Timesheet.Reimbursements
		out.Timesheet = saved

		if cmd == CmdReject && strings.TrimSpace(facts.Reason) != "" {
			return tx.AddNote(ctx, Note{
				ID:          s.NewID(),
				TimesheetID: ts.ID,
				AuthorID:    actorID,
				Content:     "Rejected: " + strings.TrimSpace(facts.Reason),
				CreatedAt:   facts.Now,
			})
		}
		return nil
	})
	if err != nil {
		s.Logger.Debug("transition refused",
			"timesheet_id", timesheetID, "command", cmd, "actor_id", actorID, "kind", Kind(err), "error", err)
		return Timesheet{}, err
	}

	// 5. Notify after commit
	s.Logger.Info("timesheet transitioned",
		"timesheet_id", timesheetID, "command", cmd, "actor_id", actorID, "status", out.Timesheet.Status)
	s.emit(ctx, out.Events)
	return out.Timesheet, nil
}

// =============================================================================
// PAY PERIODS
// =============================================================================

// ConfirmPayPeriod freezes every timesheet whose week starts in [start, end].
// Confirming the same range again returns AlreadyConfirmed and emits nothing.
func (s *Service) ConfirmPayPeriod(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	period := calendar.Period{Start: req.Start, End: req.End}
	if err := s.PayPeriods.Validate(period); err != nil {
		return ConfirmResult{}, err
	}
	role, err := s.role(ctx, req.ActorID)
	if err != nil {
		return ConfirmResult{}, err
	}
	if !role.IsAdmin() {
		return ConfirmResult{}, fmt.Errorf("%w: confirming a pay period requires the admin role", ErrForbidden)
	}

	var result ConfirmResult
	err = s.Store.WithTx(ctx, func(tx Store) error {
		// 1. Idempotency on the exact (start, end) pair
		existing, err := tx.GetPayPeriod(ctx, period)
		if err == nil {
			result = ConfirmResult{PayPeriod: existing, AlreadyConfirmed: true}
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		// 2. Record the confirmation and freeze covered timesheets atomically
		pp := PayPeriod{ID: s.NewID(), Period: period, ConfirmedAt: s.Now(), ConfirmedBy: req.ActorID}
		if err := tx.InsertPayPeriod(ctx, pp); err != nil {
			return err
		}
		n, err := tx.TouchTimesheets(ctx, period, pp.ConfirmedAt)
		if err != nil {
			return err
		}
		result = ConfirmResult{PayPeriod: pp, Confirmed: true, Locked: n}
		return nil
	})
	if errors.Is(err, ErrDuplicatePayPeriod) {
		// A racing confirmation committed first.
		existing, getErr := s.Store.GetPayPeriod(ctx, period)
		if getErr != nil {
			return ConfirmResult{}, getErr
		}
		return ConfirmResult{PayPeriod: existing, AlreadyConfirmed: true}, nil
	}
	if err != nil {
		return ConfirmResult{}, err
	}

	if result.Confirmed {
		s.Logger.Info("pay period confirmed",
			"start", period.Start.String(), "end", period.End.String(), "actor_id", req.ActorID, "timesheets", result.Locked)
		s.emit(ctx, []Event{{
			Type:       EventPayPeriodConfirmed,
			ActorID:    req.ActorID,
			Period:     &period,
			OccurredAt: result.PayPeriod.ConfirmedAt,
		}})
	}
	return result, nil
}

// IsLocked reports whether a week starting at weekStart is frozen.
func (s *Service) IsLocked(ctx context.Context, weekStart calendar.Date) (bool, error) {
	locked, err := s.lockFor(ctx, s.Store, calendar.WeekStart(weekStart))
	return locked != nil, err
}

// CurrentPayPeriod returns today's pay period and whether it is confirmed.
func (s *Service) CurrentPayPeriod(ctx context.Context) (PayPeriodStatus, error) {
	confirmed, err := s.Store.ListPayPeriods(ctx)
	if err != nil {
		return PayPeriodStatus{}, err
	}
	return StatusOf(s.PayPeriods.Current(s.Now()), confirmed), nil
}

// ListPayPeriods returns every confirmed pay period, newest first.
func (s *Service) ListPayPeriods(ctx context.Context) ([]PayPeriod, error) {
	return s.Store.ListPayPeriods(ctx)
}

// =============================================================================
// READS
// =============================================================================

// Get returns a timesheet with its derived totals, attachments and notes.
func (s *Service) Get(ctx context.Context, timesheetID, actorID string) (TimesheetView, error) {
	actorRole, err := s.role(ctx, actorID)
	if err != nil {
		return TimesheetView{}, err
	}
	ts, err := s.Store.GetTimesheet(ctx, timesheetID)
	if err != nil {
		return TimesheetView{}, err
	}
	if !canView(ts, actorID, actorRole) {
		return TimesheetView{}, fmt.Errorf("%w: not your timesheet", ErrForbidden)
	}

	totals, err := Aggregate(ts.Entries)
	if err != nil {
		return TimesheetView{}, err
	}
	attachments, err := s.Store.ListAttachments(ctx, ts.ID)
	if err != nil {
		return TimesheetView{}, err
	}
	notes, err := s.Store.ListNotes(ctx, ts.ID)
	if err != nil {
		return TimesheetView{}, err
	}
	locked, err := s.lockFor(ctx, s.Store, ts.WeekStart)
	if err != nil {
		return TimesheetView{}, err
	}

	return TimesheetView{
		Timesheet:          ts,
		Totals:             totals,
		Attachments:        attachments,
		Notes:              notes,
		Reimbursement:      ValidateReimbursements(ts.Reimbursements, attachments),
		ReimbursementTotal: ReimbursementTotal(ts.Reimbursements).StringFixed(2),
		LockedBy:           locked,
		Actions:            AvailableCommands(ts, actorID, actorRole, locked),
	}, nil
}

// GetTotals recomputes totals from stored entries.
func (s *Service) GetTotals(ctx context.Context, timesheetID, actorID string) (Totals, error) {
	v, err := s.Get(ctx, timesheetID, actorID)
	if err != nil {
		return Totals{}, err
	}
	return v.Totals, nil
}

// ValidateReimbursements runs the advisory reimbursement check.
func (s *Service) ValidateReimbursements(ctx context.Context, timesheetID, actorID string) (ReimbursementReport, error) {
	v, err := s.Get(ctx, timesheetID, actorID)
	if err != nil {
		return ReimbursementReport{}, err
	}
	return v.Reimbursement, nil
}

// ListForUser returns the user's own timesheets, newest week first.
func (s *Service) ListForUser(ctx context.Context, userID string, statuses ...Status) ([]Timesheet, error) {
	return s.Store.ListTimesheets(ctx, TimesheetFilter{UserID: userID, Statuses: statuses})
}

// ListForReview returns timesheets awaiting or past review. Drafts (NEW)
// are never listed.
func (s *Service) ListForReview(ctx context.Context, actorID string, filter TimesheetFilter) ([]Timesheet, error) {
	role, err := s.role(ctx, actorID)
	if err != nil {
		return nil, err
	}
	if !role.IsApprover() {
		return nil, fmt.Errorf("%w: review requires an approver role", ErrForbidden)
	}

	reviewable := []Status{StatusSubmitted, StatusNeedsApproval, StatusApproved}
	if len(filter.Statuses) == 0 {
		filter.Statuses = reviewable
	} else {
		var kept []Status
		for _, st := range filter.Statuses {
			if st != StatusNew {
				kept = append(kept, st)
			}
		}
		if len(kept) == 0 {
			return nil, nil
		}
		filter.Statuses = kept
	}
	return s.Store.ListTimesheets(ctx, filter)
}

// =============================================================================
// REMINDERS
// =============================================================================

// RemindUnsubmitted emits a reminder to every user whose timesheet for the
// week is missing or still editable. Returns how many were reminded.
func (s *Service) RemindUnsubmitted(ctx context.Context, weekStart calendar.Date) (int, error) {
	week := calendar.WeekStart(weekStart)
	users, err := s.Store.ListUsers(ctx)
	if err != nil {
		return 0, err
	}
	sheets, err := s.Store.ListTimesheets(ctx, TimesheetFilter{WeekStart: &week})
	if err != nil {
		return 0, err
	}
	byUser := make(map[string]Timesheet, len(sheets))
	for _, ts := range sheets {
		byUser[ts.UserID] = ts
	}

	var events []Event
	now := s.Now()
	for _, u := range users {
		ts, ok := byUser[u.ID]
		if ok && !ts.Status.Editable() {
			continue
		}
		e := Event{Type: EventReminder, UserID: u.ID, ActorID: "system", WeekStart: week, OccurredAt: now}
		if ok {
			e.TimesheetID = ts.ID
			e.Status = ts.Status
		}
		events = append(events, e)
	}
	s.emit(ctx, events)
	return len(events), nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (s *Service) aggregator() Aggregator {
	return Aggregator{Holidays: s.Holidays}
}

func (s *Service) role(ctx context.Context, userID string) (Role, error) {
	if strings.TrimSpace(userID) == "" {
		return "", fmt.Errorf("%w: missing user id", ErrForbidden)
	}
	role, err := s.Roles.Role(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: unknown user %s", ErrForbidden, userID)
		}
		return "", fmt.Errorf("failed to resolve role: %w", err)
	}
	return role, nil
}

// roles resolves the actor's role and the timesheet owner's role.
func (s *Service) roles(ctx context.Context, timesheetID, actorID string) (actor, owner Role, err error) {
	actor, err = s.role(ctx, actorID)
	if err != nil {
		return "", "", err
	}
	ts, err := s.Store.GetTimesheet(ctx, timesheetID)
	if err != nil {
		return "", "", err
	}
	if ts.UserID == actorID {
		return actor, actor, nil
	}
	owner, err = s.role(ctx, ts.UserID)
	if err != nil {
		return "", "", err
	}
	return actor, owner, nil
}

// loadForWrite loads a timesheet, checks the caller's version and evaluates
// the pay-period lock inside the current transaction.
func (s *Service) loadForWrite(ctx context.Context, tx Store, id string, expectedVersion int64) (Timesheet, *calendar.Period, error) {
	ts, err := tx.GetTimesheet(ctx, id)
	if err != nil {
		return Timesheet{}, nil, err
	}
	if expectedVersion != 0 && expectedVersion != ts.Version {
		return Timesheet{}, nil, &ConflictError{TimesheetID: id, Expected: expectedVersion, Actual: ts.Version}
	}
	locked, err := s.lockFor(ctx, tx, ts.WeekStart)
	if err != nil {
		return Timesheet{}, nil, err
	}
	return ts, locked, nil
}

func (s *Service) lockFor(ctx context.Context, tx Store, weekStart calendar.Date) (*calendar.Period, error) {
	periods, err := tx.ListPayPeriods(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load pay periods: %w", err)
	}
	return LockFor(periods, weekStart), nil
}

func (s *Service) emit(ctx context.Context, events []Event) {
	for _, e := range events {
		s.Notifier.Emit(ctx, e)
	}
}

func canView(ts Timesheet, actorID string, role Role) bool {
	return ts.OwnedBy(actorID) || role.IsApprover()
}

package timesheet_test

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/store/memory"
	"github.com/williambergmann/timesheet/timesheet"
)

// =============================================================================
// TEST FIXTURE
// =============================================================================

type recorder struct {
	mu     sync.Mutex
	events []timesheet.Event
}

func (r *recorder) Emit(_ context.Context, e timesheet.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recorder) ofType(typ timesheet.EventType) []timesheet.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []timesheet.Event
	for _, e := range r.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	ctx    context.Context
	store  *memory.Memory
	events *recorder
	svc    *timesheet.Service
}

// newFixture seeds alice (staff), tina (trainee), sam (support) and ada (admin)
// with the clock fixed on Monday 2026-01-12.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.New()
	events := &recorder{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	svc := timesheet.NewService(store, timesheet.UserRoles{Users: store}, events, logger)
	svc.Now = func() time.Time { return clock }
	svc.NewID = seqID()

	f := &fixture{ctx: context.Background(), store: store, events: events, svc: svc}
	for id, role := range map[string]timesheet.Role{
		"alice": timesheet.RoleStaff,
		"tina":  timesheet.RoleTrainee,
		"sam":   timesheet.RoleSupport,
		"ada":   timesheet.RoleAdmin,
	} {
		_, err := svc.RegisterUser(f.ctx, timesheet.User{ID: id, Role: role, Email: id + "@example.com"})
		require.NoError(t, err)
	}
	return f
}

func (f *fixture) create(t *testing.T, userID, weekStart string) timesheet.Timesheet {
	t.Helper()
	ts, err := f.svc.CreateTimesheet(f.ctx, timesheet.CreateRequest{UserID: userID, WeekStart: day(weekStart)})
	require.NoError(t, err)
	return ts
}

func (f *fixture) fill(t *testing.T, ts timesheet.Timesheet, inputs ...timesheet.EntryInput) timesheet.EntriesResult {
	t.Helper()
	res, err := f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: ts.ID, ActorID: ts.UserID, Entries: inputs,
	})
	require.NoError(t, err)
	return res
}

func (f *fixture) submitted(t *testing.T, userID, weekStart string) timesheet.Timesheet {
	t.Helper()
	ts := f.create(t, userID, weekStart)
	f.fill(t, ts, input(weekStart, "Training", "8"))
	out, err := f.svc.Submit(f.ctx, timesheet.SubmitRequest{TimesheetID: ts.ID, ActorID: userID})
	require.NoError(t, err)
	require.Equal(t, timesheet.StatusSubmitted, out.Status)
	return out
}

var firstPeriod = timesheet.ConfirmRequest{Start: day("2026-01-05"), End: day("2026-01-18"), ActorID: "ada"}

// =============================================================================
// CREATE
// =============================================================================

func TestCreate_NormalizesWeekAndRejectsDuplicates(t *testing.T) {
	f := newFixture(t)

	// GIVEN/WHEN: A timesheet is created with a Wednesday
	ts := f.create(t, "alice", "2026-01-21")

	// THEN: Stored against the Monday of that week
	assert.Equal(t, "2026-01-19", ts.WeekStart.String())
	assert.Equal(t, timesheet.StatusNew, ts.Status)
	assert.Equal(t, int64(1), ts.Version)

	// WHEN: Another for the same week
	_, err := f.svc.CreateTimesheet(f.ctx, timesheet.CreateRequest{UserID: "alice", WeekStart: day("2026-01-25")})

	// THEN: Refused
	assert.ErrorIs(t, err, timesheet.ErrTimesheetExists)
}

func TestCreate_UnknownUserIsForbidden(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateTimesheet(f.ctx, timesheet.CreateRequest{UserID: "mallory", WeekStart: week})

	assert.ErrorIs(t, err, timesheet.ErrForbidden)
}

func TestCreate_AutoPopulate(t *testing.T) {
	f := newFixture(t)

	ts, err := f.svc.CreateTimesheet(f.ctx, timesheet.CreateRequest{UserID: "tina", WeekStart: week, AutoPopulate: true})
	require.NoError(t, err)

	totals, err := f.svc.GetTotals(f.ctx, ts.ID, "tina")
	require.NoError(t, err)
	assert.Equal(t, "40", totals.Total.String())
	assert.Equal(t, "40", totals.ForType(timesheet.HourTraining).String())
}

// =============================================================================
// ENTRIES
// =============================================================================

func TestReplaceEntries_ClampsAndReportsTotals(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")

	res := f.fill(t, ts,
		input("2026-01-06", "Field", "16"),
		input("2026-01-06", "Internal", "14"),
	)

	assert.Equal(t, "24", res.Totals.Total.String())
	assert.Len(t, res.Warnings, 1)
	assert.Equal(t, int64(2), res.Timesheet.Version)

	totals, err := f.svc.GetTotals(f.ctx, ts.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "16", totals.Billable.String())
	assert.Equal(t, "8", totals.PayableNonBillable.String())
}

func TestReplaceEntries_InvalidBatchLeavesStoredEntriesUntouched(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")
	f.fill(t, ts, input("2026-01-05", "Field", "8"))

	// WHEN: A batch with one bad entry is sent
	_, err := f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: ts.ID, ActorID: "alice",
		Entries: []timesheet.EntryInput{
			input("2026-01-06", "Internal", "4"),
			input("2026-01-07", "Overtime", "4"),
		},
	})

	// THEN: Nothing from the batch is applied
	assert.ErrorIs(t, err, timesheet.ErrUnknownHourType)
	v, err := f.svc.Get(f.ctx, ts.ID, "alice")
	require.NoError(t, err)
	require.Len(t, v.Timesheet.Entries, 1)
	assert.Equal(t, timesheet.HourField, v.Timesheet.Entries[0].HourType)
	assert.Equal(t, int64(2), v.Timesheet.Version)
}

func TestReplaceEntries_TraineeRestriction(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "tina", "2026-01-05")

	_, err := f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: ts.ID, ActorID: "tina", Entries: []timesheet.EntryInput{input("2026-01-05", "Field", "8")},
	})
	assert.ErrorIs(t, err, timesheet.ErrForbiddenHourType)

	// AND: An admin editing on tina's behalf is held to tina's role
	_, err = f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: ts.ID, ActorID: "ada", Entries: []timesheet.EntryInput{input("2026-01-05", "Field", "8")},
	})
	assert.ErrorIs(t, err, timesheet.ErrForbiddenHourType)

	f.fill(t, ts, input("2026-01-05", "Training", "8"))
}

func TestReplaceEntries_StaleVersionConflicts(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")
	f.fill(t, ts, input("2026-01-05", "Field", "8")) // version 1 -> 2

	// WHEN: A writer still holding version 1 edits
	_, err := f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: ts.ID, ActorID: "alice", ExpectedVersion: 1,
		Entries: []timesheet.EntryInput{input("2026-01-05", "Field", "4")},
	})

	// THEN: ConcurrentModification with both versions
	var ce *timesheet.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), ce.Expected)
	assert.Equal(t, int64(2), ce.Actual)
	assert.True(t, timesheet.IsRetryable(err))
}

func TestReplaceEntries_OtherUserForbidden(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")

	_, err := f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: ts.ID, ActorID: "tina", Entries: []timesheet.EntryInput{input("2026-01-05", "Training", "8")},
	})

	assert.ErrorIs(t, err, timesheet.ErrForbidden)
}

// =============================================================================
// SUBMISSION
// =============================================================================

func TestSubmit_ConditionalOnAttachments(t *testing.T) {
	f := newFixture(t)

	// GIVEN: 8 Field hours and no attachments
	ts := f.create(t, "alice", "2026-01-05")
	f.fill(t, ts, input("2026-01-05", "Field", "8"))

	// WHEN: Submitted
	out, err := f.svc.Submit(f.ctx, timesheet.SubmitRequest{TimesheetID: ts.ID, ActorID: "alice"})

	// THEN: NEEDS_APPROVAL, still editable
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusNeedsApproval, out.Status)
	require.Len(t, f.events.ofType(timesheet.EventSubmitted), 1)

	// WHEN: An attachment is added and the timesheet resubmitted
	_, err = f.svc.AddAttachment(f.ctx, timesheet.AttachmentRequest{
		TimesheetID: ts.ID, ActorID: "alice", Filename: "worklog.pdf", ContentType: "application/pdf", SizeBytes: 2048,
	})
	require.NoError(t, err)
	out, err = f.svc.Submit(f.ctx, timesheet.SubmitRequest{TimesheetID: ts.ID, ActorID: "alice"})

	// THEN: SUBMITTED
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, out.Status)

	// AND: No longer editable
	_, err = f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: ts.ID, ActorID: "alice", Entries: []timesheet.EntryInput{input("2026-01-05", "Field", "4")},
	})
	assert.ErrorIs(t, err, timesheet.ErrInvalidTransition)
}

func TestSubmit_EmptyTimesheetRefused(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")

	_, err := f.svc.Submit(f.ctx, timesheet.SubmitRequest{TimesheetID: ts.ID, ActorID: "alice"})

	assert.ErrorIs(t, err, timesheet.ErrInvalidTransition)
}

func TestSubmit_ReimbursementLedger(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")
	f.fill(t, ts, input("2026-01-05", "Internal", "8"))

	// GIVEN: A Hotel line with amount 0
	items := []timesheet.ReimbursementInput{{ExpenseType: "Hotel", Amount: hours("0")}}
	yes := true
	_, err := f.svc.UpdateDetails(f.ctx, timesheet.UpdateDetailsRequest{
		TimesheetID: ts.ID, ActorID: "alice", ReimbursementNeeded: &yes, Reimbursements: &items,
	})
	require.NoError(t, err)

	// WHEN/THEN: Submission reports the invalid amount
	_, err = f.svc.Submit(f.ctx, timesheet.SubmitRequest{TimesheetID: ts.ID, ActorID: "alice", AcknowledgeMissingAttachments: true})
	assert.ErrorIs(t, err, timesheet.ErrInvalidAmount)
	assert.Equal(t, timesheet.KindInvalidAmount, timesheet.Kind(err))

	// GIVEN: The amount fixed to 125.50 and a Hotel receipt uploaded
	items[0].Amount = hours("125.50")
	_, err = f.svc.UpdateDetails(f.ctx, timesheet.UpdateDetailsRequest{TimesheetID: ts.ID, ActorID: "alice", Reimbursements: &items})
	require.NoError(t, err)

	report, err := f.svc.ValidateReimbursements(f.ctx, ts.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, []string{"Hotel"}, report.MissingAttachmentTypes)

	_, err = f.svc.AddAttachment(f.ctx, timesheet.AttachmentRequest{
		TimesheetID: ts.ID, ActorID: "alice", Filename: "hotel.jpg", ContentType: "image/jpeg", ReimbursementType: "Hotel",
	})
	require.NoError(t, err)

	// WHEN: Submitted
	out, err := f.svc.Submit(f.ctx, timesheet.SubmitRequest{TimesheetID: ts.ID, ActorID: "alice"})

	// THEN: SUBMITTED, and the view reports the ledger total
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, out.Status)
	v, err := f.svc.Get(f.ctx, ts.ID, "alice")
	require.NoError(t, err)
	assert.Equal(t, "125.50", v.ReimbursementTotal)
	assert.True(t, v.Reimbursement.Valid)
}

func TestSubmit_BadAmountOutranksMissingReceipt(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")
	f.fill(t, ts, input("2026-01-05", "Internal", "8"))

	// GIVEN: A Hotel line with amount 0 and no receipt
	items := []timesheet.ReimbursementInput{{ExpenseType: "Hotel", Amount: hours("0")}}
	yes := true
	_, err := f.svc.UpdateDetails(f.ctx, timesheet.UpdateDetailsRequest{
		TimesheetID: ts.ID, ActorID: "alice", ReimbursementNeeded: &yes, Reimbursements: &items,
	})
	require.NoError(t, err)

	// WHEN: Submitted without acknowledging the missing receipt
	_, err = f.svc.Submit(f.ctx, timesheet.SubmitRequest{TimesheetID: ts.ID, ActorID: "alice"})

	// THEN: Both problems are listed, the amount names the error
	var ve timesheet.ValidationErrors
	require.ErrorAs(t, err, &ve)
	assert.Len(t, ve, 2)
	assert.ErrorIs(t, err, timesheet.ErrReimbursementAttachmentRequired)
	assert.Equal(t, timesheet.KindInvalidAmount, timesheet.Kind(err))
}

func TestNotes_LimitsCountCharacters(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")

	// GIVEN: Text whose byte length exceeds the limit but character count does not
	notes := strings.Repeat("é", timesheet.MaxUserNotesLen)
	require.Greater(t, len(notes), timesheet.MaxUserNotesLen)

	// WHEN/THEN: Accepted as user notes
	saved, err := f.svc.UpdateDetails(f.ctx, timesheet.UpdateDetailsRequest{TimesheetID: ts.ID, ActorID: "alice", UserNotes: &notes})
	require.NoError(t, err)
	assert.Equal(t, notes, saved.UserNotes)

	// AND: One character more is refused
	tooLong := notes + "é"
	_, err = f.svc.UpdateDetails(f.ctx, timesheet.UpdateDetailsRequest{TimesheetID: ts.ID, ActorID: "alice", UserNotes: &tooLong})
	assert.ErrorIs(t, err, timesheet.ErrInvalidInput)

	// AND: The same holds for comments
	_, err = f.svc.AddNote(f.ctx, timesheet.NoteRequest{TimesheetID: ts.ID, ActorID: "alice", Content: strings.Repeat("ü", timesheet.MaxNoteLen)})
	require.NoError(t, err)
	_, err = f.svc.AddNote(f.ctx, timesheet.NoteRequest{TimesheetID: ts.ID, ActorID: "alice", Content: strings.Repeat("ü", timesheet.MaxNoteLen+1)})
	assert.ErrorIs(t, err, timesheet.ErrInvalidInput)
}

// =============================================================================
// REVIEW
// =============================================================================

func TestReviewFlow(t *testing.T) {
	f := newFixture(t)
	ts := f.submitted(t, "alice", "2026-01-05")

	// Staff cannot approve
	_, err := f.svc.Approve(f.ctx, timesheet.ReviewRequest{TimesheetID: ts.ID, ActorID: "alice"})
	assert.ErrorIs(t, err, timesheet.ErrForbidden)

	// Support approves
	out, err := f.svc.Approve(f.ctx, timesheet.ReviewRequest{TimesheetID: ts.ID, ActorID: "sam"})
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusApproved, out.Status)
	assert.Equal(t, "sam", out.ApprovedBy)

	// Support cannot unapprove, admin can
	_, err = f.svc.Unapprove(f.ctx, timesheet.ReviewRequest{TimesheetID: ts.ID, ActorID: "sam"})
	assert.ErrorIs(t, err, timesheet.ErrForbidden)
	out, err = f.svc.Unapprove(f.ctx, timesheet.ReviewRequest{TimesheetID: ts.ID, ActorID: "ada"})
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusSubmitted, out.Status)

	// Reject with a reason
	out, err = f.svc.Reject(f.ctx, timesheet.ReviewRequest{TimesheetID: ts.ID, ActorID: "sam", Reason: "split Monday"})
	require.NoError(t, err)
	assert.Equal(t, timesheet.StatusNeedsApproval, out.Status)
	assert.Equal(t, "split Monday", out.AdminNotes)

	v, err := f.svc.Get(f.ctx, ts.ID, "alice")
	require.NoError(t, err)
	require.Len(t, v.Notes, 1)
	assert.Equal(t, "Rejected: split Monday", v.Notes[0].Content)
	assert.Contains(t, v.Actions, timesheet.CmdSubmit)

	assert.Len(t, f.events.ofType(timesheet.EventApproved), 1)
	assert.Len(t, f.events.ofType(timesheet.EventUnapproved), 1)
	assert.Len(t, f.events.ofType(timesheet.EventNeedsApproval), 1)
}

func TestListForReview(t *testing.T) {
	f := newFixture(t)
	f.create(t, "tina", "2026-01-05")
	f.submitted(t, "alice", "2026-01-05")

	_, err := f.svc.ListForReview(f.ctx, "alice", timesheet.TimesheetFilter{})
	assert.ErrorIs(t, err, timesheet.ErrForbidden)

	list, err := f.svc.ListForReview(f.ctx, "sam", timesheet.TimesheetFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "alice", list[0].UserID)

	list, err = f.svc.ListForReview(f.ctx, "sam", timesheet.TimesheetFilter{Statuses: []timesheet.Status{timesheet.StatusNew}})
	require.NoError(t, err)
	assert.Empty(t, list)
}

// =============================================================================
// DELETE
// =============================================================================

func TestDelete(t *testing.T) {
	f := newFixture(t)
	draft := f.create(t, "alice", "2026-01-19")
	sent := f.submitted(t, "alice", "2026-01-05")

	assert.ErrorIs(t, f.svc.Delete(f.ctx, draft.ID, "tina"), timesheet.ErrForbidden)
	require.NoError(t, f.svc.Delete(f.ctx, draft.ID, "alice"))
	_, err := f.svc.Get(f.ctx, draft.ID, "alice")
	assert.ErrorIs(t, err, timesheet.ErrNotFound)

	assert.ErrorIs(t, f.svc.Delete(f.ctx, sent.ID, "alice"), timesheet.ErrInvalidTransition)
	assert.Len(t, f.events.ofType(timesheet.EventDeleted), 1)
}

// =============================================================================
// PAY PERIOD LOCK
// =============================================================================

func TestConfirmPayPeriod_IsIdempotent(t *testing.T) {
	f := newFixture(t)
	f.create(t, "alice", "2026-01-05")

	first, err := f.svc.ConfirmPayPeriod(f.ctx, firstPeriod)
	require.NoError(t, err)
	assert.True(t, first.Confirmed)
	assert.Equal(t, 1, first.Locked)

	second, err := f.svc.ConfirmPayPeriod(f.ctx, firstPeriod)
	require.NoError(t, err)
	assert.False(t, second.Confirmed)
	assert.True(t, second.AlreadyConfirmed)
	assert.Equal(t, first.PayPeriod.ID, second.PayPeriod.ID)

	assert.Len(t, f.events.ofType(timesheet.EventPayPeriodConfirmed), 1)
}

func TestConfirmPayPeriod_Validation(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ConfirmPayPeriod(f.ctx, timesheet.ConfirmRequest{Start: day("2026-01-05"), End: day("2026-01-18"), ActorID: "sam"})
	assert.ErrorIs(t, err, timesheet.ErrForbidden)

	_, err = f.svc.ConfirmPayPeriod(f.ctx, timesheet.ConfirmRequest{Start: day("2026-01-12"), End: day("2026-01-25"), ActorID: "ada"})
	assert.ErrorIs(t, err, timesheet.ErrInvalidPeriod)

	_, err = f.svc.ConfirmPayPeriod(f.ctx, timesheet.ConfirmRequest{Start: day("2026-01-18"), End: day("2026-01-05"), ActorID: "ada"})
	assert.ErrorIs(t, err, timesheet.ErrInvalidPeriod)
}

func TestPayPeriodLock_FreezesCoveredWeeksOnly(t *testing.T) {
	f := newFixture(t)

	// GIVEN: Draft timesheets in a week inside and a week outside the period
	inside := f.create(t, "alice", "2026-01-05")
	outside := f.create(t, "alice", "2026-01-19")
	approved := f.submitted(t, "tina", "2026-01-12")
	_, err := f.svc.Approve(f.ctx, timesheet.ReviewRequest{TimesheetID: approved.ID, ActorID: "sam"})
	require.NoError(t, err)

	// WHEN: The pay period 2026-01-05..2026-01-18 is confirmed
	res, err := f.svc.ConfirmPayPeriod(f.ctx, firstPeriod)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Locked)

	// THEN: Edits inside the period fail with PayPeriodLocked
	_, err = f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: inside.ID, ActorID: "alice", Entries: []timesheet.EntryInput{input("2026-01-05", "Field", "8")},
	})
	var le *timesheet.LockedError
	require.ErrorAs(t, err, &le)
	assert.Equal(t, "2026-01-05", le.Period.Start.String())

	// AND: Even an admin cannot unapprove inside it
	_, err = f.svc.Unapprove(f.ctx, timesheet.ReviewRequest{TimesheetID: approved.ID, ActorID: "ada"})
	assert.ErrorIs(t, err, timesheet.ErrPayPeriodLocked)

	// AND: A new timesheet cannot be opened in a frozen week
	_, err = f.svc.CreateTimesheet(f.ctx, timesheet.CreateRequest{UserID: "sam", WeekStart: day("2026-01-07")})
	assert.ErrorIs(t, err, timesheet.ErrPayPeriodLocked)

	// AND: The next period is unaffected
	f.fill(t, outside, input("2026-01-19", "Field", "8"))

	locked, err := f.svc.IsLocked(f.ctx, day("2026-01-14"))
	require.NoError(t, err)
	assert.True(t, locked)

	// AND: Notes are still accepted
	_, err = f.svc.AddNote(f.ctx, timesheet.NoteRequest{TimesheetID: inside.ID, ActorID: "alice", Content: "forgot Friday"})
	assert.NoError(t, err)

	v, err := f.svc.Get(f.ctx, inside.ID, "alice")
	require.NoError(t, err)
	assert.True(t, v.PayPeriodConfirmed())
	assert.Empty(t, v.Actions)
}

func TestConfirmPayPeriod_BumpsVersions(t *testing.T) {
	f := newFixture(t)
	ts := f.create(t, "alice", "2026-01-05")

	_, err := f.svc.ConfirmPayPeriod(f.ctx, firstPeriod)
	require.NoError(t, err)

	// A writer that loaded before the confirmation sees a conflict first
	_, err = f.svc.ReplaceEntries(f.ctx, timesheet.ReplaceEntriesRequest{
		TimesheetID: ts.ID, ActorID: "alice", ExpectedVersion: ts.Version,
		Entries: []timesheet.EntryInput{input("2026-01-05", "Field", "8")},
	})
	assert.ErrorIs(t, err, timesheet.ErrConcurrentModification)
}

func TestCurrentPayPeriod(t *testing.T) {
	f := newFixture(t)

	status, err := f.svc.CurrentPayPeriod(f.ctx)
	require.NoError(t, err)
	assert.Equal(t, calendar.Period{Start: day("2026-01-05"), End: day("2026-01-18")}, status.Period)
	assert.False(t, status.Confirmed)

	_, err = f.svc.ConfirmPayPeriod(f.ctx, firstPeriod)
	require.NoError(t, err)

	status, err = f.svc.CurrentPayPeriod(f.ctx)
	require.NoError(t, err)
	assert.True(t, status.Confirmed)
	assert.Equal(t, "ada", status.ConfirmedBy)
}

// =============================================================================
// REMINDERS
// =============================================================================

func TestRemindUnsubmitted(t *testing.T) {
	f := newFixture(t)
	f.create(t, "tina", "2026-01-12")
	f.submitted(t, "alice", "2026-01-12")

	n, err := f.svc.RemindUnsubmitted(f.ctx, day("2026-01-14"))

	// THEN: tina (draft), sam and ada (missing) are reminded; alice is not
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	reminders := f.events.ofType(timesheet.EventReminder)
	require.Len(t, reminders, 3)
	for _, e := range reminders {
		assert.NotEqual(t, "alice", e.UserID)
		assert.Equal(t, "2026-01-12", e.WeekStart.String())
	}
}

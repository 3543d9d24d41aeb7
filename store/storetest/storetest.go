// Package storetest holds the behaviour every timesheet.TxStore must share.
// Each store package runs Run against a fresh instance per subtest.
package storetest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/timesheet"
)

// Factory returns an empty store.
type Factory func(t *testing.T) timesheet.TxStore

var (
	now   = time.Date(2026, time.January, 12, 9, 0, 0, 0, time.UTC)
	week1 = calendar.MustParseDate("2026-01-05")
	week2 = calendar.MustParseDate("2026-01-12")
	week3 = calendar.MustParseDate("2026-01-19")
)

func draft(id, userID string, weekStart calendar.Date) timesheet.Timesheet {
	return timesheet.Timesheet{
		ID:        id,
		UserID:    userID,
		WeekStart: weekStart,
		Status:    timesheet.StatusNew,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

func entry(date string, ht timesheet.HourType, h string) timesheet.TimeEntry {
	return timesheet.TimeEntry{Date: calendar.MustParseDate(date), HourType: ht, Hours: decimal.RequireFromString(h)}
}

// Run exercises the full store contract.
func Run(t *testing.T, newStore Factory) {
	tests := map[string]func(t *testing.T, s timesheet.TxStore){
		"InsertAndGet":             testInsertAndGet,
		"UniqueUserWeek":           testUniqueUserWeek,
		"UpdateBumpsVersion":       testUpdateBumpsVersion,
		"UpdateStaleVersion":       testUpdateStaleVersion,
		"ReplaceEntries":           testReplaceEntries,
		"ReplaceReimbursements":    testReplaceReimbursements,
		"ListFilters":              testListFilters,
		"DeleteCascades":           testDeleteCascades,
		"PayPeriods":               testPayPeriods,
		"TouchTimesheets":          testTouchTimesheets,
		"Users":                    testUsers,
		"Attachments":              testAttachments,
		"WithTxRollsBackOnError":   testWithTxRollback,
		"WithTxCommitsOnSuccess":   testWithTxCommit,
		"MissingTimesheetNotFound": testMissingTimesheet,
	}
	for name, fn := range tests {
		t.Run(name, func(t *testing.T) {
			fn(t, newStore(t))
		})
	}
}

func testInsertAndGet(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	ts := draft("ts-1", "alice", week1)
	ts.UserNotes = "client visit"
	ts.TravelFlag = true
	require.NoError(t, s.InsertTimesheet(ctx, ts))

	got, err := s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	assert.True(t, got.WeekStart.Equal(week1))
	assert.Equal(t, timesheet.StatusNew, got.Status)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, "client visit", got.UserNotes)
	assert.True(t, got.TravelFlag)
	assert.True(t, got.CreatedAt.Equal(now))
	assert.Nil(t, got.SubmittedAt)

	found, err := s.FindTimesheet(ctx, "alice", week1)
	require.NoError(t, err)
	assert.Equal(t, "ts-1", found.ID)

	_, err = s.FindTimesheet(ctx, "alice", week2)
	assert.ErrorIs(t, err, timesheet.ErrNotFound)
}

func testUniqueUserWeek(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("ts-1", "alice", week1)))

	err := s.InsertTimesheet(ctx, draft("ts-2", "alice", week1))
	assert.ErrorIs(t, err, timesheet.ErrTimesheetExists)

	assert.NoError(t, s.InsertTimesheet(ctx, draft("ts-3", "bob", week1)))
}

func testUpdateBumpsVersion(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("ts-1", "alice", week1)))

	ts, err := s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	submittedAt := now.Add(time.Hour)
	ts.Status = timesheet.StatusSubmitted
	ts.SubmittedAt = &submittedAt
	ts.AdminNotes = "ok"

	saved, err := s.UpdateTimesheet(ctx, ts)
	require.NoError(t, err)
	assert.Equal(t, int64(2), saved.Version)

	got, err := s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
	assert.Equal(t, timesheet.StatusSubmitted, got.Status)
	assert.Equal(t, "ok", got.AdminNotes)
	require.NotNil(t, got.SubmittedAt)
	assert.True(t, got.SubmittedAt.Equal(submittedAt))
}

func testUpdateStaleVersion(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("ts-1", "alice", week1)))

	// GIVEN: Two writers load version 1
	a, err := s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	b := a.Clone()

	// WHEN: Both write back
	_, err = s.UpdateTimesheet(ctx, a)
	require.NoError(t, err)
	_, err = s.UpdateTimesheet(ctx, b)

	// THEN: The second write is refused with both versions
	var ce *timesheet.ConflictError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, int64(1), ce.Expected)
	assert.Equal(t, int64(2), ce.Actual)

	_, err = s.UpdateTimesheet(ctx, draft("missing", "alice", week2))
	assert.ErrorIs(t, err, timesheet.ErrNotFound)
}

func testReplaceEntries(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("ts-1", "alice", week1)))

	require.NoError(t, s.ReplaceEntries(ctx, "ts-1", []timesheet.TimeEntry{
		entry("2026-01-05", timesheet.HourField, "8"),
		entry("2026-01-06", timesheet.HourInternal, "7.5"),
	}))
	require.NoError(t, s.ReplaceEntries(ctx, "ts-1", []timesheet.TimeEntry{
		entry("2026-01-07", timesheet.HourPTO, "4"),
	}))

	got, err := s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	require.Len(t, got.Entries, 1)
	assert.Equal(t, timesheet.HourPTO, got.Entries[0].HourType)
	assert.Equal(t, "4", got.Entries[0].Hours.String())
	assert.Equal(t, "2026-01-07", got.Entries[0].Date.String())

	err = s.ReplaceEntries(ctx, "ts-1", []timesheet.TimeEntry{
		entry("2026-01-05", timesheet.HourField, "4"),
		entry("2026-01-05", timesheet.HourField, "4"),
	})
	assert.ErrorIs(t, err, timesheet.ErrDuplicateEntry)

	got, err = s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	assert.Len(t, got.Entries, 1, "a failed replacement leaves the previous set")

	assert.ErrorIs(t, s.ReplaceEntries(ctx, "missing", nil), timesheet.ErrNotFound)
}

func testReplaceReimbursements(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("ts-1", "alice", week1)))

	require.NoError(t, s.ReplaceReimbursements(ctx, "ts-1", []timesheet.ReimbursementItem{
		{ID: "r1", ExpenseType: "Hotel", Amount: decimal.RequireFromString("125.50"), ExpenseDate: week1},
		{ID: "r2", ExpenseType: "Car", Amount: decimal.RequireFromString("40"), Notes: "mileage"},
	}))

	got, err := s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	require.Len(t, got.Reimbursements, 2)
	assert.Equal(t, "Hotel", got.Reimbursements[0].ExpenseType)
	assert.True(t, got.Reimbursements[0].Amount.Equal(decimal.RequireFromString("125.5")))
	assert.Equal(t, "2026-01-05", got.Reimbursements[0].ExpenseDate.String())
	assert.Equal(t, "mileage", got.Reimbursements[1].Notes)
	assert.True(t, got.Reimbursements[1].ExpenseDate.IsZero())

	require.NoError(t, s.ReplaceReimbursements(ctx, "ts-1", nil))
	got, err = s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	assert.Empty(t, got.Reimbursements)
}

func testListFilters(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("a1", "alice", week1)))
	require.NoError(t, s.InsertTimesheet(ctx, draft("a2", "alice", week2)))
	sent := draft("b1", "bob", week2)
	sent.Status = timesheet.StatusSubmitted
	require.NoError(t, s.InsertTimesheet(ctx, sent))

	all, err := s.ListTimesheets(ctx, timesheet.TimesheetFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"a2", "b1", "a1"}, ids(all))

	mine, err := s.ListTimesheets(ctx, timesheet.TimesheetFilter{UserID: "alice"})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "a1"}, ids(mine))

	review, err := s.ListTimesheets(ctx, timesheet.TimesheetFilter{Statuses: []timesheet.Status{timesheet.StatusSubmitted}})
	require.NoError(t, err)
	assert.Equal(t, []string{"b1"}, ids(review))

	w := week2
	byWeek, err := s.ListTimesheets(ctx, timesheet.TimesheetFilter{WeekStart: &w})
	require.NoError(t, err)
	assert.Equal(t, []string{"a2", "b1"}, ids(byWeek))
}

func testDeleteCascades(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("ts-1", "alice", week1)))
	require.NoError(t, s.ReplaceEntries(ctx, "ts-1", []timesheet.TimeEntry{entry("2026-01-05", timesheet.HourField, "8")}))
	require.NoError(t, s.AddAttachment(ctx, timesheet.Attachment{ID: "a1", TimesheetID: "ts-1", Filename: "r.pdf", UploadedAt: now}))
	require.NoError(t, s.AddNote(ctx, timesheet.Note{ID: "n1", TimesheetID: "ts-1", AuthorID: "alice", Content: "hi", CreatedAt: now}))

	require.NoError(t, s.DeleteTimesheet(ctx, "ts-1"))

	_, err := s.GetTimesheet(ctx, "ts-1")
	assert.ErrorIs(t, err, timesheet.ErrNotFound)
	attachments, err := s.ListAttachments(ctx, "ts-1")
	require.NoError(t, err)
	assert.Empty(t, attachments)
	notes, err := s.ListNotes(ctx, "ts-1")
	require.NoError(t, err)
	assert.Empty(t, notes)

	// the (user, week) slot is free again
	assert.NoError(t, s.InsertTimesheet(ctx, draft("ts-2", "alice", week1)))
	assert.ErrorIs(t, s.DeleteTimesheet(ctx, "ts-1"), timesheet.ErrNotFound)
}

func testPayPeriods(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	first := calendar.Period{Start: week1, End: calendar.MustParseDate("2026-01-18")}
	second := first.NextPeriod()

	require.NoError(t, s.InsertPayPeriod(ctx, timesheet.PayPeriod{ID: "p1", Period: first, ConfirmedAt: now, ConfirmedBy: "ada"}))
	require.NoError(t, s.InsertPayPeriod(ctx, timesheet.PayPeriod{ID: "p2", Period: second, ConfirmedAt: now, ConfirmedBy: "ada"}))

	err := s.InsertPayPeriod(ctx, timesheet.PayPeriod{ID: "p3", Period: first, ConfirmedAt: now, ConfirmedBy: "ada"})
	assert.True(t, errors.Is(err, timesheet.ErrDuplicatePayPeriod))

	got, err := s.GetPayPeriod(ctx, first)
	require.NoError(t, err)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, "ada", got.ConfirmedBy)
	assert.True(t, got.ConfirmedAt.Equal(now))

	_, err = s.GetPayPeriod(ctx, second.NextPeriod())
	assert.ErrorIs(t, err, timesheet.ErrNotFound)

	list, err := s.ListPayPeriods(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "p2", list[0].ID, "newest first")
}

func testTouchTimesheets(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("in-1", "alice", week1)))
	require.NoError(t, s.InsertTimesheet(ctx, draft("in-2", "bob", week2)))
	require.NoError(t, s.InsertTimesheet(ctx, draft("out", "alice", week3)))

	later := now.Add(time.Hour)
	n, err := s.TouchTimesheets(ctx, calendar.Period{Start: week1, End: calendar.MustParseDate("2026-01-18")}, later)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	in, err := s.GetTimesheet(ctx, "in-2")
	require.NoError(t, err)
	assert.Equal(t, int64(2), in.Version)
	assert.True(t, in.UpdatedAt.Equal(later))

	out, err := s.GetTimesheet(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, int64(1), out.Version)
}

func testUsers(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.SaveUser(ctx, timesheet.User{ID: "bob", Role: timesheet.RoleStaff, Email: "bob@example.com"}))
	require.NoError(t, s.SaveUser(ctx, timesheet.User{ID: "ada", Role: timesheet.RoleStaff}))
	require.NoError(t, s.SaveUser(ctx, timesheet.User{ID: "ada", Role: timesheet.RoleAdmin, SlackID: "U123"}))

	u, err := s.GetUser(ctx, "ada")
	require.NoError(t, err)
	assert.Equal(t, timesheet.RoleAdmin, u.Role)
	assert.Equal(t, "U123", u.SlackID)

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ada", users[0].ID)

	_, err = s.GetUser(ctx, "nobody")
	assert.ErrorIs(t, err, timesheet.ErrNotFound)
}

func testAttachments(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	require.NoError(t, s.InsertTimesheet(ctx, draft("ts-1", "alice", week1)))
	require.NoError(t, s.AddAttachment(ctx, timesheet.Attachment{
		ID: "a1", TimesheetID: "ts-1", Filename: "hotel.jpg", ContentType: "image/jpeg",
		SizeBytes: 1024, ReimbursementType: "Hotel", SyncStatus: timesheet.SyncPending, UploadedAt: now,
	}))

	list, err := s.ListAttachments(ctx, "ts-1")
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "hotel.jpg", list[0].Filename)
	assert.Equal(t, int64(1024), list[0].SizeBytes)
	assert.Equal(t, timesheet.SyncPending, list[0].SyncStatus)

	ok, err := s.HasAttachment(ctx, "ts-1", "hotel")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = s.HasAttachment(ctx, "ts-1", "Flight")
	require.NoError(t, err)
	assert.False(t, ok)

	err = s.AddAttachment(ctx, timesheet.Attachment{ID: "a2", TimesheetID: "missing", Filename: "x", UploadedAt: now})
	assert.ErrorIs(t, err, timesheet.ErrNotFound)
}

func testWithTxRollback(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.WithTx(ctx, func(tx timesheet.Store) error {
		if err := tx.InsertTimesheet(ctx, draft("ts-1", "alice", week1)); err != nil {
			return err
		}
		if err := tx.ReplaceEntries(ctx, "ts-1", []timesheet.TimeEntry{entry("2026-01-05", timesheet.HourField, "8")}); err != nil {
			return err
		}
		if err := tx.InsertPayPeriod(ctx, timesheet.PayPeriod{
			ID: "p1", Period: calendar.Period{Start: week1, End: calendar.MustParseDate("2026-01-18")}, ConfirmedAt: now,
		}); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	_, err = s.GetTimesheet(ctx, "ts-1")
	assert.ErrorIs(t, err, timesheet.ErrNotFound)
	periods, err := s.ListPayPeriods(ctx)
	require.NoError(t, err)
	assert.Empty(t, periods)
}

func testWithTxCommit(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()

	err := s.WithTx(ctx, func(tx timesheet.Store) error {
		if err := tx.InsertTimesheet(ctx, draft("ts-1", "alice", week1)); err != nil {
			return err
		}
		// reads inside the transaction see its own writes
		ts, err := tx.GetTimesheet(ctx, "ts-1")
		if err != nil {
			return err
		}
		_, err = tx.UpdateTimesheet(ctx, ts)
		return err
	})
	require.NoError(t, err)

	got, err := s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	assert.Equal(t, int64(2), got.Version)
}

func testMissingTimesheet(t *testing.T, s timesheet.TxStore) {
	ctx := context.Background()

	_, err := s.GetTimesheet(ctx, "missing")
	assert.ErrorIs(t, err, timesheet.ErrNotFound)
	assert.ErrorIs(t, s.AddNote(ctx, timesheet.Note{ID: "n1", TimesheetID: "missing", Content: "x", CreatedAt: now}),
		timesheet.ErrNotFound)
}

func ids(list []timesheet.Timesheet) []string {
	out := make([]string, len(list))
	for i, ts := range list {
		out[i] = ts.ID
	}
	return out
}

package sqlite_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/store/sqlite"
	"github.com/williambergmann/timesheet/store/storetest"
	"github.com/williambergmann/timesheet/timesheet"
)

func newStore(t *testing.T) *sqlite.Store {
	t.Helper()
	s, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStore(t *testing.T) {
	storetest.Run(t, func(t *testing.T) timesheet.TxStore {
		return newStore(t)
	})
}

func TestSQLiteStore_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timesheets.db")
	week := calendar.MustParseDate("2026-01-05")

	// GIVEN: A timesheet written to a file-backed database
	s, err := sqlite.New(path)
	require.NoError(t, err)
	require.NoError(t, s.InsertTimesheet(ctx, timesheet.Timesheet{ID: "ts-1", UserID: "alice", WeekStart: week, Status: timesheet.StatusNew}))
	require.NoError(t, s.Close())

	// WHEN: The database is reopened (migrations run again)
	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	// THEN: The row is still there
	got, err := s.GetTimesheet(ctx, "ts-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", got.UserID)
	require.NoError(t, s.Ping(ctx))
}

func TestSQLiteStore_Reset(t *testing.T) {
	ctx := context.Background()
	s := newStore(t)
	require.NoError(t, s.SaveUser(ctx, timesheet.User{ID: "ada", Role: timesheet.RoleAdmin}))

	require.NoError(t, s.Reset(ctx))

	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	assert.Empty(t, users)
}

func TestSQLiteStore_RejectsUnknownRole(t *testing.T) {
	s := newStore(t)

	err := s.SaveUser(context.Background(), timesheet.User{ID: "x", Role: "owner"})

	assert.Error(t, err)
}

func TestSQLiteStore_MalformedStoredValuesAreErrors(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "timesheets.db")
	week := calendar.MustParseDate("2026-01-05")

	// GIVEN: Two timesheets with an 8 hour entry each
	s, err := sqlite.New(path)
	require.NoError(t, err)
	for _, id := range []string{"ts-1", "ts-2"} {
		require.NoError(t, s.InsertTimesheet(ctx, timesheet.Timesheet{ID: id, UserID: id, WeekStart: week, Status: timesheet.StatusNew}))
		require.NoError(t, s.ReplaceEntries(ctx, id, []timesheet.TimeEntry{
			{Date: week, HourType: timesheet.HourField, Hours: decimal.NewFromInt(8)},
		}))
	}
	require.NoError(t, s.Close())

	// AND: Their stored hours and week start were damaged outside the store
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE time_entries SET hours = 'eight' WHERE timesheet_id = 'ts-1'`)
	require.NoError(t, err)
	_, err = db.Exec(`UPDATE timesheets SET week_start = 'last monday' WHERE id = 'ts-2'`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	s, err = sqlite.New(path)
	require.NoError(t, err)
	defer s.Close()

	// WHEN/THEN: Reading them fails instead of returning zero values
	_, err = s.GetTimesheet(ctx, "ts-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid stored decimal "eight"`)

	_, err = s.GetTimesheet(ctx, "ts-2")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid stored date "last monday"`)
}

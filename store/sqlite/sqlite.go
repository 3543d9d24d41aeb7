/*
Package sqlite provides a SQLite-backed timesheet.TxStore.

PURPOSE:
  Persists timesheets, their entries, reimbursement items, attachment
  metadata, notes, confirmed pay periods and the user directory.

KEY TABLES:
  timesheets:          One row per (user_id, week_start), with a version column
  time_entries:        Keyed by (timesheet_id, entry_date, hour_type)
  reimbursement_items: Expense lines owned by a timesheet
  attachments:         Receipt metadata owned by a timesheet
  notes:               Comment thread owned by a timesheet
  pay_periods:         Confirmed (start_date, end_date) rows, unique on the pair
  users:               Identity and role directory

OWNERSHIP:
  Owned tables reference timesheets(id) ON DELETE CASCADE. Pay periods hold
  no reference to timesheets; membership is computed from week_start.

OPTIMISTIC CONCURRENCY:
  UpdateTimesheet runs `UPDATE ... SET version = version + 1 WHERE id = ?
  AND version = ?`. Zero affected rows on an existing id is a conflict.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety; WithTx holds the write lock for the
  whole transaction so a pay-period confirmation cannot interleave with an
  entry replacement.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging):
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/timesheets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New().

SEE ALSO:
  - timesheet/store.go: Interface definitions
  - store/memory:       In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/timesheet"
)

// Store implements timesheet.TxStore using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

var _ timesheet.TxStore = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		// every pooled connection would otherwise see its own empty database
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Users (identity / role provider)
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		display_name TEXT NOT NULL DEFAULT '',
		role TEXT NOT NULL CHECK (role IN ('trainee', 'staff', 'support', 'admin')),
		slack_id TEXT NOT NULL DEFAULT ''
	);

	-- Timesheets
	CREATE TABLE IF NOT EXISTS timesheets (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		week_start TEXT NOT NULL,
		status TEXT NOT NULL CHECK (status IN ('NEW', 'SUBMITTED', 'APPROVED', 'NEEDS_APPROVAL')),
		version INTEGER NOT NULL DEFAULT 1,
		traveled BOOLEAN NOT NULL DEFAULT FALSE,
		has_expenses BOOLEAN NOT NULL DEFAULT FALSE,
		reimbursement_needed BOOLEAN NOT NULL DEFAULT FALSE,
		user_notes TEXT NOT NULL DEFAULT '',
		admin_notes TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		submitted_at TEXT,
		approved_at TEXT,
		approved_by TEXT,
		UNIQUE(user_id, week_start)
	);

	CREATE INDEX IF NOT EXISTS idx_timesheets_week_start
		ON timesheets(week_start);
	CREATE INDEX IF NOT EXISTS idx_timesheets_status
		ON timesheets(status);

	-- Time entries (replaced as a set)
	CREATE TABLE IF NOT EXISTS time_entries (
		timesheet_id TEXT NOT NULL REFERENCES timesheets(id) ON DELETE CASCADE,
		entry_date TEXT NOT NULL,
		hour_type TEXT NOT NULL,
		hours TEXT NOT NULL,
		position INTEGER NOT NULL,
		PRIMARY KEY (timesheet_id, entry_date, hour_type)
	);

	-- Reimbursement items
	CREATE TABLE IF NOT EXISTS reimbursement_items (
		id TEXT PRIMARY KEY,
		timesheet_id TEXT NOT NULL REFERENCES timesheets(id) ON DELETE CASCADE,
		expense_type TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		expense_date TEXT,
		notes TEXT NOT NULL DEFAULT '',
		position INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_reimbursement_items_timesheet
		ON reimbursement_items(timesheet_id);

	-- Attachment metadata (file bytes live in the document store)
	CREATE TABLE IF NOT EXISTS attachments (
		id TEXT PRIMARY KEY,
		timesheet_id TEXT NOT NULL REFERENCES timesheets(id) ON DELETE CASCADE,
		filename TEXT NOT NULL,
		content_type TEXT NOT NULL DEFAULT '',
		size_bytes INTEGER NOT NULL DEFAULT 0,
		reimbursement_type TEXT NOT NULL DEFAULT '',
		sync_status TEXT NOT NULL DEFAULT 'pending',
		uploaded_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_attachments_timesheet
		ON attachments(timesheet_id);

	-- Notes
	CREATE TABLE IF NOT EXISTS notes (
		id TEXT PRIMARY KEY,
		timesheet_id TEXT NOT NULL REFERENCES timesheets(id) ON DELETE CASCADE,
		author_id TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_notes_timesheet
		ON notes(timesheet_id, created_at);

	-- Confirmed pay periods. Confirmation of the exact pair is idempotent.
	CREATE TABLE IF NOT EXISTS pay_periods (
		id TEXT PRIMARY KEY,
		start_date TEXT NOT NULL,
		end_date TEXT NOT NULL,
		confirmed_at TEXT NOT NULL,
		confirmed_by TEXT NOT NULL,
		UNIQUE(start_date, end_date)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// STORE (timesheet.Store interface)
// =============================================================================

func (s *Store) read() queries {
	return queries{db: s.db}
}

func (s *Store) InsertTimesheet(ctx context.Context, ts timesheet.Timesheet) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().InsertTimesheet(ctx, ts)
}

func (s *Store) GetTimesheet(ctx context.Context, id string) (timesheet.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetTimesheet(ctx, id)
}

func (s *Store) FindTimesheet(ctx context.Context, userID string, weekStart calendar.Date) (timesheet.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().FindTimesheet(ctx, userID, weekStart)
}

func (s *Store) ListTimesheets(ctx context.Context, f timesheet.TimesheetFilter) ([]timesheet.Timesheet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListTimesheets(ctx, f)
}

func (s *Store) UpdateTimesheet(ctx context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().UpdateTimesheet(ctx, ts)
}

// ReplaceEntries swaps the entry set atomically.
func (s *Store) ReplaceEntries(ctx context.Context, id string, entries []timesheet.TimeEntry) error {
	return s.WithTx(ctx, func(tx timesheet.Store) error { return tx.ReplaceEntries(ctx, id, entries) })
}

// ReplaceReimbursements swaps the item set atomically.
func (s *Store) ReplaceReimbursements(ctx context.Context, id string, items []timesheet.ReimbursementItem) error {
	return s.WithTx(ctx, func(tx timesheet.Store) error { return tx.ReplaceReimbursements(ctx, id, items) })
}

func (s *Store) DeleteTimesheet(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().DeleteTimesheet(ctx, id)
}

func (s *Store) TouchTimesheets(ctx context.Context, p calendar.Period, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().TouchTimesheets(ctx, p, at)
}

func (s *Store) AddNote(ctx context.Context, n timesheet.Note) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().AddNote(ctx, n)
}

func (s *Store) ListNotes(ctx context.Context, id string) ([]timesheet.Note, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListNotes(ctx, id)
}

func (s *Store) InsertPayPeriod(ctx context.Context, p timesheet.PayPeriod) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().InsertPayPeriod(ctx, p)
}

func (s *Store) GetPayPeriod(ctx context.Context, p calendar.Period) (timesheet.PayPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetPayPeriod(ctx, p)
}

func (s *Store) ListPayPeriods(ctx context.Context) ([]timesheet.PayPeriod, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListPayPeriods(ctx)
}

func (s *Store) SaveUser(ctx context.Context, u timesheet.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().SaveUser(ctx, u)
}

func (s *Store) GetUser(ctx context.Context, id string) (timesheet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().GetUser(ctx, id)
}

func (s *Store) ListUsers(ctx context.Context) ([]timesheet.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListUsers(ctx)
}

func (s *Store) AddAttachment(ctx context.Context, a timesheet.Attachment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.read().AddAttachment(ctx, a)
}

func (s *Store) ListAttachments(ctx context.Context, id string) ([]timesheet.Attachment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().ListAttachments(ctx, id)
}

func (s *Store) HasAttachment(ctx context.Context, id, typ string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.read().HasAttachment(ctx, id, typ)
}

// =============================================================================
// TRANSACTIONAL STORE (timesheet.TxStore interface)
// =============================================================================

// WithTx executes a function within a database transaction.
func (s *Store) WithTx(ctx context.Context, fn func(store timesheet.Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(queries{db: sqlTx}); err != nil {
		return err
	}

	return sqlTx.Commit()
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"time_entries", "reimbursement_items", "attachments", "notes", "timesheets", "pay_periods", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// QUERIES - Shared by Store (on *sql.DB) and WithTx (on *sql.Tx)
// =============================================================================

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type queries struct {
	db querier
}

const timesheetColumns = `
	id, user_id, week_start, status, version, traveled, has_expenses, reimbursement_needed,
	user_notes, admin_notes, created_at, updated_at, submitted_at, approved_at, approved_by`

func (q queries) InsertTimesheet(ctx context.Context, ts timesheet.Timesheet) error {
	query := `
		INSERT INTO timesheets (` + timesheetColumns + `)
		VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := q.db.ExecContext(ctx, query,
		ts.ID,
		ts.UserID,
		ts.WeekStart.String(),
		string(ts.Status),
		ts.TravelFlag,
		ts.ExpensesFlag,
		ts.ReimbursementNeeded,
		ts.UserNotes,
		ts.AdminNotes,
		formatTime(ts.CreatedAt),
		formatTime(ts.UpdatedAt),
		nullTime(ts.SubmittedAt),
		nullTime(ts.ApprovedAt),
		nullString(ts.ApprovedBy),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return fmt.Errorf("%w: user %s week %s", timesheet.ErrTimesheetExists, ts.UserID, ts.WeekStart)
		}
		return fmt.Errorf("failed to insert timesheet: %w", err)
	}
	return nil
}

func (q queries) GetTimesheet(ctx context.Context, id string) (timesheet.Timesheet, error) {
	row := q.db.QueryRowContext(ctx, `SELECT `+timesheetColumns+` FROM timesheets WHERE id = ?`, id)
	ts, err := scanTimesheet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timesheet.Timesheet{}, fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, id)
	}
	if err != nil {
		return timesheet.Timesheet{}, err
	}
	return q.loadOwned(ctx, ts)
}

func (q queries) FindTimesheet(ctx context.Context, userID string, weekStart calendar.Date) (timesheet.Timesheet, error) {
	row := q.db.QueryRowContext(ctx,
		`SELECT `+timesheetColumns+` FROM timesheets WHERE user_id = ? AND week_start = ?`,
		userID, weekStart.String())
	ts, err := scanTimesheet(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timesheet.Timesheet{}, fmt.Errorf("%w: timesheet for %s week %s", timesheet.ErrNotFound, userID, weekStart)
	}
	if err != nil {
		return timesheet.Timesheet{}, err
	}
	return q.loadOwned(ctx, ts)
}

func (q queries) ListTimesheets(ctx context.Context, f timesheet.TimesheetFilter) ([]timesheet.Timesheet, error) {
	var (
		where []string
		args  []any
	)
	if f.UserID != "" {
		where = append(where, "user_id = ?")
		args = append(args, f.UserID)
	}
	if f.WeekStart != nil {
		where = append(where, "week_start = ?")
		args = append(args, f.WeekStart.String())
	}
	if len(f.Statuses) > 0 {
		placeholders := make([]string, len(f.Statuses))
		for i, st := range f.Statuses {
			placeholders[i] = "?"
			args = append(args, string(st))
		}
		where = append(where, "status IN ("+strings.Join(placeholders, ", ")+")")
	}

	query := `SELECT ` + timesheetColumns + ` FROM timesheets`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY week_start DESC, user_id ASC"

	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query timesheets: %w", err)
	}
	defer rows.Close()

	var out []timesheet.Timesheet
	for rows.Next() {
		ts, err := scanTimesheet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ts)
	}
	return out, rows.Err()
}

func (q queries) UpdateTimesheet(ctx context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, error) {
	query := `
		UPDATE timesheets SET
			status = ?, version = version + 1, traveled = ?, has_expenses = ?, reimbursement_needed = ?,
			user_notes = ?, admin_notes = ?, updated_at = ?, submitted_at = ?, approved_at = ?, approved_by = ?
		WHERE id = ? AND version = ?
	`
	res, err := q.db.ExecContext(ctx, query,
		string(ts.Status),
		ts.TravelFlag,
		ts.ExpensesFlag,
		ts.ReimbursementNeeded,
		ts.UserNotes,
		ts.AdminNotes,
		formatTime(ts.UpdatedAt),
		nullTime(ts.SubmittedAt),
		nullTime(ts.ApprovedAt),
		nullString(ts.ApprovedBy),
		ts.ID,
		ts.Version,
	)
	if err != nil {
		return timesheet.Timesheet{}, fmt.Errorf("failed to update timesheet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return timesheet.Timesheet{}, err
	}
	if n == 0 {
		var actual int64
		err := q.db.QueryRowContext(ctx, `SELECT version FROM timesheets WHERE id = ?`, ts.ID).Scan(&actual)
		if errors.Is(err, sql.ErrNoRows) {
			return timesheet.Timesheet{}, fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, ts.ID)
		}
		if err != nil {
			return timesheet.Timesheet{}, err
		}
		return timesheet.Timesheet{}, &timesheet.ConflictError{TimesheetID: ts.ID, Expected: ts.Version, Actual: actual}
	}
	ts.Version++
	return ts, nil
}

func (q queries) ReplaceEntries(ctx context.Context, id string, entries []timesheet.TimeEntry) error {
	if err := q.exists(ctx, id); err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM time_entries WHERE timesheet_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear entries: %w", err)
	}
	for i, e := range entries {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO time_entries (timesheet_id, entry_date, hour_type, hours, position)
			VALUES (?, ?, ?, ?, ?)`,
			id, e.Date.String(), string(e.HourType), e.Hours.String(), i)
		if err != nil {
			if isUniqueConstraintError(err) {
				return fmt.Errorf("%w: %s %s", timesheet.ErrDuplicateEntry, e.Date, e.HourType)
			}
			return fmt.Errorf("failed to insert entry: %w", err)
		}
	}
	return nil
}

func (q queries) ReplaceReimbursements(ctx context.Context, id string, items []timesheet.ReimbursementItem) error {
	if err := q.exists(ctx, id); err != nil {
		return err
	}
	if _, err := q.db.ExecContext(ctx, `DELETE FROM reimbursement_items WHERE timesheet_id = ?`, id); err != nil {
		return fmt.Errorf("failed to clear reimbursement items: %w", err)
	}
	for i, item := range items {
		_, err := q.db.ExecContext(ctx, `
			INSERT INTO reimbursement_items (id, timesheet_id, expense_type, amount, expense_date, notes, position)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, id, item.ExpenseType, item.Amount.String(), nullDate(item.ExpenseDate), item.Notes, i)
		if err != nil {
			return fmt.Errorf("failed to insert reimbursement item: %w", err)
		}
	}
	return nil
}

func (q queries) DeleteTimesheet(ctx context.Context, id string) error {
	res, err := q.db.ExecContext(ctx, `DELETE FROM timesheets WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete timesheet: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, id)
	}
	return nil
}

func (q queries) TouchTimesheets(ctx context.Context, p calendar.Period, at time.Time) (int, error) {
	res, err := q.db.ExecContext(ctx, `
		UPDATE timesheets SET version = version + 1, updated_at = ?
		WHERE week_start >= ? AND week_start <= ?`,
		formatTime(at), p.Start.String(), p.End.String())
	if err != nil {
		return 0, fmt.Errorf("failed to lock timesheets: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

func (q queries) AddNote(ctx context.Context, n timesheet.Note) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO notes (id, timesheet_id, author_id, content, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		n.ID, n.TimesheetID, n.AuthorID, n.Content, formatTime(n.CreatedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, n.TimesheetID)
		}
		return fmt.Errorf("failed to insert note: %w", err)
	}
	return nil
}

func (q queries) ListNotes(ctx context.Context, id string) ([]timesheet.Note, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, timesheet_id, author_id, content, created_at
		FROM notes WHERE timesheet_id = ? ORDER BY created_at ASC, rowid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query notes: %w", err)
	}
	defer rows.Close()

	var out []timesheet.Note
	for rows.Next() {
		var (
			n         timesheet.Note
			createdAt string
		)
		if err := rows.Scan(&n.ID, &n.TimesheetID, &n.AuthorID, &n.Content, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan note: %w", err)
		}
		if n.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (q queries) InsertPayPeriod(ctx context.Context, p timesheet.PayPeriod) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO pay_periods (id, start_date, end_date, confirmed_at, confirmed_by)
		VALUES (?, ?, ?, ?, ?)`,
		p.ID, p.Period.Start.String(), p.Period.End.String(), formatTime(p.ConfirmedAt), p.ConfirmedBy)
	if err != nil {
		if isUniqueConstraintError(err) {
			return timesheet.ErrDuplicatePayPeriod
		}
		return fmt.Errorf("failed to insert pay period: %w", err)
	}
	return nil
}

func (q queries) GetPayPeriod(ctx context.Context, p calendar.Period) (timesheet.PayPeriod, error) {
	row := q.db.QueryRowContext(ctx, `
		SELECT id, start_date, end_date, confirmed_at, confirmed_by
		FROM pay_periods WHERE start_date = ? AND end_date = ?`,
		p.Start.String(), p.End.String())
	pp, err := scanPayPeriod(row)
	if errors.Is(err, sql.ErrNoRows) {
		return timesheet.PayPeriod{}, fmt.Errorf("%w: pay period %s", timesheet.ErrNotFound, p)
	}
	return pp, err
}

func (q queries) ListPayPeriods(ctx context.Context) ([]timesheet.PayPeriod, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, start_date, end_date, confirmed_at, confirmed_by
		FROM pay_periods ORDER BY start_date DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to query pay periods: %w", err)
	}
	defer rows.Close()

	var out []timesheet.PayPeriod
	for rows.Next() {
		pp, err := scanPayPeriod(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, pp)
	}
	return out, rows.Err()
}

func (q queries) SaveUser(ctx context.Context, u timesheet.User) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO users (id, email, display_name, role, slack_id)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			email = excluded.email,
			display_name = excluded.display_name,
			role = excluded.role,
			slack_id = excluded.slack_id`,
		u.ID, u.Email, u.DisplayName, string(u.Role), u.SlackID)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

func (q queries) GetUser(ctx context.Context, id string) (timesheet.User, error) {
	var (
		u    timesheet.User
		role string
	)
	err := q.db.QueryRowContext(ctx,
		`SELECT id, email, display_name, role, slack_id FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Email, &u.DisplayName, &role, &u.SlackID)
	if errors.Is(err, sql.ErrNoRows) {
		return timesheet.User{}, fmt.Errorf("%w: user %s", timesheet.ErrNotFound, id)
	}
	if err != nil {
		return timesheet.User{}, fmt.Errorf("failed to get user: %w", err)
	}
	u.Role = timesheet.Role(role)
	return u, nil
}

func (q queries) ListUsers(ctx context.Context) ([]timesheet.User, error) {
	rows, err := q.db.QueryContext(ctx,
		`SELECT id, email, display_name, role, slack_id FROM users ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var out []timesheet.User
	for rows.Next() {
		var (
			u    timesheet.User
			role string
		)
		if err := rows.Scan(&u.ID, &u.Email, &u.DisplayName, &role, &u.SlackID); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		u.Role = timesheet.Role(role)
		out = append(out, u)
	}
	return out, rows.Err()
}

func (q queries) AddAttachment(ctx context.Context, a timesheet.Attachment) error {
	_, err := q.db.ExecContext(ctx, `
		INSERT INTO attachments
		(id, timesheet_id, filename, content_type, size_bytes, reimbursement_type, sync_status, uploaded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TimesheetID, a.Filename, a.ContentType, a.SizeBytes,
		a.ReimbursementType, string(a.SyncStatus), formatTime(a.UploadedAt))
	if err != nil {
		if isForeignKeyError(err) {
			return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, a.TimesheetID)
		}
		return fmt.Errorf("failed to insert attachment: %w", err)
	}
	return nil
}

func (q queries) ListAttachments(ctx context.Context, id string) ([]timesheet.Attachment, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT id, timesheet_id, filename, content_type, size_bytes, reimbursement_type, sync_status, uploaded_at
		FROM attachments WHERE timesheet_id = ? ORDER BY uploaded_at ASC, rowid ASC`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to query attachments: %w", err)
	}
	defer rows.Close()

	var out []timesheet.Attachment
	for rows.Next() {
		var (
			a          timesheet.Attachment
			syncStatus string
			uploadedAt string
		)
		if err := rows.Scan(&a.ID, &a.TimesheetID, &a.Filename, &a.ContentType, &a.SizeBytes,
			&a.ReimbursementType, &syncStatus, &uploadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attachment: %w", err)
		}
		a.SyncStatus = timesheet.SyncStatus(syncStatus)
		if a.UploadedAt, err = parseTime(uploadedAt); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (q queries) HasAttachment(ctx context.Context, id, typ string) (bool, error) {
	query := `SELECT COUNT(*) FROM attachments WHERE timesheet_id = ?`
	args := []any{id}
	if typ != "" {
		query += ` AND LOWER(reimbursement_type) = LOWER(?)`
		args = append(args, typ)
	}
	var count int
	err := q.db.QueryRowContext(ctx, query, args...).Scan(&count)
	return count > 0, err
}

// loadOwned fills entries and reimbursement items in stored order.
func (q queries) loadOwned(ctx context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, error) {
	rows, err := q.db.QueryContext(ctx, `
		SELECT entry_date, hour_type, hours FROM time_entries
		WHERE timesheet_id = ? ORDER BY position ASC`, ts.ID)
	if err != nil {
		return ts, fmt.Errorf("failed to query entries: %w", err)
	}
	for rows.Next() {
		var date, hourType, hours string
		if err := rows.Scan(&date, &hourType, &hours); err != nil {
			rows.Close()
			return ts, fmt.Errorf("failed to scan entry: %w", err)
		}
		e := timesheet.TimeEntry{HourType: timesheet.HourType(hourType)}
		if e.Date, err = parseDate(date); err == nil {
			e.Hours, err = parseDecimal(hours)
		}
		if err != nil {
			rows.Close()
			return ts, fmt.Errorf("entry of timesheet %s: %w", ts.ID, err)
		}
		ts.Entries = append(ts.Entries, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return ts, err
	}

	rows, err = q.db.QueryContext(ctx, `
		SELECT id, expense_type, amount, expense_date, notes FROM reimbursement_items
		WHERE timesheet_id = ? ORDER BY position ASC`, ts.ID)
	if err != nil {
		return ts, fmt.Errorf("failed to query reimbursement items: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			item        timesheet.ReimbursementItem
			amount      string
			expenseDate sql.NullString
		)
		if err := rows.Scan(&item.ID, &item.ExpenseType, &amount, &expenseDate, &item.Notes); err != nil {
			return ts, fmt.Errorf("failed to scan reimbursement item: %w", err)
		}
		if item.Amount, err = parseDecimal(amount); err != nil {
			return ts, fmt.Errorf("reimbursement item %s: %w", item.ID, err)
		}
		if expenseDate.Valid {
			if item.ExpenseDate, err = parseDate(expenseDate.String); err != nil {
				return ts, fmt.Errorf("reimbursement item %s: %w", item.ID, err)
			}
		}
		ts.Reimbursements = append(ts.Reimbursements, item)
	}
	return ts, rows.Err()
}

func (q queries) exists(ctx context.Context, id string) error {
	var one int
	err := q.db.QueryRowContext(ctx, `SELECT 1 FROM timesheets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, id)
	}
	return err
}

// =============================================================================
// SCANNING
// =============================================================================

type scanner interface {
	Scan(dest ...any) error
}

func scanTimesheet(row scanner) (timesheet.Timesheet, error) {
	var (
		ts          timesheet.Timesheet
		weekStart   string
		status      string
		createdAt   string
		updatedAt   string
		submittedAt sql.NullString
		approvedAt  sql.NullString
		approvedBy  sql.NullString
	)
	err := row.Scan(
		&ts.ID, &ts.UserID, &weekStart, &status, &ts.Version,
		&ts.TravelFlag, &ts.ExpensesFlag, &ts.ReimbursementNeeded,
		&ts.UserNotes, &ts.AdminNotes, &createdAt, &updatedAt,
		&submittedAt, &approvedAt, &approvedBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ts, err
		}
		return ts, fmt.Errorf("failed to scan timesheet: %w", err)
	}

	ts.Status = timesheet.Status(status)
	ts.ApprovedBy = approvedBy.String
	if ts.WeekStart, err = parseDate(weekStart); err != nil {
		return ts, fmt.Errorf("timesheet %s: %w", ts.ID, err)
	}
	if ts.CreatedAt, err = parseTime(createdAt); err != nil {
		return ts, fmt.Errorf("timesheet %s: %w", ts.ID, err)
	}
	if ts.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return ts, fmt.Errorf("timesheet %s: %w", ts.ID, err)
	}
	if ts.SubmittedAt, err = parseNullTime(submittedAt); err != nil {
		return ts, fmt.Errorf("timesheet %s: %w", ts.ID, err)
	}
	if ts.ApprovedAt, err = parseNullTime(approvedAt); err != nil {
		return ts, fmt.Errorf("timesheet %s: %w", ts.ID, err)
	}
	return ts, nil
}

func scanPayPeriod(row scanner) (timesheet.PayPeriod, error) {
	var (
		pp          timesheet.PayPeriod
		start, end  string
		confirmedAt string
	)
	if err := row.Scan(&pp.ID, &start, &end, &confirmedAt, &pp.ConfirmedBy); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return pp, err
		}
		return pp, fmt.Errorf("failed to scan pay period: %w", err)
	}
	var err error
	if pp.Period.Start, err = parseDate(start); err != nil {
		return pp, fmt.Errorf("pay period %s: %w", pp.ID, err)
	}
	if pp.Period.End, err = parseDate(end); err != nil {
		return pp, fmt.Errorf("pay period %s: %w", pp.ID, err)
	}
	if pp.ConfirmedAt, err = parseTime(confirmedAt); err != nil {
		return pp, fmt.Errorf("pay period %s: %w", pp.ID, err)
	}
	return pp, nil
}

// Helper functions

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// Malformed stored values are errors, never zero values.

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid stored time %q: %w", s, err)
	}
	return t, nil
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTime(*t), Valid: true}
}

func parseNullTime(s sql.NullString) (*time.Time, error) {
	if !s.Valid || s.String == "" {
		return nil, nil
	}
	t, err := parseTime(s.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func nullDate(d calendar.Date) sql.NullString {
	if d.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: d.String(), Valid: true}
}

func parseDate(s string) (calendar.Date, error) {
	d, err := calendar.ParseDate(s)
	if err != nil {
		return calendar.Date{}, fmt.Errorf("invalid stored date %q: %w", s, err)
	}
	return d, nil
}

func parseDecimal(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid stored decimal %q: %w", s, err)
	}
	return d, nil
}

func isUniqueConstraintError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

func isForeignKeyError(err error) bool {
	var se sqlite3.Error
	if errors.As(err, &se) {
		return se.ExtendedCode == sqlite3.ErrConstraintForeignKey
	}
	return false
}

// Package memory provides an in-memory timesheet.TxStore for tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/timesheet"
)

// =============================================================================
// MEMORY STORE - In-memory implementation (for testing/dev)
// =============================================================================

type Memory struct {
	mu sync.RWMutex
	st *state
}

type state struct {
	timesheets  map[string]timesheet.Timesheet // headers only
	entries     map[string][]timesheet.TimeEntry
	items       map[string][]timesheet.ReimbursementItem
	attachments map[string][]timesheet.Attachment
	notes       map[string][]timesheet.Note
	payPeriods  []timesheet.PayPeriod
	users       map[string]timesheet.User
}

func newState() *state {
	return &state{
		timesheets:  make(map[string]timesheet.Timesheet),
		entries:     make(map[string][]timesheet.TimeEntry),
		items:       make(map[string][]timesheet.ReimbursementItem),
		attachments: make(map[string][]timesheet.Attachment),
		notes:       make(map[string][]timesheet.Note),
		users:       make(map[string]timesheet.User),
	}
}

func New() *Memory {
	return &Memory{st: newState()}
}

var _ timesheet.TxStore = (*Memory)(nil)

func (m *Memory) read(fn func(v view) error) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return fn(view{m.st})
}

func (m *Memory) write(fn func(v view) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return fn(view{m.st})
}

func (m *Memory) InsertTimesheet(ctx context.Context, ts timesheet.Timesheet) error {
	return m.write(func(v view) error { return v.InsertTimesheet(ctx, ts) })
}

func (m *Memory) GetTimesheet(ctx context.Context, id string) (ts timesheet.Timesheet, err error) {
	err = m.read(func(v view) error { ts, err = v.GetTimesheet(ctx, id); return err })
	return ts, err
}

func (m *Memory) FindTimesheet(ctx context.Context, userID string, weekStart calendar.Date) (ts timesheet.Timesheet, err error) {
	err = m.read(func(v view) error { ts, err = v.FindTimesheet(ctx, userID, weekStart); return err })
	return ts, err
}

func (m *Memory) ListTimesheets(ctx context.Context, f timesheet.TimesheetFilter) (out []timesheet.Timesheet, err error) {
	err = m.read(func(v view) error { out, err = v.ListTimesheets(ctx, f); return err })
	return out, err
}

func (m *Memory) UpdateTimesheet(ctx context.Context, ts timesheet.Timesheet) (saved timesheet.Timesheet, err error) {
	err = m.write(func(v view) error { saved, err = v.UpdateTimesheet(ctx, ts); return err })
	return saved, err
}

func (m *Memory) ReplaceEntries(ctx context.Context, id string, entries []timesheet.TimeEntry) error {
	return m.write(func(v view) error { return v.ReplaceEntries(ctx, id, entries) })
}

func (m *Memory) ReplaceReimbursements(ctx context.Context, id string, items []timesheet.ReimbursementItem) error {
	return m.write(func(v view) error { return v.ReplaceReimbursements(ctx, id, items) })
}

func (m *Memory) DeleteTimesheet(ctx context.Context, id string) error {
	return m.write(func(v view) error { return v.DeleteTimesheet(ctx, id) })
}

func (m *Memory) TouchTimesheets(ctx context.Context, p calendar.Period, at time.Time) (n int, err error) {
	err = m.write(func(v view) error { n, err = v.TouchTimesheets(ctx, p, at); return err })
	return n, err
}

func (m *Memory) AddNote(ctx context.Context, n timesheet.Note) error {
	return m.write(func(v view) error { return v.AddNote(ctx, n) })
}

func (m *Memory) ListNotes(ctx context.Context, id string) (out []timesheet.Note, err error) {
	err = m.read(func(v view) error { out, err = v.ListNotes(ctx, id); return err })
	return out, err
}

func (m *Memory) InsertPayPeriod(ctx context.Context, p timesheet.PayPeriod) error {
	return m.write(func(v view) error { return v.InsertPayPeriod(ctx, p) })
}

func (m *Memory) GetPayPeriod(ctx context.Context, p calendar.Period) (pp timesheet.PayPeriod, err error) {
	err = m.read(func(v view) error { pp, err = v.GetPayPeriod(ctx, p); return err })
	return pp, err
}

func (m *Memory) ListPayPeriods(ctx context.Context) (out []timesheet.PayPeriod, err error) {
	err = m.read(func(v view) error { out, err = v.ListPayPeriods(ctx); return err })
	return out, err
}

func (m *Memory) SaveUser(ctx context.Context, u timesheet.User) error {
	return m.write(func(v view) error { return v.SaveUser(ctx, u) })
}

func (m *Memory) GetUser(ctx context.Context, id string) (u timesheet.User, err error) {
	err = m.read(func(v view) error { u, err = v.GetUser(ctx, id); return err })
	return u, err
}

func (m *Memory) ListUsers(ctx context.Context) (out []timesheet.User, err error) {
	err = m.read(func(v view) error { out, err = v.ListUsers(ctx); return err })
	return out, err
}

func (m *Memory) AddAttachment(ctx context.Context, a timesheet.Attachment) error {
	return m.write(func(v view) error { return v.AddAttachment(ctx, a) })
}

func (m *Memory) ListAttachments(ctx context.Context, id string) (out []timesheet.Attachment, err error) {
	err = m.read(func(v view) error { out, err = v.ListAttachments(ctx, id); return err })
	return out, err
}

func (m *Memory) HasAttachment(ctx context.Context, id, typ string) (ok bool, err error) {
	err = m.read(func(v view) error { ok, err = v.HasAttachment(ctx, id, typ); return err })
	return ok, err
}

// =============================================================================
// TRANSACTIONS
// =============================================================================

// WithTx executes fn within a transaction.
// For memory store, this is simulated with a snapshot + rollback on error.
// The write lock is held for the whole of fn, so transactions are serial.
func (m *Memory) WithTx(ctx context.Context, fn func(timesheet.Store) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	snapshot := m.st.clone()
	if err := fn(view{m.st}); err != nil {
		m.st = snapshot
		return err
	}
	return nil
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.timesheets {
		c.timesheets[k] = v.Clone()
	}
	for k, v := range s.entries {
		c.entries[k] = append([]timesheet.TimeEntry(nil), v...)
	}
	for k, v := range s.items {
		c.items[k] = append([]timesheet.ReimbursementItem(nil), v...)
	}
	for k, v := range s.attachments {
		c.attachments[k] = append([]timesheet.Attachment(nil), v...)
	}
	for k, v := range s.notes {
		c.notes[k] = append([]timesheet.Note(nil), v...)
	}
	c.payPeriods = append([]timesheet.PayPeriod(nil), s.payPeriods...)
	for k, v := range s.users {
		c.users[k] = v
	}
	return c
}

// =============================================================================
// VIEW - Unlocked operations shared by Memory and WithTx
// =============================================================================

type view struct {
	s *state
}

func (v view) InsertTimesheet(_ context.Context, ts timesheet.Timesheet) error {
	if _, ok := v.s.timesheets[ts.ID]; ok {
		return fmt.Errorf("%w: id %s", timesheet.ErrTimesheetExists, ts.ID)
	}
	for _, existing := range v.s.timesheets {
		if existing.UserID == ts.UserID && existing.WeekStart.Equal(ts.WeekStart) {
			return fmt.Errorf("%w: user %s week %s", timesheet.ErrTimesheetExists, ts.UserID, ts.WeekStart)
		}
	}
	ts.Version = 1
	v.s.timesheets[ts.ID] = header(ts)
	return nil
}

func (v view) GetTimesheet(_ context.Context, id string) (timesheet.Timesheet, error) {
	ts, ok := v.s.timesheets[id]
	if !ok {
		return timesheet.Timesheet{}, fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, id)
	}
	return v.full(ts), nil
}

func (v view) FindTimesheet(_ context.Context, userID string, weekStart calendar.Date) (timesheet.Timesheet, error) {
	for _, ts := range v.s.timesheets {
		if ts.UserID == userID && ts.WeekStart.Equal(weekStart) {
			return v.full(ts), nil
		}
	}
	return timesheet.Timesheet{}, fmt.Errorf("%w: timesheet for %s week %s", timesheet.ErrNotFound, userID, weekStart)
}

func (v view) ListTimesheets(_ context.Context, f timesheet.TimesheetFilter) ([]timesheet.Timesheet, error) {
	var out []timesheet.Timesheet
	for _, ts := range v.s.timesheets {
		if f.Matches(ts) {
			out = append(out, ts.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeekStart.Equal(out[j].WeekStart) {
			return out[i].WeekStart.After(out[j].WeekStart)
		}
		return out[i].UserID < out[j].UserID
	})
	return out, nil
}

func (v view) UpdateTimesheet(_ context.Context, ts timesheet.Timesheet) (timesheet.Timesheet, error) {
	current, ok := v.s.timesheets[ts.ID]
	if !ok {
		return timesheet.Timesheet{}, fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, ts.ID)
	}
	if current.Version != ts.Version {
		return timesheet.Timesheet{}, &timesheet.ConflictError{TimesheetID: ts.ID, Expected: ts.Version, Actual: current.Version}
	}
	ts.Version++
	// identity fields are immutable
	ts.UserID = current.UserID
	ts.WeekStart = current.WeekStart
	ts.CreatedAt = current.CreatedAt
	v.s.timesheets[ts.ID] = header(ts)
	return ts, nil
}

func (v view) ReplaceEntries(_ context.Context, id string, entries []timesheet.TimeEntry) error {
	if _, ok := v.s.timesheets[id]; !ok {
		return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, id)
	}
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		k := e.Date.String() + "|" + string(e.HourType)
		if seen[k] {
			return fmt.Errorf("%w: %s %s", timesheet.ErrDuplicateEntry, e.Date, e.HourType)
		}
		seen[k] = true
	}
	v.s.entries[id] = append([]timesheet.TimeEntry(nil), entries...)
	return nil
}

func (v view) ReplaceReimbursements(_ context.Context, id string, items []timesheet.ReimbursementItem) error {
	if _, ok := v.s.timesheets[id]; !ok {
		return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, id)
	}
	v.s.items[id] = append([]timesheet.ReimbursementItem(nil), items...)
	return nil
}

func (v view) DeleteTimesheet(_ context.Context, id string) error {
	if _, ok := v.s.timesheets[id]; !ok {
		return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, id)
	}
	delete(v.s.timesheets, id)
	delete(v.s.entries, id)
	delete(v.s.items, id)
	delete(v.s.attachments, id)
	delete(v.s.notes, id)
	return nil
}

func (v view) TouchTimesheets(_ context.Context, p calendar.Period, at time.Time) (int, error) {
	n := 0
	for id, ts := range v.s.timesheets {
		if !p.Contains(ts.WeekStart) {
			continue
		}
		ts.Version++
		ts.UpdatedAt = at
		v.s.timesheets[id] = ts
		n++
	}
	return n, nil
}

func (v view) AddNote(_ context.Context, n timesheet.Note) error {
	if _, ok := v.s.timesheets[n.TimesheetID]; !ok {
		return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, n.TimesheetID)
	}
	v.s.notes[n.TimesheetID] = append(v.s.notes[n.TimesheetID], n)
	return nil
}

func (v view) ListNotes(_ context.Context, id string) ([]timesheet.Note, error) {
	return append([]timesheet.Note(nil), v.s.notes[id]...), nil
}

func (v view) InsertPayPeriod(_ context.Context, p timesheet.PayPeriod) error {
	for _, existing := range v.s.payPeriods {
		if samePeriod(existing.Period, p.Period) {
			return timesheet.ErrDuplicatePayPeriod
		}
	}
	v.s.payPeriods = append(v.s.payPeriods, p)
	return nil
}

func (v view) GetPayPeriod(_ context.Context, p calendar.Period) (timesheet.PayPeriod, error) {
	for _, existing := range v.s.payPeriods {
		if samePeriod(existing.Period, p) {
			return existing, nil
		}
	}
	return timesheet.PayPeriod{}, fmt.Errorf("%w: pay period %s", timesheet.ErrNotFound, p)
}

func (v view) ListPayPeriods(_ context.Context) ([]timesheet.PayPeriod, error) {
	out := append([]timesheet.PayPeriod(nil), v.s.payPeriods...)
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.After(out[j].Period.Start) })
	return out, nil
}

func (v view) SaveUser(_ context.Context, u timesheet.User) error {
	v.s.users[u.ID] = u
	return nil
}

func (v view) GetUser(_ context.Context, id string) (timesheet.User, error) {
	u, ok := v.s.users[id]
	if !ok {
		return timesheet.User{}, fmt.Errorf("%w: user %s", timesheet.ErrNotFound, id)
	}
	return u, nil
}

func (v view) ListUsers(_ context.Context) ([]timesheet.User, error) {
	out := make([]timesheet.User, 0, len(v.s.users))
	for _, u := range v.s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (v view) AddAttachment(_ context.Context, a timesheet.Attachment) error {
	if _, ok := v.s.timesheets[a.TimesheetID]; !ok {
		return fmt.Errorf("%w: timesheet %s", timesheet.ErrNotFound, a.TimesheetID)
	}
	v.s.attachments[a.TimesheetID] = append(v.s.attachments[a.TimesheetID], a)
	return nil
}

func (v view) ListAttachments(_ context.Context, id string) ([]timesheet.Attachment, error) {
	return append([]timesheet.Attachment(nil), v.s.attachments[id]...), nil
}

func (v view) HasAttachment(_ context.Context, id, typ string) (bool, error) {
	for _, a := range v.s.attachments[id] {
		if typ == "" || strings.EqualFold(a.ReimbursementType, typ) {
			return true, nil
		}
	}
	return false, nil
}

func (v view) full(ts timesheet.Timesheet) timesheet.Timesheet {
	c := ts.Clone()
	c.Entries = append([]timesheet.TimeEntry(nil), v.s.entries[ts.ID]...)
	c.Reimbursements = append([]timesheet.ReimbursementItem(nil), v.s.items[ts.ID]...)
	return c
}

func header(ts timesheet.Timesheet) timesheet.Timesheet {
	h := ts.Clone()
	h.Entries = nil
	h.Reimbursements = nil
	return h
}

func samePeriod(a, b calendar.Period) bool {
	return a.Start.Equal(b.Start) && a.End.Equal(b.End)
}

/*
scheduler.go - Weekly submission reminders

PURPOSE:
  Periodically reminds users whose timesheet for the last completed week is
  missing or still editable.

DESIGN:
  - Runs a background goroutine with a configurable check interval
  - Runs once immediately on start
  - Targets the week before the current one
  - Reminds at most once per week per process; a restart may remind again

USAGE:
  scheduler := NewReminderScheduler(svc, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - timesheet/service.go: RemindUnsubmitted
  - notify/dispatcher.go: Delivers the reminder events
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/timesheet"
)

// ReminderScheduler sends weekly submission reminders.
type ReminderScheduler struct {
	Service       *timesheet.Service
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	ticker   *time.Ticker
	stop     chan bool
	wg       sync.WaitGroup
	mu       sync.Mutex
	lastWeek calendar.Date
}

// NewReminderScheduler creates a new scheduler.
func NewReminderScheduler(svc *timesheet.Service, logger *slog.Logger) *ReminderScheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ReminderScheduler{
		Service:       svc,
		Logger:        logger.With("component", "reminders"),
		CheckInterval: 24 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (rs *ReminderScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan bool)
	rs.wg.Add(1)

	go rs.run(rs.ticker.C, rs.stop)

	rs.Logger.Info("scheduler started", "interval", rs.CheckInterval.String())
}

// Stop stops the scheduler and waits for a running check to finish.
func (rs *ReminderScheduler) Stop() {
	rs.mu.Lock()
	ticker, stop := rs.ticker, rs.stop
	rs.ticker, rs.stop = nil, nil
	rs.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		rs.wg.Wait()
		rs.Logger.Info("scheduler stopped")
	}
}

func (rs *ReminderScheduler) run(ticks <-chan time.Time, stop <-chan bool) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-ticks:
			rs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow reminds for the last completed week unless that week was already
// handled. It returns how many users were reminded.
func (rs *ReminderScheduler) RunNow(ctx context.Context) int {
	week := calendar.WeekStart(calendar.DateOf(rs.Service.Now())).AddDays(-7)

	rs.mu.Lock()
	if rs.lastWeek.Equal(week) {
		rs.mu.Unlock()
		return 0
	}
	rs.mu.Unlock()

	n, err := rs.Service.RemindUnsubmitted(ctx, week)
	if err != nil {
		rs.Logger.Error("reminder run failed", "week_start", week.String(), "error", err)
		return 0
	}

	rs.mu.Lock()
	rs.lastWeek = week
	rs.mu.Unlock()

	rs.Logger.Info("reminders sent", "week_start", week.String(), "users", n)
	return n
}

// NextRunTime returns when the next scheduled check will occur.
func (rs *ReminderScheduler) NextRunTime() time.Time {
	return rs.Service.Now().Add(rs.CheckInterval)
}

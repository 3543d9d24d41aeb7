/*
handlers.go - HTTP API handlers for the timesheet engine

PURPOSE:
  Exposes timesheet.Service via REST API. Handles HTTP request/response and
  JSON serialization, and delegates every decision to the service.

ENDPOINTS:
  Users:
    POST   /api/users                           Register or update a user
    GET    /api/users                           List users

  Timesheets (caller's own, or any for an admin):
    POST   /api/timesheets                      Create for a week
    GET    /api/timesheets                      List own (?status=NEW,SUBMITTED)
    GET    /api/timesheets/{id}                 Detail with totals and actions
    PUT    /api/timesheets/{id}                 Flags, notes, reimbursements
    DELETE /api/timesheets/{id}                 Delete a NEW timesheet
    PUT    /api/timesheets/{id}/entries         Replace entries
    GET    /api/timesheets/{id}/totals          Recomputed totals
    GET    /api/timesheets/{id}/reimbursements/validation
    POST   /api/timesheets/{id}/submit
    POST   /api/timesheets/{id}/notes
    POST   /api/timesheets/{id}/attachments     Metadata only

  Review (support and admin):
    GET    /api/admin/timesheets                (?status=&user_id=&week_start=)
    POST   /api/admin/timesheets/{id}/approve
    POST   /api/admin/timesheets/{id}/reject
    POST   /api/admin/timesheets/{id}/unapprove

  Pay periods:
    GET    /api/pay-periods                     Confirmed periods
    GET    /api/pay-periods/current
    POST   /api/pay-periods/confirm             Admin only, idempotent

  Calendar:
    GET    /api/calendar/holidays?year=2026

IDENTITY:
  The caller is named by the X-User-ID header. Authentication happens in
  front of this service; requests without the header get 401.

ERROR HANDLING:
  Errors are returned as {"kind","message","details"} with:
  - 400: Malformed body, invalid input, validation errors
  - 401: Missing X-User-ID
  - 403: Forbidden, hour type not allowed for role
  - 404: Timesheet or user not found
  - 409: Invalid transition, pay period locked, version conflict, duplicate
  - 422: Reimbursement amount or receipt problems
  - 500: Internal errors (details are logged, never returned)

SEE ALSO:
  - dto.go:    Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/timesheet"
)

// UserHeader names the caller.
const UserHeader = "X-User-ID"

// Kinds produced by the transport layer itself.
const (
	KindBadRequest      = "BadRequest"
	KindUnauthenticated = "Unauthenticated"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	Service *timesheet.Service
	Logger  *slog.Logger

	validate *validator.Validate
}

// NewHandler creates a new handler over svc.
func NewHandler(svc *timesheet.Service, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		Service:  svc,
		Logger:   logger,
		validate: newValidator(),
	}
}

// =============================================================================
// USER ENDPOINTS
// =============================================================================

// RegisterUser creates or updates a user.
// POST /api/users
func (h *Handler) RegisterUser(w http.ResponseWriter, r *http.Request) {
	var req RegisterUserRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	role, err := timesheet.ParseRole(req.Role)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	u, err := h.Service.RegisterUser(r.Context(), timesheet.User{
		ID:          req.ID,
		Email:       strings.TrimSpace(req.Email),
		DisplayName: strings.TrimSpace(req.DisplayName),
		Role:        role,
		SlackID:     strings.TrimSpace(req.SlackID),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toUserDTO(u))
}

// ListUsers returns all users.
// GET /api/users
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.Service.ListUsers(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]UserDTO, len(users))
	for i, u := range users {
		out[i] = toUserDTO(u)
	}
	writeJSON(w, http.StatusOK, out)
}

// =============================================================================
// TIMESHEET ENDPOINTS
// =============================================================================

// CreateTimesheet opens a timesheet for a week.
// POST /api/timesheets
func (h *Handler) CreateTimesheet(w http.ResponseWriter, r *http.Request) {
	actor := actorID(r)
	var req CreateTimesheetRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}
	userID := strings.TrimSpace(req.UserID)
	if userID == "" {
		userID = actor
	}

	ts, err := h.Service.CreateTimesheet(r.Context(), timesheet.CreateRequest{
		UserID:       userID,
		ActorID:      actor,
		WeekStart:    req.WeekStart,
		AutoPopulate: req.AutoPopulate,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTimesheetDTO(ts))
}

// ListTimesheets lists the caller's own timesheets.
// GET /api/timesheets?status=NEW,NEEDS_APPROVAL
func (h *Handler) ListTimesheets(w http.ResponseWriter, r *http.Request) {
	statuses, err := parseStatuses(r.URL.Query().Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	sheets, err := h.Service.ListForUser(r.Context(), actorID(r), statuses...)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTOs(sheets))
}

// GetTimesheet returns one timesheet with totals, attachments, notes and
// the commands the caller may run.
// GET /api/timesheets/{id}
func (h *Handler) GetTimesheet(w http.ResponseWriter, r *http.Request) {
	view, err := h.Service.Get(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toDetailDTO(view))
}

// UpdateTimesheet changes flags, user notes and reimbursement items.
// PUT /api/timesheets/{id}
func (h *Handler) UpdateTimesheet(w http.ResponseWriter, r *http.Request) {
	var req UpdateDetailsRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	update := timesheet.UpdateDetailsRequest{
		TimesheetID:         chi.URLParam(r, "id"),
		ActorID:             actorID(r),
		TravelFlag:          req.TravelFlag,
		ExpensesFlag:        req.ExpensesFlag,
		ReimbursementNeeded: req.ReimbursementNeeded,
		UserNotes:           req.UserNotes,
		ExpectedVersion:     req.Version,
	}
	if req.Reimbursements != nil {
		items := toReimbursementInputs(*req.Reimbursements)
		update.Reimbursements = &items
	}

	ts, err := h.Service.UpdateDetails(r.Context(), update)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// DeleteTimesheet removes a NEW timesheet.
// DELETE /api/timesheets/{id}
func (h *Handler) DeleteTimesheet(w http.ResponseWriter, r *http.Request) {
	if err := h.Service.Delete(r.Context(), chi.URLParam(r, "id"), actorID(r)); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ReplaceEntries replaces every entry of a timesheet.
// PUT /api/timesheets/{id}/entries
func (h *Handler) ReplaceEntries(w http.ResponseWriter, r *http.Request) {
	var req ReplaceEntriesRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	res, err := h.Service.ReplaceEntries(r.Context(), timesheet.ReplaceEntriesRequest{
		TimesheetID:     chi.URLParam(r, "id"),
		ActorID:         actorID(r),
		Entries:         toEntryInputs(req.Entries),
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, EntriesResponse{
		Timesheet: toTimesheetDTO(res.Timesheet),
		Totals:    toTotalsDTO(res.Totals),
		Warnings:  toWarningDTOs(res.Warnings),
	})
}

// GetTotals recomputes totals from stored entries.
// GET /api/timesheets/{id}/totals
func (h *Handler) GetTotals(w http.ResponseWriter, r *http.Request) {
	totals, err := h.Service.GetTotals(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTotalsDTO(totals))
}

// ValidateReimbursements runs the advisory receipt check.
// GET /api/timesheets/{id}/reimbursements/validation
func (h *Handler) ValidateReimbursements(w http.ResponseWriter, r *http.Request) {
	report, err := h.Service.ValidateReimbursements(r.Context(), chi.URLParam(r, "id"), actorID(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

// SubmitTimesheet moves a timesheet to review.
// POST /api/timesheets/{id}/submit
func (h *Handler) SubmitTimesheet(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	ts, err := h.Service.Submit(r.Context(), timesheet.SubmitRequest{
		TimesheetID:                   chi.URLParam(r, "id"),
		ActorID:                       actorID(r),
		AcknowledgeMissingAttachments: req.AcknowledgeMissingAttachments,
		ExpectedVersion:               req.Version,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// AddNote appends a comment.
// POST /api/timesheets/{id}/notes
func (h *Handler) AddNote(w http.ResponseWriter, r *http.Request) {
	var req NoteRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	n, err := h.Service.AddNote(r.Context(), timesheet.NoteRequest{
		TimesheetID: chi.URLParam(r, "id"),
		ActorID:     actorID(r),
		Content:     req.Content,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toNoteDTO(n))
}

// AddAttachment records receipt metadata.
// POST /api/timesheets/{id}/attachments
func (h *Handler) AddAttachment(w http.ResponseWriter, r *http.Request) {
	var req AttachmentRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	a, err := h.Service.AddAttachment(r.Context(), timesheet.AttachmentRequest{
		TimesheetID:       chi.URLParam(r, "id"),
		ActorID:           actorID(r),
		Filename:          req.Filename,
		ContentType:       req.ContentType,
		SizeBytes:         req.SizeBytes,
		ReimbursementType: req.ReimbursementType,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAttachmentDTO(a))
}

// =============================================================================
// REVIEW ENDPOINTS
// =============================================================================

// ListForReview lists timesheets past the draft stage.
// GET /api/admin/timesheets?status=SUBMITTED&user_id=u1&week_start=2026-01-05
func (h *Handler) ListForReview(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	statuses, err := parseStatuses(q.Get("status"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	filter := timesheet.TimesheetFilter{UserID: strings.TrimSpace(q.Get("user_id")), Statuses: statuses}
	if v := q.Get("week_start"); v != "" {
		week, err := calendar.ParseDate(v)
		if err != nil {
			h.fail(w, r, fmt.Errorf("%w: week_start: %v", timesheet.ErrInvalidInput, err))
			return
		}
		week = calendar.WeekStart(week)
		filter.WeekStart = &week
	}

	sheets, err := h.Service.ListForReview(r.Context(), actorID(r), filter)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTOs(sheets))
}

// ApproveTimesheet approves a submitted timesheet.
// POST /api/admin/timesheets/{id}/approve
func (h *Handler) ApproveTimesheet(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Service.Approve)
}

// RejectTimesheet sends a timesheet back with a reason.
// POST /api/admin/timesheets/{id}/reject
func (h *Handler) RejectTimesheet(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Service.Reject)
}

// UnapproveTimesheet reverts an approval.
// POST /api/admin/timesheets/{id}/unapprove
func (h *Handler) UnapproveTimesheet(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, h.Service.Unapprove)
}

func (h *Handler) review(
	w http.ResponseWriter,
	r *http.Request,
	apply func(context.Context, timesheet.ReviewRequest) (timesheet.Timesheet, error),
) {
	var req ReviewRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	ts, err := apply(r.Context(), timesheet.ReviewRequest{
		TimesheetID:     chi.URLParam(r, "id"),
		ActorID:         actorID(r),
		Reason:          req.Reason,
		ExpectedVersion: req.Version,
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toTimesheetDTO(ts))
}

// =============================================================================
// PAY PERIOD ENDPOINTS
// =============================================================================

// ListPayPeriods returns confirmed pay periods, newest first.
// GET /api/pay-periods
func (h *Handler) ListPayPeriods(w http.ResponseWriter, r *http.Request) {
	periods, err := h.Service.ListPayPeriods(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out := make([]PayPeriodDTO, len(periods))
	for i, p := range periods {
		out[i] = toPayPeriodDTO(p)
	}
	writeJSON(w, http.StatusOK, out)
}

// CurrentPayPeriod returns today's pay period and its confirmation state.
// GET /api/pay-periods/current
func (h *Handler) CurrentPayPeriod(w http.ResponseWriter, r *http.Request) {
	st, err := h.Service.CurrentPayPeriod(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPayPeriodStatusDTO(st))
}

// ConfirmPayPeriod locks a pay period. Confirming twice is not an error.
// POST /api/pay-periods/confirm
func (h *Handler) ConfirmPayPeriod(w http.ResponseWriter, r *http.Request) {
	var req ConfirmPayPeriodRequest
	if err := h.bind(w, r, &req); err != nil {
		h.badRequest(w, err)
		return
	}

	res, err := h.Service.ConfirmPayPeriod(r.Context(), timesheet.ConfirmRequest{
		Start:   req.StartDate,
		End:     req.EndDate,
		ActorID: actorID(r),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}

	status := http.StatusOK
	if res.Confirmed {
		status = http.StatusCreated
	}
	writeJSON(w, status, ConfirmResponse{
		PayPeriod:        toPayPeriodDTO(res.PayPeriod),
		Confirmed:        res.Confirmed,
		AlreadyConfirmed: res.AlreadyConfirmed,
		TimesheetsLocked: res.Locked,
	})
}

// =============================================================================
// CALENDAR ENDPOINTS
// =============================================================================

// ListHolidays returns company holidays for a year (default: this year).
// GET /api/calendar/holidays?year=2026
func (h *Handler) ListHolidays(w http.ResponseWriter, r *http.Request) {
	year := h.Service.Now().Year()
	if v := r.URL.Query().Get("year"); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil || y < 1900 || y > 9999 {
			h.fail(w, r, fmt.Errorf("%w: year %q", timesheet.ErrInvalidInput, v))
			return
		}
		year = y
	}

	holidays := h.Service.Holidays.Holidays(year)
	if holidays == nil {
		holidays = []calendar.Holiday{}
	}
	writeJSON(w, http.StatusOK, holidays)
}

// =============================================================================
// MIDDLEWARE & HELPERS
// =============================================================================

// RequireUser rejects requests that do not name a caller.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if actorID(r) == "" {
			writeError(w, http.StatusUnauthorized, KindUnauthenticated, "missing "+UserHeader+" header", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func actorID(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(UserHeader))
}

func parseStatuses(raw string) ([]timesheet.Status, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []timesheet.Status
	for _, part := range strings.Split(raw, ",") {
		st := timesheet.Status(strings.ToUpper(strings.TrimSpace(part)))
		if !st.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", timesheet.ErrInvalidInput, part)
		}
		out = append(out, st)
	}
	return out, nil
}

func (h *Handler) badRequest(w http.ResponseWriter, err error) {
	writeError(w, http.StatusBadRequest, KindBadRequest, formatBindingError(err), nil)
}

// fail maps a service error to its HTTP status and error body.
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.Logger.ErrorContext(r.Context(), "request failed",
			"method", r.Method,
			"path", r.URL.Path,
			"request_id", middleware.GetReqID(r.Context()),
			"error", err)
		writeError(w, status, timesheet.KindInternal, "internal error", nil)
		return
	}
	writeError(w, status, timesheet.Kind(err), err.Error(), errorDetails(err))
}

func statusFor(err error) int {
	var ve timesheet.ValidationErrors
	if errors.As(err, &ve) {
		status := 0
		for _, e := range ve {
			s := statusForKind(timesheet.Kind(e.Kind))
			if status != 0 && s != status {
				return http.StatusBadRequest
			}
			status = s
		}
		if status == 0 {
			return http.StatusBadRequest
		}
		return status
	}
	return statusForKind(timesheet.Kind(err))
}

func statusForKind(kind string) int {
	switch kind {
	case timesheet.KindInvalidInput, timesheet.KindInvalidHours, timesheet.KindEntryOutOfWeek,
		timesheet.KindDuplicateEntry, timesheet.KindInvalidPeriod, timesheet.KindUnknownHourType,
		timesheet.KindValidationFailed:
		return http.StatusBadRequest
	case timesheet.KindForbidden, timesheet.KindForbiddenHourType:
		return http.StatusForbidden
	case timesheet.KindNotFound:
		return http.StatusNotFound
	case timesheet.KindInvalidTransition, timesheet.KindPayPeriodLocked,
		timesheet.KindConcurrentModification, timesheet.KindTimesheetExists:
		return http.StatusConflict
	case timesheet.KindReimbursementAttachmentRequired, timesheet.KindInvalidAmount:
		return http.StatusUnprocessableEntity
	}
	return http.StatusInternalServerError
}

func errorDetails(err error) any {
	var ve timesheet.ValidationErrors
	if errors.As(err, &ve) {
		out := make([]FieldErrorDTO, len(ve))
		for i, e := range ve {
			out[i] = FieldErrorDTO{Kind: timesheet.Kind(e.Kind), Field: e.Field, Message: e.Message}
		}
		return out
	}
	var conflict *timesheet.ConflictError
	if errors.As(err, &conflict) {
		return map[string]any{"expected_version": conflict.Expected, "actual_version": conflict.Actual}
	}
	var locked *timesheet.LockedError
	if errors.As(err, &locked) {
		return PeriodDTO{StartDate: locked.Period.Start, EndDate: locked.Period.End}
	}
	var transition *timesheet.TransitionError
	if errors.As(err, &transition) {
		return map[string]string{"from": string(transition.From), "command": string(transition.Command)}
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, kind, message string, details any) {
	writeJSON(w, status, ErrorResponse{Kind: kind, Message: message, Details: details})
}

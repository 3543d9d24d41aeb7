/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the timesheet domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients
  - *Response: Complex response wrappers

TYPES:
  Users:
    UserDTO, RegisterUserRequest

  Timesheets:
    TimesheetDTO, TimesheetDetailDTO, CreateTimesheetRequest,
    UpdateDetailsRequest, ReplaceEntriesRequest, EntriesResponse

  Review:
    SubmitRequest, ReviewRequest

  Pay periods:
    PayPeriodDTO, ConfirmPayPeriodRequest, ConfirmResponse

NUMBERS:
  Hours and money are decimals. They are written as JSON strings ("7.5")
  and accepted as either strings or numbers.

VALIDATION:
  Request shapes are checked with validator struct tags before the service
  sees them. Domain rules (hour types, caps, receipts) stay in the service.
  Every request that changes a timesheet must carry the version the client
  last read; the service refuses a stale one.

SEE ALSO:
  - handlers.go: Uses these types
  - binding.go:  Formats decode and validation failures
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/williambergmann/timesheet/calendar"
	"github.com/williambergmann/timesheet/timesheet"
)

// =============================================================================
// USERS
// =============================================================================

// UserDTO represents a directory entry in API responses.
type UserDTO struct {
	ID          string `json:"id"`
	Email       string `json:"email,omitempty"`
	DisplayName string `json:"display_name,omitempty"`
	Role        string `json:"role"`
	SlackID     string `json:"slack_id,omitempty"`
}

// RegisterUserRequest creates or updates a user. The id is generated when
// empty.
type RegisterUserRequest struct {
	ID          string `json:"id" validate:"max=64"`
	Email       string `json:"email" validate:"omitempty,email"`
	DisplayName string `json:"display_name" validate:"max=100"`
	Role        string `json:"role" validate:"required"`
	SlackID     string `json:"slack_id" validate:"max=32"`
}

func toUserDTO(u timesheet.User) UserDTO {
	return UserDTO{
		ID:          u.ID,
		Email:       u.Email,
		DisplayName: u.DisplayName,
		Role:        string(u.Role),
		SlackID:     u.SlackID,
	}
}

// =============================================================================
// TIMESHEETS
// =============================================================================

// EntryDTO is one (date, hour type) line, in both directions.
type EntryDTO struct {
	Date     calendar.Date   `json:"entry_date"`
	HourType string          `json:"hour_type" validate:"required"`
	Hours    decimal.Decimal `json:"hours"`
}

// ReimbursementDTO is one expense line, in both directions.
type ReimbursementDTO struct {
	ID          string          `json:"id,omitempty"`
	ExpenseType string          `json:"expense_type" validate:"max=50"`
	Amount      decimal.Decimal `json:"amount"`
	ExpenseDate calendar.Date   `json:"expense_date"`
	Notes       string          `json:"notes" validate:"max=200"`
}

// TimesheetDTO represents a timesheet in API responses.
type TimesheetDTO struct {
	ID                  string             `json:"id"`
	UserID              string             `json:"user_id"`
	WeekStart           calendar.Date      `json:"week_start"`
	WeekEnd             calendar.Date      `json:"week_end"`
	Status              string             `json:"status"`
	Version             int64              `json:"version"`
	TravelFlag          bool               `json:"travel_flag"`
	ExpensesFlag        bool               `json:"expenses_flag"`
	ReimbursementNeeded bool               `json:"reimbursement_needed"`
	UserNotes           string             `json:"user_notes,omitempty"`
	AdminNotes          string             `json:"admin_notes,omitempty"`
	Entries             []EntryDTO         `json:"entries"`
	Reimbursements      []ReimbursementDTO `json:"reimbursement_items"`
	CreatedAt           string             `json:"created_at"`
	UpdatedAt           string             `json:"updated_at"`
	SubmittedAt         *string            `json:"submitted_at,omitempty"`
	ApprovedAt          *string            `json:"approved_at,omitempty"`
	ApprovedBy          string             `json:"approved_by,omitempty"`
}

// CreateTimesheetRequest opens a timesheet. UserID defaults to the caller;
// an admin may open one for someone else.
type CreateTimesheetRequest struct {
	UserID       string        `json:"user_id" validate:"max=64"`
	WeekStart    calendar.Date `json:"week_start"`
	AutoPopulate bool          `json:"auto_populate"`
}

// UpdateDetailsRequest changes only the fields that are present.
type UpdateDetailsRequest struct {
	TravelFlag          *bool               `json:"travel_flag"`
	ExpensesFlag        *bool               `json:"expenses_flag"`
	ReimbursementNeeded *bool               `json:"reimbursement_needed"`
	UserNotes           *string             `json:"user_notes" validate:"omitempty,max=255"`
	Reimbursements      *[]ReimbursementDTO `json:"reimbursement_items" validate:"omitempty,dive"`
	Version             int64               `json:"version" validate:"required,min=1"`
}

// ReplaceEntriesRequest replaces every entry of a timesheet.
type ReplaceEntriesRequest struct {
	Entries []EntryDTO `json:"entries" validate:"dive"`
	Version int64      `json:"version" validate:"required,min=1"`
}

// TotalsDTO carries derived sums.
type TotalsDTO struct {
	Total              decimal.Decimal            `json:"total"`
	Billable           decimal.Decimal            `json:"billable"`
	PayableNonBillable decimal.Decimal            `json:"payable_non_billable"`
	Payable            decimal.Decimal            `json:"payable"`
	Unpaid             decimal.Decimal            `json:"unpaid"`
	ByDate             map[string]decimal.Decimal `json:"by_date"`
	ByType             map[string]decimal.Decimal `json:"by_type"`
}

// WarningDTO reports an adjustment made while saving entries.
type WarningDTO struct {
	Kind      string           `json:"kind"`
	Code      string           `json:"code,omitempty"`
	Date      calendar.Date    `json:"date"`
	HourType  string           `json:"hour_type,omitempty"`
	Requested *decimal.Decimal `json:"requested,omitempty"`
	Applied   *decimal.Decimal `json:"applied,omitempty"`
	Message   string           `json:"message"`
}

// EntriesResponse is returned by PUT /timesheets/{id}/entries.
type EntriesResponse struct {
	Timesheet TimesheetDTO `json:"timesheet"`
	Totals    TotalsDTO    `json:"totals"`
	Warnings  []WarningDTO `json:"warnings"`
}

// AttachmentDTO represents receipt metadata.
type AttachmentDTO struct {
	ID                string `json:"id"`
	TimesheetID       string `json:"timesheet_id"`
	Filename          string `json:"filename"`
	ContentType       string `json:"content_type,omitempty"`
	SizeBytes         int64  `json:"size_bytes"`
	ReimbursementType string `json:"reimbursement_type,omitempty"`
	SyncStatus        string `json:"sync_status"`
	UploadedAt        string `json:"uploaded_at"`
}

// AttachmentRequest records receipt metadata. File storage is elsewhere.
type AttachmentRequest struct {
	Filename          string `json:"filename" validate:"required,max=255"`
	ContentType       string `json:"content_type" validate:"max=100"`
	SizeBytes         int64  `json:"size_bytes" validate:"min=0"`
	ReimbursementType string `json:"reimbursement_type" validate:"max=50"`
}

// NoteDTO represents a comment.
type NoteDTO struct {
	ID          string `json:"id"`
	TimesheetID string `json:"timesheet_id"`
	AuthorID    string `json:"author_id"`
	Content     string `json:"content"`
	CreatedAt   string `json:"created_at"`
}

// NoteRequest appends a comment.
type NoteRequest struct {
	Content string `json:"content" validate:"required,max=2000"`
}

// ReimbursementReportDTO is the advisory receipt check.
type ReimbursementReportDTO struct {
	Valid                  bool     `json:"valid"`
	MissingAttachmentTypes []string `json:"missing_attachment_types"`
	InvalidItems           []string `json:"invalid_items"`
}

// TimesheetDetailDTO is a timesheet with everything derived for display.
type TimesheetDetailDTO struct {
	Timesheet          TimesheetDTO           `json:"timesheet"`
	Totals             TotalsDTO              `json:"totals"`
	Attachments        []AttachmentDTO        `json:"attachments"`
	Notes              []NoteDTO              `json:"notes"`
	Reimbursement      ReimbursementReportDTO `json:"reimbursement"`
	ReimbursementTotal string                 `json:"reimbursement_total"`
	PayPeriodConfirmed bool                   `json:"pay_period_confirmed"`
	LockedBy           *PeriodDTO             `json:"locked_by,omitempty"`
	Actions            []string               `json:"actions"`
}

// =============================================================================
// REVIEW
// =============================================================================

// SubmitRequest moves a timesheet to review.
type SubmitRequest struct {
	AcknowledgeMissingAttachments bool  `json:"acknowledge_missing_attachments"`
	Version                       int64 `json:"version" validate:"required,min=1"`
}

// ReviewRequest approves, rejects or unapproves. Reason is used by reject.
type ReviewRequest struct {
	Reason  string `json:"reason" validate:"max=500"`
	Version int64  `json:"version" validate:"required,min=1"`
}

// =============================================================================
// PAY PERIODS
// =============================================================================

// PeriodDTO is an inclusive date range.
type PeriodDTO struct {
	StartDate calendar.Date `json:"start_date"`
	EndDate   calendar.Date `json:"end_date"`
}

// PayPeriodDTO represents a pay period and its confirmation.
type PayPeriodDTO struct {
	ID          string        `json:"id,omitempty"`
	StartDate   calendar.Date `json:"start_date"`
	EndDate     calendar.Date `json:"end_date"`
	Confirmed   bool          `json:"confirmed"`
	ConfirmedAt *string       `json:"confirmed_at,omitempty"`
	ConfirmedBy string        `json:"confirmed_by,omitempty"`
}

// ConfirmPayPeriodRequest confirms the pay period [start_date, end_date].
type ConfirmPayPeriodRequest struct {
	StartDate calendar.Date `json:"start_date"`
	EndDate   calendar.Date `json:"end_date"`
}

// ConfirmResponse reports a confirmation.
type ConfirmResponse struct {
	PayPeriod        PayPeriodDTO `json:"pay_period"`
	Confirmed        bool         `json:"confirmed"`
	AlreadyConfirmed bool         `json:"already_confirmed"`
	TimesheetsLocked int          `json:"timesheets_locked"`
}

// =============================================================================
// ERRORS
// =============================================================================

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
	Details any    `json:"details,omitempty"`
}

// FieldErrorDTO is one item of a validation failure.
type FieldErrorDTO struct {
	Kind    string `json:"kind"`
	Field   string `json:"field,omitempty"`
	Message string `json:"message"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func toTimesheetDTO(ts timesheet.Timesheet) TimesheetDTO {
	entries := make([]EntryDTO, len(ts.Entries))
	for i, e := range ts.Entries {
		entries[i] = EntryDTO{Date: e.Date, HourType: string(e.HourType), Hours: e.Hours}
	}
	items := make([]ReimbursementDTO, len(ts.Reimbursements))
	for i, r := range ts.Reimbursements {
		items[i] = ReimbursementDTO{
			ID:          r.ID,
			ExpenseType: r.ExpenseType,
			Amount:      r.Amount,
			ExpenseDate: r.ExpenseDate,
			Notes:       r.Notes,
		}
	}
	return TimesheetDTO{
		ID:                  ts.ID,
		UserID:              ts.UserID,
		WeekStart:           ts.WeekStart,
		WeekEnd:             ts.WeekEnd(),
		Status:              string(ts.Status),
		Version:             ts.Version,
		TravelFlag:          ts.TravelFlag,
		ExpensesFlag:        ts.ExpensesFlag,
		ReimbursementNeeded: ts.ReimbursementNeeded,
		UserNotes:           ts.UserNotes,
		AdminNotes:          ts.AdminNotes,
		Entries:             entries,
		Reimbursements:      items,
		CreatedAt:           formatTime(ts.CreatedAt),
		UpdatedAt:           formatTime(ts.UpdatedAt),
		SubmittedAt:         formatTimePtr(ts.SubmittedAt),
		ApprovedAt:          formatTimePtr(ts.ApprovedAt),
		ApprovedBy:          ts.ApprovedBy,
	}
}

func toTimesheetDTOs(sheets []timesheet.Timesheet) []TimesheetDTO {
	out := make([]TimesheetDTO, len(sheets))
	for i, ts := range sheets {
		out[i] = toTimesheetDTO(ts)
	}
	return out
}

func toTotalsDTO(t timesheet.Totals) TotalsDTO {
	byType := make(map[string]decimal.Decimal, len(t.ByType))
	for h, v := range t.ByType {
		byType[string(h)] = v
	}
	byDate := t.ByDate
	if byDate == nil {
		byDate = map[string]decimal.Decimal{}
	}
	return TotalsDTO{
		Total:              t.Total,
		Billable:           t.Billable,
		PayableNonBillable: t.PayableNonBillable,
		Payable:            t.Payable,
		Unpaid:             t.Unpaid,
		ByDate:             byDate,
		ByType:             byType,
	}
}

func toWarningDTOs(ws []timesheet.Warning) []WarningDTO {
	out := make([]WarningDTO, len(ws))
	for i, w := range ws {
		out[i] = WarningDTO{
			Kind:     string(w.Kind),
			Code:     w.Code,
			Date:     w.Date,
			HourType: string(w.HourType),
			Message:  w.Message,
		}
		if w.Kind == timesheet.WarningClamped {
			requested, applied := w.Requested, w.Applied
			out[i].Requested = &requested
			out[i].Applied = &applied
		}
	}
	return out
}

func toAttachmentDTO(a timesheet.Attachment) AttachmentDTO {
	return AttachmentDTO{
		ID:                a.ID,
		TimesheetID:       a.TimesheetID,
		Filename:          a.Filename,
		ContentType:       a.ContentType,
		SizeBytes:         a.SizeBytes,
		ReimbursementType: a.ReimbursementType,
		SyncStatus:        string(a.SyncStatus),
		UploadedAt:        formatTime(a.UploadedAt),
	}
}

func toNoteDTO(n timesheet.Note) NoteDTO {
	return NoteDTO{
		ID:          n.ID,
		TimesheetID: n.TimesheetID,
		AuthorID:    n.AuthorID,
		Content:     n.Content,
		CreatedAt:   formatTime(n.CreatedAt),
	}
}

func toReportDTO(r timesheet.ReimbursementReport) ReimbursementReportDTO {
	missing := r.MissingAttachmentTypes
	if missing == nil {
		missing = []string{}
	}
	invalid := r.InvalidItems
	if invalid == nil {
		invalid = []string{}
	}
	return ReimbursementReportDTO{Valid: r.Valid, MissingAttachmentTypes: missing, InvalidItems: invalid}
}

func toDetailDTO(v timesheet.TimesheetView) TimesheetDetailDTO {
	attachments := make([]AttachmentDTO, len(v.Attachments))
	for i, a := range v.Attachments {
		attachments[i] = toAttachmentDTO(a)
	}
	notes := make([]NoteDTO, len(v.Notes))
	for i, n := range v.Notes {
		notes[i] = toNoteDTO(n)
	}
	actions := make([]string, len(v.Actions))
	for i, c := range v.Actions {
		actions[i] = string(c)
	}
	dto := TimesheetDetailDTO{
		Timesheet:          toTimesheetDTO(v.Timesheet),
		Totals:             toTotalsDTO(v.Totals),
		Attachments:        attachments,
		Notes:              notes,
		Reimbursement:      toReportDTO(v.Reimbursement),
		ReimbursementTotal: v.ReimbursementTotal,
		PayPeriodConfirmed: v.PayPeriodConfirmed(),
		Actions:            actions,
	}
	if v.LockedBy != nil {
		dto.LockedBy = &PeriodDTO{StartDate: v.LockedBy.Start, EndDate: v.LockedBy.End}
	}
	return dto
}

func toPayPeriodDTO(p timesheet.PayPeriod) PayPeriodDTO {
	return PayPeriodDTO{
		ID:          p.ID,
		StartDate:   p.Period.Start,
		EndDate:     p.Period.End,
		Confirmed:   true,
		ConfirmedAt: formatTimePtr(&p.ConfirmedAt),
		ConfirmedBy: p.ConfirmedBy,
	}
}

func toPayPeriodStatusDTO(st timesheet.PayPeriodStatus) PayPeriodDTO {
	return PayPeriodDTO{
		StartDate:   st.Period.Start,
		EndDate:     st.Period.End,
		Confirmed:   st.Confirmed,
		ConfirmedAt: formatTimePtr(st.ConfirmedAt),
		ConfirmedBy: st.ConfirmedBy,
	}
}

func toEntryInputs(in []EntryDTO) []timesheet.EntryInput {
	out := make([]timesheet.EntryInput, len(in))
	for i, e := range in {
		out[i] = timesheet.EntryInput{Date: e.Date, HourType: e.HourType, Hours: e.Hours}
	}
	return out
}

func toReimbursementInputs(in []ReimbursementDTO) []timesheet.ReimbursementInput {
	out := make([]timesheet.ReimbursementInput, len(in))
	for i, r := range in {
		out[i] = timesheet.ReimbursementInput{
			ID:          r.ID,
			ExpenseType: r.ExpenseType,
			Amount:      r.Amount,
			ExpenseDate: r.ExpenseDate,
			Notes:       r.Notes,
		}
	}
	return out
}

package timesheet

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/shopspring/decimal"
	"github.com/williambergmann/timesheet/calendar"
)

// MaxReimbursementAmount is the largest single expense line accepted.
var MaxReimbursementAmount = decimal.NewFromInt(10000)

// Common expense types. Any non-empty type is accepted.
const (
	ExpenseCar    = "Car"
	ExpenseFlight = "Flight"
	ExpenseFood   = "Food"
	ExpenseHotel  = "Hotel"
	ExpenseGas    = "Gas"
	ExpenseOther  = "Other"
)

// ReimbursementItem is one itemized expense on a timesheet.
type ReimbursementItem struct {
	ID          string
	ExpenseType string
	Amount      decimal.Decimal
	ExpenseDate calendar.Date
	Notes       string
}

// Typed reports whether the item carries an expense type.
func (r ReimbursementItem) Typed() bool {
	return strings.TrimSpace(r.ExpenseType) != ""
}

// =============================================================================
// LEDGER CHECKS
// =============================================================================

// ReimbursementReport is the advisory result of checking items against
// the timesheet's attachments.
type ReimbursementReport struct {
	Valid                  bool
	MissingAttachmentTypes []string
	InvalidItems           []string // item IDs
}

// ValidateReimbursements checks typed items for a positive amount and a
// matching attachment tag. Tags compare case-insensitively.
func ValidateReimbursements(items []ReimbursementItem, attachments []Attachment) ReimbursementReport {
	tagged := make(map[string]bool)
	for _, a := range attachments {
		if tag := normalizeTag(a.ReimbursementType); tag != "" {
			tagged[tag] = true
		}
	}

	report := ReimbursementReport{}
	missing := make(map[string]string)
	for _, item := range items {
		if !item.Typed() {
			continue
		}
		if !item.Amount.IsPositive() {
			report.InvalidItems = append(report.InvalidItems, item.ID)
		}
		tag := normalizeTag(item.ExpenseType)
		if !tagged[tag] {
			if _, seen := missing[tag]; !seen {
				missing[tag] = strings.TrimSpace(item.ExpenseType)
			}
		}
	}
	for _, name := range missing {
		report.MissingAttachmentTypes = append(report.MissingAttachmentTypes, name)
	}
	sort.Strings(report.MissingAttachmentTypes)

	report.Valid = len(report.InvalidItems) == 0 && len(report.MissingAttachmentTypes) == 0
	return report
}

// Errors converts the report into validation errors. Missing attachments
// are skipped when acknowledged.
func (r ReimbursementReport) Errors(acknowledgeMissing bool) ValidationErrors {
	var errs ValidationErrors
	for _, id := range r.InvalidItems {
		errs = append(errs, ValidationError{Kind: ErrInvalidAmount, Field: "reimbursement_items[" + id + "].amount",
			Message: "a typed expense must have an amount greater than zero"})
	}
	if !acknowledgeMissing {
		for _, t := range r.MissingAttachmentTypes {
			errs = append(errs, ValidationError{Kind: ErrReimbursementAttachmentRequired, Field: "attachments",
				Message: fmt.Sprintf("no attachment tagged %q", t)})
		}
	}
	return errs
}

// ReimbursementTotal sums every item amount. It is never stored.
func ReimbursementTotal(items []ReimbursementItem) decimal.Decimal {
	total := decimal.Zero
	for _, item := range items {
		total = total.Add(item.Amount)
	}
	return total
}

// ReimbursementInput is an unvalidated expense line from a caller.
type ReimbursementInput struct {
	ID          string
	ExpenseType string
	Amount      decimal.Decimal
	ExpenseDate calendar.Date
	Notes       string
}

// NormalizeReimbursements checks draft-time bounds and drops untyped
// zero-amount lines. A typed zero amount is kept: it only blocks submission.
// newID assigns IDs to lines that have none.
func NormalizeReimbursements(inputs []ReimbursementInput, newID func() string) ([]ReimbursementItem, error) {
	var errs ValidationErrors
	items := make([]ReimbursementItem, 0, len(inputs))
	for i, in := range inputs {
		field := fmt.Sprintf("reimbursement_items[%d]", i)
		typ := strings.TrimSpace(in.ExpenseType)
		if typ == "" && in.Amount.IsZero() {
			continue
		}
		if in.Amount.IsNegative() || in.Amount.GreaterThan(MaxReimbursementAmount) {
			errs = append(errs, ValidationError{Kind: ErrInvalidAmount, Field: field + ".amount",
				Message: fmt.Sprintf("amount must be between 0 and %s, got %s", MaxReimbursementAmount, in.Amount)})
		}
		if utf8.RuneCountInString(in.Notes) > MaxItemNotesLen {
			errs = append(errs, ValidationError{Kind: ErrInvalidInput, Field: field + ".notes",
				Message: fmt.Sprintf("notes must be at most %d characters", MaxItemNotesLen)})
		}
		id := in.ID
		if id == "" {
			id = newID()
		}
		items = append(items, ReimbursementItem{
			ID:          id,
			ExpenseType: typ,
			Amount:      in.Amount.Round(2),
			ExpenseDate: in.ExpenseDate,
			Notes:       in.Notes,
		})
	}
	if len(errs) > 0 {
		return nil, errs
	}
	return items, nil
}

func normalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

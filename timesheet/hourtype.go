package timesheet

import (
	"fmt"
	"strings"
)

// =============================================================================
// HOUR TYPES - Closed registry of billing categories
// =============================================================================

// HourType is a category of worked or paid time.
type HourType string

const (
	HourField    HourType = "Field"
	HourInternal HourType = "Internal"
	HourTraining HourType = "Training"
	HourPTO      HourType = "PTO"
	HourUnpaid   HourType = "Unpaid"
	HourHoliday  HourType = "Holiday"
)

// Classification is how an hour type is treated for payroll and billing.
type Classification string

const (
	ClassBillable           Classification = "billable"
	ClassPayableNonBillable Classification = "payable_nonbillable"
	ClassUnpaid             Classification = "unpaid"
)

var classifications = map[HourType]Classification{
	HourField:    ClassBillable,
	HourInternal: ClassPayableNonBillable,
	HourTraining: ClassPayableNonBillable,
	HourPTO:      ClassPayableNonBillable,
	HourHoliday:  ClassPayableNonBillable,
	HourUnpaid:   ClassUnpaid,
}

// hourTypeOrder is the display order.
var hourTypeOrder = []HourType{HourField, HourInternal, HourTraining, HourPTO, HourUnpaid, HourHoliday}

// AllHourTypes returns every known hour type in display order.
func AllHourTypes() []HourType {
	out := make([]HourType, len(hourTypeOrder))
	copy(out, hourTypeOrder)
	return out
}

// Valid reports whether h is in the registry.
func (h HourType) Valid() bool {
	_, ok := classifications[h]
	return ok
}

// Classify returns the classification of h. Unknown types fail.
func Classify(h HourType) (Classification, error) {
	c, ok := classifications[h]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownHourType, h)
	}
	return c, nil
}

// ParseHourType resolves a wire name to an HourType, case-insensitively.
func ParseHourType(s string) (HourType, error) {
	for _, h := range hourTypeOrder {
		if strings.EqualFold(string(h), strings.TrimSpace(s)) {
			return h, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownHourType, s)
}

// =============================================================================
// ROLES
// =============================================================================

// Role is a user's permission tier.
type Role string

const (
	RoleTrainee Role = "trainee"
	RoleStaff   Role = "staff"
	RoleSupport Role = "support"
	RoleAdmin   Role = "admin"
)

var roleAliases = map[string]Role{
	"trainee":  RoleTrainee,
	"staff":    RoleStaff,
	"internal": RoleStaff,
	"engineer": RoleStaff,
	"support":  RoleSupport,
	"approver": RoleSupport,
	"admin":    RoleAdmin,
}

// ParseRole resolves a role name or alias.
func ParseRole(s string) (Role, error) {
	r, ok := roleAliases[strings.ToLower(strings.TrimSpace(s))]
	if !ok {
		return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
	}
	return r, nil
}

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleTrainee, RoleStaff, RoleSupport, RoleAdmin:
		return true
	}
	return false
}

// IsApprover reports whether r may approve and reject timesheets.
func (r Role) IsApprover() bool { return r == RoleSupport || r == RoleAdmin }

// IsAdmin reports whether r may unapprove timesheets and confirm pay periods.
func (r Role) IsAdmin() bool { return r == RoleAdmin }

// AllowedTypes returns the hour types r may log.
func AllowedTypes(r Role) []HourType {
	if r == RoleTrainee {
		return []HourType{HourTraining}
	}
	if !r.Valid() {
		return nil
	}
	return AllHourTypes()
}

// CheckAllowed fails with ErrForbiddenHourType when r may not log h.
func CheckAllowed(r Role, h HourType) error {
	if !h.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownHourType, h)
	}
	for _, allowed := range AllowedTypes(r) {
		if allowed == h {
			return nil
		}
	}
	return fmt.Errorf("%w: role %s cannot log %s", ErrForbiddenHourType, r, h)
}

// DefaultHourType is the type auto-populated entries use for r.
func DefaultHourType(r Role) HourType {
	if r == RoleTrainee {
		return HourTraining
	}
	return HourField
}

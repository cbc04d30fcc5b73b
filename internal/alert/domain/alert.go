package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrAlertNotFound is returned when the alert does not exist or belongs to another org.
	ErrAlertNotFound = errors.New("alert not found")
	// ErrInvalidAlert is returned when a new alert fails validation.
	ErrInvalidAlert = errors.New("invalid alert")
)

// Type classifies what raised the alert.
type Type string

const (
	TypeEnrollmentAttempt Type = "enrollment_attempt"
	TypeOverduePayment    Type = "overdue_payment"
	TypeTierChange        Type = "tier_change"
)

// Valid reports whether t is a known alert type.
func (t Type) Valid() bool {
	switch t {
	case TypeEnrollmentAttempt, TypeOverduePayment, TypeTierChange:
		return true
	}
	return false
}

// Severity is the urgency of an alert.
type Severity string

const (
	SeverityLow    Severity = "low"
	SeverityMedium Severity = "medium"
	SeverityHigh   Severity = "high"
)

// Valid reports whether s is a known severity.
func (s Severity) Valid() bool {
	switch s {
	case SeverityLow, SeverityMedium, SeverityHigh:
		return true
	}
	return false
}

// Alert is an append-only notice about a customer. The resolved fields are set at most once.
type Alert struct {
	ID         string     `db:"id" json:"id"`
	CustomerID string     `db:"customer_id" json:"customer_id"`
	OrgID      string     `db:"org_id" json:"org_id"`
	Type       Type       `db:"type" json:"type"`
	Message    string     `db:"message" json:"message"`
	Severity   Severity   `db:"severity" json:"severity"`
	Resolved   bool       `db:"resolved" json:"resolved"`
	ResolvedBy *string    `db:"resolved_by" json:"resolved_by,omitempty"`
	ResolvedAt *time.Time `db:"resolved_at" json:"resolved_at,omitempty"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
}

// Validate checks a new alert.
func (a *Alert) Validate() error {
	a.Message = strings.TrimSpace(a.Message)
	switch {
	case a.CustomerID == "":
		return fmt.Errorf("%w: customer_id is required", ErrInvalidAlert)
	case a.OrgID == "":
		return fmt.Errorf("%w: org_id is required", ErrInvalidAlert)
	case !a.Type.Valid():
		return fmt.Errorf("%w: unknown type %q", ErrInvalidAlert, a.Type)
	case !a.Severity.Valid():
		return fmt.Errorf("%w: unknown severity %q", ErrInvalidAlert, a.Severity)
	}
	return nil
}

// Filter narrows an alert listing. A nil field matches everything.
type Filter struct {
	OrgID    *string
	Resolved *bool
}

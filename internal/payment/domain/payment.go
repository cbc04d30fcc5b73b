package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrPaymentNotFound is returned when the payment does not exist or belongs to another org.
	ErrPaymentNotFound = errors.New("payment not found")
	// ErrInvalidPayment is returned when a new payment fails validation.
	ErrInvalidPayment = errors.New("invalid payment")
	// ErrInvalidStatus is returned for an unknown status string.
	ErrInvalidStatus = errors.New("invalid payment status")
	// ErrInvalidTransition is returned when the status change is not allowed.
	ErrInvalidTransition = errors.New("invalid payment status transition")
)

// Status is the lifecycle state of a payment record.
type Status string

const (
	StatusPending   Status = "pending"
	StatusPaid      Status = "paid"
	StatusOverdue   Status = "overdue"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusPaid, StatusOverdue, StatusCancelled:
		return true
	}
	return false
}

// ParseStatus parses s case-insensitively.
func ParseStatus(s string) (Status, error) {
	st := Status(strings.ToLower(strings.TrimSpace(s)))
	if !st.Valid() {
		return "", ErrInvalidStatus
	}
	return st, nil
}

var transitions = map[Status][]Status{
	StatusPending: {StatusPaid, StatusOverdue, StatusCancelled},
	StatusOverdue: {StatusPaid, StatusCancelled},
}

// CanTransitionTo reports whether a record in status s may move to next.
// Paid and cancelled are terminal.
func (s Status) CanTransitionTo(next Status) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Record is an internal record of an amount owed by a customer. AmountCents never changes after creation.
type Record struct {
	ID          string     `db:"id" json:"id"`
	CustomerID  string     `db:"customer_id" json:"customer_id"`
	OrgID       string     `db:"org_id" json:"org_id"`
	AmountCents int64      `db:"amount_cents" json:"amount_cents"`
	DueDate     time.Time  `db:"due_date" json:"due_date"`
	PaidDate    *time.Time `db:"paid_date" json:"paid_date,omitempty"`
	Status      Status     `db:"status" json:"status"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// Validate checks a new record.
func (r *Record) Validate() error {
	switch {
	case r.CustomerID == "":
		return fmt.Errorf("%w: customer_id is required", ErrInvalidPayment)
	case r.OrgID == "":
		return fmt.Errorf("%w: org_id is required", ErrInvalidPayment)
	case r.AmountCents <= 0:
		return fmt.Errorf("%w: amount_cents must be positive", ErrInvalidPayment)
	case r.DueDate.IsZero():
		return fmt.Errorf("%w: due_date is required", ErrInvalidPayment)
	}
	if r.Status == "" {
		r.Status = StatusPending
	}
	if !r.Status.Valid() {
		return ErrInvalidStatus
	}
	return nil
}

// Filter narrows a payment listing. Empty fields match everything.
type Filter struct {
	OrgID      string
	CustomerID string
	Status     Status
}

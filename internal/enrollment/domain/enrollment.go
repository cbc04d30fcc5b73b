package domain

import (
	"errors"
	"fmt"
	"time"

	customerdomain "carescope/backend/internal/customer/domain"
)

// ErrInvalidEnrollment is returned when an enrollment request fails validation.
var ErrInvalidEnrollment = errors.New("invalid enrollment")

// Enrollment is a customer's admission to an org's service.
type Enrollment struct {
	ID              string    `db:"id" json:"id"`
	CustomerID      string    `db:"customer_id" json:"customer_id"`
	OrgID           string    `db:"org_id" json:"org_id"`
	StartDate       time.Time `db:"start_date" json:"start_date"`
	MonthlyFeeCents int64     `db:"monthly_fee_cents" json:"monthly_fee_cents"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}

// Validate checks a new enrollment.
func (e *Enrollment) Validate() error {
	switch {
	case e.CustomerID == "":
		return fmt.Errorf("%w: customer_id is required", ErrInvalidEnrollment)
	case e.OrgID == "":
		return fmt.Errorf("%w: org_id is required", ErrInvalidEnrollment)
	case e.StartDate.IsZero():
		return fmt.Errorf("%w: start_date is required", ErrInvalidEnrollment)
	case e.MonthlyFeeCents < 0:
		return fmt.Errorf("%w: monthly_fee_cents must not be negative", ErrInvalidEnrollment)
	}
	return nil
}

// Rejection is returned as an error when the gate refuses an enrollment. The alert it
// recorded is committed even though no enrollment is written.
type Rejection struct {
	RiskTier         customerdomain.RiskTier `json:"risk_tier"`
	OutstandingCents int64                   `json:"outstanding_cents"`
	Blacklisted      bool                    `json:"blacklisted"`
	AlertID          string                  `json:"alert_id"`
}

func (r *Rejection) Error() string {
	if r.Blacklisted {
		return "enrollment rejected: customer is blacklisted"
	}
	return fmt.Sprintf("enrollment rejected: customer risk tier is %s with %d cents outstanding", r.RiskTier, r.OutstandingCents)
}

// Refuse reports whether c may not be enrolled.
func Refuse(c *customerdomain.Customer) bool {
	return c.Blacklisted || c.RiskTier == customerdomain.TierHigh
}

package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrCustomerNotFound is returned when the customer does not exist or belongs to another org.
	ErrCustomerNotFound = errors.New("customer not found")
	// ErrInvalidCustomer is returned when a customer fails validation.
	ErrInvalidCustomer = errors.New("invalid customer")
	// ErrDerivedField is returned when a profile update names a risk-derived field.
	ErrDerivedField = errors.New("risk_tier, outstanding_cents and blacklisted cannot be set through a profile update")
)

// RiskTier is the derived payment-reliability class of a customer.
type RiskTier string

const (
	TierLow    RiskTier = "low"
	TierMedium RiskTier = "medium"
	TierHigh   RiskTier = "high"
)

// Valid reports whether t is a known tier.
func (t RiskTier) Valid() bool {
	switch t {
	case TierLow, TierMedium, TierHigh:
		return true
	}
	return false
}

// Customer is a client of an org whose payment risk is tracked. RiskTier and
// OutstandingCents are written only by the risk engine.
type Customer struct {
	ID               string    `db:"id" json:"id"`
	OrgID            string    `db:"org_id" json:"org_id"`
	Name             string    `db:"name" json:"name"`
	Email            string    `db:"email" json:"email"`
	Phone            string    `db:"phone" json:"phone"`
	RiskTier         RiskTier  `db:"risk_tier" json:"risk_tier"`
	OutstandingCents int64     `db:"outstanding_cents" json:"outstanding_cents"`
	Blacklisted      bool      `db:"blacklisted" json:"blacklisted"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// Validate normalizes and checks the profile fields of a new customer.
func (c *Customer) Validate() error {
	c.Name = strings.TrimSpace(c.Name)
	c.Email = strings.ToLower(strings.TrimSpace(c.Email))
	c.Phone = strings.TrimSpace(c.Phone)
	if c.OrgID == "" {
		return fmt.Errorf("%w: org_id is required", ErrInvalidCustomer)
	}
	if c.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidCustomer)
	}
	if c.RiskTier == "" {
		c.RiskTier = TierLow
	}
	return nil
}

// ProfileUpdate changes contact fields. It has no way to express tier, balance or blacklist.
type ProfileUpdate struct {
	Name  *string `json:"name"`
	Email *string `json:"email"`
	Phone *string `json:"phone"`
}

// Normalize trims the set fields and rejects an empty name.
func (p *ProfileUpdate) Normalize() error {
	if p.Name != nil {
		n := strings.TrimSpace(*p.Name)
		if n == "" {
			return fmt.Errorf("%w: name cannot be empty", ErrInvalidCustomer)
		}
		p.Name = &n
	}
	if p.Email != nil {
		e := strings.ToLower(strings.TrimSpace(*p.Email))
		p.Email = &e
	}
	if p.Phone != nil {
		ph := strings.TrimSpace(*p.Phone)
		p.Phone = &ph
	}
	return nil
}

// DerivedFields are the JSON keys a profile update must not carry.
var DerivedFields = []string{"risk_tier", "outstanding_cents", "blacklisted"}

// Recommendation is the cross-org lookup verdict for a prospective customer.
type Recommendation string

const (
	RecommendReject  Recommendation = "REJECT"
	RecommendCaution Recommendation = "CAUTION"
	RecommendApprove Recommendation = "APPROVE"
)

// Recommend returns REJECT for blacklisted or high-risk customers, CAUTION for medium, else APPROVE.
func Recommend(c *Customer) Recommendation {
	switch {
	case c.Blacklisted || c.RiskTier == TierHigh:
		return RecommendReject
	case c.RiskTier == TierMedium:
		return RecommendCaution
	default:
		return RecommendApprove
	}
}

// TierCounts is the number of customers per tier.
type TierCounts struct {
	Low         int64 `db:"low" json:"low"`
	Medium      int64 `db:"medium" json:"medium"`
	High        int64 `db:"high" json:"high"`
	Blacklisted int64 `db:"blacklisted" json:"blacklisted"`
	Total       int64 `db:"total" json:"total"`
}

// ParseProfileUpdate decodes a JSON profile update. Bodies naming a derived field are rejected
// with ErrDerivedField rather than silently ignored.
func ParseProfileUpdate(body []byte) (ProfileUpdate, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		return ProfileUpdate{}, fmt.Errorf("%w: %v", ErrInvalidCustomer, err)
	}
	for _, k := range DerivedFields {
		if _, ok := raw[k]; ok {
			return ProfileUpdate{}, ErrDerivedField
		}
	}
	var p ProfileUpdate
	if err := json.Unmarshal(body, &p); err != nil {
		return ProfileUpdate{}, fmt.Errorf("%w: %v", ErrInvalidCustomer, err)
	}
	return p, p.Normalize()
}

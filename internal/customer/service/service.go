// Package service manages customer profiles and exposes their risk state.
package service

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"

	"carescope/backend/internal/audit"
	"carescope/backend/internal/customer/domain"
	"carescope/backend/internal/risk"
)

// Store is the customer persistence the service needs.
type Store interface {
	GetByID(ctx context.Context, id string) (*domain.Customer, error)
	List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Customer, error)
	FindByEmail(ctx context.Context, email string) ([]*domain.Customer, error)
	Create(ctx context.Context, c *domain.Customer) error
	UpdateProfile(ctx context.Context, id string, p domain.ProfileUpdate) (*domain.Customer, error)
	SetBlacklisted(ctx context.Context, id string, blacklisted bool) (*domain.Customer, error)
	CountByTier(ctx context.Context, orgID string) (domain.TierCounts, error)
}

// RiskEngine recomputes a customer's risk.
type RiskEngine interface {
	Recompute(ctx context.Context, customerID string) (*risk.Result, error)
	Publish(ctx context.Context, res *risk.Result)
}

// CreateInput describes a new customer.
type CreateInput struct {
	OrgID string
	Name  string
	Email string
	Phone string
}

// Match is one customer found by a cross-org lookup.
type Match struct {
	CustomerID       string                `json:"customer_id"`
	OrgID            string                `json:"org_id"`
	Name             string                `json:"name"`
	RiskTier         domain.RiskTier       `json:"risk_tier"`
	OutstandingCents int64                 `json:"outstanding_cents"`
	Blacklisted      bool                  `json:"blacklisted"`
	Recommendation   domain.Recommendation `json:"recommendation"`
}

// LookupResult aggregates every match for an email. Recommendation is the strictest of the matches,
// APPROVE when there are none.
type LookupResult struct {
	Email          string                `json:"email"`
	Recommendation domain.Recommendation `json:"recommendation"`
	Matches        []Match               `json:"matches"`
}

// Service manages customers.
type Service struct {
	customers Store
	risk      RiskEngine
	audit     audit.AuditLogger
}

// NewService returns a Service. auditLogger may be nil.
func NewService(customers Store, engine RiskEngine, auditLogger audit.AuditLogger) *Service {
	if auditLogger == nil {
		auditLogger = audit.Nop{}
	}
	return &Service{customers: customers, risk: engine, audit: auditLogger}
}

// Create adds a customer with tier low and no balance.
func (s *Service) Create(ctx context.Context, in CreateInput) (*domain.Customer, error) {
	now := time.Now().UTC()
	c := &domain.Customer{
		ID:        uuid.New().String(),
		OrgID:     in.OrgID,
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		RiskTier:  domain.TierLow,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.customers.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Get returns the customer. When orgID is non-empty the customer must belong to it.
func (s *Service) Get(ctx context.Context, orgID, id string) (*domain.Customer, error) {
	c, err := s.customers.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if c == nil || (orgID != "" && c.OrgID != orgID) {
		return nil, domain.ErrCustomerNotFound
	}
	return c, nil
}

// List returns customers of orgID, or of every org when orgID is empty.
func (s *Service) List(ctx context.Context, orgID string, limit, offset int32) ([]*domain.Customer, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return s.customers.List(ctx, orgID, limit, offset)
}

// UpdateProfile changes contact fields of a customer of orgID.
func (s *Service) UpdateProfile(ctx context.Context, orgID, id string, p domain.ProfileUpdate) (*domain.Customer, error) {
	if err := p.Normalize(); err != nil {
		return nil, err
	}
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	c, err := s.customers.UpdateProfile(ctx, id, p)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrCustomerNotFound
	}
	return c, nil
}

// SetBlacklisted toggles the blacklist flag and audits the change under the customer's org.
// Authorization is the caller's concern.
func (s *Service) SetBlacklisted(ctx context.Context, accountID, id string, blacklisted bool) (*domain.Customer, error) {
	c, err := s.customers.SetBlacklisted(ctx, id, blacklisted)
	if err != nil {
		return nil, err
	}
	if c == nil {
		return nil, domain.ErrCustomerNotFound
	}
	action := "customer_unblacklisted"
	if blacklisted {
		action = "customer_blacklisted"
	}
	s.audit.LogEvent(ctx, c.OrgID, accountID, action, "customer:"+c.ID, "blacklisted="+strconv.FormatBool(blacklisted))
	return c, nil
}

// Lookup finds customers with email across every org and recommends whether to accept them.
func (s *Service) Lookup(ctx context.Context, email string) (*LookupResult, error) {
	found, err := s.customers.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	res := &LookupResult{Email: email, Recommendation: domain.RecommendApprove, Matches: make([]Match, 0, len(found))}
	for _, c := range found {
		rec := domain.Recommend(c)
		res.Matches = append(res.Matches, Match{
			CustomerID:       c.ID,
			OrgID:            c.OrgID,
			Name:             c.Name,
			RiskTier:         c.RiskTier,
			OutstandingCents: c.OutstandingCents,
			Blacklisted:      c.Blacklisted,
			Recommendation:   rec,
		})
		if severity[rec] > severity[res.Recommendation] {
			res.Recommendation = rec
		}
	}
	return res, nil
}

var severity = map[domain.Recommendation]int{
	domain.RecommendApprove: 0,
	domain.RecommendCaution: 1,
	domain.RecommendReject:  2,
}

// Stats returns tier counts for orgID, or for every org when orgID is empty.
func (s *Service) Stats(ctx context.Context, orgID string) (domain.TierCounts, error) {
	return s.customers.CountByTier(ctx, orgID)
}

// RecomputeRisk recomputes a customer of orgID on demand and returns the updated row.
func (s *Service) RecomputeRisk(ctx context.Context, orgID, id string) (*domain.Customer, error) {
	if _, err := s.Get(ctx, orgID, id); err != nil {
		return nil, err
	}
	res, err := s.risk.Recompute(ctx, id)
	if err != nil {
		return nil, err
	}
	s.risk.Publish(ctx, res)
	return s.Get(ctx, orgID, id)
}

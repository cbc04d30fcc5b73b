// Package risk derives a customer's risk tier and outstanding balance from payment history.
package risk

import (
	customerdomain "carescope/backend/internal/customer/domain"
	paymentdomain "carescope/backend/internal/payment/domain"
)

// Assessment is the derived risk state of one customer. Its fields are unexported so the
// customer store can only persist values produced by Assess.
type Assessment struct {
	tier        customerdomain.RiskTier
	outstanding int64
	overdue     int
	total       int
	valid       bool
}

// Tier returns the assessed tier.
func (a Assessment) Tier() customerdomain.RiskTier { return a.tier }

// OutstandingCents returns the sum of amounts not yet paid.
func (a Assessment) OutstandingCents() int64 { return a.outstanding }

// OverdueCount returns the number of overdue records.
func (a Assessment) OverdueCount() int { return a.overdue }

// Total returns the number of records considered.
func (a Assessment) Total() int { return a.total }

// Valid reports whether a was produced by Assess. The zero Assessment is not valid.
func (a Assessment) Valid() bool { return a.valid }

// Assess classifies records. Tier is high when more than half are overdue and medium when
// more than a fifth are. Ratios are compared in integers. The outstanding balance sums every
// record whose status is not paid.
func Assess(records []*paymentdomain.Record) Assessment {
	a := Assessment{tier: customerdomain.TierLow, valid: true}
	for _, r := range records {
		if r == nil {
			continue
		}
		a.total++
		if r.Status == paymentdomain.StatusOverdue {
			a.overdue++
		}
		if r.Status != paymentdomain.StatusPaid {
			a.outstanding += r.AmountCents
		}
	}
	switch {
	case a.total == 0:
	case 2*a.overdue > a.total:
		a.tier = customerdomain.TierHigh
	case 5*a.overdue > a.total:
		a.tier = customerdomain.TierMedium
	}
	return a
}

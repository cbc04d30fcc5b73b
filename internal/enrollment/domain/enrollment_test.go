package domain

import (
	"errors"
	"strings"
	"testing"
	"time"

	customerdomain "carescope/backend/internal/customer/domain"
)

func TestEnrollment_Validate(t *testing.T) {
	start := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	if err := (&Enrollment{CustomerID: "c", OrgID: "o", StartDate: start, MonthlyFeeCents: 90000}).Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	bad := []Enrollment{
		{OrgID: "o", StartDate: start},
		{CustomerID: "c", StartDate: start},
		{CustomerID: "c", OrgID: "o"},
		{CustomerID: "c", OrgID: "o", StartDate: start, MonthlyFeeCents: -1},
	}
	for i, e := range bad {
		if err := e.Validate(); !errors.Is(err, ErrInvalidEnrollment) {
			t.Errorf("case %d: err = %v", i, err)
		}
	}
}

func TestRefuse(t *testing.T) {
	tests := []struct {
		c    customerdomain.Customer
		want bool
	}{
		{customerdomain.Customer{RiskTier: customerdomain.TierLow}, false},
		{customerdomain.Customer{RiskTier: customerdomain.TierMedium}, false},
		{customerdomain.Customer{RiskTier: customerdomain.TierHigh}, true},
		{customerdomain.Customer{RiskTier: customerdomain.TierLow, Blacklisted: true}, true},
	}
	for _, tt := range tests {
		if got := Refuse(&tt.c); got != tt.want {
			t.Errorf("Refuse(%s, %v) = %v, want %v", tt.c.RiskTier, tt.c.Blacklisted, got, tt.want)
		}
	}
}

func TestRejection_Error(t *testing.T) {
	var err error = &Rejection{RiskTier: customerdomain.TierHigh, OutstandingCents: 6000}
	var rej *Rejection
	if !errors.As(err, &rej) || rej.OutstandingCents != 6000 {
		t.Fatalf("errors.As failed for %v", err)
	}
	if !strings.Contains(err.Error(), "high") {
		t.Errorf("Error() = %q", err.Error())
	}
	if msg := (&Rejection{Blacklisted: true}).Error(); !strings.Contains(msg, "blacklisted") {
		t.Errorf("Error() = %q", msg)
	}
}

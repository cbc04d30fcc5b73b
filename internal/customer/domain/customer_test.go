package domain

import (
	"errors"
	"testing"
)

func TestCustomer_Validate(t *testing.T) {
	c := &Customer{OrgID: "org-1", Name: "  Ada  ", Email: " Ada@Example.COM "}
	if err := c.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if c.Name != "Ada" || c.Email != "ada@example.com" || c.RiskTier != TierLow {
		t.Errorf("normalized = %+v", c)
	}
	for _, bad := range []*Customer{{Name: "x"}, {OrgID: "org-1", Name: " "}} {
		if err := bad.Validate(); !errors.Is(err, ErrInvalidCustomer) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidCustomer", bad, err)
		}
	}
}

func TestProfileUpdate_Normalize(t *testing.T) {
	name, email := " Bea ", " BEA@example.com"
	p := ProfileUpdate{Name: &name, Email: &email}
	if err := p.Normalize(); err != nil {
		t.Fatal(err)
	}
	if *p.Name != "Bea" || *p.Email != "bea@example.com" || p.Phone != nil {
		t.Errorf("normalized = %q %q %v", *p.Name, *p.Email, p.Phone)
	}
	blank := "  "
	if err := (&ProfileUpdate{Name: &blank}).Normalize(); !errors.Is(err, ErrInvalidCustomer) {
		t.Errorf("blank name: err = %v", err)
	}
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		c    Customer
		want Recommendation
	}{
		{Customer{RiskTier: TierLow}, RecommendApprove},
		{Customer{RiskTier: TierMedium}, RecommendCaution},
		{Customer{RiskTier: TierHigh}, RecommendReject},
		{Customer{RiskTier: TierLow, Blacklisted: true}, RecommendReject},
	}
	for _, tt := range tests {
		if got := Recommend(&tt.c); got != tt.want {
			t.Errorf("Recommend(%s, blacklisted=%v) = %s, want %s", tt.c.RiskTier, tt.c.Blacklisted, got, tt.want)
		}
	}
}

func TestParseProfileUpdate(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		wantErr error
	}{
		{"name and phone", `{"name":"Cleo","phone":" 555 "}`, nil},
		{"risk tier", `{"name":"Cleo","risk_tier":"low"}`, ErrDerivedField},
		{"outstanding", `{"outstanding_cents":0}`, ErrDerivedField},
		{"blacklisted", `{"blacklisted":false}`, ErrDerivedField},
		{"not json", `name=Cleo`, ErrInvalidCustomer},
		{"wrong type", `{"name":5}`, ErrInvalidCustomer},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := ParseProfileUpdate([]byte(tt.body))
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if tt.wantErr == nil && (*p.Name != "Cleo" || *p.Phone != "555" || p.Email != nil) {
				t.Errorf("update = %+v", p)
			}
		})
	}
}

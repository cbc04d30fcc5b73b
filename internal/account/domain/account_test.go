package domain

import (
	"encoding/json"
	"testing"
)

func TestParseGlobalRole(t *testing.T) {
	tests := []struct {
		in      string
		want    GlobalRole
		wantErr bool
	}{
		{"staff", RoleStaff, false},
		{" Admin ", RoleAdmin, false},
		{"org-owner", RoleOrgOwner, false},
		{"owner", "", true},
		{"", "", true},
	}
	for _, tt := range tests {
		got, err := ParseGlobalRole(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseGlobalRole(%q) err = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseGlobalRole(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestGlobalRole_UnmarshalJSON(t *testing.T) {
	var v struct {
		Role GlobalRole `json:"role"`
	}
	if err := json.Unmarshal([]byte(`{"role":"admin"}`), &v); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if v.Role != RoleAdmin {
		t.Errorf("role = %q, want admin", v.Role)
	}
	if err := json.Unmarshal([]byte(`{"role":"root"}`), &v); err == nil {
		t.Error("Unmarshal of unknown role should fail")
	}
}

func TestAccount_Validate(t *testing.T) {
	a := &Account{Email: "a@example.com", PasswordHash: "h"}
	if err := a.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if a.Role != RoleStaff {
		t.Errorf("default role = %q, want staff", a.Role)
	}
	if err := (&Account{PasswordHash: "h"}).Validate(); err == nil {
		t.Error("Validate without email should fail")
	}
	if err := (&Account{Email: "a@example.com", PasswordHash: "h", Role: "root"}).Validate(); err == nil {
		t.Error("Validate with unknown role should fail")
	}
}

package security

import (
	"testing"

	"golang.org/x/crypto/bcrypt"
)

func TestHasher_HashAndVerify(t *testing.T) {
	h := NewHasher(bcrypt.MinCost)
	digest, err := h.Hash("secret123")
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if digest == "" || digest == "secret123" {
		t.Fatalf("Hash returned %q", digest)
	}
	if !h.Verify("secret123", digest) {
		t.Fatal("Verify with correct secret = false")
	}
	if h.Verify("wrong", digest) {
		t.Fatal("Verify with wrong secret = true")
	}
	if h.Verify("secret123", "") {
		t.Fatal("Verify with empty digest = true")
	}
	if h.Verify("secret123", "not-a-bcrypt-hash") {
		t.Fatal("Verify with malformed digest = true")
	}
}

func TestNewHasher_Cost(t *testing.T) {
	tests := []struct {
		in, want int
	}{
		{0, bcrypt.DefaultCost},
		{2, bcrypt.MinCost},
		{12, 12},
		{40, bcrypt.MaxCost},
	}
	for _, tt := range tests {
		if got := NewHasher(tt.in).Cost; got != tt.want {
			t.Errorf("NewHasher(%d).Cost = %d, want %d", tt.in, got, tt.want)
		}
	}
}

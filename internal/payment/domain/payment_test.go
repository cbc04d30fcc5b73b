package domain

import (
	"errors"
	"testing"
	"time"
)

func TestStatus_CanTransitionTo(t *testing.T) {
	all := []Status{StatusPending, StatusPaid, StatusOverdue, StatusCancelled}
	allowed := map[[2]Status]bool{
		{StatusPending, StatusPaid}:      true,
		{StatusPending, StatusOverdue}:   true,
		{StatusPending, StatusCancelled}: true,
		{StatusOverdue, StatusPaid}:      true,
		{StatusOverdue, StatusCancelled}: true,
	}
	for _, from := range all {
		for _, to := range all {
			want := allowed[[2]Status{from, to}]
			if got := from.CanTransitionTo(to); got != want {
				t.Errorf("%s -> %s = %v, want %v", from, to, got, want)
			}
		}
	}
}

func TestParseStatus(t *testing.T) {
	if s, err := ParseStatus(" Overdue "); err != nil || s != StatusOverdue {
		t.Errorf("ParseStatus = %q, %v", s, err)
	}
	if _, err := ParseStatus("refunded"); !errors.Is(err, ErrInvalidStatus) {
		t.Errorf("ParseStatus(refunded) err = %v", err)
	}
}

func TestRecord_Validate(t *testing.T) {
	due := time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC)
	ok := &Record{CustomerID: "c", OrgID: "o", AmountCents: 1500, DueDate: due}
	if err := ok.Validate(); err != nil || ok.Status != StatusPending {
		t.Fatalf("Validate = %v, status %q", err, ok.Status)
	}
	bad := []*Record{
		{OrgID: "o", AmountCents: 1, DueDate: due},
		{CustomerID: "c", AmountCents: 1, DueDate: due},
		{CustomerID: "c", OrgID: "o", AmountCents: 0, DueDate: due},
		{CustomerID: "c", OrgID: "o", AmountCents: 1},
	}
	for i, r := range bad {
		if err := r.Validate(); !errors.Is(err, ErrInvalidPayment) {
			t.Errorf("case %d: err = %v, want ErrInvalidPayment", i, err)
		}
	}
}

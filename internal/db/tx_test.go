package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsUniqueViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"plain", errors.New("boom"), false},
		{"unique", &pgconn.PgError{Code: "23505"}, true},
		{"wrapped unique", fmt.Errorf("insert: %w", &pgconn.PgError{Code: "23505"}), true},
		{"fk", &pgconn.PgError{Code: "23503"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsUniqueViolation(tt.err); got != tt.want {
				t.Errorf("IsUniqueViolation = %v, want %v", got, tt.want)
			}
		})
	}
	if !IsForeignKeyViolation(&pgconn.PgError{Code: "23503"}) {
		t.Error("IsForeignKeyViolation(23503) = false")
	}
	if !IsNoRows(fmt.Errorf("get: %w", sql.ErrNoRows)) {
		t.Error("IsNoRows(wrapped ErrNoRows) = false")
	}
}

func TestNopTransactor(t *testing.T) {
	called := false
	err := NopTransactor{}.RunInTx(context.Background(), func(ctx context.Context) error {
		called = true
		if InTx(ctx) {
			t.Error("NopTransactor should not mark ctx as transactional")
		}
		return nil
	})
	if err != nil || !called {
		t.Fatalf("RunInTx: called=%v err=%v", called, err)
	}
	want := errors.New("fail")
	if got := (NopTransactor{}).RunInTx(context.Background(), func(context.Context) error { return want }); got != want {
		t.Errorf("RunInTx err = %v, want %v", got, want)
	}
}

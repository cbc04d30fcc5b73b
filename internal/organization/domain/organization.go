package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidOrg is returned when an organization fails validation.
var ErrInvalidOrg = errors.New("invalid organization")

// Org is an organizational unit (a daycare center) that owns customers and payment records.
type Org struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// Validate validates the organization for persistence. Returns an error describing the first validation failure.
func (o *Org) Validate() error {
	o.Name = strings.TrimSpace(o.Name)
	if o.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidOrg)
	}
	return nil
}

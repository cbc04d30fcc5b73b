package domain

import "time"

// AuditLog represents an audit event. Rows are append-only.
type AuditLog struct {
	ID        string    `db:"id" json:"id"`
	OrgID     string    `db:"org_id" json:"org_id"`
	AccountID string    `db:"account_id" json:"account_id"`
	Action    string    `db:"action" json:"action"`
	Resource  string    `db:"resource" json:"resource"`
	IP        string    `db:"ip" json:"ip"`
	Metadata  string    `db:"metadata" json:"metadata,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

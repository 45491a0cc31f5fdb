package models

import "time"

// AuditLog is an append-only record of an action taken by a user.
type AuditLog struct {
	ID        int64     `json:"id" db:"id"`
	UserID    int64     `json:"userId" db:"user_id"`
	IssueID   *int64    `json:"issueId,omitempty" db:"issue_id"`
	Action    string    `json:"action" db:"action"`
	Timestamp time.Time `json:"timestamp" db:"timestamp"`
}

package models

import "time"

// Comment is a message posted on an issue thread.
type Comment struct {
	ID        int64     `json:"id" db:"id"`
	IssueID   int64     `json:"issueId" db:"issue_id"`
	UserID    int64     `json:"userId" db:"user_id"`
	Text      string    `json:"text" db:"text"`
	CreatedAt time.Time `json:"createdAt" db:"created_at"`
	Author    *User     `json:"author,omitempty"`
}

package models

import "time"

// Attachment is a file uploaded against an issue.
type Attachment struct {
	ID         int64     `json:"id" db:"id"`
	IssueID    int64     `json:"issueId" db:"issue_id"`
	FileName   string    `json:"fileName" db:"file_name"`
	FilePath   string    `json:"-" db:"file_path"`
	FileURL    string    `json:"fileUrl" db:"file_url"`
	FileSize   int64     `json:"fileSize" db:"file_size"`
	MimeType   string    `json:"mimeType" db:"mime_type"`
	UploadedBy *int64    `json:"uploadedBy,omitempty" db:"uploaded_by"`
	CreatedAt  time.Time `json:"createdAt" db:"created_at"`
}

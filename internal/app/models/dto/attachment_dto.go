package dto

import (
	"fmt"
	"time"

	"github.com/aits/backend/internal/app/models"
)

// AttachmentResponse is the public view of an uploaded file.
type AttachmentResponse struct {
	ID         int64     `json:"id"`
	IssueID    int64     `json:"issueId"`
	FileName   string    `json:"fileName"`
	FileURL    string    `json:"fileUrl"`
	FileSize   int64     `json:"fileSize"`
	MimeType   string    `json:"mimeType"`
	UploadedBy *int64    `json:"uploadedBy,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
}

// APIPrefix is the mount point of the versioned API.
const APIPrefix = "/api/v1"

// AttachmentDownloadURL is the authenticated download route for an attachment.
func AttachmentDownloadURL(id int64) string {
	return fmt.Sprintf("%s/attachments/%d/download", APIPrefix, id)
}

func NewAttachmentResponse(a *models.Attachment) AttachmentResponse {
	return AttachmentResponse{
		ID:         a.ID,
		IssueID:    a.IssueID,
		FileName:   a.FileName,
		FileURL:    AttachmentDownloadURL(a.ID),
		FileSize:   a.FileSize,
		MimeType:   a.MimeType,
		UploadedBy: a.UploadedBy,
		CreatedAt:  a.CreatedAt,
	}
}

func NewAttachmentResponses(list []*models.Attachment) []AttachmentResponse {
	out := make([]AttachmentResponse, 0, len(list))
	for _, a := range list {
		out = append(out, NewAttachmentResponse(a))
	}
	return out
}

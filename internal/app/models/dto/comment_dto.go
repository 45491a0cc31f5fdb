package dto

import (
	"time"

	"github.com/aits/backend/internal/app/models"
)

// CreateCommentRequest is the body of a new comment.
type CreateCommentRequest struct {
	Text string `json:"text" binding:"required,max=5000" example:"I have attached my results slip"`
}

// CommentResponse is the public view of a comment.
type CommentResponse struct {
	ID         int64       `json:"id"`
	IssueID    int64       `json:"issueId"`
	UserID     int64       `json:"userId"`
	AuthorName string      `json:"authorName,omitempty"`
	AuthorRole models.Role `json:"authorRole,omitempty"`
	Text       string      `json:"text"`
	CreatedAt  time.Time   `json:"createdAt"`
}

func NewCommentResponse(c *models.Comment) CommentResponse {
	resp := CommentResponse{
		ID:        c.ID,
		IssueID:   c.IssueID,
		UserID:    c.UserID,
		Text:      c.Text,
		CreatedAt: c.CreatedAt,
	}
	if c.Author != nil {
		resp.AuthorName = c.Author.DisplayName()
		resp.AuthorRole = c.Author.Role
	}
	return resp
}

func NewCommentResponses(comments []*models.Comment) []CommentResponse {
	out := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		out = append(out, NewCommentResponse(c))
	}
	return out
}

// CreateIssueCommentRequest is the body of POST /comments, where the issue
// is named in the payload instead of the path.
type CreateIssueCommentRequest struct {
	Issue int64  `json:"issue" binding:"required,min=1" example:"42"`
	Text  string `json:"text" binding:"required,max=5000" example:"Any update on this?"`
}

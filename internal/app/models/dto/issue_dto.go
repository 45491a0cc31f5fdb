package dto

import (
	"time"

	"github.com/aits/backend/internal/app/models"
)

// CreateIssueRequest is accepted as JSON or as a multipart form with files
// under the "attachments" key.
type CreateIssueRequest struct {
	Title        string `json:"title" form:"title" binding:"required,max=255" example:"Missing coursework mark"`
	Description  string `json:"description" form:"description" binding:"required" example:"My CSC1100 coursework mark is missing"`
	Category     string `json:"category" form:"category" binding:"omitempty,issue_category" example:"missing_marks"`
	Priority     string `json:"priority" form:"priority" binding:"omitempty,issue_priority" example:"medium"`
	CourseCode   string `json:"courseCode" form:"courseCode" binding:"omitempty,max=20" example:"CSC1100"`
	Semester     string `json:"semester" form:"semester" binding:"omitempty,max=20" example:"1"`
	AcademicYear string `json:"academicYear" form:"academicYear" binding:"omitempty,max=20" example:"2024/2025"`
	StudentName  string `json:"studentName" form:"studentName" binding:"omitempty,max=255"`
	AssignedToID *int64 `json:"assignedToId" form:"assignedToId" binding:"omitempty,min=1"`
}

// UpdateIssueRequest patches the descriptive fields of an issue.
// Version, when set, must match the stored version.
type UpdateIssueRequest struct {
	Title        *string `json:"title" binding:"omitempty,min=1,max=255"`
	Description  *string `json:"description" binding:"omitempty,min=1"`
	Category     *string `json:"category" binding:"omitempty,issue_category"`
	Priority     *string `json:"priority" binding:"omitempty,issue_priority"`
	CourseCode   *string `json:"courseCode" binding:"omitempty,max=20"`
	Semester     *string `json:"semester" binding:"omitempty,max=20"`
	AcademicYear *string `json:"academicYear" binding:"omitempty,max=20"`
	Version      *int64  `json:"version" binding:"omitempty,min=1"`
}

// AssignIssueRequest names the lecturer to assign.
type AssignIssueRequest struct {
	AssignedToID int64 `json:"assigned_to_id" example:"12"`
}

// ResolveIssueRequest carries the mandatory resolution note.
type ResolveIssueRequest struct {
	ResolutionNote string `json:"resolution_note" example:"Mark uploaded to ACMIS"`
}

// IssueFilter is parsed from the list query string.
type IssueFilter struct {
	Status       string `form:"status" binding:"omitempty,issue_status"`
	Category     string `form:"category" binding:"omitempty,issue_category"`
	Priority     string `form:"priority" binding:"omitempty,issue_priority"`
	AssignedToID *int64 `form:"assigned_to" binding:"omitempty,min=1"`
	Search       string `form:"search" binding:"omitempty,max=200"`
}

// IssueResponse is the public view of an issue.
type IssueResponse struct {
	ID             int64                `json:"id"`
	Title          string               `json:"title"`
	Description    string               `json:"description"`
	Category       models.IssueCategory `json:"category"`
	Priority       models.IssuePriority `json:"priority"`
	Status         models.IssueStatus   `json:"status"`
	StudentID      int64                `json:"studentId"`
	StudentName    string               `json:"studentName"`
	AssignedToID   *int64               `json:"assignedToId,omitempty"`
	College        string               `json:"college"`
	Department     string               `json:"department,omitempty"`
	CourseCode     string               `json:"courseCode,omitempty"`
	Semester       string               `json:"semester,omitempty"`
	AcademicYear   string               `json:"academicYear,omitempty"`
	ResolutionNote *string              `json:"resolutionNote,omitempty"`
	ResolvedByID   *int64               `json:"resolvedById,omitempty"`
	ResolvedAt     *time.Time           `json:"resolvedAt,omitempty"`
	Version        int64                `json:"version"`
	CreatedAt      time.Time            `json:"createdAt"`
	UpdatedAt      time.Time            `json:"updatedAt"`
	Attachments    []AttachmentResponse `json:"attachments,omitempty"`
}

// IssueListResponse is a page of issues.
type IssueListResponse struct {
	Issues     []IssueResponse `json:"issues"`
	Pagination PaginationInfo  `json:"pagination"`
}

// NewIssueResponse maps an issue model to its public view.
func NewIssueResponse(i *models.Issue) IssueResponse {
	return IssueResponse{
		ID:             i.ID,
		Title:          i.Title,
		Description:    i.Description,
		Category:       i.Category,
		Priority:       i.Priority,
		Status:         i.Status,
		StudentID:      i.StudentID,
		StudentName:    i.StudentName,
		AssignedToID:   i.AssignedToID,
		College:        i.College,
		Department:     i.Department,
		CourseCode:     i.CourseCode,
		Semester:       i.Semester,
		AcademicYear:   i.AcademicYear,
		ResolutionNote: i.ResolutionNote,
		ResolvedByID:   i.ResolvedByID,
		ResolvedAt:     i.ResolvedAt,
		Version:        i.Version,
		CreatedAt:      i.CreatedAt,
		UpdatedAt:      i.UpdatedAt,
	}
}

// NewIssueResponses maps a slice of issues.
func NewIssueResponses(issues []*models.Issue) []IssueResponse {
	out := make([]IssueResponse, 0, len(issues))
	for _, i := range issues {
		out = append(out, NewIssueResponse(i))
	}
	return out
}

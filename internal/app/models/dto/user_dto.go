package dto

import (
	"time"

	"github.com/aits/backend/internal/app/models"
)

// UserResponse is the public view of an account.
type UserResponse struct {
	ID               int64       `json:"id" example:"1"`
	Username         string      `json:"username" example:"21/U/12345"`
	Email            string      `json:"email" example:"jane@students.mak.ac.ug"`
	FullName         string      `json:"fullName" example:"Jane Doe"`
	FirstName        string      `json:"firstName,omitempty"`
	LastName         string      `json:"lastName,omitempty"`
	Role             models.Role `json:"role" example:"student"`
	StudentRegNumber *string     `json:"studentRegNumber,omitempty"`
	YearOfStudy      *string     `json:"yearOfStudy,omitempty"`
	College          string      `json:"college" example:"COCIS"`
	Department       string      `json:"department,omitempty"`
	CoursesTaught    []string    `json:"coursesTaught,omitempty"`
	LastLoginAt      *time.Time  `json:"lastLoginAt,omitempty"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// UpdateProfileRequest holds the editable profile fields. Nil means unchanged.
// College and department are accepted only when equal to the stored values.
type UpdateProfileRequest struct {
	FullName      *string  `json:"fullName" binding:"omitempty,min=1,max=255"`
	FirstName     *string  `json:"firstName" binding:"omitempty,max=150"`
	LastName      *string  `json:"lastName" binding:"omitempty,max=150"`
	YearOfStudy   *string  `json:"yearOfStudy" binding:"omitempty,year_of_study"`
	College       *string  `json:"college" binding:"omitempty,min=1,max=255"`
	Department    *string  `json:"department" binding:"omitempty,max=255"`
	CoursesTaught []string `json:"coursesTaught"`
}

// StudentProfileResponse is the student's own profile with their issues.
type StudentProfileResponse struct {
	UserResponse
	Issues []IssueResponse `json:"issues"`
}

// LecturerDetailsResponse is the lecturer's profile with the issues assigned to them.
type LecturerDetailsResponse struct {
	UserResponse
	AssignedIssues []IssueResponse `json:"assignedIssues"`
}

// RegistrarProfileResponse is the registrar's profile with a summary of their college.
type RegistrarProfileResponse struct {
	UserResponse
	OpenIssueCount int64            `json:"openIssueCount"`
	StatusCounts   map[string]int64 `json:"statusCounts"`
	Lecturers      []UserResponse   `json:"lecturers"`
}

// NewUserResponse maps a user model to its public view.
func NewUserResponse(u *models.User) UserResponse {
	return UserResponse{
		ID:               u.ID,
		Username:         u.Username,
		Email:            u.Email,
		FullName:         u.DisplayName(),
		FirstName:        u.FirstName,
		LastName:         u.LastName,
		Role:             u.Role,
		StudentRegNumber: u.StudentRegNumber,
		YearOfStudy:      u.YearOfStudy,
		College:          u.College,
		Department:       u.Department,
		CoursesTaught:    u.CoursesTaught,
		LastLoginAt:      u.LastLoginAt,
		CreatedAt:        u.CreatedAt,
	}
}

// NewUserResponses maps a slice of users.
func NewUserResponses(users []*models.User) []UserResponse {
	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, NewUserResponse(u))
	}
	return out
}

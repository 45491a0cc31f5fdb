package models

import "time"

// IssueStatus is the lifecycle state of an issue.
type IssueStatus string

const (
	StatusOpen       IssueStatus = "open"
	StatusSubmitted  IssueStatus = "submitted"
	StatusPending    IssueStatus = "pending"
	StatusAssigned   IssueStatus = "assigned"
	StatusInProgress IssueStatus = "in_progress"
	StatusResolved   IssueStatus = "resolved"
	StatusClosed     IssueStatus = "closed"
)

// transitions maps each status to the statuses it may move to.
// closed has no entry and is terminal.
var transitions = map[IssueStatus][]IssueStatus{
	StatusOpen:       {StatusPending, StatusAssigned, StatusResolved},
	StatusSubmitted:  {StatusPending, StatusAssigned, StatusResolved},
	StatusPending:    {StatusAssigned, StatusResolved},
	StatusAssigned:   {StatusAssigned, StatusInProgress, StatusResolved},
	StatusInProgress: {StatusAssigned, StatusResolved},
	StatusResolved:   {StatusClosed},
}

// Valid reports whether s is a known status.
func (s IssueStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusSubmitted, StatusPending, StatusAssigned, StatusInProgress, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// CanTransitionTo reports whether moving from s to next is allowed.
func (s IssueStatus) CanTransitionTo(next IssueStatus) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Terminal reports whether no further transitions are possible.
func (s IssueStatus) Terminal() bool {
	return len(transitions[s]) == 0
}

// IssueCategory classifies an issue.
type IssueCategory string

const (
	CategoryMissingMarks       IssueCategory = "missing_marks"
	CategoryAppeals            IssueCategory = "appeals"
	CategoryCorrections        IssueCategory = "corrections"
	CategoryTechnical          IssueCategory = "technical"
	CategoryAdministrative     IssueCategory = "administrative"
	CategoryCourseRegistration IssueCategory = "course_registration"
)

func (c IssueCategory) Valid() bool {
	switch c {
	case CategoryMissingMarks, CategoryAppeals, CategoryCorrections, CategoryTechnical,
		CategoryAdministrative, CategoryCourseRegistration:
		return true
	}
	return false
}

// IssuePriority orders issues by urgency.
type IssuePriority string

const (
	PriorityLow      IssuePriority = "low"
	PriorityMedium   IssuePriority = "medium"
	PriorityHigh     IssuePriority = "high"
	PriorityCritical IssuePriority = "critical"
)

func (p IssuePriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// Rank orders priorities from low (1) to critical (4); unknown values rank 0.
func (p IssuePriority) Rank() int {
	switch p {
	case PriorityLow:
		return 1
	case PriorityMedium:
		return 2
	case PriorityHigh:
		return 3
	case PriorityCritical:
		return 4
	}
	return 0
}

// Issue is a student-raised academic problem.
type Issue struct {
	ID             int64         `json:"id" db:"id"`
	Title          string        `json:"title" db:"title"`
	Description    string        `json:"description" db:"description"`
	Category       IssueCategory `json:"category" db:"category"`
	Priority       IssuePriority `json:"priority" db:"priority"`
	Status         IssueStatus   `json:"status" db:"status"`
	StudentID      int64         `json:"studentId" db:"student_id"`
	StudentName    string        `json:"studentName" db:"student_name"`
	AssignedToID   *int64        `json:"assignedToId,omitempty" db:"assigned_to_id"`
	College        string        `json:"college" db:"college"`
	Department     string        `json:"department" db:"department"`
	CourseCode     string        `json:"courseCode" db:"course_code"`
	Semester       string        `json:"semester" db:"semester"`
	AcademicYear   string        `json:"academicYear" db:"academic_year"`
	ResolutionNote *string       `json:"resolutionNote,omitempty" db:"resolution_note"`
	ResolvedByID   *int64        `json:"resolvedById,omitempty" db:"resolved_by_id"`
	ResolvedAt     *time.Time    `json:"resolvedAt,omitempty" db:"resolved_at"`
	Version        int64         `json:"version" db:"version"`
	CreatedAt      time.Time     `json:"createdAt" db:"created_at"`
	UpdatedAt      time.Time     `json:"updatedAt" db:"updated_at"`
}

// IsAssignedTo reports whether userID is the current assignee.
func (i *Issue) IsAssignedTo(userID int64) bool {
	return i.AssignedToID != nil && *i.AssignedToID == userID
}

// IssueScope restricts the issues a query may return. The zero value matches
// nothing. College and Department combine: when both are set an issue must
// match both.
type IssueScope struct {
	All        bool
	StudentID  *int64
	AssigneeID *int64
	College    *string
	Department *string
}

// Empty reports whether the scope matches no issue at all.
func (s IssueScope) Empty() bool {
	return !s.All && s.StudentID == nil && s.AssigneeID == nil && s.College == nil && s.Department == nil
}

// Matches reports whether issue falls inside the scope.
func (s IssueScope) Matches(issue *Issue) bool {
	switch {
	case s.All:
		return true
	case s.StudentID != nil:
		return issue.StudentID == *s.StudentID
	case s.AssigneeID != nil:
		return issue.IsAssignedTo(*s.AssigneeID)
	case s.College != nil || s.Department != nil:
		if s.College != nil && issue.College != *s.College {
			return false
		}
		return s.Department == nil || issue.Department == *s.Department
	}
	return false
}

package auth

import (
	"fmt"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/pkg/apperrors"
)

// Action is something a user may attempt on an issue.
type Action string

const (
	ActionCreate           Action = "create"
	ActionView             Action = "view"
	ActionUpdate           Action = "update"
	ActionDelete           Action = "delete"
	ActionAssign           Action = "assign"
	ActionResolve          Action = "resolve"
	ActionStartProgress    Action = "start_progress"
	ActionClose            Action = "close"
	ActionComment          Action = "comment"
	ActionAttach           Action = "attach"
	ActionDeleteAttachment Action = "delete_attachment"
	ActionViewAuditLogs    Action = "view_audit_logs"
)

// Rule decides whether user may act on issue. issue is nil for actions that do
// not target one (create, view_audit_logs).
type Rule func(user *models.User, issue *models.Issue) bool

// Always allows the action.
func Always(*models.User, *models.Issue) bool { return true }

// OwnsIssue allows the student who raised the issue.
func OwnsIssue(u *models.User, i *models.Issue) bool {
	return i != nil && i.StudentID == u.ID
}

// AssignedToIssue allows the current assignee.
func AssignedToIssue(u *models.User, i *models.Issue) bool {
	return i != nil && i.IsAssignedTo(u.ID)
}

// SameCollege allows users whose college matches the issue's.
func SameCollege(u *models.User, i *models.Issue) bool {
	return i != nil && u.College != "" && i.College == u.College
}

// SameDepartment allows users whose college and department both match the
// issue's. Department names repeat across colleges.
func SameDepartment(u *models.User, i *models.Issue) bool {
	return SameCollege(u, i) && u.Department != "" && i.Department == u.Department
}

// policy is the single source of truth for who may do what. A missing
// (role, action) pair means the action is denied.
var policy = map[models.Role]map[Action]Rule{
	models.RoleStudent: {
		ActionCreate:           Always,
		ActionView:             OwnsIssue,
		ActionUpdate:           OwnsIssue,
		ActionComment:          OwnsIssue,
		ActionAttach:           OwnsIssue,
		ActionDeleteAttachment: OwnsIssue,
	},
	models.RoleLecturer: {
		ActionView:          AssignedToIssue,
		ActionUpdate:        AssignedToIssue,
		ActionResolve:       AssignedToIssue,
		ActionStartProgress: AssignedToIssue,
		ActionComment:       AssignedToIssue,
		ActionAttach:        AssignedToIssue,
	},
	models.RoleHOD: {
		ActionView:          SameDepartment,
		ActionComment:       SameDepartment,
		ActionViewAuditLogs: Always,
	},
	models.RoleRegistrar: {
		ActionView:             SameCollege,
		ActionUpdate:           SameCollege,
		ActionDelete:           SameCollege,
		ActionAssign:           SameCollege,
		ActionResolve:          SameCollege,
		ActionClose:            SameCollege,
		ActionComment:          SameCollege,
		ActionAttach:           SameCollege,
		ActionDeleteAttachment: SameCollege,
		ActionViewAuditLogs:    Always,
	},
	models.RoleAdmin: {
		ActionView:             Always,
		ActionUpdate:           Always,
		ActionDelete:           Always,
		ActionClose:            Always,
		ActionComment:          Always,
		ActionAttach:           Always,
		ActionDeleteAttachment: Always,
		ActionViewAuditLogs:    Always,
	},
}

// Allowed reports whether user may perform action on issue.
func Allowed(user *models.User, action Action, issue *models.Issue) bool {
	if user == nil || !user.IsActive {
		return false
	}
	rule, ok := policy[user.Role][action]
	return ok && rule(user, issue)
}

// HasAction reports whether the role can ever perform action, regardless of the issue.
func HasAction(role models.Role, action Action) bool {
	_, ok := policy[role][action]
	return ok
}

// Authorize returns a permission error when the action is not allowed.
func Authorize(user *models.User, action Action, issue *models.Issue) error {
	if Allowed(user, action, issue) {
		return nil
	}
	return apperrors.NewForbiddenError(fmt.Sprintf("You do not have permission to %s this issue", humanize(action)))
}

// VisibilityScope returns the issues a user may list. It must agree with the
// ActionView rules above.
func VisibilityScope(user *models.User) models.IssueScope {
	if user == nil || !user.IsActive {
		return models.IssueScope{}
	}
	switch user.Role {
	case models.RoleStudent:
		return models.IssueScope{StudentID: &user.ID}
	case models.RoleLecturer:
		return models.IssueScope{AssigneeID: &user.ID}
	case models.RoleHOD:
		if user.College == "" || user.Department == "" {
			return models.IssueScope{}
		}
		return models.IssueScope{College: &user.College, Department: &user.Department}
	case models.RoleRegistrar:
		if user.College == "" {
			return models.IssueScope{}
		}
		return models.IssueScope{College: &user.College}
	case models.RoleAdmin:
		return models.IssueScope{All: true}
	}
	return models.IssueScope{}
}

func humanize(a Action) string {
	switch a {
	case ActionStartProgress:
		return "start work on"
	case ActionDeleteAttachment:
		return "remove attachments from"
	case ActionViewAuditLogs:
		return "view audit logs for"
	case ActionAttach:
		return "attach files to"
	case ActionComment:
		return "comment on"
	}
	return string(a)
}

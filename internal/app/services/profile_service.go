package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/aits/backend/internal/app/auth"
	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/rs/zerolog"
)

// profileIssueLimit caps the issue lists embedded in profile responses.
const profileIssueLimit = 100

// ProfileService serves the role-specific profile pages.
type ProfileService struct {
	store  repositories.Store
	logger zerolog.Logger
}

// NewProfileService creates a new ProfileService
func NewProfileService(store repositories.Store, logger zerolog.Logger) *ProfileService {
	return &ProfileService{store: store, logger: logger}
}

// GetProfile returns the user's own account.
func (s *ProfileService) GetProfile(ctx context.Context, userID int64) (*dto.UserResponse, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

// UpdateProfile applies the non-nil fields of req. Role, username, email,
// registration number, college and department are never changed here.
func (s *ProfileService) UpdateProfile(ctx context.Context, user *models.User, req *dto.UpdateProfileRequest) (*dto.UserResponse, error) {
	current, err := s.store.Users().GetByID(ctx, user.ID)
	if err != nil {
		return nil, err
	}

	verr := apperrors.NewValidationError("Profile data is invalid")
	if req.FullName != nil {
		if blank(*req.FullName) {
			verr.Add("fullName", "Full name cannot be empty")
		}
		current.FullName = strings.TrimSpace(*req.FullName)
	}
	if req.FirstName != nil {
		current.FirstName = strings.TrimSpace(*req.FirstName)
	}
	if req.LastName != nil {
		current.LastName = strings.TrimSpace(*req.LastName)
	}
	if req.YearOfStudy != nil {
		if current.Role != models.RoleStudent {
			verr.Add("yearOfStudy", "Only students have a year of study")
		} else {
			year := strings.TrimSpace(*req.YearOfStudy)
			current.YearOfStudy = &year
		}
	}
	// College and department decide what a user may see, so they are
	// read-only here. Echoing the current value is accepted.
	if req.College != nil && strings.TrimSpace(*req.College) != current.College {
		verr.Add("college", "College can only be changed by an administrator")
	}
	if req.Department != nil && strings.TrimSpace(*req.Department) != current.Department {
		verr.Add("department", "Department can only be changed by an administrator")
	}
	if req.CoursesTaught != nil {
		current.CoursesTaught = req.CoursesTaught
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.store.Users().UpdateProfile(ctx, current); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", current.ID).Msg("Profile updated")
	resp := dto.NewUserResponse(current)
	return &resp, nil
}

// SetAffiliation moves a user to another college and/or department. It is
// an operator action (aitsctl set-affiliation) with no HTTP route.
func (s *ProfileService) SetAffiliation(ctx context.Context, userID int64, college, department *string) (*dto.UserResponse, error) {
	user, err := s.store.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	verr := apperrors.NewValidationError("Affiliation is invalid")
	if college != nil {
		user.College = strings.TrimSpace(*college)
	}
	if department != nil {
		user.Department = strings.TrimSpace(*department)
	}
	if user.Role != models.RoleAdmin && user.College == "" {
		verr.Add("college", "College is required")
	}
	if user.Role == models.RoleHOD && user.Department == "" {
		verr.Add("department", "Department is required for heads of department")
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	if err := s.store.Users().UpdateProfile(ctx, user); err != nil {
		return nil, err
	}

	s.logger.Info().Int64("userID", user.ID).Str("college", user.College).Str("department", user.Department).Msg("Affiliation changed")
	resp := dto.NewUserResponse(user)
	return &resp, nil
}

func (s *ProfileService) scopedIssues(ctx context.Context, user *models.User) ([]*models.Issue, error) {
	issues, _, err := s.store.Issues().List(ctx, repositories.IssueListParams{
		Scope:    auth.VisibilityScope(user),
		SortDesc: true,
		Page:     1,
		Size:     profileIssueLimit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load issues: %w", err)
	}
	return issues, nil
}

// StudentProfile returns the student's account with the issues they raised.
func (s *ProfileService) StudentProfile(ctx context.Context, user *models.User) (*dto.StudentProfileResponse, error) {
	if user.Role != models.RoleStudent {
		return nil, errForbidden("Only students have a student profile")
	}
	issues, err := s.scopedIssues(ctx, user)
	if err != nil {
		return nil, err
	}
	return &dto.StudentProfileResponse{
		UserResponse: dto.NewUserResponse(user),
		Issues:       dto.NewIssueResponses(issues),
	}, nil
}

// LecturerDetails returns the lecturer's account with the issues assigned to them.
func (s *ProfileService) LecturerDetails(ctx context.Context, user *models.User) (*dto.LecturerDetailsResponse, error) {
	if user.Role != models.RoleLecturer {
		return nil, errForbidden("Only lecturers have lecturer details")
	}
	issues, err := s.scopedIssues(ctx, user)
	if err != nil {
		return nil, err
	}
	return &dto.LecturerDetailsResponse{
		UserResponse:   dto.NewUserResponse(user),
		AssignedIssues: dto.NewIssueResponses(issues),
	}, nil
}

// RegistrarProfile summarises the registrar's college: issue counts by
// status and the lecturers available for assignment.
func (s *ProfileService) RegistrarProfile(ctx context.Context, user *models.User) (*dto.RegistrarProfileResponse, error) {
	if user.Role != models.RoleRegistrar {
		return nil, errForbidden("Only registrars have a registrar profile")
	}

	counts, err := s.store.Issues().CountByStatus(ctx, auth.VisibilityScope(user))
	if err != nil {
		return nil, fmt.Errorf("failed to count issues: %w", err)
	}
	lecturers, err := s.store.Users().ListByRoleAndCollege(ctx, models.RoleLecturer, user.College)
	if err != nil {
		return nil, fmt.Errorf("failed to list lecturers: %w", err)
	}

	statusCounts := make(map[string]int64, len(counts))
	var open int64
	for status, n := range counts {
		statusCounts[string(status)] = n
		if status != models.StatusResolved && status != models.StatusClosed {
			open += n
		}
	}

	return &dto.RegistrarProfileResponse{
		UserResponse:   dto.NewUserResponse(user),
		OpenIssueCount: open,
		StatusCounts:   statusCounts,
		Lecturers:      dto.NewUserResponses(lecturers),
	}, nil
}

// ListLecturers returns the lecturers of the registrar's college.
func (s *ProfileService) ListLecturers(ctx context.Context, user *models.User) ([]dto.UserResponse, error) {
	if user.Role != models.RoleRegistrar {
		return nil, errForbidden("Only registrars can list lecturers")
	}
	lecturers, err := s.store.Users().ListByRoleAndCollege(ctx, models.RoleLecturer, user.College)
	if err != nil {
		return nil, fmt.Errorf("failed to list lecturers: %w", err)
	}
	return dto.NewUserResponses(lecturers), nil
}

package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/pkg/apperrors"
	pkgAuth "github.com/aits/backend/internal/pkg/auth"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

var fieldValidator = validator.New()

// PublicRoles can sign themselves up. HoDs and admins are created with aitsctl.
var PublicRoles = []models.Role{models.RoleStudent, models.RoleLecturer, models.RoleRegistrar}

// AuthService handles registration, login and token rotation.
type AuthService struct {
	store      repositories.Store
	jwtService *pkgAuth.JWTService
	logger     zerolog.Logger
}

// NewAuthService creates a new AuthService
func NewAuthService(store repositories.Store, jwtService *pkgAuth.JWTService, logger zerolog.Logger) *AuthService {
	return &AuthService{
		store:      store,
		jwtService: jwtService,
		logger:     logger,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validateRegistration checks the role-specific required fields and collects
// every problem into one field-level error.
func validateRegistration(role models.Role, req *dto.RegisterRequest) error {
	verr := apperrors.NewValidationError("Registration data is invalid")

	if !role.Valid() {
		verr.Add("role", "Unknown role")
		return verr
	}

	if err := fieldValidator.Var(strings.TrimSpace(req.Email), "required,email"); err != nil {
		verr.Add("email", "A valid email address is required")
	}
	if !pkgAuth.PasswordStrong(req.Password) {
		verr.Add("password", "Password must be at least 8 characters and contain a letter and a digit")
	}
	if role != models.RoleAdmin && blank(req.College) {
		verr.Add("college", "College is required")
	}

	switch role {
	case models.RoleStudent:
		if blank(req.StudentRegNumber) {
			verr.Add("studentRegNumber", "Registration number is required for students")
		}
		if blank(req.YearOfStudy) {
			verr.Add("yearOfStudy", "Year of study is required for students")
		} else if !models.ValidYearOfStudy(strings.TrimSpace(req.YearOfStudy)) {
			verr.Add("yearOfStudy", "Year of study must be between 1 and 6")
		}
		if blank(req.FullName) {
			verr.Add("fullName", "Full name is required for students")
		}
	case models.RoleLecturer:
		if blank(req.FullName) {
			verr.Add("fullName", "Full name is required for lecturers")
		}
	case models.RoleRegistrar:
		if blank(req.FirstName) {
			verr.Add("firstName", "First name is required for registrars")
		}
		if blank(req.LastName) {
			verr.Add("lastName", "Last name is required for registrars")
		}
	case models.RoleHOD:
		if blank(req.FullName) {
			verr.Add("fullName", "Full name is required for heads of department")
		}
		if blank(req.Department) {
			verr.Add("department", "Department is required for heads of department")
		}
	}

	return verr.OrNil()
}

// newUserFromRequest builds the account row. Students log in with their
// registration number, everyone else with their email.
func newUserFromRequest(role models.Role, req *dto.RegisterRequest, hash string) *models.User {
	user := &models.User{
		Email:         normalizeEmail(req.Email),
		Password:      hash,
		FirstName:     strings.TrimSpace(req.FirstName),
		LastName:      strings.TrimSpace(req.LastName),
		FullName:      strings.TrimSpace(req.FullName),
		Role:          role,
		College:       strings.TrimSpace(req.College),
		Department:    strings.TrimSpace(req.Department),
		CoursesTaught: req.CoursesTaught,
		IsActive:      true,
	}
	if user.FullName == "" {
		user.FullName = strings.TrimSpace(user.FirstName + " " + user.LastName)
	}
	if user.CoursesTaught == nil {
		user.CoursesTaught = []string{}
	}

	if role == models.RoleStudent {
		reg := strings.TrimSpace(req.StudentRegNumber)
		year := strings.TrimSpace(req.YearOfStudy)
		user.Username = reg
		user.StudentRegNumber = &reg
		user.YearOfStudy = &year
	} else {
		user.Username = user.Email
	}
	return user
}

// CreateAccount validates and stores a user of any role. Uniqueness of email,
// username and registration number is reported per field.
func (s *AuthService) CreateAccount(ctx context.Context, role models.Role, req *dto.RegisterRequest) (*models.User, error) {
	user, err := prepareAccount(role, req)
	if err != nil {
		return nil, err
	}
	if err := s.insertAccount(ctx, s.store, user); err != nil {
		return nil, err
	}
	return user, nil
}

func prepareAccount(role models.Role, req *dto.RegisterRequest) (*models.User, error) {
	if err := validateRegistration(role, req); err != nil {
		return nil, err
	}

	// Hash password
	hash, err := pkgAuth.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("error hashing password: %w", err)
	}
	return newUserFromRequest(role, req, hash), nil
}

func (s *AuthService) insertAccount(ctx context.Context, store repositories.Store, user *models.User) error {
	role := user.Role

	// Check the unique columns up front so every conflict is reported at once;
	// the table constraints still catch a concurrent duplicate.
	verr := apperrors.NewValidationError("Registration data is invalid")
	if exists, err := store.Users().EmailExists(ctx, user.Email); err != nil {
		return fmt.Errorf("error checking if email exists: %w", err)
	} else if exists {
		verr.Add("email", "A user with this email already exists")
	}
	if role == models.RoleStudent {
		if exists, err := store.Users().RegNumberExists(ctx, *user.StudentRegNumber); err != nil {
			return fmt.Errorf("error checking if registration number exists: %w", err)
		} else if exists {
			verr.Add("studentRegNumber", "This registration number is already registered")
		}
	}
	if exists, err := store.Users().UsernameExists(ctx, user.Username); err != nil {
		return fmt.Errorf("error checking if username exists: %w", err)
	} else if exists && verr.Fields["email"] == "" && verr.Fields["studentRegNumber"] == "" {
		verr.Add("username", "A user with this username already exists")
	}
	if err := verr.OrNil(); err != nil {
		return err
	}

	if err := store.Users().Create(ctx, user); err != nil {
		return err
	}

	s.logger.Info().Int64("userID", user.ID).Str("role", string(role)).Str("college", user.College).Msg("User registered")
	return nil
}

// Register is the public sign-up used by the student, lecturer and registrar
// endpoints. It returns a token pair so the client is logged in immediately.
func (s *AuthService) Register(ctx context.Context, role models.Role, req *dto.RegisterRequest) (*dto.AuthResponse, error) {
	public := false
	for _, r := range PublicRoles {
		if r == role {
			public = true
			break
		}
	}
	if !public {
		return nil, errForbidden(fmt.Sprintf("Accounts with role %q cannot be self-registered", role))
	}

	user, err := prepareAccount(role, req)
	if err != nil {
		return nil, err
	}

	// The account and its first refresh token commit together.
	var token *dto.TokenResponse
	err = s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		if err := s.insertAccount(ctx, tx, user); err != nil {
			return err
		}
		token, err = s.generateTokenResponse(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return &dto.AuthResponse{Token: *token, User: dto.NewUserResponse(user)}, nil
}

// Login checks credentials. When allowed is non-empty the user's role must be
// in it; a role mismatch is indistinguishable from a wrong password.
func (s *AuthService) Login(ctx context.Context, req *dto.LoginRequest, allowed ...models.Role) (*dto.TokenResponse, error) {
	username := strings.TrimSpace(req.Username)
	if strings.Contains(username, "@") {
		username = normalizeEmail(username)
	}
	if username == "" || req.Password == "" {
		return nil, apperrors.ErrInvalidCredentials
	}

	user, err := s.store.Users().GetByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, apperrors.ErrUserNotFound) {
			return nil, apperrors.ErrInvalidCredentials
		}
		return nil, err
	}

	if !pkgAuth.CheckPassword(user.Password, req.Password) {
		s.logger.Info().Str("username", username).Msg("Failed login attempt")
		return nil, apperrors.ErrInvalidCredentials
	}

	if len(allowed) > 0 {
		ok := false
		for _, r := range allowed {
			if r == user.Role {
				ok = true
				break
			}
		}
		if !ok {
			s.logger.Info().Int64("userID", user.ID).Str("role", string(user.Role)).Msg("Login rejected for role")
			return nil, apperrors.ErrInvalidCredentials
		}
	}

	if !user.IsActive {
		return nil, apperrors.ErrAccountDisabled
	}

	if err := s.store.Users().UpdateLastLogin(ctx, user.ID, time.Now()); err != nil {
		// Not worth failing the login over.
		s.logger.Warn().Err(err).Int64("userID", user.ID).Msg("Failed to update last login")
	}

	return s.generateTokenResponse(ctx, s.store, user)
}

// RefreshToken rotates a refresh token: the presented token is revoked and a
// new pair is issued in the same transaction, so a token works exactly once.
func (s *AuthService) RefreshToken(ctx context.Context, refreshToken string) (*dto.TokenResponse, error) {
	if blank(refreshToken) {
		return nil, apperrors.ErrTokenInvalid
	}

	var resp *dto.TokenResponse
	err := s.store.WithTx(ctx, func(ctx context.Context, tx repositories.Store) error {
		rt, err := tx.Tokens().GetTokenByValue(ctx, refreshToken)
		if err != nil {
			return err
		}

		user, err := tx.Users().GetByID(ctx, rt.UserID)
		if err != nil {
			if errors.Is(err, apperrors.ErrUserNotFound) {
				return apperrors.ErrTokenInvalid
			}
			return err
		}
		if !user.IsActive {
			return apperrors.ErrAccountDisabled
		}

		// Revoke old token so it cannot be replayed
		if err := tx.Tokens().RevokeToken(ctx, refreshToken); err != nil {
			return fmt.Errorf("failed to revoke old token: %w", err)
		}

		resp, err = s.generateTokenResponse(ctx, tx, user)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Logout revokes the given refresh token, or every token of the user when it is empty.
func (s *AuthService) Logout(ctx context.Context, user *models.User, refreshToken string) error {
	if blank(refreshToken) {
		return s.store.Tokens().RevokeAllUserTokens(ctx, user.ID)
	}

	rt, err := s.store.Tokens().GetTokenByValue(ctx, refreshToken)
	if err != nil {
		if apperrors.Is(err, apperrors.ErrTokenRevoked, apperrors.ErrTokenExpired) {
			return nil
		}
		return err
	}
	if rt.UserID != user.ID {
		return apperrors.ErrTokenNotFound
	}
	return s.store.Tokens().RevokeToken(ctx, refreshToken)
}

// CleanupExpiredTokens deletes stale refresh tokens.
func (s *AuthService) CleanupExpiredTokens(ctx context.Context) (int64, error) {
	return s.store.Tokens().CleanupExpiredTokens(ctx)
}

func (s *AuthService) generateTokenResponse(ctx context.Context, store repositories.Store, user *models.User) (*dto.TokenResponse, error) {
	pair, err := s.jwtService.GenerateTokenPair(user)
	if err != nil {
		return nil, fmt.Errorf("token generation error: %w", err)
	}

	// Save refresh token to database
	if err := store.Tokens().CreateToken(ctx, pair.RefreshToken, user.ID, pair.RefreshExpiresAt); err != nil {
		return nil, fmt.Errorf("token saving error: %w", err)
	}

	return &dto.TokenResponse{
		Access:           pair.AccessToken,
		Refresh:          pair.RefreshToken,
		Role:             user.Role,
		TokenType:        "Bearer",
		ExpiresIn:        pair.ExpiresIn,
		RefreshExpiresIn: pair.RefreshExpiresIn,
	}, nil
}

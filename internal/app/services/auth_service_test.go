package services

import (
	"errors"
	"testing"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/pkg/apperrors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func studentRegistration() *dto.RegisterRequest {
	return &dto.RegisterRequest{
		Email:            "Jane.Doe@Students.mak.ac.ug",
		Password:         "secret123",
		FullName:         "Jane Doe",
		StudentRegNumber: "22/U/1234",
		YearOfStudy:      "1",
		College:          "COCIS",
		Department:       "Computer Science",
	}
}

func TestRegisterStudent(t *testing.T) {
	f := newFixture(t)

	resp, err := f.svc.Auth.Register(f.ctx, models.RoleStudent, studentRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token.Access)
	assert.NotEmpty(t, resp.Token.Refresh)
	assert.Equal(t, models.RoleStudent, resp.Token.Role)
	assert.Equal(t, "22/U/1234", resp.User.Username)
	assert.Equal(t, "jane.doe@students.mak.ac.ug", resp.User.Email)

	// login with the registration number
	tok, err := f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: "22/U/1234", Password: "secret123"})
	require.NoError(t, err)
	assert.Equal(t, models.RoleStudent, tok.Role)
}

func TestRegisterDuplicateFields(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Auth.Register(f.ctx, models.RoleStudent, studentRegistration())
	require.NoError(t, err)

	_, err = f.svc.Auth.Register(f.ctx, models.RoleStudent, studentRegistration())
	var verr *apperrors.ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "email")
	assert.Contains(t, verr.Fields, "studentRegNumber")
}

func TestRegisterRoleSpecificFields(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name  string
		role  models.Role
		req   dto.RegisterRequest
		field string
	}{
		{"student needs reg number", models.RoleStudent, dto.RegisterRequest{Email: "a@x.ug", Password: "secret123", FullName: "A", YearOfStudy: "1", College: "COCIS"}, "studentRegNumber"},
		{"student needs year", models.RoleStudent, dto.RegisterRequest{Email: "a@x.ug", Password: "secret123", FullName: "A", StudentRegNumber: "1", College: "COCIS"}, "yearOfStudy"},
		{"lecturer needs full name", models.RoleLecturer, dto.RegisterRequest{Email: "a@x.ug", Password: "secret123", College: "COCIS"}, "fullName"},
		{"registrar needs first name", models.RoleRegistrar, dto.RegisterRequest{Email: "a@x.ug", Password: "secret123", LastName: "B", College: "COCIS"}, "firstName"},
		{"registrar needs last name", models.RoleRegistrar, dto.RegisterRequest{Email: "a@x.ug", Password: "secret123", FirstName: "A", College: "COCIS"}, "lastName"},
		{"weak password", models.RoleLecturer, dto.RegisterRequest{Email: "a@x.ug", Password: "password", FullName: "A", College: "COCIS"}, "password"},
		{"college required", models.RoleLecturer, dto.RegisterRequest{Email: "a@x.ug", Password: "secret123", FullName: "A"}, "college"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := tt.req
			_, err := f.svc.Auth.Register(f.ctx, tt.role, &req)
			var verr *apperrors.ValidationError
			require.True(t, errors.As(err, &verr), "got %v", err)
			assert.Contains(t, verr.Fields, tt.field)
		})
	}
}

func TestRegisterRejectsPrivilegedRoles(t *testing.T) {
	f := newFixture(t)
	req := &dto.RegisterRequest{Email: "boss@mak.ac.ug", Password: "secret123", FullName: "Boss", College: "COCIS", Department: "CS"}

	_, err := f.svc.Auth.Register(f.ctx, models.RoleHOD, req)
	assert.ErrorIs(t, err, apperrors.ErrPermissionDenied)

	user, err := f.svc.Auth.CreateAccount(f.ctx, models.RoleHOD, req)
	require.NoError(t, err)
	assert.Equal(t, "boss@mak.ac.ug", user.Username)
}

func TestLoginRoleRestriction(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: f.student.Username, Password: "secret123"}, models.RoleLecturer)
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	tok, err := f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: "LECTURER@mak.ac.ug", Password: "secret123"}, models.RoleLecturer)
	require.NoError(t, err)
	assert.Equal(t, models.RoleLecturer, tok.Role)

	_, err = f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: f.lecturer.Username, Password: "wrong-pass1"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	_, err = f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: "nobody", Password: "secret123"})
	assert.ErrorIs(t, err, apperrors.ErrInvalidCredentials)

	user, err := f.store.Users().GetByID(f.ctx, f.lecturer.ID)
	require.NoError(t, err)
	assert.NotNil(t, user.LastLoginAt)
}

func TestRefreshTokenRotation(t *testing.T) {
	f := newFixture(t)
	tok, err := f.svc.Auth.Login(f.ctx, &dto.LoginRequest{Username: f.registrar.Username, Password: "secret123"})
	require.NoError(t, err)

	rotated, err := f.svc.Auth.RefreshToken(f.ctx, tok.Refresh)
	require.NoError(t, err)
	assert.NotEqual(t, tok.Refresh, rotated.Refresh)
	assert.Equal(t, models.RoleRegistrar, rotated.Role)

	_, err = f.svc.Auth.RefreshToken(f.ctx, tok.Refresh)
	assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)

	_, err = f.svc.Auth.RefreshToken(f.ctx, "not-a-token")
	assert.ErrorIs(t, err, apperrors.ErrTokenNotFound)

	require.NoError(t, f.svc.Auth.Logout(f.ctx, f.registrar, rotated.Refresh))
	_, err = f.svc.Auth.RefreshToken(f.ctx, rotated.Refresh)
	assert.ErrorIs(t, err, apperrors.ErrTokenRevoked)
}

func TestRegisterRejectsDisplayNameEmails(t *testing.T) {
	f := newFixture(t)

	for _, email := range []string{"Jane <jane@students.mak.ac.ug>", "jane@students", "jane", "  "} {
		req := studentRegistration()
		req.Email = email
		_, err := f.svc.Auth.Register(f.ctx, models.RoleStudent, req)
		var verr *apperrors.ValidationError
		require.True(t, errors.As(err, &verr), "%q: got %v", email, err)
		assert.Contains(t, verr.Fields, "email", email)
	}

	req := studentRegistration()
	req.Email = " jane@students.mak.ac.ug "
	resp, err := f.svc.Auth.Register(f.ctx, models.RoleStudent, req)
	require.NoError(t, err)
	assert.Equal(t, "jane@students.mak.ac.ug", resp.User.Email)
}

func TestRegisterRollsBackUserWhenTokenSaveFails(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("tokens down")
	f.store.FailOn = func(op string) error {
		if op == "tokens.create" {
			return boom
		}
		return nil
	}

	_, err := f.svc.Auth.Register(f.ctx, models.RoleStudent, studentRegistration())
	assert.ErrorIs(t, err, boom)

	f.store.FailOn = nil
	exists, err := f.store.Users().EmailExists(f.ctx, "jane.doe@students.mak.ac.ug")
	require.NoError(t, err)
	assert.False(t, exists)
	exists, err = f.store.Users().RegNumberExists(f.ctx, "22/U/1234")
	require.NoError(t, err)
	assert.False(t, exists)

	// nothing half-created blocks a retry
	resp, err := f.svc.Auth.Register(f.ctx, models.RoleStudent, studentRegistration())
	require.NoError(t, err)
	assert.NotEmpty(t, resp.Token.Refresh)
}

// Package seed provisions the accounts a fresh deployment needs to be usable:
// an administrator plus one registrar, head of department, lecturer and
// student for a college. Existing emails are skipped so it can be rerun.
package seed

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/rs/zerolog"
)

// AccountCreator creates a validated account of any role.
type AccountCreator interface {
	CreateAccount(ctx context.Context, role models.Role, req *dto.RegisterRequest) (*models.User, error)
}

// Account is one account to seed.
type Account struct {
	Role    models.Role
	Request dto.RegisterRequest
}

// DefaultAccounts returns the demo accounts for college, all sharing password.
func DefaultAccounts(college, password string) []Account {
	domain := strings.ToLower(college) + ".mak.ac.ug"
	return []Account{
		{Role: models.RoleAdmin, Request: dto.RegisterRequest{
			Email: "admin@mak.ac.ug", Password: password, FullName: "System Administrator",
		}},
		{Role: models.RoleRegistrar, Request: dto.RegisterRequest{
			Email: "registrar@" + domain, Password: password,
			FirstName: "College", LastName: "Registrar", College: college,
		}},
		{Role: models.RoleHOD, Request: dto.RegisterRequest{
			Email: "hod@" + domain, Password: password, FullName: "Head of Department",
			College: college, Department: "Computer Science",
		}},
		{Role: models.RoleLecturer, Request: dto.RegisterRequest{
			Email: "lecturer@" + domain, Password: password, FullName: "Demo Lecturer",
			College: college, Department: "Computer Science", CoursesTaught: []string{"CSC1100"},
		}},
		{Role: models.RoleStudent, Request: dto.RegisterRequest{
			Email: "student@students.mak.ac.ug", Password: password, FullName: "Demo Student",
			StudentRegNumber: "24/U/00001", YearOfStudy: "1", College: college, Department: "Computer Science",
		}},
	}
}

// CreateDefaultData creates every account whose email is not taken yet and
// reports how many were created. A failing account does not stop the rest;
// all failures are returned joined.
func CreateDefaultData(ctx context.Context, users repositories.IUserRepository, creator AccountCreator, accounts []Account, lgr zerolog.Logger) (int, error) {
	lgr.Info().Int("accounts", len(accounts)).Msg("Checking/Creating default accounts...")

	var finalErr error
	created := 0
	for i := range accounts {
		a := &accounts[i]
		email := strings.ToLower(strings.TrimSpace(a.Request.Email))

		exists, err := users.EmailExists(ctx, email)
		if err != nil {
			lgr.Error().Err(err).Str("email", email).Msg("Error checking if account exists")
			finalErr = errors.Join(finalErr, err)
			continue
		}
		if exists {
			lgr.Info().Str("email", email).Msg("Account already exists, skipping creation")
			continue
		}

		user, err := creator.CreateAccount(ctx, a.Role, &a.Request)
		if err != nil {
			lgr.Error().Err(err).Str("email", email).Str("role", string(a.Role)).Msg("Error creating account")
			finalErr = errors.Join(finalErr, fmt.Errorf("%s %s: %w", a.Role, email, err))
			continue
		}
		created++
		lgr.Info().Int64("userID", user.ID).Str("role", string(user.Role)).Str("username", user.Username).Msg("Default account created")
	}

	lgr.Info().Int("created", created).Msg("Default account check/creation finished.")
	return created, finalErr
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/aits/backend/internal/app/models"
	"github.com/aits/backend/internal/app/models/dto"
	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/bootstrap"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	readPasswordFunc = term.ReadPassword // mockable
	isTerminalFunc   = term.IsTerminal

	errNoPassword = errors.New("password is required: pass --password or run in a terminal")
)

var userFlags struct {
	role       string
	email      string
	password   string
	fullName   string
	firstName  string
	lastName   string
	college    string
	department string
	regNumber  string
	year       string
}

var createUserCmd = &cobra.Command{
	Use:   "create-user",
	Short: "Create an account of any role, including hod and admin",
	Long: `create-user provisions accounts that cannot sign up through the API
(heads of department and administrators) and can also seed the public roles.
The password is prompted for when --password is not given.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		role, err := parseRole(userFlags.role)
		if err != nil {
			return err
		}

		password, err := resolvePassword(userFlags.password, int(os.Stdin.Fd()), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		e, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		auth := services.NewAuthService(repositories.NewRepositories(e.db), bootstrap.NewJWTService(e.cfg), e.logger)
		user, err := auth.CreateAccount(cmd.Context(), role, &dto.RegisterRequest{
			Email:            userFlags.email,
			Password:         password,
			FullName:         userFlags.fullName,
			FirstName:        userFlags.firstName,
			LastName:         userFlags.lastName,
			College:          userFlags.college,
			Department:       userFlags.department,
			StudentRegNumber: userFlags.regNumber,
			YearOfStudy:      userFlags.year,
		})
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Created %s %q (id %d)\n", user.Role, user.Username, user.ID)
		return nil
	},
}

func init() {
	f := createUserCmd.Flags()
	f.StringVar(&userFlags.role, "role", "", "student, lecturer, hod, registrar or admin")
	f.StringVar(&userFlags.email, "email", "", "Email address")
	f.StringVar(&userFlags.password, "password", "", "Password (prompted when omitted)")
	f.StringVar(&userFlags.fullName, "full-name", "", "Full name")
	f.StringVar(&userFlags.firstName, "first-name", "", "First name (registrars)")
	f.StringVar(&userFlags.lastName, "last-name", "", "Last name (registrars)")
	f.StringVar(&userFlags.college, "college", "", "College, e.g. COCIS")
	f.StringVar(&userFlags.department, "department", "", "Department (required for hod)")
	f.StringVar(&userFlags.regNumber, "reg-number", "", "Student registration number")
	f.StringVar(&userFlags.year, "year", "", "Student year of study (1-6)")
	_ = createUserCmd.MarkFlagRequired("role")
	_ = createUserCmd.MarkFlagRequired("email")
}

func parseRole(s string) (models.Role, error) {
	role := models.Role(strings.ToLower(strings.TrimSpace(s)))
	if !role.Valid() {
		return "", fmt.Errorf("unknown role %q", s)
	}
	return role, nil
}

// resolvePassword returns flagValue, or prompts on fd without echo.
func resolvePassword(flagValue string, fd int, prompt io.Writer) (string, error) {
	if flagValue != "" {
		return flagValue, nil
	}
	if !isTerminalFunc(fd) {
		return "", errNoPassword
	}

	fmt.Fprint(prompt, "Password: ")
	first, err := readPasswordFunc(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}
	fmt.Fprint(prompt, "Repeat password: ")
	second, err := readPasswordFunc(fd)
	fmt.Fprintln(prompt)
	if err != nil {
		return "", fmt.Errorf("read password: %w", err)
	}

	if len(first) == 0 {
		return "", errNoPassword
	}
	if string(first) != string(second) {
		return "", errors.New("passwords do not match")
	}
	return string(first), nil
}

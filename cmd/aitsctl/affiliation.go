package main

import (
	"errors"
	"fmt"

	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/app/services"
	"github.com/spf13/cobra"
)

var affiliationFlags struct {
	username   string
	college    string
	department string
}

var setAffiliationCmd = &cobra.Command{
	Use:   "set-affiliation",
	Short: "Move a user to another college or department",
	Long: `set-affiliation changes the college and/or department of an account.
These fields decide which issues a user may see, so the API does not let
users edit them on their own profile.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		flags := cmd.Flags()
		var college, department *string
		if flags.Changed("college") {
			college = &affiliationFlags.college
		}
		if flags.Changed("department") {
			department = &affiliationFlags.department
		}
		if college == nil && department == nil {
			return errors.New("nothing to change: pass --college and/or --department")
		}

		e, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		store := repositories.NewRepositories(e.db)
		user, err := store.Users().GetByUsername(cmd.Context(), affiliationFlags.username)
		if err != nil {
			return fmt.Errorf("look up %q: %w", affiliationFlags.username, err)
		}

		profiles := services.NewProfileService(store, e.logger)
		resp, err := profiles.SetAffiliation(cmd.Context(), user.ID, college, department)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s %q now belongs to college %q, department %q\n",
			resp.Role, resp.Username, resp.College, resp.Department)
		return nil
	},
}

func init() {
	f := setAffiliationCmd.Flags()
	f.StringVar(&affiliationFlags.username, "user", "", "Username (registration number for students, email otherwise)")
	f.StringVar(&affiliationFlags.college, "college", "", "New college")
	f.StringVar(&affiliationFlags.department, "department", "", "New department")
	_ = setAffiliationCmd.MarkFlagRequired("user")
}

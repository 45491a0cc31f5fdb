package main

import (
	"fmt"
	"os"

	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/app/services"
	"github.com/aits/backend/internal/bootstrap"
	"github.com/aits/backend/internal/seed"
	"github.com/spf13/cobra"
)

var seedFlags struct {
	college  string
	password string
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create demo accounts for one college",
	Long: `seed creates an administrator and one registrar, head of department,
lecturer and student for --college. Accounts whose email already exists are
left untouched, so the command is safe to rerun.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		password, err := resolvePassword(seedFlags.password, int(os.Stdin.Fd()), cmd.ErrOrStderr())
		if err != nil {
			return err
		}

		e, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		store := repositories.NewRepositories(e.db)
		auth := services.NewAuthService(store, bootstrap.NewJWTService(e.cfg), e.logger)
		n, err := seed.CreateDefaultData(cmd.Context(), store.Users(), auth,
			seed.DefaultAccounts(seedFlags.college, password), e.logger)
		fmt.Fprintf(cmd.OutOrStdout(), "Created %d account(s)\n", n)
		return err
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFlags.college, "college", "COCIS", "College the demo accounts belong to")
	seedCmd.Flags().StringVar(&seedFlags.password, "password", "", "Password for every demo account (prompted when omitted)")
}

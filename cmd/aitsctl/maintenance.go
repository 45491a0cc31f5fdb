package main

import (
	"fmt"

	"github.com/aits/backend/internal/app/repositories"
	"github.com/aits/backend/internal/bootstrap"
	"github.com/spf13/cobra"
)

var dispatchOutboxCmd = &cobra.Command{
	Use:   "dispatch-outbox",
	Short: "Send every email that is due once and exit",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		mailer, err := bootstrap.NewMailer(e.cfg, e.logger)
		if err != nil {
			return err
		}
		store := repositories.NewRepositories(e.db)
		res, err := bootstrap.NewDispatcher(e.cfg, store, mailer, e.logger).DrainOnce(cmd.Context())
		if err != nil {
			return err
		}

		fmt.Fprintf(cmd.OutOrStdout(), "claimed=%d sent=%d retried=%d failed=%d\n", res.Claimed, res.Sent, res.Retried, res.Failed)

		counts, err := store.Outbox().CountByStatus(cmd.Context())
		if err != nil {
			return err
		}
		for status, n := range counts {
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d\n", status, n)
		}
		return nil
	},
}

var cleanupTokensCmd = &cobra.Command{
	Use:   "cleanup-tokens",
	Short: "Delete expired and revoked refresh tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := repositories.NewRepositories(e.db).Tokens().CleanupExpiredTokens(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Removed %d refresh token(s)\n", n)
		return nil
	},
}

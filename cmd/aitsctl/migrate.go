package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/aits/backend/internal/app/migrations"
	"github.com/aits/backend/internal/bootstrap"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		n, err := bootstrap.RunMigrations(cmd.Context(), e.cfg, e.db, e.logger)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Applied %d migration(s)\n", n)
		return nil
	},
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "List migrations and whether they have been applied",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		e, err := connect(cmd.Context())
		if err != nil {
			return err
		}
		defer e.Close()

		list, err := migrations.NewMigrator(e.db.Pool, e.logger).Status(cmd.Context(), e.cfg.Database.MigrationsDir)
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tFILE\tAPPLIED")
		for _, m := range list {
			applied := "pending"
			if m.AppliedAt != nil {
				applied = m.AppliedAt.Format("2006-01-02 15:04:05")
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", m.Version, m.File, applied)
		}
		return w.Flush()
	},
}

func init() {
	migrateCmd.AddCommand(migrateStatusCmd)
}

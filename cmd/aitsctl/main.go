// Command aitsctl runs maintenance tasks against the AITS database: schema
// migrations, account provisioning for privileged roles, demo data and one-off outbox
// and token housekeeping.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/aits/backend/internal/bootstrap"
	"github.com/aits/backend/internal/config"
	"github.com/aits/backend/internal/db"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "aitsctl",
	Short: "Administrative tasks for the Academic Issue Tracking System",
	Long: `aitsctl talks to the AITS database directly, using the same configuration
file and environment variables as the API server.

Examples:
  aitsctl migrate                          # apply pending migrations
  aitsctl migrate status                   # list migrations and when they ran
  aitsctl create-user --role admin --email admin@mak.ac.ug
  aitsctl dispatch-outbox                  # send due emails once
  aitsctl cleanup-tokens                   # purge expired refresh tokens
  aitsctl seed --college COCIS             # create demo accounts
  aitsctl set-affiliation --user 21/U/12345 --college CEDAT`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config.yaml (defaults to $CONFIG_PATH or "+bootstrap.DefaultConfigPath+")")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(createUserCmd)
	rootCmd.AddCommand(dispatchOutboxCmd)
	rootCmd.AddCommand(cleanupTokensCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(setAffiliationCmd)
}

// env is what every subcommand needs.
type env struct {
	cfg    *config.Config
	db     *db.PostgresDB
	logger zerolog.Logger
}

func (e *env) Close() {
	if e.db != nil {
		e.db.Close()
	}
}

func connect(ctx context.Context) (*env, error) {
	cfg, lgr, err := bootstrap.LoadConfigAndSetupLogger(configPath)
	if err != nil {
		return nil, err
	}
	database, err := db.NewPostgresDB(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return &env{cfg: cfg, db: database, logger: lgr}, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error: "+err.Error())
		os.Exit(1)
	}
}

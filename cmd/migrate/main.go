package main

import (
	"database/sql"
	"fmt"
	"os"
	"strconv"

	_ "github.com/lib/pq"
	"github.com/spf13/cobra"

	"github.com/imuhira/backend/config"
	"github.com/imuhira/backend/internal/database"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:          "migrate",
		Short:        "Manage the Imuhira database schema",
		SilenceUsage: true,
	}
	root.AddCommand(newUpCmd(), newDownCmd(), newStatusCmd())
	return root
}

func newUpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply every pending migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(db *sql.DB) error {
				if err := database.RunMigrations(db); err != nil {
					return fmt.Errorf("migration failed: %w", err)
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Migrations completed successfully")
				return nil
			})
		},
	}
}

func newDownCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "down [steps]",
		Short: "Roll back the newest migrations (default 1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			steps := 1
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil || n <= 0 {
					return fmt.Errorf("steps must be a positive integer, got %q", args[0])
				}
				steps = n
			}

			return withDB(func(db *sql.DB) error {
				reverted, err := database.RollbackMigrations(db, steps)
				for _, version := range reverted {
					fmt.Fprintf(cmd.OutOrStdout(), "Rolled back version %d\n", version)
				}
				if err != nil {
					return err
				}
				if len(reverted) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "Nothing to roll back")
				}
				return nil
			})
		},
	}
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "List applied and pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDB(func(db *sql.DB) error {
				applied, err := database.AppliedMigrations(db)
				if err != nil {
					return err
				}

				out := cmd.OutOrStdout()
				fmt.Fprintln(out, "\nApplied Migrations:")
				fmt.Fprintln(out, "-------------------")
				done := make(map[int]bool, len(applied))
				for _, m := range applied {
					done[m.Version] = true
					fmt.Fprintf(out, "Version %d - Applied at: %s\n", m.Version, m.AppliedAt.Format("2006-01-02 15:04:05"))
				}

				for _, m := range database.Migrations {
					if !done[m.Version] {
						fmt.Fprintf(out, "Version %d - Pending\n", m.Version)
					}
				}
				return nil
			})
		},
	}
}

func withDB(fn func(db *sql.DB) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	db, err := sql.Open("postgres", cfg.GetDSN())
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return fn(db)
}

package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/banshee-data/bugtracker/internal/db"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the run catalog schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: withCatalog(func(cmd *cobra.Command, database *db.DB, args []string) error {
		if err := database.MigrateUp(db.MigrationsFS()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "All migrations applied successfully")
		return nil
	}),
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back the most recent migration",
	Args:  cobra.NoArgs,
	RunE: withCatalog(func(cmd *cobra.Command, database *db.DB, args []string) error {
		if err := database.MigrateDown(db.MigrationsFS()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Rolled back one migration")
		return nil
	}),
}

var migrateStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current and latest schema versions",
	Args:  cobra.NoArgs,
	RunE: withCatalog(func(cmd *cobra.Command, database *db.DB, args []string) error {
		fsys := db.MigrationsFS()
		current, dirty, err := database.MigrateVersion(fsys)
		if err != nil {
			return err
		}
		latest, err := db.LatestMigration(fsys)
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "current version: %d\n", current)
		fmt.Fprintf(out, "latest version:  %d\n", latest)
		if dirty {
			fmt.Fprintln(out, "state: dirty, run 'migrate force <version>' after fixing the schema")
		} else if current < latest {
			fmt.Fprintf(out, "state: %d pending\n", latest-current)
		} else {
			fmt.Fprintln(out, "state: up to date")
		}
		return nil
	}),
}

var migrateForceCmd = &cobra.Command{
	Use:   "force <version>",
	Short: "Set the schema version without running migrations",
	Args:  cobra.ExactArgs(1),
	RunE: withCatalog(func(cmd *cobra.Command, database *db.DB, args []string) error {
		v, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		if err := database.MigrateForce(db.MigrationsFS(), v); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Forced schema version to %d\n", v)
		return nil
	}),
}

func init() {
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateStatusCmd, migrateForceCmd)
}

// withCatalog opens the catalog without migrating it, so the migrate
// commands see the schema as it is.
func withCatalog(fn func(*cobra.Command, *db.DB, []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		database, err := db.OpenDB(cfg.GetDatabasePath())
		if err != nil {
			return err
		}
		defer database.Close()
		return fn(cmd, database, args)
	}
}

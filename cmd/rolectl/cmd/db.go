package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"rolesync/internal/platform/postgres"
)

var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Database management commands",
	Long:  `Commands for managing database migrations and schema.`,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply all pending migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.Migrate(db); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		version, dirty, err := postgres.Version(db)
		if err != nil {
			return err
		}
		cmd.Printf("schema at version %d (dirty=%t)\n", version, dirty)
		return nil
	},
}

var dbRollbackCmd = &cobra.Command{
	Use:   "rollback [steps]",
	Short: "Roll back migrations, one step by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		steps := 1
		if len(args) == 1 {
			n, err := strconv.Atoi(args[0])
			if err != nil || n < 1 {
				return fmt.Errorf("steps must be a positive integer, got %q", args[0])
			}
			steps = n
		}
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := postgres.MigrateDown(db, steps); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		cmd.Printf("rolled back %d migration(s)\n", steps)
		return nil
	},
}

var dbStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the current schema version",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB(cmd)
		if err != nil {
			return err
		}
		defer db.Close()

		version, dirty, err := postgres.Version(db)
		if err != nil {
			return err
		}
		if version == 0 {
			cmd.Println("no migrations applied")
			return nil
		}
		cmd.Printf("schema at version %d (dirty=%t)\n", version, dirty)
		return nil
	},
}

func init() {
	dbCmd.AddCommand(dbMigrateCmd)
	dbCmd.AddCommand(dbRollbackCmd)
	dbCmd.AddCommand(dbStatusCmd)
}

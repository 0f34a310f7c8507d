package cmd

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"rolesync/internal/app"
	"rolesync/internal/platform/postgres"
	"rolesync/internal/roles/models"
	id "rolesync/pkg/domain"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve <account-id>",
	Short: "Run role resolution for an account and print the corrections",
	Long: `Resolves the account's role set the same way sign-in does: provisions an
emergency role for new accounts with none, repairs the single-active rule
and schedules creation of expected roles that are missing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := id.ParseAccountID(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id: %w", err)
		}
		return withApp(cmd.Context(), cmd.ErrOrStderr(), func(a *app.App) error {
			result, err := a.Resolver.Resolve(cmd.Context(), accountID)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), result)
		})
	},
}

var unsyncCmd = &cobra.Command{
	Use:   "unsync <account-id> <role-type> <property-id>",
	Short: "Remove a synced property association from a role",
	Args:  cobra.ExactArgs(3),
	RunE: func(cmd *cobra.Command, args []string) error {
		accountID, err := id.ParseAccountID(args[0])
		if err != nil {
			return fmt.Errorf("invalid account id: %w", err)
		}
		roleType, err := models.ParseRoleType(args[1])
		if err != nil {
			return err
		}
		propertyID, err := id.ParsePropertyID(args[2])
		if err != nil {
			return fmt.Errorf("invalid property id: %w", err)
		}
		return withApp(cmd.Context(), cmd.ErrOrStderr(), func(a *app.App) error {
			removed, err := a.Syncer.UnsyncProperty(cmd.Context(), accountID, roleType, propertyID)
			if err != nil {
				return err
			}
			if !removed {
				cmd.Println("no association found")
				return nil
			}
			cmd.Println("association removed")
			return nil
		})
	},
}

func openDB(cmd *cobra.Command) (*sql.DB, error) {
	if cfg.Database.URL == "" {
		return nil, errors.New("database required: set DATABASE_URL or --db-url")
	}
	db, err := postgres.Open(cmd.Context(), postgres.Config{URL: cfg.Database.URL})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return db, nil
}

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"rolesync/internal/app"
	"rolesync/internal/platform/config"
	"rolesync/internal/platform/logger"
)

var cfg config.Config

var rootCmd = &cobra.Command{
	Use:   "rolectl",
	Short: "Operator tooling for rolesync",
	Long: `rolectl runs schema migrations and repairs account role state
against the same stores the rolesync server uses.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.FromEnv()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		if url, _ := cmd.Flags().GetString("db-url"); url != "" {
			cfg.Database.URL = url
		}
		if debug, _ := cmd.Flags().GetBool("debug"); debug {
			cfg.Log.Level = "debug"
		}
		cfg.Log.Format = "text"
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().String("db-url", "", "Database connection URL (env: DATABASE_URL)")
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging (env: LOG_LEVEL)")

	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(unsyncCmd)
}

// Execute runs the root command
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		stop()
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// withApp builds the services for one command and closes them afterwards.
// Notifications still flow to the configured sinks.
func withApp(ctx context.Context, stderr io.Writer, fn func(*app.App) error) error {
	log := logger.New(stderr, "rolectl", cfg.Log)
	services, err := app.New(ctx, cfg, log, prometheus.NewRegistry())
	if err != nil {
		return err
	}
	defer services.Close()
	return fn(services)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

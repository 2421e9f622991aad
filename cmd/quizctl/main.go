package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mind-engage/mindengage-quiz/internal/config"
	"github.com/mind-engage/mindengage-quiz/internal/db"
)

var rootCmd = &cobra.Command{
	Use:           "quizctl",
	Short:         "Operator tool for the quiz service",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().String("env-file", "", "Path to a .env file (defaults to ./.env when present)")
	rootCmd.PersistentFlags().String("driver", "", "Database driver, sqlite or postgres (overrides DB_DRIVER)")
	rootCmd.PersistentFlags().String("dsn", "", "Database DSN (overrides DB_DSN)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(userCmd)
	rootCmd.AddCommand(tokenCmd)
	rootCmd.AddCommand(progressCmd)
	rootCmd.AddCommand(eventsCmd)
}

// loadConfig resolves configuration with flags taking priority over the
// environment and the .env file.
func loadConfig(cmd *cobra.Command) (config.Config, error) {
	var files []string
	if p, _ := cmd.Flags().GetString("env-file"); p != "" {
		files = append(files, p)
	}
	cfg, err := config.Load(files...)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if d, _ := cmd.Flags().GetString("driver"); d != "" {
		cfg.DBDriver = d
	}
	if dsn, _ := cmd.Flags().GetString("dsn"); dsn != "" {
		cfg.DBDSN = dsn
	}
	return cfg, nil
}

func openDB(ctx context.Context, cfg config.Config) (*sql.DB, db.Driver, error) {
	driver, err := db.ParseDriver(cfg.DBDriver)
	if err != nil {
		return nil, "", err
	}
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	conn, err := db.Open(ctx, driver, cfg.DBDSN)
	if err != nil {
		return nil, "", fmt.Errorf("open database: %w", err)
	}
	return conn, driver, nil
}

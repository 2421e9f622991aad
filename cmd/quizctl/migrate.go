package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// db.Open applies the schema, so migrating is opening and closing.
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		conn, driver, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()
		fmt.Fprintf(cmd.OutOrStdout(), "schema up to date (%s)\n", driver)
		return nil
	},
}

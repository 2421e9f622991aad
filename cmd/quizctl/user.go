package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage local accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username>",
	Short: "Create a local account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, _ := cmd.Flags().GetString("password")
		role, _ := cmd.Flags().GetString("role")
		school, _ := cmd.Flags().GetString("school")
		if password == "" {
			return errors.New("--password is required")
		}
		if !rbac.ValidRole(role) {
			return fmt.Errorf("unknown role %q (one of %s)", role, strings.Join(rbac.AllRoles, ", "))
		}

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		conn, _, err := openDB(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		defer conn.Close()

		u, err := auth.NewUserStore(conn).Create(cmd.Context(), args[0], password, role, school)
		if err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "created %s (%s) id=%s\n", u.Username, u.Role, u.ID)
		return nil
	},
}

func init() {
	userAddCmd.Flags().String("password", "", "Initial password")
	userAddCmd.Flags().String("role", rbac.RoleStudent, "Role")
	userAddCmd.Flags().String("school", "", "School id for learners and supervisors")
	userCmd.AddCommand(userAddCmd)
}

package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Bearer tokens",
}

var tokenIssueCmd = &cobra.Command{
	Use:   "issue",
	Short: "Issue a bearer token for a local user or an explicit identity",
	Long: "With --user the identity is read from the users table. Otherwise --sub and --role\n" +
		"build the identity directly, which is useful when accounts live elsewhere.",
	RunE: func(cmd *cobra.Command, args []string) error {
		user, _ := cmd.Flags().GetString("user")
		sub, _ := cmd.Flags().GetString("sub")
		role, _ := cmd.Flags().GetString("role")
		school, _ := cmd.Flags().GetString("school")

		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		var id rbac.Identity
		switch {
		case user != "":
			conn, _, err := openDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			u, err := auth.NewUserStore(conn).Find(cmd.Context(), user)
			if err != nil {
				return fmt.Errorf("find user %q: %w", user, err)
			}
			id = u.Identity()
		case sub != "":
			if !rbac.ValidRole(role) {
				return fmt.Errorf("unknown role %q", role)
			}
			id = rbac.Identity{UserID: sub, Role: role, SchoolID: school}
		default:
			return errors.New("either --user or --sub is required")
		}

		tok, err := auth.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL).IssueJWT(id)
		if err != nil {
			return fmt.Errorf("issue token: %w", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), tok)
		return nil
	},
}

func init() {
	tokenIssueCmd.Flags().String("user", "", "Username or id of a local account")
	tokenIssueCmd.Flags().String("sub", "", "Subject for a token without a local account")
	tokenIssueCmd.Flags().String("role", rbac.RoleStudent, "Role used with --sub")
	tokenIssueCmd.Flags().String("school", "", "School id used with --sub")
	tokenCmd.AddCommand(tokenIssueCmd)
}

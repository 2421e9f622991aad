package auth

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// AttachIdentityFromDB makes the users table authoritative for role and school
// of token holders it knows. Unknown subjects keep their token claims only when
// allowClaimFallback is set (dev/offline, or an external issuer).
func AttachIdentityFromDB(users *UserStore, allowClaimFallback bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			claimed, ok := rbac.IdentityFromContext(ctx)
			if !ok {
				http.Error(w, "unauthenticated", http.StatusUnauthorized)
				return
			}

			u, err := users.FindByID(ctx, claimed.UserID)
			switch {
			case err == nil:
				id := u.Identity()
				next.ServeHTTP(w, r.WithContext(rbac.WithIdentity(ctx, id)))
				return

			case errors.Is(err, ErrUserNotFound) || isUsersTableMissing(err):
				if allowClaimFallback && claimed.Role != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
				return

			default:
				slog.WarnContext(ctx, "identity lookup failed", "sub", claimed.UserID, "err", err)
				if allowClaimFallback && claimed.Role != "" {
					next.ServeHTTP(w, r)
					return
				}
				http.Error(w, "forbidden", http.StatusForbidden)
			}
		})
	}
}

func isUsersTableMissing(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table: users") || // sqlite
		strings.Contains(msg, `relation "users" does not exist`) // postgres
}

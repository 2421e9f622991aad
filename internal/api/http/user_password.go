package http

import (
	"errors"
	"net/http"

	auth "github.com/mind-engage/mindengage-quiz/internal/auth/middleware"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

type changePasswordReq struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8,nefield=OldPassword"`
}

// POST /users/change-password for accounts in the local users table.
func ChangePasswordHandler(users *auth.UserStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := rbac.SubjectFromContext(r.Context())
		var req changePasswordReq
		if !decode(w, r, &req) {
			return
		}
		err := users.ChangePassword(r.Context(), userID, req.OldPassword, req.NewPassword)
		switch {
		case errors.Is(err, auth.ErrUserNotFound):
			writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found", Message: "no local account for this user"})
			return
		case errors.Is(err, auth.ErrWrongPassword):
			writeJSON(w, http.StatusForbidden, errorBody{Error: "forbidden", Message: "incorrect old password"})
			return
		case err != nil:
			writeError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

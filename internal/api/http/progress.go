package http

import (
	"net/http"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

// GET /user-progress/my: every snapshot of the caller, whatever their role.
func MyProgressHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me, _ := rbac.IdentityFromContext(r.Context())
		list, err := store.ListProgress(r.Context(), quiz.ProgressFilter{
			Scope: rbac.Scope{UserID: me.UserID},
			Limit: 500,
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /user-progress?quiz=&user=&school=
func ListProgressHandler(store quiz.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		viewer, _ := rbac.IdentityFromContext(r.Context())
		qs := r.URL.Query()
		list, err := store.ListProgress(r.Context(), quiz.ProgressFilter{
			Scope:    rbac.ScopeFor(viewer),
			QuizID:   qs.Get("quiz"),
			UserID:   qs.Get("user"),
			SchoolID: qs.Get("school"),
			Limit:    parseIntDefault(qs.Get("limit"), 100),
			Offset:   parseIntDefault(qs.Get("offset"), 0),
		})
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

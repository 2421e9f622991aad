package rbac

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequire(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) })
	h := Require(PermQuizEdit)(ok)

	tests := []struct {
		name string
		id   *Identity
		want int
	}{
		{"no identity", nil, http.StatusUnauthorized},
		{"student", &Identity{UserID: "s", Role: RoleStudent}, http.StatusForbidden},
		{"content manager", &Identity{UserID: "cm", Role: RoleContentManager}, http.StatusNoContent},
		{"admin", &Identity{UserID: "a", Role: RoleAdmin}, http.StatusNoContent},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/quizzes", nil)
			if tc.id != nil {
				r = r.WithContext(WithIdentity(r.Context(), *tc.id))
			}
			w := httptest.NewRecorder()
			h.ServeHTTP(w, r)
			assert.Equal(t, tc.want, w.Code)
		})
	}
}

func TestRequireAny(t *testing.T) {
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := RequireAny(PermProgressViewOwn, PermProgressViewSchool)(ok)

	r := httptest.NewRequest(http.MethodGet, "/user-progress", nil)
	r = r.WithContext(WithIdentity(r.Context(), Identity{UserID: "t", Role: RoleTeacher}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
}

package auth

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/mindengage-quiz/internal/db"
	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

func openDB(t *testing.T) *sql.DB {
	t.Helper()
	conn, err := db.Open(context.Background(), db.DriverSQLite, "file:auth_"+uuid.NewString()+"?mode=memory&cache=shared")
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestIssueAndParse(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	tok, err := a.IssueJWT(rbac.Identity{UserID: "u1", Role: rbac.RoleTeacher, SchoolID: "s1"})
	require.NoError(t, err)

	c, err := a.Parse(tok)
	require.NoError(t, err)
	assert.Equal(t, rbac.Identity{UserID: "u1", Role: rbac.RoleTeacher, SchoolID: "s1"}, c.Identity())

	_, err = NewAuthService("other", time.Hour).Parse(tok)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestParse_RejectsNoneAlg(t *testing.T) {
	claims := &Claims{Sub: "u1", Role: rbac.RoleAdmin}
	tok, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = NewAuthService("secret", time.Hour).Parse(tok)
	assert.Error(t, err)
}

func TestJWTMiddleware(t *testing.T) {
	a := NewAuthService("secret", time.Hour)
	var got rbac.Identity
	h := JWTMiddleware(a)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = rbac.IdentityFromContext(r.Context())
	}))

	w := httptest.NewRecorder()
	h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer nope")
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	tok, err := a.IssueJWT(rbac.Identity{UserID: "u1", Role: rbac.RoleStudent})
	require.NoError(t, err)
	r = httptest.NewRequest(http.MethodGet, "/", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	w = httptest.NewRecorder()
	h.ServeHTTP(w, r)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, rbac.RoleStudent, got.Role)
}

func TestLogin(t *testing.T) {
	conn := openDB(t)
	users := NewUserStore(conn)
	a := NewAuthService("secret", time.Hour)

	u, err := users.Create(context.Background(), "alice", "pw", rbac.RoleStudent, "s1")
	require.NoError(t, err)
	_, err = users.Create(context.Background(), "alice", "pw2", rbac.RoleStudent, "")
	assert.ErrorIs(t, err, ErrUserExists)
	_, err = users.Create(context.Background(), "bob", "pw", "wizard", "")
	assert.Error(t, err)

	h := LoginHandler(a, users)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/auth/login", bytes.NewBufferString(body)))
		return w
	}

	assert.Equal(t, http.StatusUnauthorized, post(`{"username":"alice","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, post(`{"username":"nobody","password":"pw"}`).Code)
	assert.Equal(t, http.StatusBadRequest, post(`{"username":"alice"}`).Code)

	w := post(`{"username":"alice","password":"pw"}`)
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		AccessToken string `json:"access_token"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	c, err := a.Parse(resp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, u.Identity(), c.Identity())
}

func TestAttachIdentityFromDB(t *testing.T) {
	conn := openDB(t)
	users := NewUserStore(conn)
	u, err := users.Create(context.Background(), "tina", "pw", rbac.RoleTeacher, "s9")
	require.NoError(t, err)

	run := func(claimed rbac.Identity, fallback bool) (int, rbac.Identity) {
		var got rbac.Identity
		h := AttachIdentityFromDB(users, fallback)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got, _ = rbac.IdentityFromContext(r.Context())
		}))
		r := httptest.NewRequest(http.MethodGet, "/", nil)
		r = r.WithContext(rbac.WithIdentity(r.Context(), claimed))
		w := httptest.NewRecorder()
		h.ServeHTTP(w, r)
		return w.Code, got
	}

	code, got := run(rbac.Identity{UserID: u.ID, Role: rbac.RoleAdmin}, false)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, rbac.RoleTeacher, got.Role, "db role wins over claim")
	assert.Equal(t, "s9", got.SchoolID)

	code, _ = run(rbac.Identity{UserID: "external", Role: rbac.RoleStudent}, false)
	assert.Equal(t, http.StatusForbidden, code)

	code, got = run(rbac.Identity{UserID: "external", Role: rbac.RoleStudent}, true)
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "external", got.UserID)
}

func TestAttachIdentityFromDB_SubjectIsNotAUsername(t *testing.T) {
	conn := openDB(t)
	users := NewUserStore(conn)
	_, err := users.Create(context.Background(), "boss", "pw", rbac.RoleAdmin, "")
	require.NoError(t, err)

	var got rbac.Identity
	h := AttachIdentityFromDB(users, true)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, _ = rbac.IdentityFromContext(r.Context())
	}))
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r = r.WithContext(rbac.WithIdentity(r.Context(), rbac.Identity{UserID: "boss", Role: rbac.RoleStudent, SchoolID: "s2"}))
	w := httptest.NewRecorder()
	h.ServeHTTP(w, r)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "boss", got.UserID)
	assert.Equal(t, rbac.RoleStudent, got.Role, "token subject must not pick up the admin named boss")
	assert.Equal(t, "s2", got.SchoolID)

	r = r.WithContext(rbac.WithIdentity(context.Background(), rbac.Identity{UserID: "boss", Role: rbac.RoleStudent}))
	w = httptest.NewRecorder()
	AttachIdentityFromDB(users, false)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {})).ServeHTTP(w, r)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestUserStore_Lookups(t *testing.T) {
	ctx := context.Background()
	users := NewUserStore(openDB(t))
	u, err := users.Create(ctx, "ana", "pw", rbac.RoleStudent, "s1")
	require.NoError(t, err)

	_, err = users.FindByID(ctx, "ana")
	assert.ErrorIs(t, err, ErrUserNotFound)
	got, err := users.FindByUsername(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
	got, err = users.Find(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, "ana", got.Username)
	got, err = users.Find(ctx, "ana")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)
}

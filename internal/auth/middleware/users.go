package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mind-engage/mindengage-quiz/internal/rbac"
)

var (
	ErrUserNotFound  = errors.New("user not found")
	ErrUserExists    = errors.New("user already exists")
	ErrWrongPassword = errors.New("incorrect password")
)

type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	PasswordHash string `json:"-"`
	Role         string `json:"role"`
	SchoolID     string `json:"school_id,omitempty"`
	CreatedAt    int64  `json:"created_at"`
}

func (u User) Identity() rbac.Identity {
	return rbac.Identity{UserID: u.ID, Role: u.Role, SchoolID: u.SchoolID}
}

// UserStore is the minimal identity table used for local login and for
// refreshing roles of token holders.
type UserStore struct{ db *sql.DB }

func NewUserStore(db *sql.DB) *UserStore { return &UserStore{db: db} }

func (s *UserStore) Create(ctx context.Context, username, password, role, schoolID string) (User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return User{}, errors.New("username and password are required")
	}
	if !rbac.ValidRole(role) {
		return User{}, fmt.Errorf("unknown role %q", role)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	u := User{
		ID:           uuid.NewString(),
		Username:     username,
		PasswordHash: string(hash),
		Role:         role,
		SchoolID:     strings.TrimSpace(schoolID),
		CreatedAt:    time.Now().Unix(),
	}
	var exists int
	err = s.db.QueryRowContext(ctx, `SELECT 1 FROM users WHERE username=$1`, u.Username).Scan(&exists)
	switch {
	case err == nil:
		return User{}, ErrUserExists
	case !errors.Is(err, sql.ErrNoRows):
		return User{}, err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO users (id,username,password_hash,role,school_id,created_at) VALUES ($1,$2,$3,$4,$5,$6)`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.SchoolID, u.CreatedAt)
	if err != nil {
		return User{}, err
	}
	return u, nil
}

// Find looks a user up by id, then by username. Operator tooling only.
func (s *UserStore) Find(ctx context.Context, idOrUsername string) (User, error) {
	u, err := s.FindByID(ctx, idOrUsername)
	if errors.Is(err, ErrUserNotFound) {
		return s.FindByUsername(ctx, idOrUsername)
	}
	return u, err
}

func (s *UserStore) FindByID(ctx context.Context, id string) (User, error) {
	return s.findBy(ctx, "id", id)
}

func (s *UserStore) FindByUsername(ctx context.Context, username string) (User, error) {
	return s.findBy(ctx, "username", username)
}

// findBy reads one user by a unique column; col is never user input.
func (s *UserStore) findBy(ctx context.Context, col, v string) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx,
		`SELECT id,username,password_hash,role,school_id,created_at FROM users WHERE `+col+`=$1`, v,
	).Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.SchoolID, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, ErrUserNotFound
	}
	return u, err
}

// Authenticate checks a username/password pair.
func (s *UserStore) Authenticate(ctx context.Context, username, password string) (User, error) {
	u, err := s.FindByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return User{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return User{}, ErrUserNotFound
	}
	return u, nil
}

// ChangePassword replaces the password of userID after checking the old one.
func (s *UserStore) ChangePassword(ctx context.Context, userID, oldPassword, newPassword string) error {
	var stored string
	err := s.db.QueryRowContext(ctx, `SELECT password_hash FROM users WHERE id=$1`, userID).Scan(&stored)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrUserNotFound
	}
	if err != nil {
		return err
	}
	if bcrypt.CompareHashAndPassword([]byte(stored), []byte(oldPassword)) != nil {
		return ErrWrongPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE users SET password_hash=$1 WHERE id=$2`, string(hash), userID)
	return err
}

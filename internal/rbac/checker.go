package rbac

import (
	"context"
	"strings"
)

type Checker struct {
	RolePermissions map[string][]string
}

func NewChecker(rp map[string][]string) *Checker {
	if rp == nil {
		rp = RolePermissions
	}
	return &Checker{RolePermissions: rp}
}

func (c *Checker) Has(role, perm string) bool {
	perms, ok := c.RolePermissions[role]
	if !ok {
		return false
	}
	for _, p := range perms {
		if matchPerm(p, perm) {
			return true
		}
	}
	return false
}

func (c *Checker) Any(role string, perms ...string) bool {
	for _, p := range perms {
		if c.Has(role, p) {
			return true
		}
	}
	return false
}

func (c *Checker) All(role string, perms ...string) bool {
	for _, p := range perms {
		if !c.Has(role, p) {
			return false
		}
	}
	return true
}

func matchPerm(pattern, perm string) bool {
	if pattern == "*" || pattern == perm {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(perm, strings.TrimSuffix(pattern, "*"))
	}
	return false
}

// Can reports whether the default policy grants perm to role.
func Can(role, perm string) bool { return defaultChecker.Has(role, perm) }

// ---- identity in context ----

// Identity is the authenticated caller as established by the auth middleware.
type Identity struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	SchoolID string `json:"school_id,omitempty"`
}

type ctxKey struct{}

var ctxKeyIdentity = ctxKey{}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, ctxKeyIdentity, id)
}

func IdentityFromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(ctxKeyIdentity).(Identity)
	return id, ok && id.UserID != ""
}

// WithRole replaces the role of the identity in ctx.
func WithRole(ctx context.Context, role string) context.Context {
	id, _ := ctx.Value(ctxKeyIdentity).(Identity)
	id.Role = role
	return WithIdentity(ctx, id)
}

func RoleFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyIdentity).(Identity)
	return id.Role
}

func SubjectFromContext(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyIdentity).(Identity)
	return id.UserID
}

package rbac

// Learner identifies whose records are being read.
type Learner struct {
	UserID   string
	SchoolID string
}

func supervises(role string) bool {
	switch role {
	case RoleTeacher, RoleExpert, RoleSchoolAdmin:
		return true
	}
	return false
}

// CanViewLearner decides whether viewer may read owner's answers and progress.
// Admins see everyone, supervisors see learners of their own school, everyone
// else sees only themselves.
func CanViewLearner(viewer Identity, owner Learner) bool {
	if viewer.UserID == "" {
		return false
	}
	if viewer.UserID == owner.UserID {
		return true
	}
	switch {
	case viewer.Role == RoleAdmin:
		return true
	case supervises(viewer.Role):
		return viewer.SchoolID != "" && viewer.SchoolID == owner.SchoolID
	}
	return false
}

// Scope restricts list queries to the rows a viewer may read.
// The zero Scope matches nothing.
type Scope struct {
	All      bool
	SchoolID string
	UserID   string
}

// ScopeFor derives the list scope matching CanViewLearner.
func ScopeFor(viewer Identity) Scope {
	switch {
	case viewer.UserID == "":
		return Scope{}
	case viewer.Role == RoleAdmin:
		return Scope{All: true}
	case supervises(viewer.Role) && viewer.SchoolID != "":
		return Scope{SchoolID: viewer.SchoolID, UserID: viewer.UserID}
	}
	return Scope{UserID: viewer.UserID}
}

// Allows reports whether a record owned by l falls inside s.
func (s Scope) Allows(l Learner) bool {
	switch {
	case s.All:
		return true
	case s.SchoolID != "" && l.SchoolID == s.SchoolID:
		return true
	}
	return s.UserID != "" && l.UserID == s.UserID
}

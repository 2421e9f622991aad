package rbac

const (
	RoleUser           = "user"
	RoleStudent        = "student"
	RoleTeacher        = "teacher"
	RoleExpert         = "expert"
	RoleSchoolAdmin    = "school_admin"
	RoleContentManager = "content_manager"
	RoleAdmin          = "admin"
)

var AllRoles = []string{RoleUser, RoleStudent, RoleTeacher, RoleExpert, RoleSchoolAdmin, RoleContentManager, RoleAdmin}

const (
	PermQuizView           = "quiz:view"
	PermQuizEdit           = "quiz:edit"
	PermAnswerSubmit       = "answer:submit"
	PermAnswerViewOwn      = "answer:view-own"
	PermAnswerViewSchool   = "answer:view-school"
	PermProgressViewOwn    = "progress:view-own"
	PermProgressViewSchool = "progress:view-school"
	PermEventsRead         = "events:read"
	PermChangePassword     = "user:change_password"
)

var learner = []string{
	PermQuizView,
	PermChangePassword,
	PermAnswerSubmit,
	PermAnswerViewOwn,
	PermProgressViewOwn,
}

var supervisor = append(append([]string{}, learner...),
	PermAnswerViewSchool,
	PermProgressViewSchool,
)

var contentManager = append(append([]string{}, learner...), "quiz:*")

// RolePermissions is the default policy.
var RolePermissions = map[string][]string{
	RoleUser:           learner,
	RoleStudent:        learner,
	RoleTeacher:        supervisor,
	RoleExpert:         supervisor,
	RoleSchoolAdmin:    supervisor,
	RoleContentManager: contentManager,
	RoleAdmin:          {"*"}, // everything
}

// ValidRole reports whether role is one of the known roles.
func ValidRole(role string) bool {
	for _, r := range AllRoles {
		if r == role {
			return true
		}
	}
	return false
}

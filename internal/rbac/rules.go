package rbac

const (
	PermQuizCreate    = "quiz:create"
	PermQuizView      = "quiz:view"
	PermQuizViewKey   = "quiz:view-key"
	PermResultSubmit  = "result:submit"
	PermResultViewOwn = "result:view-own"
	PermResultViewAll = "result:view-all"
	PermResultExport  = "result:export"
	PermSessionCreate = "session:create"
	PermSessionView   = "session:view"
	PermSessionAnswer = "session:answer"
	PermSessionSubmit = "session:submit"
	PermEventView     = "event:view"
)

const (
	RoleStudent    = "student"
	RoleInstructor = "instructor"
	RoleAdmin      = "admin"
)

// Simple default policy. Expand as needed.
var RolePermissions = map[string][]string{
	RoleStudent: {
		PermQuizView,
		PermResultSubmit,
		PermResultViewOwn,
		"session:*",
	},
	RoleInstructor: {
		PermQuizCreate,
		PermQuizView,
		PermQuizViewKey,
		PermResultViewOwn,
		PermResultViewAll,
		PermResultExport,
		"session:*", // instructors may preview their own quizzes
		PermResultSubmit,
	},
	RoleAdmin: {
		"*", // everything
	},
}

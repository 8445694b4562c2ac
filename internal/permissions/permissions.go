package permissions

import "fmt"

// Permission names checked against roles.permissions.
const (
	ViewIssueAttachments   = "view_issue_attachments"
	EditIssueAttachments   = "edit_issue_attachments"
	DeleteIssueAttachments = "delete_issue_attachments"
	SaveQueries            = "save_queries"
	ManagePublicQueries    = "manage_public_queries"
)

// Builtin role identifiers.
const (
	BuiltinNonMember = 1
	BuiltinAnonymous = 2
)

// Scope describes the authorization context of the requesting user.
// It drives both the project-level permission condition and the
// saved-definition visibility condition.
type Scope struct {
	UserID         int64
	Logged         bool
	Admin          bool
	HasMemberships bool
	ProjectIDs     []int64
}

// Anonymous returns the scope of an unauthenticated request.
func Anonymous() Scope {
	return Scope{}
}

// Condition is a SQL fragment with `?` placeholders plus its arguments.
type Condition struct {
	SQL  string
	Args []interface{}
}

const memberRoleExists = "EXISTS (SELECT 1 FROM members m" +
	" INNER JOIN member_roles mr ON mr.member_id = m.id" +
	" INNER JOIN roles r ON r.id = mr.role_id" +
	" WHERE m.project_id = projects.id AND m.user_id = ? AND ? = ANY(r.permissions))"

// AllowedProjectsCondition builds the condition restricting projects to
// those where the scoped user holds the given permission. Placeholders
// use `?` and must be rebound for the target driver.
//
// Admins see every active project. Logged-in users see projects where a
// role granted through membership carries the permission, plus public
// projects where the non-member builtin role carries it. Anonymous
// users see public projects where the anonymous builtin role carries it.
func AllowedProjectsCondition(scope Scope, permission string) Condition {
	if scope.Admin {
		return Condition{SQL: "projects.status = 1"}
	}

	if scope.Logged {
		sql := fmt.Sprintf("projects.status = 1 AND (%s OR (projects.is_public = TRUE AND %s))",
			memberRoleExists, builtinRoleExists(BuiltinNonMember))
		return Condition{
			SQL:  sql,
			Args: []interface{}{scope.UserID, permission, permission},
		}
	}

	sql := fmt.Sprintf("projects.status = 1 AND projects.is_public = TRUE AND %s",
		builtinRoleExists(BuiltinAnonymous))
	return Condition{SQL: sql, Args: []interface{}{permission}}
}

func builtinRoleExists(builtin int) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM roles r WHERE r.builtin = %d AND ? = ANY(r.permissions))", builtin)
}

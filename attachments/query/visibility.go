package query

import (
	"fmt"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// MembershipRole is one (project, role) pair held by a user.
type MembershipRole struct {
	ProjectID int64 `db:"project_id"`
	RoleID    int64 `db:"role_id"`
}

// rolesIntersectionExists matches roles-visible definitions through the
// queries_roles join table. Global definitions match any membership of
// the user; project-bound definitions require the membership's project.
const rolesIntersectionExists = "EXISTS (SELECT 1 FROM queries_roles qr" +
	" INNER JOIN member_roles mr ON mr.role_id = qr.role_id" +
	" INNER JOIN members m ON m.id = mr.member_id" +
	" WHERE qr.query_id = attachment_queries.id AND m.user_id = ?" +
	" AND (attachment_queries.project_id IS NULL OR m.project_id = attachment_queries.project_id))"

// VisibleDefinitionsCondition builds the condition restricting
// attachment_queries rows to those the scoped user may see. Placeholders
// use `?`.
//
// Administrators see everything but other users' private definitions.
// Members see public definitions, roles-visible definitions where a held
// role matches, and their own. Logged-in non-members see public plus
// their own. Anonymous users see public only. Project-bound definitions
// additionally require view permission on their project.
func VisibleDefinitionsCondition(scope permissions.Scope) permissions.Condition {
	var sql string
	var args []interface{}

	switch {
	case scope.Admin:
		sql = "(attachment_queries.visibility <> ? OR attachment_queries.user_id = ?)"
		args = append(args, models.VisibilityPrivate, scope.UserID)

	case scope.Logged && scope.HasMemberships:
		sql = fmt.Sprintf("(attachment_queries.visibility = ?"+
			" OR (attachment_queries.visibility = ? AND %s)"+
			" OR attachment_queries.user_id = ?)", rolesIntersectionExists)
		args = append(args, models.VisibilityPublic, models.VisibilityRoles, scope.UserID, scope.UserID)

	case scope.Logged:
		sql = "(attachment_queries.visibility = ? OR attachment_queries.user_id = ?)"
		args = append(args, models.VisibilityPublic, scope.UserID)

	default:
		sql = "attachment_queries.visibility = ?"
		args = append(args, models.VisibilityPublic)
	}

	allowed := permissions.AllowedProjectsCondition(scope, permissions.ViewIssueAttachments)
	sql += fmt.Sprintf(" AND (attachment_queries.project_id IS NULL OR EXISTS"+
		" (SELECT 1 FROM projects WHERE projects.id = attachment_queries.project_id AND %s))", allowed.SQL)
	args = append(args, allowed.Args...)

	return permissions.Condition{SQL: sql, Args: args}
}

// IsVisibleTo decides direct access to one definition by identifier.
// Administrators always qualify, even for other users' private
// definitions. roles holds the user's (project, role) memberships.
// Project-bound definitions additionally require view permission on
// their project, which the caller verifies against the store.
func IsVisibleTo(q *models.AttachmentQuery, scope permissions.Scope, roles []MembershipRole) bool {
	if scope.Admin {
		return true
	}
	if scope.Logged && q.UserID == scope.UserID {
		return true
	}

	switch q.Visibility {
	case models.VisibilityPublic:
		return true
	case models.VisibilityRoles:
		if !scope.Logged {
			return false
		}
		for _, held := range roles {
			if q.ProjectID.Valid && held.ProjectID != q.ProjectID.Int64 {
				continue
			}
			for _, roleID := range q.RoleIDs {
				if roleID == held.RoleID {
					return true
				}
			}
		}
		return false
	default:
		return false
	}
}

// EditableBy reports whether the scoped user may modify or delete the
// definition. canManagePublic reflects the manage-public-queries
// permission resolved by the caller.
func EditableBy(q *models.AttachmentQuery, scope permissions.Scope, roles []MembershipRole, canManagePublic bool) bool {
	if scope.Admin {
		return true
	}
	if !scope.Logged {
		return false
	}
	if q.UserID == scope.UserID && IsVisibleTo(q, scope, roles) {
		return true
	}
	return q.Visibility == models.VisibilityPublic && canManagePublic
}

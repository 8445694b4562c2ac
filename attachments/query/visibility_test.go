package query

import (
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

func privateQuery(ownerID int64) *models.AttachmentQuery {
	return &models.AttachmentQuery{ID: 1, Name: "mine", UserID: ownerID, Visibility: models.VisibilityPrivate}
}

func TestIsVisibleTo_PrivateOwnerOnly(t *testing.T) {
	q := privateQuery(9)

	owner := permissions.Scope{UserID: 9, Logged: true}
	other := permissions.Scope{UserID: 4, Logged: true, HasMemberships: true}
	admin := permissions.Scope{UserID: 1, Logged: true, Admin: true}

	assert.True(t, IsVisibleTo(q, owner, nil))
	assert.True(t, IsVisibleTo(q, admin, nil))

	// Any other user is excluded regardless of project permissions.
	assert.False(t, IsVisibleTo(q, other, []MembershipRole{{ProjectID: 3, RoleID: 2}}))
	assert.False(t, IsVisibleTo(q, permissions.Anonymous(), nil))
}

func TestIsVisibleTo_Public(t *testing.T) {
	q := &models.AttachmentQuery{ID: 2, Name: "all", UserID: 9, Visibility: models.VisibilityPublic}

	assert.True(t, IsVisibleTo(q, permissions.Anonymous(), nil))
	assert.True(t, IsVisibleTo(q, permissions.Scope{UserID: 4, Logged: true}, nil))
}

func TestIsVisibleTo_RolesIntersection(t *testing.T) {
	q := &models.AttachmentQuery{
		ID:         3,
		Name:       "team",
		UserID:     9,
		Visibility: models.VisibilityRoles,
		ProjectID:  sql.NullInt64{Int64: 3, Valid: true},
		RoleIDs:    []int64{2, 5},
	}

	holder := permissions.Scope{UserID: 4, Logged: true, HasMemberships: true}

	// Matching role on the matching project.
	assert.True(t, IsVisibleTo(q, holder, []MembershipRole{{ProjectID: 3, RoleID: 5}}))

	// Matching role on a different project does not qualify.
	assert.False(t, IsVisibleTo(q, holder, []MembershipRole{{ProjectID: 7, RoleID: 5}}))

	// Held roles outside the definition's set do not qualify.
	assert.False(t, IsVisibleTo(q, holder, []MembershipRole{{ProjectID: 3, RoleID: 8}}))
}

func TestIsVisibleTo_RolesGlobalMatchesAnyMembership(t *testing.T) {
	q := &models.AttachmentQuery{
		ID:         4,
		Name:       "global team",
		UserID:     9,
		Visibility: models.VisibilityRoles,
		RoleIDs:    []int64{2},
	}

	holder := permissions.Scope{UserID: 4, Logged: true, HasMemberships: true}
	assert.True(t, IsVisibleTo(q, holder, []MembershipRole{{ProjectID: 99, RoleID: 2}}))
}

func TestIsVisibleTo_RolesEmptyRoleSet(t *testing.T) {
	q := &models.AttachmentQuery{
		ID:         5,
		Name:       "orphan",
		UserID:     9,
		Visibility: models.VisibilityRoles,
	}

	// No non-owner, non-admin user sees a roles-visible definition with
	// an empty role set.
	holder := permissions.Scope{UserID: 4, Logged: true, HasMemberships: true}
	assert.False(t, IsVisibleTo(q, holder, []MembershipRole{{ProjectID: 3, RoleID: 2}}))
	assert.True(t, IsVisibleTo(q, permissions.Scope{UserID: 9, Logged: true}, nil))
	assert.True(t, IsVisibleTo(q, permissions.Scope{UserID: 1, Logged: true, Admin: true}, nil))
}

func TestEditableBy(t *testing.T) {
	public := &models.AttachmentQuery{ID: 6, Name: "all", UserID: 9, Visibility: models.VisibilityPublic}

	admin := permissions.Scope{UserID: 1, Logged: true, Admin: true}
	owner := permissions.Scope{UserID: 9, Logged: true}
	manager := permissions.Scope{UserID: 4, Logged: true, HasMemberships: true}
	other := permissions.Scope{UserID: 4, Logged: true}

	assert.True(t, EditableBy(public, admin, nil, false))
	assert.True(t, EditableBy(public, owner, nil, false))
	assert.True(t, EditableBy(public, manager, nil, true))
	assert.False(t, EditableBy(public, other, nil, false))
	assert.False(t, EditableBy(public, permissions.Anonymous(), nil, false))

	private := privateQuery(9)
	assert.False(t, EditableBy(private, manager, nil, true))
	assert.True(t, EditableBy(private, owner, nil, false))
}

func TestVisibleDefinitionsCondition_Admin(t *testing.T) {
	cond := VisibleDefinitionsCondition(permissions.Scope{UserID: 1, Logged: true, Admin: true})

	assert.Contains(t, cond.SQL, "attachment_queries.visibility <> ?")
	assert.Contains(t, cond.SQL, "attachment_queries.user_id = ?")
	assert.Equal(t, models.VisibilityPrivate, cond.Args[0])
}

func TestVisibleDefinitionsCondition_Member(t *testing.T) {
	cond := VisibleDefinitionsCondition(permissions.Scope{UserID: 4, Logged: true, HasMemberships: true})

	assert.Contains(t, cond.SQL, "queries_roles")
	assert.Contains(t, cond.SQL, "member_roles")
	assert.Contains(t, cond.SQL, "attachment_queries.project_id IS NULL OR m.project_id = attachment_queries.project_id")
	assert.Equal(t, len(cond.Args), strings.Count(cond.SQL, "?"))
}

func TestVisibleDefinitionsCondition_LoggedNonMember(t *testing.T) {
	cond := VisibleDefinitionsCondition(permissions.Scope{UserID: 4, Logged: true})

	assert.NotContains(t, cond.SQL, "queries_roles")
	assert.Contains(t, cond.SQL, "attachment_queries.visibility = ?")
	assert.Contains(t, cond.SQL, "attachment_queries.user_id = ?")
	assert.Equal(t, len(cond.Args), strings.Count(cond.SQL, "?"))
}

func TestVisibleDefinitionsCondition_Anonymous(t *testing.T) {
	cond := VisibleDefinitionsCondition(permissions.Anonymous())

	require.NotEmpty(t, cond.Args)
	assert.Equal(t, models.VisibilityPublic, cond.Args[0])
	assert.NotContains(t, cond.SQL, "user_id")
	assert.Equal(t, len(cond.Args), strings.Count(cond.SQL, "?"))
}

func TestVisibleDefinitionsCondition_ProjectPermissionConstraint(t *testing.T) {
	cond := VisibleDefinitionsCondition(permissions.Anonymous())

	// Project-bound definitions require view permission on their project.
	assert.Contains(t, cond.SQL, "attachment_queries.project_id IS NULL OR EXISTS")
	assert.Contains(t, cond.Args, permissions.ViewIssueAttachments)
}

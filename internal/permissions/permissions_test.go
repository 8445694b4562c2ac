package permissions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllowedProjectsCondition_Admin(t *testing.T) {
	cond := AllowedProjectsCondition(Scope{UserID: 1, Logged: true, Admin: true}, ViewIssueAttachments)

	assert.Equal(t, "projects.status = 1", cond.SQL)
	assert.Empty(t, cond.Args)
}

func TestAllowedProjectsCondition_LoggedUser(t *testing.T) {
	cond := AllowedProjectsCondition(Scope{UserID: 42, Logged: true}, ViewIssueAttachments)

	assert.Contains(t, cond.SQL, "projects.status = 1")
	assert.Contains(t, cond.SQL, "m.user_id = ?")
	assert.Contains(t, cond.SQL, "r.builtin = 1")
	assert.Contains(t, cond.SQL, "projects.is_public = TRUE")
	require.Len(t, cond.Args, 3)
	assert.Equal(t, int64(42), cond.Args[0])
	assert.Equal(t, ViewIssueAttachments, cond.Args[1])
	assert.Equal(t, ViewIssueAttachments, cond.Args[2])

	// Placeholder count matches argument count.
	assert.Equal(t, len(cond.Args), strings.Count(cond.SQL, "?"))
}

func TestAllowedProjectsCondition_Anonymous(t *testing.T) {
	cond := AllowedProjectsCondition(Anonymous(), ViewIssueAttachments)

	assert.Contains(t, cond.SQL, "projects.is_public = TRUE")
	assert.Contains(t, cond.SQL, "r.builtin = 2")
	assert.NotContains(t, cond.SQL, "members")
	require.Len(t, cond.Args, 1)
	assert.Equal(t, ViewIssueAttachments, cond.Args[0])
	assert.Equal(t, len(cond.Args), strings.Count(cond.SQL, "?"))
}

func TestAllowedProjectsCondition_PermissionIsParameterized(t *testing.T) {
	cond := AllowedProjectsCondition(Scope{UserID: 1, Logged: true}, SaveQueries)

	// The permission travels as an argument, never interpolated into SQL.
	assert.NotContains(t, cond.SQL, SaveQueries)
	assert.Contains(t, cond.Args, SaveQueries)
}

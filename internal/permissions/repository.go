package permissions

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/types"
)

// ScopeLoader resolves the authorization scope of a request user.
type ScopeLoader interface {
	LoadScope(ctx context.Context, user types.UserContext) (Scope, error)
}

// ScopeRepository loads membership data for a user from PostgreSQL.
type ScopeRepository struct {
	db *sqlx.DB
}

var _ ScopeLoader = (*ScopeRepository)(nil)

// NewScopeRepository creates a new scope repository
func NewScopeRepository(db *sqlx.DB) *ScopeRepository {
	return &ScopeRepository{db: db}
}

// LoadScope resolves the authorization scope for the given user context.
// Anonymous requests resolve without touching the database.
func (r *ScopeRepository) LoadScope(ctx context.Context, user types.UserContext) (Scope, error) {
	scope := Scope{
		UserID: user.UserID,
		Logged: user.Logged(),
		Admin:  user.Admin,
	}
	if !scope.Logged {
		return scope, nil
	}

	query := r.db.Rebind("SELECT m.project_id FROM members m WHERE m.user_id = ? ORDER BY m.project_id")
	var projectIDs []int64
	if err := r.db.SelectContext(ctx, &projectIDs, query, user.UserID); err != nil {
		return Scope{}, fmt.Errorf("failed to load memberships: %w", err)
	}

	scope.ProjectIDs = projectIDs
	scope.HasMemberships = len(projectIDs) > 0
	return scope, nil
}

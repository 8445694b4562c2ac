package repository

import (
	"context"
	"fmt"
	"strconv"

	"github.com/jmoiron/sqlx"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/fields"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// PostgresLookupRepository resolves the project-scoped value domains of
// list-typed filters. It implements fields.ValueSource.
type PostgresLookupRepository struct {
	db *sqlx.DB
}

// NewPostgresLookupRepository creates a new lookup repository
func NewPostgresLookupRepository(db *sqlx.DB) *PostgresLookupRepository {
	return &PostgresLookupRepository{db: db}
}

type lookupRow struct {
	ID    int64  `db:"id"`
	Label string `db:"label"`
}

func toListValues(rows []lookupRow) []fields.ListValue {
	out := make([]fields.ListValue, len(rows))
	for i, row := range rows {
		out[i] = fields.ListValue{Label: row.Label, Value: strconv.FormatInt(row.ID, 10)}
	}
	return out
}

// VisibleProjects returns the projects the scoped user may view,
// ordered by name.
func (r *PostgresLookupRepository) VisibleProjects(ctx context.Context, scope permissions.Scope) ([]fields.ListValue, error) {
	cond := permissions.AllowedProjectsCondition(scope, permissions.ViewIssueAttachments)
	sqlStr := r.db.Rebind(fmt.Sprintf(
		"SELECT projects.id AS id, projects.name AS label FROM projects WHERE %s ORDER BY projects.name", cond.SQL))

	var rows []lookupRow
	if err := r.db.SelectContext(ctx, &rows, sqlStr, cond.Args...); err != nil {
		return nil, fmt.Errorf("failed to load visible projects: %w", err)
	}
	return toListValues(rows), nil
}

// MemberUsers returns users holding a membership, restricted to the
// project when projectID is non-zero, ordered by login.
func (r *PostgresLookupRepository) MemberUsers(ctx context.Context, projectID int64) ([]fields.ListValue, error) {
	sqlStr := `SELECT DISTINCT users.id AS id, users.login AS label FROM users
		INNER JOIN members m ON m.user_id = users.id`
	var args []interface{}
	if projectID > 0 {
		sqlStr += " WHERE m.project_id = ?"
		args = append(args, projectID)
	}
	sqlStr += " ORDER BY users.login"

	var rows []lookupRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(sqlStr), args...); err != nil {
		return nil, fmt.Errorf("failed to load member users: %w", err)
	}
	return toListValues(rows), nil
}

// Statuses returns all issue statuses ordered by position.
func (r *PostgresLookupRepository) Statuses(ctx context.Context) ([]fields.ListValue, error) {
	var rows []lookupRow
	sqlStr := "SELECT id, name AS label FROM issue_statuses ORDER BY position"
	if err := r.db.SelectContext(ctx, &rows, sqlStr); err != nil {
		return nil, fmt.Errorf("failed to load issue statuses: %w", err)
	}
	return toListValues(rows), nil
}

// IssueCategories returns issue categories, restricted to the project
// when projectID is non-zero, ordered by name.
func (r *PostgresLookupRepository) IssueCategories(ctx context.Context, projectID int64) ([]fields.ListValue, error) {
	sqlStr := "SELECT id, name AS label FROM issue_categories"
	var args []interface{}
	if projectID > 0 {
		sqlStr += " WHERE project_id = ?"
		args = append(args, projectID)
	}
	sqlStr += " ORDER BY name"

	var rows []lookupRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(sqlStr), args...); err != nil {
		return nil, fmt.Errorf("failed to load issue categories: %w", err)
	}
	return toListValues(rows), nil
}

// AttachmentCategories returns attachment categories ordered by name.
func (r *PostgresLookupRepository) AttachmentCategories(ctx context.Context) ([]fields.ListValue, error) {
	var rows []lookupRow
	sqlStr := "SELECT id, name AS label FROM attachment_categories ORDER BY name"
	if err := r.db.SelectContext(ctx, &rows, sqlStr); err != nil {
		return nil, fmt.Errorf("failed to load attachment categories: %w", err)
	}
	return toListValues(rows), nil
}

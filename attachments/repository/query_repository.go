package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// PostgresQueryRepository implements QueryRepository on sqlx.
type PostgresQueryRepository struct {
	db *sqlx.DB
}

// NewPostgresQueryRepository creates a new query definition repository
func NewPostgresQueryRepository(db *sqlx.DB) *PostgresQueryRepository {
	return &PostgresQueryRepository{db: db}
}

const queryColumns = `id, project_id, name, user_id, visibility, filters,
	column_names, sort_criteria, group_by, totalable_names, created_at, updated_at`

// Get loads a definition with its role ids; returns nil when absent.
func (r *PostgresQueryRepository) Get(ctx context.Context, id int64) (*models.AttachmentQuery, error) {
	sqlStr := r.db.Rebind(fmt.Sprintf("SELECT %s FROM attachment_queries WHERE id = ?", queryColumns))

	var q models.AttachmentQuery
	if err := r.db.GetContext(ctx, &q, sqlStr, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get attachment query: %w", err)
	}

	roleIDs, err := r.roleIDs(ctx, q.ID)
	if err != nil {
		return nil, err
	}
	q.RoleIDs = roleIDs
	return &q, nil
}

// ListVisible returns the definitions visible to the scope plus the
// total count, ordered by name.
func (r *PostgresQueryRepository) ListVisible(ctx context.Context, scope permissions.Scope, projectID int64, offset, limit int) ([]models.AttachmentQuery, int64, error) {
	cond := query.VisibleDefinitionsCondition(scope)
	where := cond.SQL
	args := cond.Args

	if projectID > 0 {
		where += " AND (attachment_queries.project_id IS NULL OR attachment_queries.project_id = ?)"
		args = append(args, projectID)
	}

	countSQL := r.db.Rebind("SELECT COUNT(*) FROM attachment_queries WHERE " + where)
	var total int64
	if err := r.db.GetContext(ctx, &total, countSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to count attachment queries: %w", err)
	}

	listSQL := r.db.Rebind(fmt.Sprintf(
		"SELECT %s FROM attachment_queries WHERE %s ORDER BY name ASC, id ASC LIMIT %d OFFSET %d",
		queryColumns, where, limit, offset))
	var queries []models.AttachmentQuery
	if err := r.db.SelectContext(ctx, &queries, listSQL, args...); err != nil {
		return nil, 0, fmt.Errorf("failed to list attachment queries: %w", err)
	}

	for i := range queries {
		roleIDs, err := r.roleIDs(ctx, queries[i].ID)
		if err != nil {
			return nil, 0, err
		}
		queries[i].RoleIDs = roleIDs
	}
	return queries, total, nil
}

// Create inserts the definition and its role links in one transaction.
func (r *PostgresQueryRepository) Create(ctx context.Context, q *models.AttachmentQuery) (*models.AttachmentQuery, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	insertSQL := tx.Rebind(`INSERT INTO attachment_queries
		(project_id, name, user_id, visibility, filters, column_names, sort_criteria, group_by, totalable_names, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, NOW(), NOW())
		RETURNING id, created_at, updated_at`)

	row := tx.QueryRowxContext(ctx, insertSQL,
		q.ProjectID, q.Name, q.UserID, q.Visibility, q.Filters,
		q.ColumnNames, q.SortCriteria, q.GroupBy, q.TotalableNames)
	if err := row.Scan(&q.ID, &q.CreatedAt, &q.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to insert attachment query: %w", err)
	}

	if err := replaceRoles(ctx, tx, q.ID, roleLinks(q)); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit attachment query: %w", err)
	}
	return q, nil
}

// Update rewrites the definition and replaces its role links.
func (r *PostgresQueryRepository) Update(ctx context.Context, q *models.AttachmentQuery) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	updateSQL := tx.Rebind(`UPDATE attachment_queries SET
		project_id = ?, name = ?, visibility = ?, filters = ?, column_names = ?,
		sort_criteria = ?, group_by = ?, totalable_names = ?, updated_at = NOW()
		WHERE id = ?`)

	result, err := tx.ExecContext(ctx, updateSQL,
		q.ProjectID, q.Name, q.Visibility, q.Filters, q.ColumnNames,
		q.SortCriteria, q.GroupBy, q.TotalableNames, q.ID)
	if err != nil {
		return fmt.Errorf("failed to update attachment query: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if err := replaceRoles(ctx, tx, q.ID, roleLinks(q)); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit attachment query: %w", err)
	}
	return nil
}

// Delete removes the definition and its role links.
func (r *PostgresQueryRepository) Delete(ctx context.Context, id int64) (bool, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM queries_roles WHERE query_id = ?"), id); err != nil {
		return false, fmt.Errorf("failed to delete query roles: %w", err)
	}

	result, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM attachment_queries WHERE id = ?"), id)
	if err != nil {
		return false, fmt.Errorf("failed to delete attachment query: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to read delete result: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit delete: %w", err)
	}
	return affected > 0, nil
}

// MembershipRoles returns the (project, role) pairs the user holds.
func (r *PostgresQueryRepository) MembershipRoles(ctx context.Context, userID int64) ([]query.MembershipRole, error) {
	sqlStr := r.db.Rebind(`SELECT m.project_id, mr.role_id FROM members m
		INNER JOIN member_roles mr ON mr.member_id = m.id
		WHERE m.user_id = ? ORDER BY m.project_id, mr.role_id`)

	var roles []query.MembershipRole
	if err := r.db.SelectContext(ctx, &roles, sqlStr, userID); err != nil {
		return nil, fmt.Errorf("failed to load membership roles: %w", err)
	}
	return roles, nil
}

// HasPermission reports whether any membership role of the scoped user
// carries the permission. Admins always qualify.
func (r *PostgresQueryRepository) HasPermission(ctx context.Context, scope permissions.Scope, permission string) (bool, error) {
	if scope.Admin {
		return true, nil
	}
	if !scope.Logged {
		return false, nil
	}

	sqlStr := r.db.Rebind(`SELECT EXISTS (SELECT 1 FROM members m
		INNER JOIN member_roles mr ON mr.member_id = m.id
		INNER JOIN roles r ON r.id = mr.role_id
		WHERE m.user_id = ? AND ? = ANY(r.permissions))`)

	var has bool
	if err := r.db.GetContext(ctx, &has, sqlStr, scope.UserID, permission); err != nil {
		return false, fmt.Errorf("failed to check permission: %w", err)
	}
	return has, nil
}

// CanViewProject reports whether the scoped user may view attachments
// of the project. The same condition restricts listing rows, so a
// definition reachable by identifier never widens what a listing shows.
func (r *PostgresQueryRepository) CanViewProject(ctx context.Context, scope permissions.Scope, projectID int64) (bool, error) {
	allowed := permissions.AllowedProjectsCondition(scope, permissions.ViewIssueAttachments)
	sqlStr := r.db.Rebind(fmt.Sprintf(
		"SELECT EXISTS (SELECT 1 FROM projects WHERE projects.id = ? AND %s)", allowed.SQL))

	args := append([]interface{}{projectID}, allowed.Args...)
	var ok bool
	if err := r.db.GetContext(ctx, &ok, sqlStr, args...); err != nil {
		return false, fmt.Errorf("failed to check project permission: %w", err)
	}
	return ok, nil
}

func (r *PostgresQueryRepository) roleIDs(ctx context.Context, queryID int64) ([]int64, error) {
	sqlStr := r.db.Rebind("SELECT role_id FROM queries_roles WHERE query_id = ? ORDER BY role_id")

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, sqlStr, queryID); err != nil {
		return nil, fmt.Errorf("failed to load query roles: %w", err)
	}
	return ids, nil
}

// roleLinks returns the role ids to persist; only roles-visible
// definitions carry role links.
func roleLinks(q *models.AttachmentQuery) []int64 {
	if q.Visibility != models.VisibilityRoles {
		return nil
	}
	return q.RoleIDs
}

func replaceRoles(ctx context.Context, tx *sqlx.Tx, queryID int64, roleIDs []int64) error {
	if _, err := tx.ExecContext(ctx, tx.Rebind("DELETE FROM queries_roles WHERE query_id = ?"), queryID); err != nil {
		return fmt.Errorf("failed to clear query roles: %w", err)
	}
	for _, roleID := range roleIDs {
		if _, err := tx.ExecContext(ctx, tx.Rebind("INSERT INTO queries_roles (query_id, role_id) VALUES (?, ?)"), queryID, roleID); err != nil {
			return fmt.Errorf("failed to insert query role: %w", err)
		}
	}
	return nil
}

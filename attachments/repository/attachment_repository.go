package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
)

// totalableColumns whitelists the columns aggregate statements may sum.
var totalableColumns = map[string]string{
	"filesize":  "attachments.filesize",
	"downloads": "attachments.downloads",
}

// PostgresAttachmentRepository implements AttachmentRepository on sqlx.
type PostgresAttachmentRepository struct {
	db *sqlx.DB
}

// NewPostgresAttachmentRepository creates a new attachment repository
func NewPostgresAttachmentRepository(db *sqlx.DB) *PostgresAttachmentRepository {
	return &PostgresAttachmentRepository{db: db}
}

// Count returns the row count under the composed predicate.
func (r *PostgresAttachmentRepository) Count(ctx context.Context, stmt *query.Statement) (int64, error) {
	sql := fmt.Sprintf("SELECT COUNT(*) FROM attachments %s WHERE %s", stmt.Joins.SQL(), stmt.Where)

	var count int64
	if err := r.db.GetContext(ctx, &count, r.db.Rebind(sql), stmt.Args...); err != nil {
		return 0, fmt.Errorf("failed to count attachments: %w", err)
	}
	return count, nil
}

type groupCountRow struct {
	GroupKey string `db:"group_key"`
	Count    int64  `db:"group_count"`
}

// CountByGroup returns per-group row counts keyed by the raw group value.
func (r *PostgresAttachmentRepository) CountByGroup(ctx context.Context, stmt *query.Statement) (map[string]int64, error) {
	if !stmt.Grouped() {
		return nil, nil
	}

	sql := fmt.Sprintf("SELECT %s AS group_key, COUNT(*) AS group_count FROM attachments %s WHERE %s GROUP BY %s",
		stmt.GroupKeyExpr(), stmt.Joins.SQL(), stmt.Where, stmt.GroupKeyExpr())

	var rows []groupCountRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(sql), stmt.Args...); err != nil {
		return nil, fmt.Errorf("failed to count attachments by group: %w", err)
	}

	out := make(map[string]int64, len(rows))
	for _, row := range rows {
		out[row.GroupKey] = row.Count
	}
	return out, nil
}

// Find returns one ordered page with display joins eagerly resolved so
// listing never falls back to per-row lookups.
func (r *PostgresAttachmentRepository) Find(ctx context.Context, stmt *query.Statement, offset, limit int) ([]models.Attachment, error) {
	authorExpr := "NULL AS author_login"
	if stmt.Joins.Has(query.JoinAuthor) {
		authorExpr = "authors.login AS author_login"
	}
	categoryExpr := "NULL AS category_name"
	if stmt.Joins.Has(query.JoinCategory) {
		categoryExpr = "attachment_categories.name AS category_name"
	}

	sql := fmt.Sprintf(`SELECT
		attachments.id, attachments.container_id, attachments.container_type,
		attachments.filename, attachments.filesize, attachments.downloads,
		attachments.content_type, attachments.description, attachments.author_id,
		attachments.created_on, attachments.attachment_category_id,
		issues.subject AS issue_subject, issues.project_id AS project_id,
		projects.name AS project_name,
		issue_statuses.name AS status_name, issue_statuses.is_closed AS status_is_closed,
		%s, %s
		FROM attachments %s WHERE %s ORDER BY %s LIMIT %d OFFSET %d`,
		authorExpr, categoryExpr, stmt.Joins.SQL(), stmt.Where, stmt.Order, limit, offset)

	var attachments []models.Attachment
	if err := r.db.SelectContext(ctx, &attachments, r.db.Rebind(sql), stmt.Args...); err != nil {
		return nil, fmt.Errorf("failed to list attachments: %w", err)
	}
	return attachments, nil
}

// IDs projects the same predicate and order to identifiers only.
func (r *PostgresAttachmentRepository) IDs(ctx context.Context, stmt *query.Statement, offset, limit int) ([]int64, error) {
	sql := fmt.Sprintf("SELECT attachments.id FROM attachments %s WHERE %s ORDER BY %s LIMIT %d OFFSET %d",
		stmt.Joins.SQL(), stmt.Where, stmt.Order, limit, offset)

	var ids []int64
	if err := r.db.SelectContext(ctx, &ids, r.db.Rebind(sql), stmt.Args...); err != nil {
		return nil, fmt.Errorf("failed to list attachment ids: %w", err)
	}
	return ids, nil
}

// Total sums a totalable column over the ungrouped predicate.
func (r *PostgresAttachmentRepository) Total(ctx context.Context, stmt *query.Statement, column string) (float64, error) {
	expr, ok := totalableColumns[column]
	if !ok {
		return 0, fmt.Errorf("column %q is not totalable", column)
	}

	sql := fmt.Sprintf("SELECT COALESCE(SUM(%s), 0) FROM attachments %s WHERE %s", expr, stmt.Joins.SQL(), stmt.Where)

	var total float64
	if err := r.db.GetContext(ctx, &total, r.db.Rebind(sql), stmt.Args...); err != nil {
		return 0, fmt.Errorf("failed to total %s: %w", column, err)
	}
	return total, nil
}

type groupTotalRow struct {
	GroupKey string  `db:"group_key"`
	Total    float64 `db:"group_total"`
}

// TotalByGroup sums a totalable column partitioned by the raw group key.
func (r *PostgresAttachmentRepository) TotalByGroup(ctx context.Context, stmt *query.Statement, column string) (map[string]float64, error) {
	if !stmt.Grouped() {
		return nil, nil
	}
	expr, ok := totalableColumns[column]
	if !ok {
		return nil, fmt.Errorf("column %q is not totalable", column)
	}

	sql := fmt.Sprintf("SELECT %s AS group_key, COALESCE(SUM(%s), 0) AS group_total FROM attachments %s WHERE %s GROUP BY %s",
		stmt.GroupKeyExpr(), expr, stmt.Joins.SQL(), stmt.Where, stmt.GroupKeyExpr())

	var rows []groupTotalRow
	if err := r.db.SelectContext(ctx, &rows, r.db.Rebind(sql), stmt.Args...); err != nil {
		return nil, fmt.Errorf("failed to total %s by group: %w", column, err)
	}

	out := make(map[string]float64, len(rows))
	for _, row := range rows {
		out[row.GroupKey] = row.Total
	}
	return out, nil
}

package repository

import (
	"context"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// AttachmentRepository executes composed statements against the store.
type AttachmentRepository interface {
	// Count returns the row count under the composed predicate.
	Count(ctx context.Context, stmt *query.Statement) (int64, error)

	// CountByGroup returns per-group row counts keyed by the raw group
	// value stringified, empty string for NULL. Nil statement group
	// expression is a caller error.
	CountByGroup(ctx context.Context, stmt *query.Statement) (map[string]int64, error)

	// Find returns one ordered page with display joins eagerly resolved.
	Find(ctx context.Context, stmt *query.Statement, offset, limit int) ([]models.Attachment, error)

	// IDs returns the identifier projection under the same predicate
	// and order.
	IDs(ctx context.Context, stmt *query.Statement, offset, limit int) ([]int64, error)

	// Total sums a totalable column over the ungrouped predicate.
	Total(ctx context.Context, stmt *query.Statement, column string) (float64, error)

	// TotalByGroup sums a totalable column partitioned by the group key.
	TotalByGroup(ctx context.Context, stmt *query.Statement, column string) (map[string]float64, error)
}

// QueryRepository persists saved query definitions.
type QueryRepository interface {
	// Get loads a definition with its role ids; returns nil when absent.
	Get(ctx context.Context, id int64) (*models.AttachmentQuery, error)

	// ListVisible returns the definitions visible to the scope, plus the
	// total count. projectID zero lists global and all-project-visible
	// definitions.
	ListVisible(ctx context.Context, scope permissions.Scope, projectID int64, offset, limit int) ([]models.AttachmentQuery, int64, error)

	// Create inserts the definition and its role links.
	Create(ctx context.Context, q *models.AttachmentQuery) (*models.AttachmentQuery, error)

	// Update rewrites the definition and replaces its role links.
	Update(ctx context.Context, q *models.AttachmentQuery) error

	// Delete removes the definition; returns true when a row was deleted.
	Delete(ctx context.Context, id int64) (bool, error)

	// MembershipRoles returns the (project, role) pairs the user holds.
	MembershipRoles(ctx context.Context, userID int64) ([]query.MembershipRole, error)

	// CanViewProject reports whether the scope holds the attachment view
	// permission on the project.
	CanViewProject(ctx context.Context, scope permissions.Scope, projectID int64) (bool, error)

	// HasPermission reports whether the scope holds the permission
	// through any membership role. Admins always do.
	HasPermission(ctx context.Context, scope permissions.Scope, permission string) (bool, error)
}

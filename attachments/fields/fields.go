package fields

import (
	"context"
	"fmt"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// ListValue is one allowed value of a list-typed filter.
type ListValue struct {
	Label string `json:"label"`
	Value string `json:"value"`
}

// FilterMeta describes one available filter for a request context.
type FilterMeta struct {
	Name   string      `json:"name"`
	Type   FieldType   `json:"type"`
	Label  string      `json:"label"`
	Values []ListValue `json:"values,omitempty"`
}

// ValueSource enumerates the project-scoped value domains of list-typed
// filters. The repository layer implements it against the record store.
type ValueSource interface {
	// VisibleProjects returns the projects the scoped user may view.
	VisibleProjects(ctx context.Context, scope permissions.Scope) ([]ListValue, error)

	// MemberUsers returns the users holding a membership, restricted to
	// the project when projectID is non-zero.
	MemberUsers(ctx context.Context, projectID int64) ([]ListValue, error)

	// Statuses returns all issue statuses ordered by position.
	Statuses(ctx context.Context) ([]ListValue, error)

	// IssueCategories returns issue categories, restricted to the
	// project when projectID is non-zero.
	IssueCategories(ctx context.Context, projectID int64) ([]ListValue, error)

	// AttachmentCategories returns attachment categories.
	AttachmentCategories(ctx context.Context) ([]ListValue, error)
}

// Catalog computes the per-context filter and column sets. The category
// capability flag is injected at construction; when the companion
// categorization feature is absent the category field is simply omitted.
type Catalog struct {
	source            ValueSource
	categoriesEnabled bool
}

// NewCatalog creates a catalog backed by the given value source.
func NewCatalog(source ValueSource, categoriesEnabled bool) *Catalog {
	return &Catalog{source: source, categoriesEnabled: categoriesEnabled}
}

// CategoriesEnabled reports whether the category capability is on.
func (c *Catalog) CategoriesEnabled() bool {
	return c.categoriesEnabled
}

// AvailableFilters returns the ordered filters permissible for the
// context. projectID zero means global (cross-project) context. List
// value domains are recomputed per call because they are project-scoped.
func (c *Catalog) AvailableFilters(ctx context.Context, projectID int64, scope permissions.Scope) ([]FilterMeta, error) {
	var out []FilterMeta

	if projectID == 0 {
		projects, err := c.source.VisibleProjects(ctx, scope)
		if err != nil {
			return nil, fmt.Errorf("failed to load visible projects: %w", err)
		}
		values := make([]ListValue, 0, len(projects)+1)
		if scope.Logged && scope.HasMemberships {
			values = append(values, ListValue{Label: "My projects", Value: "mine"})
		}
		values = append(values, projects...)
		out = append(out, FilterMeta{Name: "project_id", Type: TypeTree, Label: "Project", Values: values})
	}

	users, err := c.source.MemberUsers(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load member users: %w", err)
	}
	authorValues := make([]ListValue, 0, len(users)+1)
	if scope.Logged {
		authorValues = append(authorValues, ListValue{Label: "<< me >>", Value: "me"})
	}
	authorValues = append(authorValues, users...)
	out = append(out, FilterMeta{Name: "author_id", Type: TypeList, Label: "Author", Values: authorValues})

	if c.categoriesEnabled {
		categories, err := c.source.AttachmentCategories(ctx)
		if err != nil {
			return nil, fmt.Errorf("failed to load attachment categories: %w", err)
		}
		out = append(out, FilterMeta{Name: "attachment_category_id", Type: TypeListOptional, Label: "Category", Values: categories})
	}

	out = append(out,
		FilterMeta{Name: "filename", Type: TypeText, Label: "Filename"},
		FilterMeta{Name: "filesize", Type: TypeFloat, Label: "Filesize"},
		FilterMeta{Name: "downloads", Type: TypeInteger, Label: "Downloads"},
		FilterMeta{Name: "description", Type: TypeText, Label: "Description"},
		FilterMeta{Name: "content_type", Type: TypeText, Label: "Content type"},
		FilterMeta{Name: "created_on", Type: TypeDatePast, Label: "Created"},
		FilterMeta{Name: "issue_attachment_id", Type: TypeInteger, Label: "Attachment"},
		FilterMeta{Name: "container_id", Type: TypeTree, Label: "Issue"},
		FilterMeta{Name: "issue_subject", Type: TypeTree, Label: "Issue subject"},
	)

	statuses, err := c.source.Statuses(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load statuses: %w", err)
	}
	out = append(out, FilterMeta{Name: "issue_status", Type: TypeListStatus, Label: "Issue status", Values: statuses})

	issueCategories, err := c.source.IssueCategories(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("failed to load issue categories: %w", err)
	}
	out = append(out, FilterMeta{Name: "issue_category_id", Type: TypeListOptional, Label: "Issue category", Values: issueCategories})

	return out, nil
}

// FilterType resolves the declared type of a filter field name. The
// second return is false for unknown fields.
func (c *Catalog) FilterType(name string) (FieldType, bool) {
	t, ok := filterTypes[name]
	if !ok {
		return "", false
	}
	if name == "attachment_category_id" && !c.categoriesEnabled {
		return "", false
	}
	return t, true
}

// filterTypes is the static field name to type table. Value domains are
// dynamic; types are not.
var filterTypes = map[string]FieldType{
	"project_id":             TypeTree,
	"author_id":              TypeList,
	"attachment_category_id": TypeListOptional,
	"filename":               TypeText,
	"filesize":               TypeFloat,
	"downloads":              TypeInteger,
	"description":            TypeText,
	"content_type":           TypeText,
	"created_on":             TypeDatePast,
	"issue_attachment_id":    TypeInteger,
	"container_id":           TypeTree,
	"issue_subject":          TypeTree,
	"issue_status":           TypeListStatus,
	"issue_category_id":      TypeListOptional,
}

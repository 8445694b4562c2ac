package query

import (
	"fmt"
	"strings"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/fields"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// Statement is the composed, executable form of a query definition. The
// repository binds it into count, listing, grouped-count, and totals
// statements without further user input handling.
type Statement struct {
	Where       string
	Args        []interface{}
	Joins       JoinSet
	Order       string
	GroupExpr   string
	GroupColumn string
}

// Grouped reports whether a group expression is active.
func (s *Statement) Grouped() bool {
	return s.GroupExpr != ""
}

// Builder composes predicate fragments, the authorization condition, and
// sort criteria into a Statement.
type Builder struct {
	compiler *Compiler
	catalog  *fields.Catalog
}

// NewBuilder creates a statement builder.
func NewBuilder(compiler *Compiler, catalog *fields.Catalog) *Builder {
	return &Builder{compiler: compiler, catalog: catalog}
}

// defaultFilters applies when a definition has never had filters set:
// attachments created within the current week. A non-nil empty list is a
// deliberately cleared filter set and compiles to no predicate.
func defaultFilters() models.FilterList {
	return models.FilterList{{Field: "created_on", Operator: fields.OpThisWeek, Values: []string{""}}}
}

// Build compiles every stored filter, conjoins the attachment visibility
// condition and the project scope, and resolves ordering. The base join
// set always covers issue, status, and project.
func (b *Builder) Build(q *models.AttachmentQuery, scope permissions.Scope) (*Statement, error) {
	stmt := &Statement{}
	joins := JoinSet(0).With(JoinIssue).With(JoinStatus).With(JoinProject)

	var conds []string
	var args []interface{}

	allowed := permissions.AllowedProjectsCondition(scope, permissions.ViewIssueAttachments)
	conds = append(conds, "("+allowed.SQL+")")
	args = append(args, allowed.Args...)

	filters := q.Filters
	if filters == nil {
		filters = defaultFilters()
	}
	for _, f := range filters {
		frag, err := b.compiler.Compile(f.Field, f.Operator, f.Values, scope)
		if err != nil {
			return nil, err
		}
		conds = append(conds, "("+frag.SQL+")")
		args = append(args, frag.Args...)
		joins = joins.Merge(frag.Joins)
	}

	if q.ProjectID.Valid {
		conds = append(conds, "(projects.id = ?)")
		args = append(args, q.ProjectID.Int64)
	}

	if q.GroupBy != "" {
		column, ok := b.catalog.Column(q.GroupBy)
		if !ok || !column.Groupable() {
			return nil, &CompileError{Kind: UnknownField, Field: q.GroupBy}
		}
		stmt.GroupExpr = column.GroupSQL
		stmt.GroupColumn = column.Name
		joins = joins.Merge(columnJoins(column))
	}

	order, orderJoins, err := b.buildOrder(stmt, q.SortCriteria)
	if err != nil {
		return nil, err
	}
	stmt.Order = order
	joins = joins.Merge(orderJoins)

	stmt.Where = strings.Join(conds, " AND ")
	stmt.Args = args
	stmt.Joins = joins
	return stmt, nil
}

// buildOrder resolves the ORDER BY expression list. The group-by sort
// expression is always prepended so rows stay contiguous within a group;
// explicit criteria follow; identifier descending is the fallback.
func (b *Builder) buildOrder(stmt *Statement, criteria models.SortCriteria) (string, JoinSet, error) {
	var parts []string
	joins := JoinSet(0)

	if stmt.GroupColumn != "" {
		column, _ := b.catalog.Column(stmt.GroupColumn)
		if column.Sortable() {
			parts = append(parts, column.SortSQL+" "+sortDirection(column.DefaultOrder))
			joins = joins.Merge(columnJoins(column))
		} else {
			parts = append(parts, stmt.GroupExpr+" ASC")
		}
	}

	var explicit []string
	for _, criterion := range criteria {
		column, ok := b.catalog.Column(criterion.Field)
		if !ok || !column.Sortable() {
			return "", 0, &CompileError{Kind: UnknownField, Field: criterion.Field}
		}
		explicit = append(explicit, column.SortSQL+" "+sortDirection(criterion.Direction))
		joins = joins.Merge(columnJoins(column))
	}
	if len(explicit) == 0 {
		explicit = []string{"attachments.id DESC"}
	}
	parts = append(parts, explicit...)

	return strings.Join(parts, ", "), joins, nil
}

// columnJoins maps a column's sort/group expressions to the joins they
// reference beyond the base set.
func columnJoins(column fields.ColumnMeta) JoinSet {
	joins := JoinSet(0)
	for _, expr := range []string{column.SortSQL, column.GroupSQL} {
		switch {
		case strings.HasPrefix(expr, "authors."):
			joins = joins.With(JoinAuthor)
		case strings.HasPrefix(expr, "attachment_categories."):
			joins = joins.With(JoinCategory)
		}
	}
	return joins
}

func sortDirection(direction string) string {
	if strings.EqualFold(direction, "desc") {
		return "DESC"
	}
	return "ASC"
}

// GroupKeyExpr is the text projection of the group expression used as the
// raw group key. NULL keys collapse to the empty string.
func (s *Statement) GroupKeyExpr() string {
	return fmt.Sprintf("COALESCE(CAST(%s AS TEXT), '')", s.GroupExpr)
}

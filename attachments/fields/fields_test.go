package fields

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

type stubValueSource struct {
	projects   []ListValue
	users      []ListValue
	statuses   []ListValue
	issueCats  []ListValue
	attachCats []ListValue
}

func (s *stubValueSource) VisibleProjects(ctx context.Context, scope permissions.Scope) ([]ListValue, error) {
	return s.projects, nil
}

func (s *stubValueSource) MemberUsers(ctx context.Context, projectID int64) ([]ListValue, error) {
	return s.users, nil
}

func (s *stubValueSource) Statuses(ctx context.Context) ([]ListValue, error) {
	return s.statuses, nil
}

func (s *stubValueSource) IssueCategories(ctx context.Context, projectID int64) ([]ListValue, error) {
	return s.issueCats, nil
}

func (s *stubValueSource) AttachmentCategories(ctx context.Context) ([]ListValue, error) {
	return s.attachCats, nil
}

func filterNames(filters []FilterMeta) []string {
	names := make([]string, len(filters))
	for i, f := range filters {
		names[i] = f.Name
	}
	return names
}

func findFilter(t *testing.T, filters []FilterMeta, name string) FilterMeta {
	t.Helper()
	for _, f := range filters {
		if f.Name == name {
			return f
		}
	}
	t.Fatalf("filter %q not found", name)
	return FilterMeta{}
}

func TestOperatorsFor_TypeTable(t *testing.T) {
	assert.Equal(t, []string{"=", "~", "!", "!~", "!*", "*"}, OperatorsFor(TypeText))
	assert.Equal(t, []string{"=", ">=", "<=", "><", "!*", "*"}, OperatorsFor(TypeInteger))
	assert.Equal(t, []string{"=", "!"}, OperatorsFor(TypeList))
	assert.Equal(t, []string{"=", "~", "!*", "*"}, OperatorsFor(TypeTree))
	assert.Equal(t, []string{"o", "=", "!", "c", "*"}, OperatorsFor(TypeListStatus))
	assert.Contains(t, OperatorsFor(TypeDatePast), "w")
	assert.Contains(t, OperatorsFor(TypeDatePast), "t-")
}

func TestSupportsOperator(t *testing.T) {
	assert.True(t, SupportsOperator(TypeText, OpContains))
	assert.False(t, SupportsOperator(TypeInteger, OpContains))
	assert.True(t, SupportsOperator(TypeListStatus, OpOpen))
	assert.False(t, SupportsOperator(TypeList, OpAny))
}

func TestRequiresValues(t *testing.T) {
	for _, op := range []string{"!*", "*", "t", "w", "o", "c"} {
		assert.False(t, RequiresValues(op), "operator %q", op)
	}
	for _, op := range []string{"=", "~", "!", ">=", "><", "t-"} {
		assert.True(t, RequiresValues(op), "operator %q", op)
	}
}

func TestAvailableFilters_GlobalContext(t *testing.T) {
	source := &stubValueSource{
		projects: []ListValue{{Label: "Alpha", Value: "1"}},
		statuses: []ListValue{{Label: "New", Value: "1"}},
	}
	catalog := NewCatalog(source, false)

	scope := permissions.Scope{UserID: 5, Logged: true, HasMemberships: true}
	filters, err := catalog.AvailableFilters(context.Background(), 0, scope)
	require.NoError(t, err)

	names := filterNames(filters)
	assert.Contains(t, names, "project_id")
	assert.NotContains(t, names, "attachment_category_id")

	project := findFilter(t, filters, "project_id")
	require.NotEmpty(t, project.Values)
	assert.Equal(t, "mine", project.Values[0].Value)
}

func TestAvailableFilters_ProjectContextOmitsProjectFilter(t *testing.T) {
	catalog := NewCatalog(&stubValueSource{}, false)

	filters, err := catalog.AvailableFilters(context.Background(), 3, permissions.Scope{UserID: 5, Logged: true})
	require.NoError(t, err)

	assert.NotContains(t, filterNames(filters), "project_id")
}

func TestAvailableFilters_CategoryCapability(t *testing.T) {
	source := &stubValueSource{attachCats: []ListValue{{Label: "Docs", Value: "1"}}}

	withCats := NewCatalog(source, true)
	filters, err := withCats.AvailableFilters(context.Background(), 3, permissions.Anonymous())
	require.NoError(t, err)
	assert.Contains(t, filterNames(filters), "attachment_category_id")

	withoutCats := NewCatalog(source, false)
	filters, err = withoutCats.AvailableFilters(context.Background(), 3, permissions.Anonymous())
	require.NoError(t, err)
	assert.NotContains(t, filterNames(filters), "attachment_category_id")
}

func TestAvailableFilters_AnonymousHasNoMeValue(t *testing.T) {
	catalog := NewCatalog(&stubValueSource{users: []ListValue{{Label: "J Smith", Value: "2"}}}, false)

	filters, err := catalog.AvailableFilters(context.Background(), 3, permissions.Anonymous())
	require.NoError(t, err)

	author := findFilter(t, filters, "author_id")
	for _, v := range author.Values {
		assert.NotEqual(t, "me", v.Value)
	}
}

func TestFilterType(t *testing.T) {
	catalog := NewCatalog(&stubValueSource{}, false)

	typ, ok := catalog.FilterType("created_on")
	require.True(t, ok)
	assert.Equal(t, TypeDatePast, typ)

	_, ok = catalog.FilterType("no_such_field")
	assert.False(t, ok)

	// Category filter hidden when the capability is off.
	_, ok = catalog.FilterType("attachment_category_id")
	assert.False(t, ok)

	typ, ok = NewCatalog(&stubValueSource{}, true).FilterType("attachment_category_id")
	require.True(t, ok)
	assert.Equal(t, TypeListOptional, typ)
}

func TestAvailableColumns(t *testing.T) {
	catalog := NewCatalog(&stubValueSource{}, false)
	columns := catalog.AvailableColumns()

	id, ok := catalog.Column("id")
	require.True(t, ok)
	assert.True(t, id.Frozen)
	assert.Equal(t, "desc", id.DefaultOrder)

	thumbnail, ok := catalog.Column("thumbnail")
	require.True(t, ok)
	assert.False(t, thumbnail.Sortable())
	assert.False(t, thumbnail.Groupable())

	filesize, ok := catalog.Column("filesize")
	require.True(t, ok)
	assert.True(t, filesize.Totalable)

	status, ok := catalog.Column("status")
	require.True(t, ok)
	assert.Equal(t, "issue_statuses.position", status.SortSQL)
	assert.Equal(t, "issue_statuses.name", status.GroupSQL)

	_, ok = catalog.Column("attachment_category")
	assert.False(t, ok)
	assert.Len(t, columns, 12)

	withCats := NewCatalog(&stubValueSource{}, true)
	_, ok = withCats.Column("attachment_category")
	assert.True(t, ok)
	assert.Len(t, withCats.AvailableColumns(), 13)
}

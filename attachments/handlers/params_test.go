package handlers

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/services"
)

// parseOn runs parseListing inside a request for the given query string.
func parseOn(t *testing.T, rawQuery string) (services.RequestParams, int, int, error) {
	t.Helper()

	var params services.RequestParams
	var page, perPage int
	var parseErr error

	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		params, page, perPage, parseErr = parseListing(c)
		return c.SendStatus(fiber.StatusOK)
	})

	resp, err := app.Test(httptest.NewRequest("GET", "/?"+rawQuery, nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	return params, page, perPage, parseErr
}

func TestParseListing_FilterTriples(t *testing.T) {
	params, _, _, err := parseOn(t,
		"set_filter=1&f[]=filename&op[filename]=~&v[filename][]=pdf"+
			"&f[]=downloads&op[downloads]=>%3D&v[downloads][]=5")
	require.NoError(t, err)

	assert.True(t, params.SetFilter)
	require.Len(t, params.Filters, 2)
	assert.Equal(t, models.Filter{Field: "filename", Operator: "~", Values: []string{"pdf"}}, params.Filters[0])
	assert.Equal(t, models.Filter{Field: "downloads", Operator: ">=", Values: []string{"5"}}, params.Filters[1])
}

func TestParseListing_ValuelessOperatorGetsBlankValue(t *testing.T) {
	params, _, _, err := parseOn(t, "f[]=created_on&op[created_on]=w")
	require.NoError(t, err)

	require.Len(t, params.Filters, 1)
	assert.Equal(t, []string{""}, params.Filters[0].Values)
}

func TestParseListing_ClearedFiltersDistinctFromAbsent(t *testing.T) {
	// No f[] key at all: filters were never set.
	params, _, _, err := parseOn(t, "set_filter=1")
	require.NoError(t, err)
	assert.Nil(t, params.Filters)

	// A blank f[] entry clears the filter set without adding a triple.
	params, _, _, err = parseOn(t, "set_filter=1&f[]=")
	require.NoError(t, err)
	require.NotNil(t, params.Filters)
	assert.Len(t, params.Filters, 0)
}

func TestParseListing_MissingOperatorDefaultsToEquality(t *testing.T) {
	params, _, _, err := parseOn(t, "f[]=content_type&v[content_type][]=image/png")
	require.NoError(t, err)

	require.Len(t, params.Filters, 1)
	assert.Equal(t, "=", params.Filters[0].Operator)
}

func TestParseListing_ColumnsTotalsAndPaging(t *testing.T) {
	params, page, perPage, err := parseOn(t,
		"c[]=id&c[]=filename&c[]=author&t[]=filesize&group_by=status&page=3&per_page=50&project_id=7&query_id=11")
	require.NoError(t, err)

	assert.Equal(t, []string{"id", "filename", "author"}, params.ColumnNames)
	assert.Equal(t, []string{"filesize"}, params.TotalableNames)
	assert.Equal(t, "status", params.GroupBy)
	assert.Equal(t, int64(7), params.ProjectID)
	assert.Equal(t, int64(11), params.QueryID)
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, perPage)
}

func TestParseListing_Sort(t *testing.T) {
	params, _, _, err := parseOn(t, "sort=filesize:desc,filename")
	require.NoError(t, err)

	require.Len(t, params.SortCriteria, 2)
	assert.Equal(t, models.SortCriterion{Field: "filesize", Direction: "desc"}, params.SortCriteria[0])
	assert.Equal(t, models.SortCriterion{Field: "filename", Direction: "asc"}, params.SortCriteria[1])
}

func TestParseListing_MalformedSortRejected(t *testing.T) {
	_, _, _, err := parseOn(t, "sort=filename:sideways")
	assert.Error(t, err)
}

func TestParseSort_Empty(t *testing.T) {
	criteria, err := parseSort("")
	require.NoError(t, err)
	assert.Nil(t, criteria)
}

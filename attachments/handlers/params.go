package handlers

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/schema"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/services"
)

// listingForm covers the scalar listing parameters. The filter triples
// arrive in the f[]/op[field]/v[field][] shape and are collected by hand
// since that nesting is not expressible as struct tags.
type listingForm struct {
	QueryID   int64    `schema:"query_id"`
	SetFilter bool     `schema:"set_filter"`
	ProjectID int64    `schema:"project_id"`
	GroupBy   string   `schema:"group_by"`
	Columns   []string `schema:"c[]"`
	Totals    []string `schema:"t[]"`
	Sort      string   `schema:"sort"`
	Page      int      `schema:"page"`
	PerPage   int      `schema:"per_page"`
}

var formDecoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// queryValues flattens the request query string into url.Values.
func queryValues(c *fiber.Ctx) url.Values {
	values := url.Values{}
	c.Context().QueryArgs().VisitAll(func(key, value []byte) {
		values.Add(string(key), string(value))
	})
	return values
}

// parseListing decodes the listing request into service params plus the
// page window.
func parseListing(c *fiber.Ctx) (services.RequestParams, int, int, error) {
	values := queryValues(c)

	var form listingForm
	if err := formDecoder.Decode(&form, values); err != nil {
		return services.RequestParams{}, 0, 0, fmt.Errorf("malformed query parameters: %w", err)
	}

	sort, err := parseSort(form.Sort)
	if err != nil {
		return services.RequestParams{}, 0, 0, err
	}

	params := services.RequestParams{
		QueryID:        form.QueryID,
		SetFilter:      form.SetFilter,
		ProjectID:      form.ProjectID,
		Filters:        parseFilters(values),
		GroupBy:        form.GroupBy,
		ColumnNames:    form.Columns,
		SortCriteria:   sort,
		TotalableNames: form.Totals,
	}
	return params, form.Page, form.PerPage, nil
}

// parseFilters collects the field/operator/values triples. Fields listed
// under f[] without an operator default to equality; fields without
// values get one blank value so valueless operators compile. A present
// f[] key with only blank entries yields an empty, non-nil list: the
// request cleared the filters rather than never setting them.
func parseFilters(values url.Values) models.FilterList {
	fieldNames, ok := values["f[]"]
	if !ok {
		return nil
	}
	filters := models.FilterList{}
	for _, field := range fieldNames {
		if field == "" {
			continue
		}
		operator := values.Get("op[" + field + "]")
		if operator == "" {
			operator = "="
		}
		vals := values["v["+field+"][]"]
		if len(vals) == 0 {
			vals = []string{""}
		}
		filters = append(filters, models.Filter{Field: field, Operator: operator, Values: vals})
	}
	return filters
}

// parseSort reads "field,field:desc" into sort criteria.
func parseSort(raw string) (models.SortCriteria, error) {
	if raw == "" {
		return nil, nil
	}
	var criteria models.SortCriteria
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, direction := part, "asc"
		if idx := strings.IndexByte(part, ':'); idx >= 0 {
			field, direction = part[:idx], part[idx+1:]
		}
		if field == "" {
			return nil, fmt.Errorf("malformed sort criterion %q", part)
		}
		if !strings.EqualFold(direction, "asc") && !strings.EqualFold(direction, "desc") {
			return nil, fmt.Errorf("malformed sort direction %q", direction)
		}
		criteria = append(criteria, models.SortCriterion{Field: field, Direction: strings.ToLower(direction)})
	}
	return criteria, nil
}

package query

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/fields"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// Fragment is one compiled boolean condition with bound arguments and the
// joins it requires. Placeholders use `?` and are rebound by the
// repository for the target driver.
type Fragment struct {
	SQL   string
	Args  []interface{}
	Joins JoinSet
}

// neverMatch is the always-false predicate emitted when an id filter
// carries no usable integers. An empty id filter must match nothing,
// never everything.
const neverMatch = "1=0"

var integerPattern = regexp.MustCompile(`\d+`)

// Compiler turns stored field/operator/values triples into predicate
// fragments. Relative date operators resolve against Now, which tests
// pin to a fixed clock.
type Compiler struct {
	catalog *fields.Catalog
	Now     func() time.Time
}

// NewCompiler creates a compiler over the given field catalog.
func NewCompiler(catalog *fields.Catalog) *Compiler {
	return &Compiler{catalog: catalog, Now: time.Now}
}

// Compile validates the triple against the catalog and dispatches to the
// per-field translator for synthetic fields or the generic path for
// native columns. All validation happens here; no user input reaches the
// store unchecked.
func (c *Compiler) Compile(field, operator string, values []string, scope permissions.Scope) (Fragment, error) {
	fieldType, ok := c.catalog.FilterType(field)
	if !ok {
		return Fragment{}, &CompileError{Kind: UnknownField, Field: field}
	}
	if !fields.SupportsOperator(fieldType, operator) {
		return Fragment{}, &CompileError{Kind: UnsupportedOperator, Field: field, Operator: operator}
	}

	values = compact(values)
	if fields.RequiresValues(operator) && len(values) == 0 {
		return Fragment{}, &CompileError{Kind: EmptyValueSet, Field: field, Operator: operator}
	}

	switch field {
	case "container_id":
		return c.sqlForContainerID(operator, values)
	case "issue_attachment_id":
		return c.sqlForAttachmentID(field, operator, values)
	case "project_id":
		return c.sqlForProjectID(field, operator, values, scope)
	case "author_id":
		return c.sqlForAuthorID(field, operator, values, scope)
	case "issue_subject":
		return c.sqlForIssueSubject(operator, values)
	case "issue_status":
		return c.sqlForIssueStatus(field, operator, values)
	case "issue_category_id":
		return c.sqlForIssueCategory(field, operator, values)
	}

	column, ok := nativeColumns[field]
	if !ok {
		return Fragment{}, &CompileError{Kind: UnknownField, Field: field}
	}
	return c.sqlForField(column, field, fieldType, operator, values)
}

// nativeColumns maps native filter fields to their attachment column.
var nativeColumns = map[string]string{
	"filename":               "attachments.filename",
	"filesize":               "attachments.filesize",
	"downloads":              "attachments.downloads",
	"description":            "attachments.description",
	"content_type":           "attachments.content_type",
	"created_on":             "attachments.created_on",
	"attachment_category_id": "attachments.attachment_category_id",
}

// sqlForField is the generic comparison path for native columns.
func (c *Compiler) sqlForField(column, field string, fieldType fields.FieldType, operator string, values []string) (Fragment, error) {
	switch operator {
	case fields.OpEquals:
		switch fieldType {
		case fields.TypeInteger, fields.TypeList, fields.TypeListOptional:
			ids, err := parseInts(field, values)
			if err != nil {
				return Fragment{}, err
			}
			return inSet(column, ids), nil
		case fields.TypeFloat:
			floats, err := parseFloats(field, values)
			if err != nil {
				return Fragment{}, err
			}
			return inFloatSet(column, floats), nil
		case fields.TypeDatePast:
			day, err := parseDate(field, values[0])
			if err != nil {
				return Fragment{}, err
			}
			return dayRange(column, day, day), nil
		default:
			return Fragment{SQL: column + " = ?", Args: []interface{}{values[0]}}, nil
		}

	case fields.OpNotEquals:
		switch fieldType {
		case fields.TypeInteger, fields.TypeList, fields.TypeListOptional:
			ids, err := parseInts(field, values)
			if err != nil {
				return Fragment{}, err
			}
			frag := notInSet(column, ids)
			if fieldType == fields.TypeListOptional {
				// NULL rows are admitted by a negated optional filter.
				frag.SQL = "(" + column + " IS NULL OR " + frag.SQL + ")"
			}
			return frag, nil
		default:
			return Fragment{SQL: column + " <> ?", Args: []interface{}{values[0]}}, nil
		}

	case fields.OpNone:
		if fieldType == fields.TypeText {
			return Fragment{SQL: "(" + column + " IS NULL OR " + column + " = '')"}, nil
		}
		return Fragment{SQL: column + " IS NULL"}, nil

	case fields.OpAny:
		if fieldType == fields.TypeText {
			return Fragment{SQL: "(" + column + " IS NOT NULL AND " + column + " <> '')"}, nil
		}
		return Fragment{SQL: column + " IS NOT NULL"}, nil

	case fields.OpGreaterOrEq:
		return c.boundCompare(column, field, fieldType, values[0], ">=")

	case fields.OpLessOrEq:
		return c.boundCompare(column, field, fieldType, values[0], "<=")

	case fields.OpBetween:
		if len(values) < 2 {
			return Fragment{}, &CompileError{Kind: EmptyValueSet, Field: field, Operator: operator}
		}
		if fieldType == fields.TypeDatePast {
			from, err := parseDate(field, values[0])
			if err != nil {
				return Fragment{}, err
			}
			to, err := parseDate(field, values[1])
			if err != nil {
				return Fragment{}, err
			}
			return dayRange(column, from, to), nil
		}
		low, err := parseNumber(field, fieldType, values[0])
		if err != nil {
			return Fragment{}, err
		}
		high, err := parseNumber(field, fieldType, values[1])
		if err != nil {
			return Fragment{}, err
		}
		return Fragment{SQL: column + " BETWEEN ? AND ?", Args: []interface{}{low, high}}, nil

	case fields.OpContains:
		return containsClause(column, values[0], false), nil

	case fields.OpNotContains:
		return containsClause(column, values[0], true), nil

	case fields.OpToday:
		today := startOfDay(c.Now())
		return dayRange(column, today, today), nil

	case fields.OpThisWeek:
		monday := startOfWeek(c.Now())
		return spanRange(column, monday, monday.AddDate(0, 0, 7)), nil

	case fields.OpDaysAgo:
		days, err := parseDays(field, values[0])
		if err != nil {
			return Fragment{}, err
		}
		day := startOfDay(c.Now()).AddDate(0, 0, -days)
		return dayRange(column, day, day), nil

	case fields.OpInLessThan:
		days, err := parseDays(field, values[0])
		if err != nil {
			return Fragment{}, err
		}
		from := startOfDay(c.Now()).AddDate(0, 0, -days)
		return Fragment{SQL: column + " >= ?", Args: []interface{}{from}}, nil

	case fields.OpInMoreThan:
		days, err := parseDays(field, values[0])
		if err != nil {
			return Fragment{}, err
		}
		before := startOfDay(c.Now()).AddDate(0, 0, -days+1)
		return Fragment{SQL: column + " < ?", Args: []interface{}{before}}, nil
	}

	return Fragment{}, &CompileError{Kind: UnsupportedOperator, Field: field, Operator: operator}
}

func (c *Compiler) boundCompare(column, field string, fieldType fields.FieldType, value, op string) (Fragment, error) {
	if fieldType == fields.TypeDatePast {
		day, err := parseDate(field, value)
		if err != nil {
			return Fragment{}, err
		}
		if op == ">=" {
			return Fragment{SQL: column + " >= ?", Args: []interface{}{day}}, nil
		}
		return Fragment{SQL: column + " < ?", Args: []interface{}{day.AddDate(0, 0, 1)}}, nil
	}
	number, err := parseNumber(field, fieldType, value)
	if err != nil {
		return Fragment{}, err
	}
	return Fragment{SQL: column + " " + op + " ?", Args: []interface{}{number}}, nil
}

// sqlForContainerID extracts every embedded integer from the values and
// matches the container id against that set. No integers means the
// predicate matches nothing.
func (c *Compiler) sqlForContainerID(operator string, values []string) (Fragment, error) {
	switch operator {
	case fields.OpEquals, fields.OpContains:
		ids := extractIntegers(values)
		if len(ids) == 0 {
			return Fragment{SQL: neverMatch}, nil
		}
		return Fragment{SQL: fmt.Sprintf("attachments.container_id IN (%s)", joinInts(ids))}, nil
	case fields.OpNone:
		return Fragment{SQL: "attachments.container_id IS NULL"}, nil
	case fields.OpAny:
		return Fragment{SQL: "attachments.container_id IS NOT NULL"}, nil
	}
	return Fragment{}, &CompileError{Kind: UnsupportedOperator, Field: "container_id", Operator: operator}
}

// sqlForAttachmentID applies the same integer extraction policy as
// sqlForContainerID for equality; range operators go through the generic
// numeric path.
func (c *Compiler) sqlForAttachmentID(field, operator string, values []string) (Fragment, error) {
	if operator == fields.OpEquals {
		ids := extractIntegers(values)
		if len(ids) == 0 {
			return Fragment{SQL: neverMatch}, nil
		}
		return Fragment{SQL: fmt.Sprintf("attachments.id IN (%s)", joinInts(ids))}, nil
	}
	return c.sqlForField("attachments.id", field, fields.TypeInteger, operator, values)
}

// sqlForProjectID matches against the project set. "mine" expands to the
// user's membership projects; equality and containment share the integer
// extraction policy, so a comma-separated id list works for both.
func (c *Compiler) sqlForProjectID(field, operator string, values []string, scope permissions.Scope) (Fragment, error) {
	expanded := make([]string, 0, len(values))
	for _, v := range values {
		if v == "mine" {
			for _, id := range scope.ProjectIDs {
				expanded = append(expanded, strconv.FormatInt(id, 10))
			}
			continue
		}
		expanded = append(expanded, v)
	}

	var frag Fragment
	switch operator {
	case fields.OpEquals, fields.OpContains:
		frag = inSet("projects.id", extractIntegers(expanded))
	case fields.OpNone:
		frag = Fragment{SQL: "projects.id IS NULL"}
	case fields.OpAny:
		frag = Fragment{SQL: "projects.id IS NOT NULL"}
	default:
		return Fragment{}, &CompileError{Kind: UnsupportedOperator, Field: field, Operator: operator}
	}
	frag.Joins = frag.Joins.With(JoinProject)
	return frag, nil
}

func (c *Compiler) sqlForAuthorID(field, operator string, values []string, scope permissions.Scope) (Fragment, error) {
	expanded := make([]string, 0, len(values))
	for _, v := range values {
		if v == "me" {
			if scope.Logged {
				expanded = append(expanded, strconv.FormatInt(scope.UserID, 10))
			}
			continue
		}
		expanded = append(expanded, v)
	}

	ids, err := parseInts(field, expanded)
	if err != nil {
		return Fragment{}, err
	}
	switch operator {
	case fields.OpEquals:
		return inSet("attachments.author_id", ids), nil
	case fields.OpNotEquals:
		return notInSet("attachments.author_id", ids), nil
	}
	return Fragment{}, &CompileError{Kind: UnsupportedOperator, Field: field, Operator: operator}
}

func (c *Compiler) sqlForIssueSubject(operator string, values []string) (Fragment, error) {
	var frag Fragment
	switch operator {
	case fields.OpEquals:
		frag = Fragment{SQL: "issues.subject = ?", Args: []interface{}{values[0]}}
	case fields.OpContains:
		frag = containsClause("issues.subject", values[0], false)
	case fields.OpNone:
		frag = Fragment{SQL: "(issues.subject IS NULL OR issues.subject = '')"}
	case fields.OpAny:
		frag = Fragment{SQL: "(issues.subject IS NOT NULL AND issues.subject <> '')"}
	default:
		return Fragment{}, &CompileError{Kind: UnsupportedOperator, Field: "issue_subject", Operator: operator}
	}
	frag.Joins = frag.Joins.With(JoinIssue)
	return frag, nil
}

// sqlForIssueStatus dereferences the status table's closed flag through a
// subquery rather than a denormalized flag on the attachment.
func (c *Compiler) sqlForIssueStatus(field, operator string, values []string) (Fragment, error) {
	var frag Fragment
	switch operator {
	case fields.OpOpen:
		frag = Fragment{SQL: "issues.status_id IN (SELECT id FROM issue_statuses WHERE is_closed = FALSE)"}
	case fields.OpClosed:
		frag = Fragment{SQL: "issues.status_id IN (SELECT id FROM issue_statuses WHERE is_closed = TRUE)"}
	case fields.OpEquals:
		ids, err := parseInts(field, values)
		if err != nil {
			return Fragment{}, err
		}
		frag = inSet("issues.status_id", ids)
	case fields.OpNotEquals:
		ids, err := parseInts(field, values)
		if err != nil {
			return Fragment{}, err
		}
		frag = notInSet("issues.status_id", ids)
	case fields.OpAny:
		frag = Fragment{SQL: "issues.status_id IS NOT NULL"}
	default:
		return Fragment{}, &CompileError{Kind: UnsupportedOperator, Field: field, Operator: operator}
	}
	frag.Joins = frag.Joins.With(JoinIssue)
	return frag, nil
}

func (c *Compiler) sqlForIssueCategory(field, operator string, values []string) (Fragment, error) {
	var frag Fragment
	switch operator {
	case fields.OpEquals:
		ids, err := parseInts(field, values)
		if err != nil {
			return Fragment{}, err
		}
		frag = inSet("issues.category_id", ids)
	case fields.OpNotEquals:
		ids, err := parseInts(field, values)
		if err != nil {
			return Fragment{}, err
		}
		frag = notInSet("issues.category_id", ids)
		frag.SQL = "(issues.category_id IS NULL OR " + frag.SQL + ")"
	case fields.OpNone:
		frag = Fragment{SQL: "issues.category_id IS NULL"}
	case fields.OpAny:
		frag = Fragment{SQL: "issues.category_id IS NOT NULL"}
	default:
		return Fragment{}, &CompileError{Kind: UnsupportedOperator, Field: field, Operator: operator}
	}
	frag.Joins = frag.Joins.With(JoinIssue)
	return frag, nil
}

// containsClause builds a case-insensitive substring match with the LIKE
// special characters escaped and the wildcard pattern bound as an
// argument, never interpolated.
func containsClause(column, value string, negate bool) Fragment {
	pattern := "%" + escapeLike(strings.ToLower(value)) + "%"
	op := "LIKE"
	if negate {
		op = "NOT LIKE"
	}
	return Fragment{
		SQL:  fmt.Sprintf("LOWER(%s) %s ? ESCAPE '\\'", column, op),
		Args: []interface{}{pattern},
	}
}

func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

// inSet builds `col IN (...)` over verified integers. Raw interpolation
// is limited to values already parsed as integers; an empty set matches
// nothing.
func inSet(column string, ids []int64) Fragment {
	if len(ids) == 0 {
		return Fragment{SQL: neverMatch}
	}
	return Fragment{SQL: fmt.Sprintf("%s IN (%s)", column, joinInts(ids))}
}

func notInSet(column string, ids []int64) Fragment {
	if len(ids) == 0 {
		return Fragment{SQL: neverMatch}
	}
	return Fragment{SQL: fmt.Sprintf("%s NOT IN (%s)", column, joinInts(ids))}
}

func inFloatSet(column string, values []float64) Fragment {
	if len(values) == 0 {
		return Fragment{SQL: neverMatch}
	}
	parts := make([]string, len(values))
	args := make([]interface{}, len(values))
	for i, v := range values {
		parts[i] = "?"
		args[i] = v
	}
	return Fragment{SQL: fmt.Sprintf("%s IN (%s)", column, strings.Join(parts, ", ")), Args: args}
}

// dayRange matches timestamps within [from, to] at day granularity.
func dayRange(column string, from, to time.Time) Fragment {
	return spanRange(column, from, to.AddDate(0, 0, 1))
}

// spanRange matches timestamps within the half-open interval [from, until).
func spanRange(column string, from, until time.Time) Fragment {
	return Fragment{
		SQL:  fmt.Sprintf("%s >= ? AND %s < ?", column, column),
		Args: []interface{}{from, until},
	}
}

func parseInts(field string, values []string) ([]int64, error) {
	ids := make([]int64, 0, len(values))
	for _, v := range values {
		id, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return nil, &CompileError{Kind: UnparsableValue, Field: field, Value: v}
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseFloats(field string, values []string) ([]float64, error) {
	out := make([]float64, 0, len(values))
	for _, v := range values {
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return nil, &CompileError{Kind: UnparsableValue, Field: field, Value: v}
		}
		out = append(out, f)
	}
	return out, nil
}

func parseNumber(field string, fieldType fields.FieldType, value string) (interface{}, error) {
	if fieldType == fields.TypeFloat {
		f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
		if err != nil {
			return nil, &CompileError{Kind: UnparsableValue, Field: field, Value: value}
		}
		return f, nil
	}
	n, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return nil, &CompileError{Kind: UnparsableValue, Field: field, Value: value}
	}
	return n, nil
}

func parseDate(field, value string) (time.Time, error) {
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(value), time.UTC)
	if err != nil {
		return time.Time{}, &CompileError{Kind: UnparsableValue, Field: field, Value: value}
	}
	return day, nil
}

func parseDays(field, value string) (int, error) {
	days, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || days < 0 {
		return 0, &CompileError{Kind: UnparsableValue, Field: field, Value: value}
	}
	return days, nil
}

// extractIntegers collects every integer substring across all values.
func extractIntegers(values []string) []int64 {
	var ids []int64
	for _, v := range values {
		for _, m := range integerPattern.FindAllString(v, -1) {
			id, err := strconv.ParseInt(m, 10, 64)
			if err != nil {
				continue
			}
			ids = append(ids, id)
		}
	}
	return ids
}

func joinInts(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}

// compact drops empty values. Operators that require values reject a
// fully empty set afterwards.
func compact(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			out = append(out, v)
		}
	}
	return out
}

// startOfDay truncates to midnight UTC.
func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// startOfWeek truncates to the preceding Monday midnight UTC.
func startOfWeek(t time.Time) time.Time {
	day := startOfDay(t)
	offset := (int(day.Weekday()) + 6) % 7
	return day.AddDate(0, 0, -offset)
}

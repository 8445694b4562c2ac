package services

import (
	"context"
	"fmt"
	"math"
	"strings"

	apperrors "github.com/HugoHasenbein/redmine-issue-attachments/attachments/errors"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// blankGroupLabel names the NULL group partition in grouped listings.
const blankGroupLabel = "(blank)"

func (s *service) Execute(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery, page, perPage int) (*models.ListResult, error) {
	stmt, err := s.buildStatement(q, scope)
	if err != nil {
		return nil, err
	}

	page, perPage = s.Pagination(page, perPage)
	offset := (page - 1) * perPage

	count, err := s.attachments.Count(ctx, stmt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}

	rows, err := s.attachments.Find(ctx, stmt, offset, perPage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}

	result := &models.ListResult{
		Attachments: rows,
		Count:       count,
		Page:        page,
		PerPage:     perPage,
	}

	if stmt.Grouped() {
		counts, err := s.attachments.CountByGroup(ctx, stmt)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
		}
		result.CountByGroup = counts
		result.GroupLabels = groupLabels(q.GroupBy, counts)
	}

	totals, totalsByGroup, err := s.aggregate(ctx, stmt, q)
	if err != nil {
		return nil, err
	}
	result.Totals = totals
	result.TotalsByGroup = totalsByGroup

	return result, nil
}

func (s *service) IDs(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery, page, perPage int) ([]int64, error) {
	stmt, err := s.buildStatement(q, scope)
	if err != nil {
		return nil, err
	}

	page, perPage = s.Pagination(page, perPage)
	ids, err := s.attachments.IDs(ctx, stmt, (page-1)*perPage, perPage)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	return ids, nil
}

// buildStatement composes the statement and widens its join set for the
// selected display columns, so the listing select resolves them.
func (s *service) buildStatement(q *models.AttachmentQuery, scope permissions.Scope) (*query.Statement, error) {
	stmt, err := s.builder.Build(q, scope)
	if err != nil {
		if _, ok := query.AsCompileError(err); ok {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", apperrors.ErrStatementInvalid, err)
	}

	for _, name := range q.ColumnNames {
		switch name {
		case "author":
			stmt.Joins = stmt.Joins.With(query.JoinAuthor)
		case "attachment_category":
			stmt.Joins = stmt.Joins.With(query.JoinCategory)
		}
	}
	return stmt, nil
}

// aggregate computes the requested column totals, overall and per group.
// Unknown or non-totalable names are ignored.
func (s *service) aggregate(ctx context.Context, stmt *query.Statement, q *models.AttachmentQuery) (map[string]float64, map[string]map[string]float64, error) {
	var totals map[string]float64
	var byGroup map[string]map[string]float64

	for _, name := range q.TotalableNames {
		column, ok := s.catalog.Column(name)
		if !ok || !column.Totalable {
			continue
		}

		sum, err := s.attachments.Total(ctx, stmt, name)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
		}
		if totals == nil {
			totals = make(map[string]float64)
		}
		totals[name] = roundTotal(name, sum)

		if !stmt.Grouped() {
			continue
		}
		sums, err := s.attachments.TotalByGroup(ctx, stmt, name)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
		}
		for key, v := range sums {
			sums[key] = roundTotal(name, v)
		}
		if byGroup == nil {
			byGroup = make(map[string]map[string]float64)
		}
		byGroup[name] = sums
	}
	return totals, byGroup, nil
}

// roundTotal normalizes a column sum: sizes round to two decimals,
// download counters stay integral.
func roundTotal(column string, v float64) float64 {
	switch column {
	case "filesize":
		return math.Round(v*100) / 100
	case "downloads":
		return math.Trunc(v)
	default:
		return v
	}
}

// groupLabels renders a display label per group key. The NULL partition
// gets a fixed blank label; content types collapse to their media kind.
func groupLabels(groupBy string, counts map[string]int64) map[string]string {
	labels := make(map[string]string, len(counts))
	for key := range counts {
		labels[key] = groupLabel(groupBy, key)
	}
	return labels
}

func groupLabel(groupBy, key string) string {
	if key == "" {
		return blankGroupLabel
	}
	if groupBy == "content_type" {
		if idx := strings.Index(key, "/"); idx > 0 {
			return key[:idx]
		}
	}
	return key
}

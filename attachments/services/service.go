package services

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	apperrors "github.com/HugoHasenbein/redmine-issue-attachments/attachments/errors"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/fields"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/repository"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/cache"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
)

// Settings carries the plugin-level defaults applied to fresh
// definitions and pagination.
type Settings struct {
	DefaultColumns []string
	DefaultTotals  []string
	PerPageDefault int
	PerPageMax     int
	SessionTTL     time.Duration
}

// RequestParams is the decoded filter form shape of a listing request.
type RequestParams struct {
	QueryID        int64
	SetFilter      bool
	ProjectID      int64
	Filters        models.FilterList
	GroupBy        string
	ColumnNames    []string
	SortCriteria   models.SortCriteria
	TotalableNames []string
}

// Service exposes the query engine operations to the handlers.
type Service interface {
	// ResolveQuery determines the effective definition for a request:
	// an explicitly addressed saved one, a fresh one built from params,
	// or the session-held shape from a previous request.
	ResolveQuery(ctx context.Context, scope permissions.Scope, params RequestParams, sessionID string) (*models.AttachmentQuery, error)

	// Execute runs the definition: listing, count, grouped counts,
	// totals, group labels.
	Execute(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery, page, perPage int) (*models.ListResult, error)

	// IDs returns the ordered identifier projection of the definition.
	IDs(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery, page, perPage int) ([]int64, error)

	// AvailableFilters returns the per-context filter set.
	AvailableFilters(ctx context.Context, scope permissions.Scope, projectID int64) ([]fields.FilterMeta, error)

	// AvailableColumns returns the selectable column set.
	AvailableColumns() []fields.ColumnMeta

	// ListQueries returns the saved definitions visible to the scope.
	ListQueries(ctx context.Context, scope permissions.Scope, projectID int64, offset, limit int) ([]models.AttachmentQuery, int64, error)

	// GetQuery loads one saved definition with the visibility check.
	GetQuery(ctx context.Context, scope permissions.Scope, id int64) (*models.AttachmentQuery, error)

	// SaveQuery persists a definition for the scoped user.
	SaveQuery(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery) (*models.AttachmentQuery, error)

	// UpdateQuery rewrites a saved definition after the editability check.
	UpdateQuery(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery) (*models.AttachmentQuery, error)

	// DeleteQuery removes a saved definition after the editability check.
	DeleteQuery(ctx context.Context, scope permissions.Scope, id int64) error

	// Pagination clamps a page/per-page pair to the configured bounds.
	Pagination(page, perPage int) (int, int)
}

type service struct {
	attachments repository.AttachmentRepository
	queries     repository.QueryRepository
	catalog     *fields.Catalog
	builder     *query.Builder
	sessions    *cache.GenericCacheService
	settings    Settings
}

// NewService constructs the attachment query service.
func NewService(
	attachments repository.AttachmentRepository,
	queries repository.QueryRepository,
	catalog *fields.Catalog,
	builder *query.Builder,
	sessions *cache.GenericCacheService,
	settings Settings,
) Service {
	return &service{
		attachments: attachments,
		queries:     queries,
		catalog:     catalog,
		builder:     builder,
		sessions:    sessions,
		settings:    settings,
	}
}

func sessionKey(sessionID string) string {
	return "query:" + sessionID
}

func (s *service) ResolveQuery(ctx context.Context, scope permissions.Scope, params RequestParams, sessionID string) (*models.AttachmentQuery, error) {
	if params.QueryID > 0 {
		q, err := s.GetQuery(ctx, scope, params.QueryID)
		if err != nil {
			return nil, err
		}
		if params.ProjectID > 0 {
			q.ProjectID = sql.NullInt64{Int64: params.ProjectID, Valid: true}
		}
		s.rememberShape(ctx, sessionID, models.SessionShape{QueryID: q.ID, ProjectID: nullableID(q.ProjectID)})
		return s.applyDefaults(q), nil
	}

	stored := s.recallShape(ctx, sessionID)

	// A project switch invalidates the session-held shape the same way
	// an explicit filter change does.
	if params.SetFilter || (stored != nil && params.ProjectID > 0 && stored.ProjectID != params.ProjectID) || stored == nil {
		q := s.fromParams(params, scope)
		s.rememberShape(ctx, sessionID, q.Shape())
		return s.applyDefaults(q), nil
	}

	if stored.QueryID > 0 {
		q, err := s.GetQuery(ctx, scope, stored.QueryID)
		if err == nil {
			return s.applyDefaults(q), nil
		}
		// The remembered definition vanished or became invisible; fall
		// back to a fresh one.
		q2 := s.fromParams(params, scope)
		s.rememberShape(ctx, sessionID, q2.Shape())
		return s.applyDefaults(q2), nil
	}

	return s.applyDefaults(models.FromShape(*stored, scope.UserID)), nil
}

func (s *service) fromParams(params RequestParams, scope permissions.Scope) *models.AttachmentQuery {
	q := &models.AttachmentQuery{
		Name:           models.DefaultQueryName,
		UserID:         scope.UserID,
		Visibility:     models.VisibilityPrivate,
		Filters:        params.Filters,
		ColumnNames:    pq.StringArray(params.ColumnNames),
		SortCriteria:   params.SortCriteria,
		GroupBy:        params.GroupBy,
		TotalableNames: pq.StringArray(params.TotalableNames),
	}
	if params.ProjectID > 0 {
		q.ProjectID = sql.NullInt64{Int64: params.ProjectID, Valid: true}
	}
	return q
}

// applyDefaults fills in the configured column and totals defaults for
// definitions that carry none.
func (s *service) applyDefaults(q *models.AttachmentQuery) *models.AttachmentQuery {
	if len(q.ColumnNames) == 0 {
		q.ColumnNames = pq.StringArray(s.settings.DefaultColumns)
	}
	if len(q.TotalableNames) == 0 {
		q.TotalableNames = pq.StringArray(s.settings.DefaultTotals)
	}
	return q
}

func (s *service) rememberShape(ctx context.Context, sessionID string, shape models.SessionShape) {
	if sessionID == "" || s.sessions == nil || !s.sessions.IsEnabled() {
		return
	}
	_ = s.sessions.CacheData(ctx, sessionKey(sessionID), shape, s.settings.SessionTTL)
}

func (s *service) recallShape(ctx context.Context, sessionID string) *models.SessionShape {
	if sessionID == "" || s.sessions == nil || !s.sessions.IsEnabled() {
		return nil
	}
	var shape models.SessionShape
	if err := s.sessions.GetCached(ctx, sessionKey(sessionID), &shape); err != nil {
		return nil
	}
	return &shape
}

func (s *service) AvailableFilters(ctx context.Context, scope permissions.Scope, projectID int64) ([]fields.FilterMeta, error) {
	return s.catalog.AvailableFilters(ctx, projectID, scope)
}

func (s *service) AvailableColumns() []fields.ColumnMeta {
	return s.catalog.AvailableColumns()
}

func (s *service) ListQueries(ctx context.Context, scope permissions.Scope, projectID int64, offset, limit int) ([]models.AttachmentQuery, int64, error) {
	queries, total, err := s.queries.ListVisible(ctx, scope, projectID, offset, limit)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	return queries, total, nil
}

func (s *service) GetQuery(ctx context.Context, scope permissions.Scope, id int64) (*models.AttachmentQuery, error) {
	q, err := s.queries.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	if q == nil {
		return nil, apperrors.ErrNotFound
	}

	// A project-bound definition is reachable only with view permission
	// on its project, whatever its visibility says. Admins pass outright.
	if !scope.Admin && q.ProjectID.Valid {
		allowed, err := s.queries.CanViewProject(ctx, scope, q.ProjectID.Int64)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
		}
		if !allowed {
			return nil, apperrors.ErrAccessDenied
		}
	}

	roles, err := s.membershipRoles(ctx, scope)
	if err != nil {
		return nil, err
	}
	if !query.IsVisibleTo(q, scope, roles) {
		return nil, apperrors.ErrAccessDenied
	}
	return q, nil
}

func (s *service) SaveQuery(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery) (*models.AttachmentQuery, error) {
	if !scope.Logged {
		return nil, apperrors.ErrAccessDenied
	}
	if q.Name == "" || q.Name == models.DefaultQueryName {
		return nil, fmt.Errorf("%w: query name is required", apperrors.ErrInvalidRequest)
	}

	canSave, err := s.queries.HasPermission(ctx, scope, permissions.SaveQueries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	if !canSave {
		return nil, apperrors.ErrAccessDenied
	}

	if err := s.applyVisibilityPolicy(ctx, scope, q); err != nil {
		return nil, err
	}

	q.UserID = scope.UserID
	created, err := s.queries.Create(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	return created, nil
}

func (s *service) UpdateQuery(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery) (*models.AttachmentQuery, error) {
	existing, err := s.GetQuery(ctx, scope, q.ID)
	if err != nil {
		return nil, err
	}
	if err := s.requireEditable(ctx, scope, existing); err != nil {
		return nil, err
	}
	if q.Name == "" {
		return nil, fmt.Errorf("%w: query name is required", apperrors.ErrInvalidRequest)
	}

	if err := s.applyVisibilityPolicy(ctx, scope, q); err != nil {
		return nil, err
	}

	q.UserID = existing.UserID
	if err := s.queries.Update(ctx, q); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	return q, nil
}

func (s *service) DeleteQuery(ctx context.Context, scope permissions.Scope, id int64) error {
	existing, err := s.GetQuery(ctx, scope, id)
	if err != nil {
		return err
	}
	if err := s.requireEditable(ctx, scope, existing); err != nil {
		return err
	}

	deleted, err := s.queries.Delete(ctx, id)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	if !deleted {
		return apperrors.ErrNotFound
	}
	return nil
}

// applyVisibilityPolicy forces definitions of non-privileged users to
// private. Visibility and role links are honored only for admins and
// managers of public queries.
func (s *service) applyVisibilityPolicy(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery) error {
	if scope.Admin {
		return nil
	}
	canManage, err := s.queries.HasPermission(ctx, scope, permissions.ManagePublicQueries)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	if !canManage {
		q.Visibility = models.VisibilityPrivate
		q.RoleIDs = nil
	}
	return nil
}

func (s *service) requireEditable(ctx context.Context, scope permissions.Scope, q *models.AttachmentQuery) error {
	roles, err := s.membershipRoles(ctx, scope)
	if err != nil {
		return err
	}
	canManage, err := s.queries.HasPermission(ctx, scope, permissions.ManagePublicQueries)
	if err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	if !query.EditableBy(q, scope, roles, canManage) {
		return apperrors.ErrAccessDenied
	}
	return nil
}

func (s *service) membershipRoles(ctx context.Context, scope permissions.Scope) ([]query.MembershipRole, error) {
	if !scope.Logged {
		return nil, nil
	}
	roles, err := s.queries.MembershipRoles(ctx, scope.UserID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrDatabaseOperation, err)
	}
	return roles, nil
}

// Pagination clamps to the configured per-page bounds; pages are 1-based.
func (s *service) Pagination(page, perPage int) (int, int) {
	if page < 1 {
		page = 1
	}
	if perPage < 1 {
		perPage = s.settings.PerPageDefault
	}
	if perPage > s.settings.PerPageMax {
		perPage = s.settings.PerPageMax
	}
	return page, perPage
}

func nullableID(id sql.NullInt64) int64 {
	if id.Valid {
		return id.Int64
	}
	return 0
}

package handlers

import (
	"database/sql"
	"net/http"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/errors"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/models"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/services"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/types"
)

type QueryHandler struct {
	service services.Service
	scopes  permissions.ScopeLoader
}

func NewQueryHandler(service services.Service, scopes permissions.ScopeLoader) *QueryHandler {
	return &QueryHandler{service: service, scopes: scopes}
}

// queryBody is the JSON save/update form of a definition.
type queryBody struct {
	Name           string              `json:"name"`
	ProjectID      int64               `json:"projectId"`
	Visibility     int                 `json:"visibility"`
	RoleIDs        []int64             `json:"roleIds"`
	Filters        models.FilterList   `json:"filters"`
	ColumnNames    []string            `json:"columnNames"`
	SortCriteria   models.SortCriteria `json:"sortCriteria"`
	GroupBy        string              `json:"groupBy"`
	TotalableNames []string            `json:"totalableNames"`
}

func (b *queryBody) toModel() *models.AttachmentQuery {
	q := &models.AttachmentQuery{
		Name:           b.Name,
		Visibility:     b.Visibility,
		RoleIDs:        b.RoleIDs,
		Filters:        b.Filters,
		ColumnNames:    pq.StringArray(b.ColumnNames),
		SortCriteria:   b.SortCriteria,
		GroupBy:        b.GroupBy,
		TotalableNames: pq.StringArray(b.TotalableNames),
	}
	if b.ProjectID > 0 {
		q.ProjectID = sql.NullInt64{Int64: b.ProjectID, Valid: true}
	}
	return q
}

func (h *QueryHandler) resolveScope(c *fiber.Ctx) (permissions.Scope, error) {
	user, ok := c.Locals(types.UserCtxName).(types.UserContext)
	if !ok {
		return permissions.Scope{}, errors.ErrMissingUserContext
	}
	return h.scopes.LoadScope(c.Context(), user)
}

func queryIDParam(c *fiber.Ctx) (int64, bool) {
	id, err := strconv.ParseInt(c.Params("queryId"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// List returns the saved definitions visible to the request user.
// Endpoint: GET /issue-attachment-queries
func (h *QueryHandler) List(c *fiber.Ctx) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	page, perPage := h.service.Pagination(c.QueryInt("page", 1), c.QueryInt("per_page", 0))
	projectID := int64(c.QueryInt("project_id", 0))

	queries, total, err := h.service.ListQueries(c.Context(), scope, projectID, (page-1)*perPage, perPage)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"queries": queries,
		"total":   total,
		"page":    page,
		"perPage": perPage,
	})
}

// Get returns one saved definition.
// Endpoint: GET /issue-attachment-queries/:queryId
func (h *QueryHandler) Get(c *fiber.Ctx) error {
	id, ok := queryIDParam(c)
	if !ok {
		return errors.HandleValidationError(c, "queryId must be a positive integer")
	}

	scope, err := h.resolveScope(c)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	q, err := h.service.GetQuery(c.Context(), scope, id)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}
	return c.Status(http.StatusOK).JSON(q)
}

// Create saves a new definition for the request user.
// Endpoint: POST /issue-attachment-queries
func (h *QueryHandler) Create(c *fiber.Ctx) error {
	var body queryBody
	if err := c.BodyParser(&body); err != nil {
		return errors.HandleValidationError(c, "invalid request body")
	}

	scope, err := h.resolveScope(c)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	created, err := h.service.SaveQuery(c.Context(), scope, body.toModel())
	if err != nil {
		return errors.HandleServiceError(c, err)
	}
	return c.Status(http.StatusCreated).JSON(created)
}

// Update rewrites a saved definition.
// Endpoint: PUT /issue-attachment-queries/:queryId
func (h *QueryHandler) Update(c *fiber.Ctx) error {
	id, ok := queryIDParam(c)
	if !ok {
		return errors.HandleValidationError(c, "queryId must be a positive integer")
	}

	var body queryBody
	if err := c.BodyParser(&body); err != nil {
		return errors.HandleValidationError(c, "invalid request body")
	}

	scope, err := h.resolveScope(c)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	q := body.toModel()
	q.ID = id
	updated, err := h.service.UpdateQuery(c.Context(), scope, q)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}
	return c.Status(http.StatusOK).JSON(updated)
}

// Delete removes a saved definition.
// Endpoint: DELETE /issue-attachment-queries/:queryId
func (h *QueryHandler) Delete(c *fiber.Ctx) error {
	id, ok := queryIDParam(c)
	if !ok {
		return errors.HandleValidationError(c, "queryId must be a positive integer")
	}

	scope, err := h.resolveScope(c)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	if err := h.service.DeleteQuery(c.Context(), scope, id); err != nil {
		return errors.HandleServiceError(c, err)
	}
	return c.SendStatus(http.StatusNoContent)
}

package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"
	uuid "github.com/gofrs/uuid"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/errors"
	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/services"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/permissions"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/types"
)

// HeaderSessionID carries the client session identifier the filter
// state is remembered under between listing requests.
const HeaderSessionID = "X-Session-Id"

type AttachmentHandler struct {
	service services.Service
	scopes  permissions.ScopeLoader
}

func NewAttachmentHandler(service services.Service, scopes permissions.ScopeLoader) *AttachmentHandler {
	return &AttachmentHandler{service: service, scopes: scopes}
}

// resolveScope loads the authorization scope for the request user.
func (h *AttachmentHandler) resolveScope(c *fiber.Ctx) (permissions.Scope, error) {
	user, ok := c.Locals(types.UserCtxName).(types.UserContext)
	if !ok {
		return permissions.Scope{}, errors.ErrMissingUserContext
	}
	return h.scopes.LoadScope(c.Context(), user)
}

// sessionID resolves the session key the filter state is stored under.
// A fresh identifier is issued when the client sent none; it is echoed
// back so the client can carry it forward.
func sessionID(c *fiber.Ctx) string {
	if id := c.Get(HeaderSessionID); id != "" {
		return id
	}
	if id := c.Cookies("session_id"); id != "" {
		return id
	}
	id := uuid.Must(uuid.NewV4()).String()
	c.Set(HeaderSessionID, id)
	return id
}

// List executes the effective query definition and returns one page.
// Endpoint: GET /issue-attachments
func (h *AttachmentHandler) List(c *fiber.Ctx) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	params, page, perPage, err := parseListing(c)
	if err != nil {
		return errors.HandleValidationError(c, err.Error())
	}

	q, err := h.service.ResolveQuery(c.Context(), scope, params, sessionID(c))
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	result, err := h.service.Execute(c.Context(), scope, q, page, perPage)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{
		"query":  q,
		"result": result,
	})
}

// IDs returns the ordered identifier projection of the effective
// definition, for bulk operations on the listed set.
// Endpoint: GET /issue-attachments/ids
func (h *AttachmentHandler) IDs(c *fiber.Ctx) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	params, page, perPage, err := parseListing(c)
	if err != nil {
		return errors.HandleValidationError(c, err.Error())
	}

	q, err := h.service.ResolveQuery(c.Context(), scope, params, sessionID(c))
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	ids, err := h.service.IDs(c.Context(), scope, q, page, perPage)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"ids": ids})
}

// Filters returns the filterable field catalog for the request context.
// Endpoint: GET /issue-attachments/filters
func (h *AttachmentHandler) Filters(c *fiber.Ctx) error {
	scope, err := h.resolveScope(c)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	projectID := int64(c.QueryInt("project_id", 0))
	filters, err := h.service.AvailableFilters(c.Context(), scope, projectID)
	if err != nil {
		return errors.HandleServiceError(c, err)
	}

	return c.Status(http.StatusOK).JSON(fiber.Map{"filters": filters})
}

// Columns returns the selectable column catalog.
// Endpoint: GET /issue-attachments/columns
func (h *AttachmentHandler) Columns(c *fiber.Ctx) error {
	return c.Status(http.StatusOK).JSON(fiber.Map{"columns": h.service.AvailableColumns()})
}

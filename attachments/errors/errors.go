package errors

import (
	"errors"
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/query"
)

var (
	ErrInvalidRequest     = errors.New("invalid request")
	ErrMissingUserContext = errors.New("missing user context")
	ErrNotFound           = errors.New("not found")
	ErrAccessDenied       = errors.New("access denied")
	ErrStatementInvalid   = errors.New("statement rejected by store")
	ErrDatabaseOperation  = errors.New("database operation failed")
)

const (
	CodeInvalidRequest = "INVALID_REQUEST"
	CodeInvalidFilter  = "INVALID_FILTER"
	CodeMissingUserCtx = "MISSING_USER_CONTEXT"
	CodeNotFound       = "NOT_FOUND"
	CodeAccessDenied   = "ACCESS_DENIED"
	CodeDatabaseError  = "DATABASE_ERROR"
	CodeInternalError  = "INTERNAL_ERROR"
)

type ErrorResponse struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// HandleServiceError maps service errors to HTTP responses with stable
// codes. Access denial on direct lookup answers NOT_FOUND so callers
// cannot probe for the existence of definitions they may not see.
func HandleServiceError(c *fiber.Ctx, err error) error {
	if err == nil {
		return nil
	}

	if ce, ok := query.AsCompileError(err); ok {
		return c.Status(http.StatusUnprocessableEntity).JSON(ErrorResponse{
			Code:    CodeInvalidFilter,
			Message: ce.Error(),
			Details: string(ce.Kind),
		})
	}

	switch {
	case errors.Is(err, ErrInvalidRequest):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Code: CodeInvalidRequest, Message: err.Error()})
	case errors.Is(err, ErrMissingUserContext):
		return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Code: CodeMissingUserCtx, Message: err.Error()})
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrAccessDenied):
		return c.Status(http.StatusNotFound).JSON(ErrorResponse{Code: CodeNotFound, Message: "not found"})
	case errors.Is(err, ErrStatementInvalid), errors.Is(err, ErrDatabaseOperation):
		return c.Status(http.StatusServiceUnavailable).JSON(ErrorResponse{Code: CodeDatabaseError, Message: err.Error()})
	default:
		return c.Status(http.StatusInternalServerError).JSON(ErrorResponse{Code: CodeInternalError, Message: "An unexpected error occurred", Details: err.Error()})
	}
}

// HandleValidationError reports a request shape problem.
func HandleValidationError(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Code: CodeInvalidRequest, Message: message, Details: message})
}

// HandleUserContextError reports a missing or malformed user context.
func HandleUserContextError(c *fiber.Ctx, message string) error {
	return c.Status(http.StatusBadRequest).JSON(ErrorResponse{Code: CodeMissingUserCtx, Message: message, Details: message})
}

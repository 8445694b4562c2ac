package attachments

import (
	"github.com/gofiber/fiber/v2"

	"github.com/HugoHasenbein/redmine-issue-attachments/attachments/handlers"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/middleware/authjwt"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/middleware/ratelimit"
	platformconfig "github.com/HugoHasenbein/redmine-issue-attachments/internal/platform/config"
	"github.com/HugoHasenbein/redmine-issue-attachments/internal/types"
)

type Handlers struct {
	AttachmentHandler *handlers.AttachmentHandler
	QueryHandler      *handlers.QueryHandler
}

// RegisterRoutes wires the attachment listing and saved-query endpoints.
// Listing endpoints admit anonymous visitors, who still see attachments
// of public projects; writes require a token.
func RegisterRoutes(app *fiber.App, h *Handlers, cfg *platformconfig.Config) {
	anonAuth := authjwt.New(authjwt.Config{
		PublicKey:      cfg.JWT.PublicKey,
		ClaimKey:       "claim",
		UserCtxName:    types.UserCtxName,
		AllowAnonymous: true,
	})
	userAuth := authjwt.New(authjwt.Config{
		PublicKey:   cfg.JWT.PublicKey,
		ClaimKey:    "claim",
		UserCtxName: types.UserCtxName,
	})

	listingLimiter := ratelimit.NewListingLimiter(nil)
	mutationLimiter := ratelimit.NewMutationLimiter(nil)

	listing := app.Group("/issue-attachments", anonAuth)
	listing.Get("/", listingLimiter, h.AttachmentHandler.List)
	listing.Get("/ids", listingLimiter, h.AttachmentHandler.IDs)
	listing.Get("/filters", h.AttachmentHandler.Filters)
	listing.Get("/columns", h.AttachmentHandler.Columns)

	queries := app.Group("/issue-attachment-queries")
	queries.Get("/", anonAuth, h.QueryHandler.List)
	queries.Get("/:queryId", anonAuth, h.QueryHandler.Get)
	queries.Post("/", userAuth, mutationLimiter, h.QueryHandler.Create)
	queries.Put("/:queryId", userAuth, mutationLimiter, h.QueryHandler.Update)
	queries.Delete("/:queryId", userAuth, mutationLimiter, h.QueryHandler.Delete)
}

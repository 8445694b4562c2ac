package types

// HTTP Header Constants
const (
	HeaderAuthorization = "Authorization"
	HeaderContentType   = "Content-Type"
	HeaderSessionID     = "X-Session-Id"
)

// Authentication Constants
const (
	BearerPrefix = "Bearer "
)

// UserCtxName is the fiber locals key under which the authenticated
// user context is stored by the auth middleware.
const UserCtxName = "user"

// UserContext carries the acting user through a request. The host tracker
// authenticates users; this service only consumes the resulting identity.
// A zero UserContext (UserID == 0) represents an anonymous visitor.
type UserContext struct {
	UserID   int64  `json:"userId"`
	Username string `json:"username"`
	Admin    bool   `json:"admin"`
}

// Logged reports whether the context belongs to an authenticated user.
func (u UserContext) Logged() bool {
	return u.UserID != 0
}

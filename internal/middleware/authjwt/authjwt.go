package authjwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/types"
)

// Config defines the config for the JWT middleware.
type Config struct {
	// The EC public key for validating ES256 tokens.
	PublicKey string
	// The claim key where the UserContext is stored.
	ClaimKey string
	// The context key to store the UserContext.
	UserCtxName string
	// AllowAnonymous lets requests without a token through with an
	// anonymous UserContext instead of rejecting them. Anonymous users
	// may still see public projects, so listing endpoints enable this.
	AllowAnonymous bool
}

// New creates a new middleware handler.
func New(cfg Config) fiber.Handler {
	// Parse the key once on startup.
	ecPublicKey, err := jwt.ParseECPublicKeyFromPEM([]byte(cfg.PublicKey))
	if err != nil {
		panic(fmt.Sprintf("failed to parse EC public key: %v", err))
	}

	return func(c *fiber.Ctx) error {
		var tokenString string

		// 1. Try Authorization header first (for mobile/API clients)
		authHeader := c.Get(types.HeaderAuthorization)
		if authHeader != "" && strings.HasPrefix(authHeader, types.BearerPrefix) {
			parts := strings.Split(authHeader, " ")
			if len(parts) == 2 {
				tokenString = parts[1]
			}
		}

		// 2. Fall back to access_token cookie (for web browsers)
		if tokenString == "" {
			tokenString = c.Cookies("access_token")
		}

		// 3. No token: anonymous passthrough or reject
		if tokenString == "" {
			if cfg.AllowAnonymous {
				c.Locals(cfg.UserCtxName, types.UserContext{})
				return c.Next()
			}
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Missing or invalid JWT",
			})
		}

		userCtx, err := ValidateToken(tokenString, ecPublicKey, cfg.ClaimKey)
		if err != nil {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
				"code":    "UNAUTHORIZED",
				"message": "Invalid token",
				"details": err.Error(),
			})
		}

		c.Locals(cfg.UserCtxName, userCtx)
		return c.Next()
	}
}

// ValidateToken validates a JWT token string and returns the UserContext
// if valid. It is a pure validation function that does not write to the
// response.
func ValidateToken(tokenString string, publicKey interface{}, claimKey string) (types.UserContext, error) {
	var userCtx types.UserContext

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// CRITICAL: Enforce the expected signing algorithm.
		if _, ok := token.Method.(*jwt.SigningMethodECDSA); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return publicKey, nil
	})
	if err != nil {
		return userCtx, fmt.Errorf("invalid token: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return userCtx, errors.New("invalid token")
	}

	if exp, ok := claims["exp"].(float64); ok {
		if int64(exp) < time.Now().Unix() {
			return userCtx, errors.New("token has expired")
		}
	}

	claimData, claimOk := claims[claimKey].(map[string]interface{})
	if !claimOk {
		return userCtx, errors.New("invalid token claim format")
	}

	return mapToUserContext(claimData)
}

// mapToUserContext converts claim data to UserContext
func mapToUserContext(claimData map[string]interface{}) (types.UserContext, error) {
	var userCtx types.UserContext

	// JSON numbers decode as float64
	if userID, ok := claimData["uid"].(float64); ok {
		userCtx.UserID = int64(userID)
	} else {
		return userCtx, errors.New("missing or invalid uid in claim")
	}
	if userCtx.UserID <= 0 {
		return userCtx, errors.New("invalid uid in claim")
	}

	if username, ok := claimData["username"].(string); ok {
		userCtx.Username = username
	}

	if admin, ok := claimData["admin"].(bool); ok {
		userCtx.Admin = admin
	}

	return userCtx, nil
}

// Package ratelimit provides rate limiting middleware for the listing
// and saved-query endpoints. Listings fan out into several aggregate
// statements per request, so they get a tighter window than plain reads.
package ratelimit

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"github.com/HugoHasenbein/redmine-issue-attachments/internal/pkg/log"
)

// EndpointLimits defines rate limiting configuration per endpoint class
type EndpointLimits struct {
	// Listing executions per IP
	ListingMaxRequests    int
	ListingWindowDuration time.Duration

	// Saved-query mutations per IP
	MutationMaxRequests    int
	MutationWindowDuration time.Duration
}

// DefaultEndpointLimits returns the default rate limits
func DefaultEndpointLimits() EndpointLimits {
	return EndpointLimits{
		ListingMaxRequests:    120,
		ListingWindowDuration: 1 * time.Minute,

		MutationMaxRequests:    30,
		MutationWindowDuration: 1 * time.Minute,
	}
}

// EndpointType represents the endpoint classes subject to rate limiting
type EndpointType int

const (
	EndpointListing EndpointType = iota
	EndpointMutation
)

// Config holds the configuration for rate limiting middleware
type Config struct {
	// Endpoint class to determine which limits to apply
	EndpointType EndpointType

	// Custom limits (optional - uses defaults if not provided)
	Limits *EndpointLimits

	// Next defines a function to skip this middleware when returned true
	Next func(c *fiber.Ctx) bool

	// Custom key generator (optional - uses default IP-based if not provided)
	KeyGenerator func(c *fiber.Ctx) string

	// LimitReached defines the response when rate limit is exceeded
	LimitReached func(c *fiber.Ctx) error
}

func configDefault(config Config) Config {
	if config.Limits == nil {
		limits := DefaultEndpointLimits()
		config.Limits = &limits
	}

	// Rate limit by IP + endpoint path
	if config.KeyGenerator == nil {
		config.KeyGenerator = func(c *fiber.Ctx) string {
			return c.IP() + ":" + c.Path()
		}
	}

	if config.LimitReached == nil {
		config.LimitReached = func(c *fiber.Ctx) error {
			endpointName := getEndpointName(config.EndpointType)
			windowDuration := getWindowDuration(config.EndpointType, config.Limits)

			log.Warn("[RateLimit] Rate limit exceeded for %s from IP: %s", endpointName, c.IP())

			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error":      "Rate limit exceeded",
				"code":       "RATE_LIMIT_EXCEEDED",
				"message":    fmt.Sprintf("Too many %s requests. Please try again later.", endpointName),
				"retryAfter": int(windowDuration.Seconds()),
			})
		}
	}

	return config
}

func getEndpointName(endpointType EndpointType) string {
	switch endpointType {
	case EndpointListing:
		return "listing"
	case EndpointMutation:
		return "saved query"
	default:
		return "unknown"
	}
}

func getMaxRequests(endpointType EndpointType, limits *EndpointLimits) int {
	switch endpointType {
	case EndpointListing:
		return limits.ListingMaxRequests
	case EndpointMutation:
		return limits.MutationMaxRequests
	default:
		return 30
	}
}

func getWindowDuration(endpointType EndpointType, limits *EndpointLimits) time.Duration {
	switch endpointType {
	case EndpointListing:
		return limits.ListingWindowDuration
	case EndpointMutation:
		return limits.MutationWindowDuration
	default:
		return 1 * time.Minute
	}
}

// New creates a new rate limiting middleware handler
func New(config Config) fiber.Handler {
	cfg := configDefault(config)

	maxRequests := getMaxRequests(cfg.EndpointType, cfg.Limits)
	windowDuration := getWindowDuration(cfg.EndpointType, cfg.Limits)

	limiterConfig := limiter.Config{
		Max:          maxRequests,
		Expiration:   windowDuration,
		KeyGenerator: cfg.KeyGenerator,
		LimitReached: cfg.LimitReached,
		Next:         cfg.Next,
	}

	return limiter.New(limiterConfig)
}

// NewListingLimiter creates a rate limiter for listing executions
func NewListingLimiter(customLimits *EndpointLimits) fiber.Handler {
	return New(Config{
		EndpointType: EndpointListing,
		Limits:       customLimits,
	})
}

// NewMutationLimiter creates a rate limiter for saved-query mutations
func NewMutationLimiter(customLimits *EndpointLimits) fiber.Handler {
	return New(Config{
		EndpointType: EndpointMutation,
		Limits:       customLimits,
	})
}

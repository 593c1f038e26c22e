// Package gateguardfiber provides a Fiber middleware for gateguard.
//
// The middleware extracts the bearer token from the Authorization header
// and delegates verification to the gateguard.Guard. On success, the
// validated claims are stored in c.Locals("gateguard"). On failure, a
// 401 (or 403 for insufficient scope) JSON response is returned.
//
// Concurrency: All exported functions are safe for concurrent use.
package gateguardfiber

import (
	"github.com/gofiber/fiber/v2"

	"github.com/gateguard/gateguard/adapters/common"
	"github.com/gateguard/gateguard/gateguard"
)

const localsKey = "gateguard"

// Option configures the Fiber middleware.
type Option func(*options)

type options struct {
	scopes common.ScopeRequirement
}

// WithRequiredScopes makes the middleware reject authenticated requests
// whose claims hold none of the given scopes (403).
func WithRequiredScopes(scopes ...string) Option {
	return func(o *options) {
		o.scopes.Scopes = scopes
	}
}

func buildOptions(opts []Option) options {
	var o options
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Middleware returns a Fiber middleware that authenticates requests
// using the provided gateguard.Guard.
func Middleware(guard *gateguard.Guard, opts ...Option) fiber.Handler {
	o := buildOptions(opts)
	return func(c *fiber.Ctx) error {
		authHeader := c.Get("Authorization")
		if authHeader == "" {
			return unauthorized(c, "missing authorization header")
		}
		tok, ok := common.BearerToken(authHeader)
		if !ok {
			return unauthorized(c, "unsupported authorization scheme")
		}

		claims, err := guard.Verify(c.UserContext(), tok)
		if err != nil {
			return unauthorized(c, err.Error())
		}

		if !o.scopes.Check(guard, claims) {
			return c.Status(fiber.StatusForbidden).JSON(fiber.Map{
				"error": "insufficient scope",
			})
		}

		c.Locals(localsKey, claims)
		return c.Next()
	}
}

// ClaimsFromLocals retrieves the claims stored by the middleware.
// Returns nil if no claims are present.
func ClaimsFromLocals(c *fiber.Ctx) *gateguard.ValidatedClaims {
	v, _ := c.Locals(localsKey).(*gateguard.ValidatedClaims)
	return v
}

func unauthorized(c *fiber.Ctx, msg string) error {
	return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{
		"error": msg,
	})
}

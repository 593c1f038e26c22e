// Package gateguardfasthttp provides a fasthttp middleware for gateguard.
//
// The middleware extracts the bearer token from the Authorization header
// and delegates verification to the gateguard.Guard. On success, the
// validated claims are stored as a request user value. On failure, a 401
// (or 403 for insufficient scope) JSON response is written.
//
// Concurrency: All exported functions are safe for concurrent use.
package gateguardfasthttp

import (
	"context"
	"encoding/json"

	"github.com/valyala/fasthttp"

	"github.com/gateguard/gateguard/adapters/common"
	"github.com/gateguard/gateguard/gateguard"
)

const userValueKey = "gateguard"

// Option configures the fasthttp middleware.
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

// Middleware wraps next with bearer-token authentication using the
// provided gateguard.Guard.
func Middleware(guard *gateguard.Guard, next fasthttp.RequestHandler, opts ...Option) fasthttp.RequestHandler {
	o := buildOptions(opts)
	return func(ctx *fasthttp.RequestCtx) {
		authHeader := string(ctx.Request.Header.Peek("Authorization"))
		if authHeader == "" {
			writeError(ctx, fasthttp.StatusUnauthorized, "missing authorization header")
			return
		}
		tok, ok := common.BearerToken(authHeader)
		if !ok {
			writeError(ctx, fasthttp.StatusUnauthorized, "unsupported authorization scheme")
			return
		}

		claims, err := guard.Verify(context.Background(), tok)
		if err != nil {
			writeError(ctx, fasthttp.StatusUnauthorized, err.Error())
			return
		}

		if !o.scopes.Check(guard, claims) {
			writeError(ctx, fasthttp.StatusForbidden, "insufficient scope")
			return
		}

		ctx.SetUserValue(userValueKey, claims)
		next(ctx)
	}
}

// ClaimsFromCtx retrieves the claims stored by the middleware.
// Returns nil if no claims are present.
func ClaimsFromCtx(ctx *fasthttp.RequestCtx) *gateguard.ValidatedClaims {
	v, _ := ctx.UserValue(userValueKey).(*gateguard.ValidatedClaims)
	return v
}

func writeError(ctx *fasthttp.RequestCtx, status int, msg string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	_ = json.NewEncoder(ctx).Encode(map[string]string{"error": msg})
}

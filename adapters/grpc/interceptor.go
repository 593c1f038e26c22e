// Package gateguardgrpc provides gRPC interceptors for gateguard.
//
// The interceptors extract the bearer token from the authorization
// metadata key and delegate verification to the gateguard.Guard. On
// success, the validated claims are injected into the context. On
// failure, codes.Unauthenticated is returned (codes.PermissionDenied for
// insufficient scope).
//
// Concurrency: All exported functions are safe for concurrent use.
package gateguardgrpc

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/gateguard/gateguard/adapters/common"
	"github.com/gateguard/gateguard/gateguard"
)

type contextKey struct{}

// ClaimsFromContext retrieves the claims stored in the context by the
// interceptor. Returns nil if no claims are present.
func ClaimsFromContext(ctx context.Context) *gateguard.ValidatedClaims {
	v, _ := ctx.Value(contextKey{}).(*gateguard.ValidatedClaims)
	return v
}

func contextWithClaims(ctx context.Context, c *gateguard.ValidatedClaims) context.Context {
	return context.WithValue(ctx, contextKey{}, c)
}

// Option configures the gRPC interceptors.
type Option func(*options)

type options struct {
	scopes common.ScopeRequirement
}

// WithRequiredScopes makes the interceptors reject authenticated requests
// whose claims hold none of the given scopes.
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

// UnaryServerInterceptor returns a gRPC unary server interceptor that
// authenticates requests using the provided gateguard.Guard.
func UnaryServerInterceptor(guard *gateguard.Guard, opts ...Option) grpc.UnaryServerInterceptor {
	o := buildOptions(opts)
	return func(
		ctx context.Context,
		req any,
		info *grpc.UnaryServerInfo,
		handler grpc.UnaryHandler,
	) (any, error) {
		newCtx, err := authenticate(ctx, guard, &o)
		if err != nil {
			return nil, err
		}
		return handler(newCtx, req)
	}
}

// StreamServerInterceptor returns a gRPC stream server interceptor that
// authenticates requests using the provided gateguard.Guard.
//
// Behavior is identical to UnaryServerInterceptor but for streaming RPCs.
func StreamServerInterceptor(guard *gateguard.Guard, opts ...Option) grpc.StreamServerInterceptor {
	o := buildOptions(opts)
	return func(
		srv any,
		ss grpc.ServerStream,
		info *grpc.StreamServerInfo,
		handler grpc.StreamHandler,
	) error {
		newCtx, err := authenticate(ss.Context(), guard, &o)
		if err != nil {
			return err
		}
		return handler(srv, &wrappedStream{ServerStream: ss, ctx: newCtx})
	}
}

// wrappedStream overrides the context of a grpc.ServerStream.
type wrappedStream struct {
	grpc.ServerStream
	ctx context.Context
}

// Context returns the wrapped context containing the validated claims.
func (w *wrappedStream) Context() context.Context { return w.ctx }

func authenticate(ctx context.Context, guard *gateguard.Guard, o *options) (context.Context, error) {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "missing metadata")
	}

	vals := md.Get("authorization")
	if len(vals) == 0 {
		return ctx, status.Error(codes.Unauthenticated, "missing authorization header")
	}
	tok, ok := common.BearerToken(vals[0])
	if !ok {
		return ctx, status.Error(codes.Unauthenticated, "unsupported authorization scheme")
	}

	claims, err := guard.Verify(ctx, tok)
	if err != nil {
		return ctx, status.Error(codes.Unauthenticated, err.Error())
	}

	if !o.scopes.Check(guard, claims) {
		return ctx, status.Error(codes.PermissionDenied, "insufficient scope")
	}

	return contextWithClaims(ctx, claims), nil
}

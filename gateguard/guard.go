// Package gateguard verifies bearer tokens for API gateways: it resolves
// remote signing keys through a TTL cache that survives key rotation,
// checks RS256 signatures and claim policy under bounded clock skew, and
// answers scope-membership questions on the validated claims.
package gateguard

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gateguard/gateguard/internal/jwks"
	"github.com/gateguard/gateguard/internal/logging"
	"github.com/gateguard/gateguard/internal/resultcache"
	"github.com/gateguard/gateguard/internal/token"
)

// ValidatedClaims is the trusted identity context produced by a
// successful verification.
type ValidatedClaims = token.Claims

// MetricsCollector receives verification outcome counters.
type MetricsCollector = token.MetricsCollector

// Guard wires the key cache, token verifier and scope checks into one
// engine. Construct explicit instances and pass them to consumers; there
// is deliberately no package-level default.
//
// Concurrency: Guard is safe for concurrent use once constructed.
type Guard struct {
	cfg      Config
	httpc    *http.Client
	keyCache *jwks.Cache
	verifier *token.Verifier
	results  *resultcache.Cache

	log          *slog.Logger
	metrics      MetricsCollector
	scopeMetrics ScopeMetrics
	now          func() time.Time
}

// New validates cfg and builds a Guard. No network I/O happens here;
// call Initialize to warm the key cache and start background refresh.
func New(cfg Config, opts ...Option) (*Guard, error) {
	cfg.setDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	g := &Guard{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	if g.log == nil {
		g.log = logging.New(cfg.LogLevel)
	}
	if g.httpc == nil {
		g.httpc = &http.Client{Timeout: cfg.HTTPTimeout}
	}

	sources := make([]*jwks.Source, 0, len(cfg.JWKSURLs))
	for _, u := range cfg.JWKSURLs {
		src := jwks.NewSource(u, g.httpc)
		if cfg.JWKSAuth.Kind != "" && cfg.JWKSAuth.Kind != JWKSAuthNone {
			src.SetAuth(jwks.AuthConfig{
				Kind:        jwks.AuthKind(cfg.JWKSAuth.Kind),
				Username:    cfg.JWKSAuth.Username,
				Password:    cfg.JWKSAuth.Password,
				BearerToken: cfg.JWKSAuth.BearerToken,
				HeaderName:  cfg.JWKSAuth.HeaderName,
				HeaderValue: cfg.JWKSAuth.HeaderValue,
			})
		}
		if len(cfg.JWKSExtraHeaders) > 0 {
			src.SetExtraHeaders(cfg.JWKSExtraHeaders)
		}
		sources = append(sources, src)
	}
	g.keyCache = jwks.NewCache(sources, cfg.CacheTTL, cfg.RefreshInterval, g.log)

	g.verifier = token.New(token.Config{
		Audience:       cfg.Audience,
		AllowedIssuers: cfg.AllowedIssuers,
		ClockSkew:      cfg.ClockSkew,
		Metrics:        g.metrics,
		Logger:         g.log,
		Now:            g.now,
	}, g.keyCache)

	if cfg.ResultCacheTTL > 0 {
		rc, err := resultcache.New(cfg.ResultCacheSize)
		if err != nil {
			return nil, err
		}
		g.results = rc
	}

	return g, nil
}

// Initialize performs a best-effort synchronous fetch of every JWKS
// endpoint (a failing endpoint does not abort startup) and starts the
// background refresh loop. Idempotent.
func (g *Guard) Initialize(ctx context.Context) {
	g.keyCache.Initialize(ctx)
}

// Shutdown stops the background refresh loop and waits for it to exit.
// Safe to call multiple times.
func (g *Guard) Shutdown() {
	g.keyCache.Shutdown()
}

// Verify checks one bearer token and returns its validated claims, or a
// *VerificationError describing the first failing check.
func (g *Guard) Verify(ctx context.Context, tokenStr string) (*ValidatedClaims, error) {
	if tokenStr == "" {
		return nil, &VerificationError{Kind: KindMalformedToken, Message: "Empty token"}
	}

	if g.results != nil {
		if claims, ok := g.results.Get(tokenStr); ok {
			return claims, nil
		}
	}

	claims, err := g.verifier.Verify(ctx, tokenStr)
	if err != nil {
		return nil, err
	}

	if g.results != nil && !claims.ExpiresAt.IsZero() {
		ttl := g.cfg.ResultCacheTTL
		if remaining := claims.ExpiresAt.Sub(g.now()); remaining < ttl {
			ttl = remaining
		}
		g.results.Put(tokenStr, claims, ttl)
	}
	return claims, nil
}

// CachedKeys reports the key identifiers currently cached per endpoint,
// for health and monitoring surfaces.
func (g *Guard) CachedKeys() map[string][]string {
	return g.keyCache.CachedKeys()
}

package gateguard

import (
	"log/slog"
	"net/http"
	"time"
)

// Option configures a Guard at construction time.
type Option func(*Guard)

// WithHTTPClient replaces the HTTP client used for JWKS fetches. The
// client's timeout takes precedence over Config.HTTPTimeout.
func WithHTTPClient(c *http.Client) Option {
	return func(g *Guard) {
		if c != nil {
			g.httpc = c
		}
	}
}

// WithLogger injects the structured logger used by every component.
func WithLogger(l *slog.Logger) Option {
	return func(g *Guard) {
		if l != nil {
			g.log = l
		}
	}
}

// WithMetrics injects a collector for verification outcome counters.
func WithMetrics(m MetricsCollector) Option {
	return func(g *Guard) { g.metrics = m }
}

// WithScopeMetrics injects a collector for authorization decisions.
func WithScopeMetrics(m ScopeMetrics) Option {
	return func(g *Guard) { g.scopeMetrics = m }
}

// WithClock replaces the wall clock used for claim validation. Intended
// for tests.
func WithClock(now func() time.Time) Option {
	return func(g *Guard) {
		if now != nil {
			g.now = now
		}
	}
}

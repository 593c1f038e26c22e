package gateguard

import (
	"errors"
	"fmt"
	"net/url"
	"time"
)

// JWKSAuthKind selects the authentication method for JWKS requests.
type JWKSAuthKind string

const (
	JWKSAuthNone   JWKSAuthKind = "none"
	JWKSAuthBasic  JWKSAuthKind = "basic"
	JWKSAuthBearer JWKSAuthKind = "bearer"
	JWKSAuthHeader JWKSAuthKind = "header"
)

// JWKSAuth configures authentication for outbound JWKS fetches.
type JWKSAuth struct {
	Kind        JWKSAuthKind
	Username    string
	Password    string
	BearerToken string
	HeaderName  string
	HeaderValue string
}

// Config is the full configuration surface of a Guard.
type Config struct {
	// Audience is the single expected audience; the aud claim must match
	// it exactly.
	Audience string

	// AllowedIssuers lists every issuer whose tokens are accepted.
	AllowedIssuers []string

	// JWKSURLs are the key-source endpoints, in lookup priority order.
	// HTTPS is mandatory.
	JWKSURLs []string

	// JWKSAuth and JWKSExtraHeaders apply to every JWKS fetch.
	JWKSAuth         JWKSAuth
	JWKSExtraHeaders map[string]string

	// CacheTTL is how long a fetched key set counts as fresh.
	CacheTTL time.Duration

	// RefreshInterval is the sleep between background refresh cycles.
	RefreshInterval time.Duration

	// ClockSkew bounds the permitted drift for iat, exp and nbf claims.
	ClockSkew time.Duration

	// HTTPTimeout bounds each JWKS fetch so a hung endpoint cannot stall
	// the forced-refresh path of a live verification.
	HTTPTimeout time.Duration

	// ResultCacheTTL enables caching of successful verifications when
	// positive. The effective per-entry TTL is also capped by the
	// token's remaining lifetime.
	ResultCacheTTL  time.Duration
	ResultCacheSize int64

	// LogLevel applies when no logger is injected via WithLogger.
	LogLevel string
}

func (c *Config) setDefaults() {
	if c.CacheTTL == 0 {
		c.CacheTTL = 900 * time.Second
	}
	if c.RefreshInterval == 0 {
		c.RefreshInterval = 600 * time.Second
	}
	if c.ClockSkew == 0 {
		c.ClockSkew = 120 * time.Second
	}
	if c.HTTPTimeout == 0 {
		c.HTTPTimeout = 30 * time.Second
	}
	if c.ResultCacheSize == 0 {
		c.ResultCacheSize = 4096
	}
}

// Validate checks the configuration before any component is built.
// JWKS URLs must be HTTPS; everything else the core needs must be set.
func (c Config) Validate() error {
	if c.Audience == "" {
		return errors.New("audience is required")
	}
	if len(c.AllowedIssuers) == 0 {
		return errors.New("at least one allowed issuer is required")
	}
	if len(c.JWKSURLs) == 0 {
		return errors.New("at least one jwks url is required")
	}
	for _, raw := range c.JWKSURLs {
		u, err := url.Parse(raw)
		if err != nil {
			return fmt.Errorf("invalid jwks url %q: %w", raw, err)
		}
		if u.Scheme != "https" {
			return fmt.Errorf("jwks url %q must use https", raw)
		}
		if u.Host == "" {
			return fmt.Errorf("invalid jwks url %q: missing host", raw)
		}
	}
	if c.CacheTTL < 0 || c.RefreshInterval < 0 || c.ClockSkew < 0 {
		return errors.New("durations must not be negative")
	}
	return nil
}

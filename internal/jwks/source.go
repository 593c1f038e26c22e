package jwks

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
)

// maxJWKSResponseSize limits the size of JWKS HTTP responses to prevent
// memory bombs from a misbehaving endpoint.
const maxJWKSResponseSize = 1 << 20 // 1 MB

// AuthKind selects the authentication method for JWKS requests.
type AuthKind string

const (
	AuthKindNone   AuthKind = "none"
	AuthKindBasic  AuthKind = "basic"
	AuthKindBearer AuthKind = "bearer"
	AuthKindHeader AuthKind = "header"
)

// AuthConfig holds authentication settings for JWKS fetching.
type AuthConfig struct {
	Kind        AuthKind
	Username    string
	Password    string
	BearerToken string
	HeaderName  string
	HeaderValue string
}

// Source fetches a signing-key set from one configured remote endpoint.
// It holds no cached state; Cache owns freshness.
type Source struct {
	url          string
	httpc        *http.Client
	auth         AuthConfig
	extraHeaders map[string]string
}

// NewSource creates a Source for the given JWKS URL. A nil client gets a
// default with a 30 second timeout, bounding fetches on the forced-refresh
// path of live verification requests.
func NewSource(url string, httpc *http.Client) *Source {
	if httpc == nil {
		httpc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Source{url: url, httpc: httpc}
}

// URL returns the configured endpoint URL.
func (s *Source) URL() string { return s.url }

// SetAuth configures authentication for JWKS requests.
func (s *Source) SetAuth(auth AuthConfig) { s.auth = auth }

// SetExtraHeaders configures additional static headers for JWKS requests.
func (s *Source) SetExtraHeaders(headers map[string]string) { s.extraHeaders = headers }

// Fetch performs a single HTTPS GET against the endpoint and parses the
// response as a JWKS document.
func (s *Source) Fetch(ctx context.Context) (jwk.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	s.applyAuth(req)
	for k, v := range s.extraHeaders {
		req.Header.Set(k, v)
	}

	resp, err := s.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}
	set, err := jwk.ParseReader(io.LimitReader(resp.Body, maxJWKSResponseSize))
	if err != nil {
		return nil, fmt.Errorf("parse jwks: %w", err)
	}
	return set, nil
}

func (s *Source) applyAuth(req *http.Request) {
	switch s.auth.Kind {
	case AuthKindBasic:
		req.SetBasicAuth(s.auth.Username, s.auth.Password)
	case AuthKindBearer:
		req.Header.Set("Authorization", "Bearer "+s.auth.BearerToken)
	case AuthKindHeader:
		if s.auth.HeaderName != "" {
			req.Header.Set(s.auth.HeaderName, s.auth.HeaderValue)
		}
	}
}

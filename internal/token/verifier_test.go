package token

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gateguard/gateguard/internal/jwks"
	"github.com/gateguard/gateguard/internal/logging"
)

type staticKeyProvider struct {
	keys map[string]any
}

func (p *staticKeyProvider) GetKey(_ context.Context, kid string) (jwks.KeyRecord, error) {
	pub, ok := p.keys[kid]
	if !ok {
		return jwks.KeyRecord{}, fmt.Errorf("%w: %s", jwks.ErrKeyNotFound, kid)
	}
	return jwks.NewStaticKeyRecord(kid, pub), nil
}

type countingMetrics struct {
	ok      int
	failed  int
	reasons []string
}

func (m *countingMetrics) ValidationOK() { m.ok++ }
func (m *countingMetrics) ValidationFailed(reason string) {
	m.failed++
	m.reasons = append(m.reasons, reason)
}

func TestVerifier(t *testing.T) {
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	otherPriv, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}

	const (
		kid      = "test-key"
		audience = "TSIAM"
		issuer   = "https://idp/issuer"
	)
	skew := 120 * time.Second
	now := time.Now()

	provider := &staticKeyProvider{keys: map[string]any{kid: &priv.PublicKey}}

	createToken := func(claims jwt.MapClaims, signingKey any, method jwt.SigningMethod, keyID string) string {
		tok := jwt.NewWithClaims(method, claims)
		if keyID != "" {
			tok.Header["kid"] = keyID
		}
		s, err := tok.SignedString(signingKey)
		if err != nil {
			t.Fatalf("SignedString: %v", err)
		}
		return s
	}

	baseClaims := func(overrides jwt.MapClaims) jwt.MapClaims {
		claims := jwt.MapClaims{
			"sub":       "EBSSH",
			"aud":       audience,
			"iss":       issuer,
			"client_id": "test-client",
			"iat":       now.Unix(),
			"nbf":       now.Unix(),
			"exp":       now.Add(90 * time.Second).Unix(),
			"scope":     "TSIAM-Read TSIAM-Write",
		}
		for k, v := range overrides {
			if v == nil {
				delete(claims, k)
				continue
			}
			claims[k] = v
		}
		return claims
	}

	tests := []struct {
		name        string
		token       string
		wantKind    ErrorKind
		msgContains string
		checkClaims func(*testing.T, *Claims)
	}{
		{
			name:  "valid token with string scope",
			token: createToken(baseClaims(nil), priv, jwt.SigningMethodRS256, kid),
			checkClaims: func(t *testing.T, c *Claims) {
				if c.Subject != "EBSSH" {
					t.Errorf("subject = %q", c.Subject)
				}
				if c.Audience != audience || c.Issuer != issuer {
					t.Errorf("aud/iss = %q/%q", c.Audience, c.Issuer)
				}
				if c.ClientID != "test-client" {
					t.Errorf("client_id = %q", c.ClientID)
				}
				if got := strings.Join(c.Scopes, ","); got != "TSIAM-Read,TSIAM-Write" {
					t.Errorf("scopes = %v", c.Scopes)
				}
				if c.ExpiresAt.Unix() != now.Add(90*time.Second).Unix() {
					t.Errorf("exp = %v", c.ExpiresAt)
				}
				if _, ok := c.Raw["client_id"]; !ok {
					t.Error("raw claims must pass through")
				}
			},
		},
		{
			name:  "valid token with array scope",
			token: createToken(baseClaims(jwt.MapClaims{"scope": []string{"Read", "Write"}}), priv, jwt.SigningMethodRS256, kid),
			checkClaims: func(t *testing.T, c *Claims) {
				if got := strings.Join(c.Scopes, ","); got != "Read,Write" {
					t.Errorf("scopes = %v", c.Scopes)
				}
			},
		},
		{
			name:  "scope of unexpected type normalizes to empty",
			token: createToken(baseClaims(jwt.MapClaims{"scope": 42}), priv, jwt.SigningMethodRS256, kid),
			checkClaims: func(t *testing.T, c *Claims) {
				if len(c.Scopes) != 0 {
					t.Errorf("scopes = %v, want empty", c.Scopes)
				}
			},
		},
		{
			name:        "missing kid header",
			token:       createToken(baseClaims(nil), priv, jwt.SigningMethodRS256, ""),
			wantKind:    KindMalformedToken,
			msgContains: "Missing 'kid' in header",
		},
		{
			name:        "unknown kid",
			token:       createToken(baseClaims(nil), priv, jwt.SigningMethodRS256, "rotated-away"),
			wantKind:    KindKeyNotFound,
			msgContains: `Key "rotated-away" not found`,
		},
		{
			name:        "unsupported algorithm",
			token:       createToken(baseClaims(nil), []byte("hmac-secret"), jwt.SigningMethodHS256, kid),
			wantKind:    KindUnsupportedAlgorithm,
			msgContains: `"HS256"`,
		},
		{
			name:        "signature from wrong key",
			token:       createToken(baseClaims(nil), otherPriv, jwt.SigningMethodRS256, kid),
			wantKind:    KindInvalidSignature,
			msgContains: "Signature verification failed",
		},
		{
			name:        "structurally malformed token",
			token:       "not.a-jwt",
			wantKind:    KindMalformedToken,
			msgContains: "Malformed token",
		},
		{
			name:        "expired beyond skew",
			token:       createToken(baseClaims(jwt.MapClaims{"exp": now.Add(-5 * time.Minute).Unix()}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindTokenExpired,
			msgContains: "Expiration time drift exceeds 120 seconds",
		},
		{
			name:        "expiry implausibly far in the future",
			token:       createToken(baseClaims(jwt.MapClaims{"exp": now.Add(time.Hour).Unix()}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindTokenExpired,
			msgContains: "Expiration time drift",
		},
		{
			name:        "not-before drift",
			token:       createToken(baseClaims(jwt.MapClaims{"nbf": now.Add(10 * time.Minute).Unix()}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindTokenNotYetValid,
			msgContains: "Not before time drift exceeds 120 seconds",
		},
		{
			name:        "issued-at drift",
			token:       createToken(baseClaims(jwt.MapClaims{"iat": now.Add(-10 * time.Minute).Unix()}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindClockSkewExceeded,
			msgContains: "Issued at time drift exceeds 120 seconds",
		},
		{
			name:        "missing subject",
			token:       createToken(baseClaims(jwt.MapClaims{"sub": nil}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindMissingClaim,
			msgContains: "Missing required claim: sub",
		},
		{
			name:        "missing audience",
			token:       createToken(baseClaims(jwt.MapClaims{"aud": nil}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindMissingClaim,
			msgContains: "Missing required claim: aud",
		},
		{
			name:        "missing issuer",
			token:       createToken(baseClaims(jwt.MapClaims{"iss": nil}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindMissingClaim,
			msgContains: "Missing required claim: iss",
		},
		{
			name:        "wrong audience",
			token:       createToken(baseClaims(jwt.MapClaims{"aud": "OTHER"}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindInvalidAudience,
			msgContains: `expected "TSIAM"`,
		},
		{
			name:        "audience as array never matches",
			token:       createToken(baseClaims(jwt.MapClaims{"aud": []string{"TSIAM"}}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindInvalidAudience,
			msgContains: "Invalid audience",
		},
		{
			name:        "issuer not in allow-list",
			token:       createToken(baseClaims(jwt.MapClaims{"iss": "https://rogue/issuer"}), priv, jwt.SigningMethodRS256, kid),
			wantKind:    KindInvalidIssuer,
			msgContains: `"https://rogue/issuer" not in allowed issuers`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			metrics := &countingMetrics{}
			v := New(Config{
				Audience:       audience,
				AllowedIssuers: []string{issuer},
				ClockSkew:      skew,
				Metrics:        metrics,
				Logger:         logging.Discard(),
				Now:            func() time.Time { return now },
			}, provider)

			claims, err := v.Verify(context.Background(), tc.token)

			if tc.wantKind == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				if tc.checkClaims != nil {
					tc.checkClaims(t, claims)
				}
				if metrics.ok != 1 || metrics.failed != 0 {
					t.Errorf("metrics ok=%d failed=%d", metrics.ok, metrics.failed)
				}
				return
			}

			if err == nil {
				t.Fatal("expected error, got nil")
			}
			verr, ok := err.(*VerificationError)
			if !ok {
				t.Fatalf("expected *VerificationError, got %T: %v", err, err)
			}
			if verr.Kind != tc.wantKind {
				t.Errorf("kind = %s, want %s", verr.Kind, tc.wantKind)
			}
			if !strings.Contains(verr.Message, tc.msgContains) {
				t.Errorf("message %q does not contain %q", verr.Message, tc.msgContains)
			}
			if claims != nil {
				t.Error("claims must be nil on failure")
			}
			if metrics.failed != 1 || metrics.reasons[0] != string(tc.wantKind) {
				t.Errorf("metrics failed=%d reasons=%v", metrics.failed, metrics.reasons)
			}
		})
	}
}

func TestNormalizeScope(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want []string
	}{
		{"space-delimited string", "Read Write", []string{"Read", "Write"}},
		{"string with extra whitespace", "  Read   Write ", []string{"Read", "Write"}},
		{"empty string", "", nil},
		{"string slice", []string{"a", "b"}, []string{"a", "b"}},
		{"any slice", []any{"a", 1, "b"}, []string{"a", "b"}},
		{"nil", nil, nil},
		{"number", 3.14, nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeScope(tc.in)
			if len(got) != len(tc.want) {
				t.Fatalf("got %v, want %v", got, tc.want)
			}
			for i := range got {
				if got[i] != tc.want[i] {
					t.Errorf("got %v, want %v", got, tc.want)
				}
			}
		})
	}
}

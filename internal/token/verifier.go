// Package token verifies RS256 bearer tokens against a remote key cache
// and validates their claims under a bounded clock-skew policy.
package token

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/gateguard/gateguard/internal/jwks"
)

// defaultClockSkew is used when Config.ClockSkew is zero.
const defaultClockSkew = 120 * time.Second

// KeyProvider resolves a key identifier to a verification key. It is
// implemented by jwks.Cache.
type KeyProvider interface {
	GetKey(ctx context.Context, kid string) (jwks.KeyRecord, error)
}

type Config struct {
	// Audience is the single expected audience. The aud claim must equal
	// it exactly; this is not a set-membership check.
	Audience string
	// AllowedIssuers is the issuer allow-list.
	AllowedIssuers []string
	// ClockSkew bounds the permitted drift for iat, exp and nbf.
	ClockSkew time.Duration
	// Metrics receives optional validation counters. No-op when nil.
	Metrics MetricsCollector
	// Logger receives one structured event per verification outcome.
	Logger *slog.Logger
	// Now is replaced in tests; defaults to time.Now.
	Now func() time.Time
}

// Verifier verifies bearer tokens. It is safe for concurrent use.
type Verifier struct {
	cfg       Config
	keys      KeyProvider
	parser    *jwt.Parser
	skew      time.Duration
	issuerSet map[string]struct{}
	now       func() time.Time
	log       *slog.Logger
	metrics   MetricsCollector
}

func New(cfg Config, keys KeyProvider) *Verifier {
	v := &Verifier{
		cfg:  cfg,
		keys: keys,
		// Temporal claims are checked manually below: the drift policy is
		// symmetric (|now - claim| <= skew), which the library's one-sided
		// exp/nbf validation cannot express.
		parser:  jwt.NewParser(jwt.WithoutClaimsValidation()),
		skew:    cfg.ClockSkew,
		now:     cfg.Now,
		log:     cfg.Logger,
		metrics: cfg.Metrics,
	}
	if v.skew == 0 {
		v.skew = defaultClockSkew
	}
	if v.now == nil {
		v.now = time.Now
	}
	if v.log == nil {
		v.log = slog.Default()
	}
	v.issuerSet = make(map[string]struct{}, len(cfg.AllowedIssuers))
	for _, iss := range cfg.AllowedIssuers {
		v.issuerSet[iss] = struct{}{}
	}
	return v
}

// Verify checks the token's structure, signature and claims in order,
// short-circuiting at the first failure. Exactly one outcome is produced
// per call: either a fully validated *Claims or a *VerificationError.
func (v *Verifier) Verify(ctx context.Context, tokenStr string) (*Claims, error) {
	var kid string
	claims, verr := v.verify(ctx, tokenStr, &kid)
	if verr != nil {
		v.emitFailure(verr)
		v.log.Warn("token verification failed",
			"kind", string(verr.Kind), "reason", verr.Message, "kid", kid)
		return nil, verr
	}
	v.emitOK()
	v.log.Info("token verification succeeded",
		"sub", claims.Subject,
		"client_id", claims.ClientID,
		"iss", claims.Issuer,
		"aud", claims.Audience,
		"kid", kid,
		"scopes", claims.Scopes)
	return claims, nil
}

func (v *Verifier) verify(ctx context.Context, tokenStr string, kidOut *string) (*Claims, *VerificationError) {
	parsed, err := v.parser.Parse(tokenStr, func(t *jwt.Token) (any, error) {
		kid, _ := t.Header["kid"].(string)
		if kid == "" {
			return nil, newError(KindMalformedToken, "Missing 'kid' in header")
		}
		*kidOut = kid

		rec, err := v.keys.GetKey(ctx, kid)
		if err != nil {
			return nil, newError(KindKeyNotFound, "Key %q not found", kid)
		}

		// RS256 is the only accepted algorithm; reject everything else
		// before attempting signature verification.
		if t.Method.Alg() != jwt.SigningMethodRS256.Alg() {
			return nil, newError(KindUnsupportedAlgorithm,
				"Unsupported algorithm %q, expected RS256", t.Method.Alg())
		}
		return rec.Public(), nil
	})
	if err != nil {
		return nil, classifyParseError(err)
	}

	mapClaims, ok := parsed.Claims.(jwt.MapClaims)
	if !ok {
		return nil, newError(KindMalformedToken, "Malformed token payload")
	}

	iat, verr := numericClaim(mapClaims.GetIssuedAt)
	if verr != nil {
		return nil, verr
	}
	exp, verr := numericClaim(mapClaims.GetExpirationTime)
	if verr != nil {
		return nil, verr
	}
	nbf, verr := numericClaim(mapClaims.GetNotBefore)
	if verr != nil {
		return nil, verr
	}

	// Temporal claims are checked symmetrically against the wall clock:
	// |now - claim| <= skew for each of iat, exp and nbf. For exp this is
	// deliberately stricter than plain expiry checking (a token expiring
	// implausibly far in the future is also rejected) and is preserved
	// behavior pending product sign-off.
	now := v.now()
	skewSec := int64(v.skew / time.Second)
	if !iat.IsZero() && absDrift(now, iat) > v.skew {
		return nil, newError(KindClockSkewExceeded, "Issued at time drift exceeds %d seconds", skewSec)
	}
	if !exp.IsZero() && absDrift(now, exp) > v.skew {
		return nil, newError(KindTokenExpired, "Expiration time drift exceeds %d seconds", skewSec)
	}
	if !nbf.IsZero() && absDrift(now, nbf) > v.skew {
		return nil, newError(KindTokenNotYetValid, "Not before time drift exceeds %d seconds", skewSec)
	}

	for _, name := range []string{"sub", "aud", "iss"} {
		if _, present := mapClaims[name]; !present {
			return nil, newError(KindMissingClaim, "Missing required claim: %s", name)
		}
	}

	aud, ok := mapClaims["aud"].(string)
	if !ok || aud != v.cfg.Audience {
		return nil, newError(KindInvalidAudience,
			"Invalid audience: expected %q, got %v", v.cfg.Audience, mapClaims["aud"])
	}

	iss, ok := mapClaims["iss"].(string)
	if !ok {
		return nil, newError(KindInvalidIssuer, "Invalid issuer: %v not in allowed issuers", mapClaims["iss"])
	}
	if _, allowed := v.issuerSet[iss]; !allowed {
		return nil, newError(KindInvalidIssuer, "Invalid issuer: %q not in allowed issuers", iss)
	}

	sub, _ := mapClaims["sub"].(string)
	clientID, _ := mapClaims["client_id"].(string)

	return &Claims{
		Subject:   sub,
		Issuer:    iss,
		Audience:  aud,
		ClientID:  clientID,
		IssuedAt:  iat,
		ExpiresAt: exp,
		NotBefore: nbf,
		Scopes:    NormalizeScope(mapClaims["scope"]),
		Raw:       mapClaims,
	}, nil
}

// numericClaim reads an optional NumericDate claim, mapping a wrong-typed
// value to a malformed-token failure. Absent claims yield the zero time.
func numericClaim(get func() (*jwt.NumericDate, error)) (time.Time, *VerificationError) {
	nd, err := get()
	if err != nil {
		return time.Time{}, newError(KindMalformedToken, "Malformed token payload")
	}
	if nd == nil {
		return time.Time{}, nil
	}
	return nd.Time, nil
}

func absDrift(now, claim time.Time) time.Duration {
	d := now.Sub(claim)
	if d < 0 {
		d = -d
	}
	return d
}

// classifyParseError maps golang-jwt parse failures onto the error
// taxonomy. Keyfunc failures already carry a *VerificationError and pass
// through unchanged.
func classifyParseError(err error) *VerificationError {
	var verr *VerificationError
	switch {
	case errors.As(err, &verr):
		return verr
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return newError(KindInvalidSignature, "Signature verification failed")
	case errors.Is(err, jwt.ErrTokenMalformed):
		return newError(KindMalformedToken, "Malformed token")
	default:
		return newError(KindMalformedToken, "Malformed token")
	}
}

func (v *Verifier) emitOK() {
	if v.metrics != nil {
		v.metrics.ValidationOK()
	}
}

func (v *Verifier) emitFailure(verr *VerificationError) {
	if v.metrics != nil {
		v.metrics.ValidationFailed(string(verr.Kind))
	}
}

package token

import "fmt"

// ErrorKind classifies a verification failure. Kinds are stable strings
// so callers can map them to transport-level responses and metrics can
// label counters with them.
type ErrorKind string

const (
	KindMalformedToken       ErrorKind = "malformed_token"
	KindKeyNotFound          ErrorKind = "key_not_found"
	KindUnsupportedAlgorithm ErrorKind = "unsupported_algorithm"
	KindInvalidSignature     ErrorKind = "invalid_signature"
	KindTokenExpired         ErrorKind = "token_expired"
	KindTokenNotYetValid     ErrorKind = "token_not_yet_valid"
	KindClockSkewExceeded    ErrorKind = "clock_skew_exceeded"
	KindMissingClaim         ErrorKind = "missing_claim"
	KindInvalidAudience      ErrorKind = "invalid_audience"
	KindInvalidIssuer        ErrorKind = "invalid_issuer"
)

// VerificationError is the single failure value produced by Verify.
// Messages are safe to return to callers: they name the failing check but
// never contain the raw token or key material.
type VerificationError struct {
	Kind    ErrorKind
	Message string
}

func (e *VerificationError) Error() string {
	return "token validation failed: " + e.Message
}

func newError(kind ErrorKind, format string, args ...any) *VerificationError {
	return &VerificationError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

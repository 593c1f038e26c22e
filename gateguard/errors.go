package gateguard

import (
	"errors"

	"github.com/gateguard/gateguard/internal/token"
)

// ErrorKind classifies a verification failure.
type ErrorKind = token.ErrorKind

// Failure kinds, in roughly the order the checks run.
const (
	KindMalformedToken       = token.KindMalformedToken
	KindKeyNotFound          = token.KindKeyNotFound
	KindUnsupportedAlgorithm = token.KindUnsupportedAlgorithm
	KindInvalidSignature     = token.KindInvalidSignature
	KindTokenExpired         = token.KindTokenExpired
	KindTokenNotYetValid     = token.KindTokenNotYetValid
	KindClockSkewExceeded    = token.KindClockSkewExceeded
	KindMissingClaim         = token.KindMissingClaim
	KindInvalidAudience      = token.KindInvalidAudience
	KindInvalidIssuer        = token.KindInvalidIssuer
)

// VerificationError is the tagged failure value returned by Verify.
type VerificationError = token.VerificationError

// AsVerificationError unwraps err into a *VerificationError, reporting
// whether it is one. Every failure returned by Guard.Verify is.
func AsVerificationError(err error) (*VerificationError, bool) {
	var verr *VerificationError
	if errors.As(err, &verr) {
		return verr, true
	}
	return nil, false
}

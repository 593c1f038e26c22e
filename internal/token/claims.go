package token

import (
	"strings"
	"time"
)

// Claims is the claim set extracted from a token after full verification.
// A Claims value is only constructed once every check has passed and is
// never mutated afterwards; ownership passes to the caller.
type Claims struct {
	Subject  string
	Issuer   string
	Audience string
	ClientID string

	IssuedAt  time.Time
	ExpiresAt time.Time
	NotBefore time.Time

	// Scopes is the normalized scope claim, in wire order.
	Scopes []string

	// Raw carries every claim from the payload, including custom
	// pass-through claims.
	Raw map[string]any
}

// NormalizeScope converts the wire form of a scope claim into an ordered
// list of scope strings. A string splits on whitespace, a sequence is
// used as-is (non-string elements dropped), anything else normalizes to
// empty so downstream scope checks fail closed.
func NormalizeScope(v any) []string {
	switch s := v.(type) {
	case string:
		return strings.Fields(s)
	case []string:
		out := make([]string, len(s))
		copy(out, s)
		return out
	case []any:
		out := make([]string, 0, len(s))
		for _, e := range s {
			if str, ok := e.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}

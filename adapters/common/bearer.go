// Package common holds helpers shared by the framework adapters.
package common

import (
	"strings"

	"github.com/gateguard/gateguard/gateguard"
)

// BearerToken extracts the opaque token from an Authorization header
// value. It accepts only the Bearer scheme, per the inbound contract.
func BearerToken(header string) (string, bool) {
	const prefix = "Bearer "
	if !strings.HasPrefix(header, prefix) {
		return "", false
	}
	tok := strings.TrimSpace(header[len(prefix):])
	if tok == "" {
		return "", false
	}
	return tok, true
}

// ScopeRequirement is the scope set an adapter demands before letting a
// request through. Empty means authentication only, no scope check.
type ScopeRequirement struct {
	Scopes []string
}

// Enabled reports whether any scopes are required.
func (r ScopeRequirement) Enabled() bool { return len(r.Scopes) > 0 }

// Check runs the scope decision through the guard so it is audited and
// counted like any other authorization decision.
func (r ScopeRequirement) Check(g *gateguard.Guard, claims *gateguard.ValidatedClaims) bool {
	if !r.Enabled() {
		return true
	}
	return g.HasAnyScope(claims, r.Scopes...)
}

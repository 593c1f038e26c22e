package gateguard

// ScopeMetrics receives scope-authorization decision counters.
type ScopeMetrics interface {
	ScopeDecision(allowed bool)
}

// Authorize reports whether the claims' scopes intersect the required
// set: any single match suffices (OR semantics). An empty required set
// never matches, and neither do claims with no scopes. Every decision is
// written to the audit log with the scopes on both sides.
func (g *Guard) Authorize(claims *ValidatedClaims, required ...string) bool {
	allowed := scopesIntersect(claims.Scopes, required)

	if g.scopeMetrics != nil {
		g.scopeMetrics.ScopeDecision(allowed)
	}
	attrs := []any{
		"decision", decisionString(allowed),
		"required_scopes", required,
		"held_scopes", claims.Scopes,
		"sub", claims.Subject,
		"client_id", claims.ClientID,
	}
	if allowed {
		g.log.Info("authorization decision", attrs...)
	} else {
		g.log.Warn("authorization decision", attrs...)
	}
	return allowed
}

// HasScope is the single-scope convenience form of Authorize.
func (g *Guard) HasScope(claims *ValidatedClaims, scope string) bool {
	return g.Authorize(claims, scope)
}

// HasAnyScope reports whether the claims hold at least one of the given
// scopes.
func (g *Guard) HasAnyScope(claims *ValidatedClaims, scopes ...string) bool {
	return g.Authorize(claims, scopes...)
}

func scopesIntersect(held, required []string) bool {
	if len(held) == 0 || len(required) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(held))
	for _, s := range held {
		set[s] = struct{}{}
	}
	for _, s := range required {
		if _, ok := set[s]; ok {
			return true
		}
	}
	return false
}

func decisionString(allowed bool) string {
	if allowed {
		return "allow"
	}
	return "deny"
}

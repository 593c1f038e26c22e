package token

// MetricsCollector receives verification outcome counters.
// All methods must be safe for concurrent use. Implementations must never
// log or store tokens or claims.
type MetricsCollector interface {
	ValidationOK()
	ValidationFailed(reason string)
}

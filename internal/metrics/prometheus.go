// Package metrics provides a Prometheus-backed collector for
// verification and authorization counters.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusCollector counts verification outcomes by failure reason and
// scope-authorization decisions. It implements the verifier's
// MetricsCollector contract and the guard's ScopeMetrics contract.
type PrometheusCollector struct {
	ok        prometheus.Counter
	failed    *prometheus.CounterVec
	decisions *prometheus.CounterVec
}

// NewPrometheusCollector builds the counters and registers them with reg.
// Pass prometheus.DefaultRegisterer for the process-wide registry.
func NewPrometheusCollector(reg prometheus.Registerer) (*PrometheusCollector, error) {
	c := &PrometheusCollector{
		ok: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gateguard",
			Name:      "token_validations_ok_total",
			Help:      "Tokens that passed signature and claim validation.",
		}),
		failed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateguard",
			Name:      "token_validations_failed_total",
			Help:      "Tokens rejected during validation, by failure reason.",
		}, []string{"reason"}),
		decisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gateguard",
			Name:      "scope_decisions_total",
			Help:      "Scope authorization decisions.",
		}, []string{"decision"}),
	}
	for _, col := range []prometheus.Collector{c.ok, c.failed, c.decisions} {
		if err := reg.Register(col); err != nil {
			return nil, fmt.Errorf("register collector: %w", err)
		}
	}
	return c, nil
}

func (c *PrometheusCollector) ValidationOK() { c.ok.Inc() }

func (c *PrometheusCollector) ValidationFailed(reason string) {
	c.failed.WithLabelValues(reason).Inc()
}

func (c *PrometheusCollector) ScopeDecision(allowed bool) {
	if allowed {
		c.decisions.WithLabelValues("allow").Inc()
	} else {
		c.decisions.WithLabelValues("deny").Inc()
	}
}

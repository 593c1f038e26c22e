package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestPrometheusCollector(t *testing.T) {
	reg := prometheus.NewRegistry()
	c, err := NewPrometheusCollector(reg)
	if err != nil {
		t.Fatalf("NewPrometheusCollector: %v", err)
	}

	c.ValidationOK()
	c.ValidationOK()
	c.ValidationFailed("invalid_signature")
	c.ScopeDecision(true)
	c.ScopeDecision(false)

	if got := testutil.ToFloat64(c.ok); got != 2 {
		t.Errorf("ok = %v", got)
	}
	if got := testutil.ToFloat64(c.failed.WithLabelValues("invalid_signature")); got != 1 {
		t.Errorf("failed[invalid_signature] = %v", got)
	}
	if got := testutil.ToFloat64(c.decisions.WithLabelValues("allow")); got != 1 {
		t.Errorf("decisions[allow] = %v", got)
	}
	if got := testutil.ToFloat64(c.decisions.WithLabelValues("deny")); got != 1 {
		t.Errorf("decisions[deny] = %v", got)
	}
}

func TestDoubleRegisterFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	if _, err := NewPrometheusCollector(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if _, err := NewPrometheusCollector(reg); err == nil {
		t.Error("expected duplicate registration error")
	}
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.Reconstructions.WithLabelValues("usdc-usdt", OutcomeOK).Inc()
	m.Reconstructions.WithLabelValues("usdc-usdt", OutcomeOK).Inc()
	m.BoundaryActions.WithLabelValues("min", "inserted").Inc()
	m.LastBlock.Set(42)

	if got := testutil.ToFloat64(m.Reconstructions.WithLabelValues("usdc-usdt", OutcomeOK)); got != 2 {
		t.Fatalf("reconstructions mismatch: %v", got)
	}
	if got := testutil.ToFloat64(m.LastBlock); got != 42 {
		t.Fatalf("last block mismatch: %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) == 0 {
		t.Fatalf("expected registered metric families")
	}
}

func TestNewWithoutRegisterer(t *testing.T) {
	m := New(nil)
	m.Reconstructions.WithLabelValues("p", OutcomeIntegrity).Inc()
	if got := testutil.ToFloat64(m.Reconstructions.WithLabelValues("p", OutcomeIntegrity)); got != 1 {
		t.Fatalf("reconstructions mismatch: %v", got)
	}
}

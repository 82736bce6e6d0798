package observ

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLayoutMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewLayoutMetrics()
	m.MustRegister(registry)

	m.LayoutComputed("vulkan")
	m.LayoutComputed("vulkan")
	m.CacheHit("d3d11")
	m.LayoutFailed("metal", "CyclicLayout")
	m.ObserveProgram("vulkan", 0.002, nil)
	m.BindingsExtracted("vulkan")

	if got := testutil.ToFloat64(m.computations.WithLabelValues("vulkan")); got != 2 {
		t.Fatalf("computations = %v, want 2", got)
	}
	if got := testutil.CollectAndCount(m.failures); got != 1 {
		t.Fatalf("failures series = %d, want 1", got)
	}
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	if len(families) != 5 {
		t.Fatalf("expected 5 metric families, got %d", len(families))
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *LayoutMetrics
	m.LayoutComputed("cpu")
	m.ObserveProgram("cpu", 1, nil)
}

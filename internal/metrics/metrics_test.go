package metrics

import (
	"testing"

	dto "github.com/prometheus/client_model/go"
)

func gaugeValue(t *testing.T, r *Registry, name string) float64 {
	t.Helper()
	families, err := r.Gatherer().Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, f := range families {
		if f.GetName() != "deai_"+name {
			continue
		}
		m := f.GetMetric()[0]
		if m.Gauge != nil {
			return m.Gauge.GetValue()
		}
		if m.Counter != nil {
			return m.Counter.GetValue()
		}
	}
	t.Fatalf("metric %s not found", name)
	return 0
}

func TestObjectLifecycleCounters(t *testing.T) {
	r := New()
	r.ObjectCreated()
	r.ObjectCreated()
	r.ObjectDestroyed()

	if v := gaugeValue(t, r, "live_objects"); v != 1 {
		t.Fatalf("live_objects = %v, want 1", v)
	}
	if v := gaugeValue(t, r, "object_apoptosis_total"); v != 1 {
		t.Fatalf("object_apoptosis_total = %v, want 1", v)
	}
}

func TestListenerAndLoopCounters(t *testing.T) {
	r := New()
	r.ListenerAttached()
	r.ListenerAttached()
	r.ListenerDetached()
	r.LoopIteration()

	if v := gaugeValue(t, r, "live_listeners"); v != 1 {
		t.Fatalf("live_listeners = %v, want 1", v)
	}
	if v := gaugeValue(t, r, "loop_iterations_total"); v != 1 {
		t.Fatalf("loop_iterations_total = %v, want 1", v)
	}
}

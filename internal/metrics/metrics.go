// Package metrics is the optional instrumentation module (C9): a small set
// of prometheus gauges/counters tracking runtime-wide object and loop
// health, registered against a dedicated registry rather than the global
// default so a process embedding multiple roots never collides on metric
// names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds the counters and gauges root updates as objects are
// created and destroyed and the loop iterates.
type Registry struct {
	reg *prometheus.Registry

	LiveObjects   prometheus.Gauge
	LiveListeners prometheus.Gauge
	LoopIters     prometheus.Counter
	Apoptoses     prometheus.Counter
}

// New builds a Registry with all metrics registered under the "deai"
// namespace.
func New() *Registry {
	reg := prometheus.NewRegistry()
	m := &Registry{
		reg: reg,
		LiveObjects: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "deai", Name: "live_objects", Help: "Objects currently reachable (Healthy or Apoptosing/Orphaned).",
		}),
		LiveListeners: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "deai", Name: "live_listeners", Help: "Currently attached signal listeners.",
		}),
		LoopIters: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deai", Name: "loop_iterations_total", Help: "Event loop iterations completed.",
		}),
		Apoptoses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "deai", Name: "object_apoptosis_total", Help: "Objects finalized (reached Dead) after apoptosis.",
		}),
	}
	reg.MustRegister(m.LiveObjects, m.LiveListeners, m.LoopIters, m.Apoptoses)
	return m
}

// Gatherer exposes the underlying registry for an HTTP /metrics handler,
// without leaking the concrete prometheus.Registry type to callers that
// only need to gather.
func (m *Registry) Gatherer() prometheus.Gatherer { return m.reg }

// ObjectCreated and ObjectDestroyed track live object count; root calls
// these from the hooks it installs on every object.NewObject it owns.
func (m *Registry) ObjectCreated()   { m.LiveObjects.Inc() }
func (m *Registry) ObjectDestroyed() { m.LiveObjects.Dec(); m.Apoptoses.Inc() }

// ListenerAttached and ListenerDetached track live listener count.
func (m *Registry) ListenerAttached() { m.LiveListeners.Inc() }
func (m *Registry) ListenerDetached() { m.LiveListeners.Dec() }

// LoopIteration records one completed reactor pass.
func (m *Registry) LoopIteration() { m.LoopIters.Inc() }

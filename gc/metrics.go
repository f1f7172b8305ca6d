package gc

import "github.com/prometheus/client_golang/prometheus"

// metrics publishes the collector's vitals the way spec §4.5's "survivor
// count is published to the shadow object" suggests a host embedding this
// runtime would want to watch it: as Prometheus gauges/counters rather
// than a single ad hoc field, so a collector can be wired into whatever
// the host already scrapes.
type metrics struct {
	liveObjects prometheus.Gauge
	survivors   survivorGauge
	sweeps      prometheus.Counter
}

// survivorGauge wraps a prometheus.Gauge with a local cached read, since
// client_golang gauges don't expose their own current value and
// Collector.SurvivorCount needs one without going through the registry.
type survivorGauge struct {
	g     prometheus.Gauge
	value *atomicFloat
}

func (s survivorGauge) Set(v float64) {
	s.g.Set(v)
	s.value.store(v)
}

func (s survivorGauge) get() float64 { return s.value.load() }

func newMetrics() *metrics {
	live := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jsrt_gc_live_objects",
		Help: "Objects currently tracked by the collector, swept or not.",
	})
	survivors := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "jsrt_gc_survivors",
		Help: "Objects that survived the most recent sweep.",
	})
	sweeps := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "jsrt_gc_sweeps_total",
		Help: "Number of completed mark-sweep cycles.",
	})
	_ = prometheus.Register(live)
	_ = prometheus.Register(sweeps)
	_ = prometheus.Register(survivors)
	return &metrics{
		liveObjects: live,
		survivors:   survivorGauge{g: survivors, value: &atomicFloat{}},
		sweeps:      sweeps,
	}
}

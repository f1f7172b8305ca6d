package gc

import (
	"math"
	"sync/atomic"
)

// atomicFloat is a minimal lock-free float64 box, used only to let
// Collector.SurvivorCount read back a prometheus.Gauge's last value
// without a mutex.
type atomicFloat struct {
	bits uint64
}

func (f *atomicFloat) store(v float64) { atomic.StoreUint64(&f.bits, math.Float64bits(v)) }
func (f *atomicFloat) load() float64   { return math.Float64frombits(atomic.LoadUint64(&f.bits)) }

package gc

import (
	"sync"

	"jsrt/object"
)

// FinalizerQueue defers private-object GC callbacks (spec §4.5 "Per-
// object callbacks... fire once, after the object is confirmed
// unreachable") to after sweep has released its bookkeeping locks,
// grounded on the teacher's runtime finalizer queue (mfinal.go): a
// finalizer body can allocate or touch other managed objects, so it must
// never run while the collector still holds its own internal lock.
type FinalizerQueue struct {
	mu      sync.Mutex
	pending []*object.Private
}

func newFinalizerQueue() *FinalizerQueue {
	return &FinalizerQueue{}
}

func (q *FinalizerQueue) Enqueue(p *object.Private) {
	q.mu.Lock()
	q.pending = append(q.pending, p)
	q.mu.Unlock()
}

// Drain runs every queued finalizer exactly once, in FIFO order, and
// clears the queue. Called by Collector.sweep once it has dropped its
// own lock.
func (q *FinalizerQueue) Drain() {
	q.mu.Lock()
	batch := q.pending
	q.pending = nil
	q.mu.Unlock()

	for _, p := range batch {
		if p.GCCallback != nil {
			p.GCCallback(object.GCReasonReclaim)
		}
	}
}

// Len reports how many finalizers are currently queued, awaiting Drain.
func (q *FinalizerQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

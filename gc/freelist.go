package gc

import (
	"sync"

	"jsrt/value"
)

// FreeList is a size-classed pool of reclaimed element-storage buffers,
// grounded on the teacher's mcache.go / mcentral.go size-class scheme:
// Collector.sweep hands each swept array's backing slice to Reclaim,
// which buckets it by capacity class, and Get returns a buffer of a
// similar size. Array element storage in package prop is allocated with
// make and does not draw buffers from this pool (spec §4.5 "Allocation"
// names a deferred-free queue; this is its array-storage
// specialisation).
type FreeList struct {
	mu      sync.Mutex
	classes map[int][][]value.Value
}

// maxPerClass bounds how many buffers each size class retains, so a
// workload that frees many large arrays once doesn't pin that memory
// forever.
const maxPerClass = 64

func newFreeList() *FreeList {
	return &FreeList{classes: make(map[int][][]value.Value)}
}

func sizeClass(n int) int {
	if n <= 0 {
		return 0
	}
	c := 1
	for c < n {
		c <<= 1
	}
	return c
}

// Reclaim returns buf's backing storage to the pool for reuse, provided
// it isn't empty and the relevant class isn't already saturated.
func (f *FreeList) Reclaim(buf []value.Value) {
	if cap(buf) == 0 {
		return
	}
	class := sizeClass(cap(buf))
	buf = buf[:0]

	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.classes[class]) >= maxPerClass {
		return
	}
	f.classes[class] = append(f.classes[class], buf)
}

// Get returns a zero-length buffer with capacity at least n, reused from
// the pool when one of a suitable size class is available.
func (f *FreeList) Get(n int) []value.Value {
	class := sizeClass(n)

	f.mu.Lock()
	bucket := f.classes[class]
	var buf []value.Value
	if len(bucket) > 0 {
		buf = bucket[len(bucket)-1]
		f.classes[class] = bucket[:len(bucket)-1]
	}
	f.mu.Unlock()

	if buf != nil {
		return buf
	}
	return make([]value.Value, 0, class)
}

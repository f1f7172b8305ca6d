package gc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsrt/object"
	"jsrt/shape"
	"jsrt/value"
)

type noRoots struct{ roots []value.Value }

func (n *noRoots) ScanRoots() []value.Value { return n.roots }

func newTestCollector(t *testing.T) (*Collector, *noRoots) {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Threshold = 4
	c := New(nil, cfg)
	roots := &noRoots{}
	c.Start(context.Background(), roots)
	t.Cleanup(c.Stop)
	return c, roots
}

func TestManageAndResolveRoundTrip(t *testing.T) {
	c, _ := newTestCollector(t)
	root := shape.Root()
	obj := object.NewOrdinary(nil, root)

	v := c.Manage(obj)
	assert.True(t, v.IsObject())

	resolved, ok := c.Resolve(v)
	require.True(t, ok)
	assert.Same(t, obj, resolved)
}

func TestSweepReclaimsUnreachableObjects(t *testing.T) {
	c, roots := newTestCollector(t)
	root := shape.Root()

	kept := object.NewOrdinary(nil, root)
	keptV := c.Manage(kept)
	roots.roots = []value.Value{keptV}

	garbage := object.NewOrdinary(nil, root)
	c.Manage(garbage)

	c.CollectSync()

	assert.Equal(t, 1, c.LiveCount())
	_, ok := c.Resolve(keptV)
	assert.True(t, ok)
}

func TestSweepClearsMarkBitsOnSurvivors(t *testing.T) {
	c, roots := newTestCollector(t)
	root := shape.Root()
	kept := object.NewOrdinary(nil, root)
	keptV := c.Manage(kept)
	roots.roots = []value.Value{keptV}

	c.CollectSync()
	assert.False(t, kept.Hdr().Marked())
	assert.Equal(t, 1, c.SurvivorCount())
}

func TestNotifyEnqueuesForMarking(t *testing.T) {
	c, _ := newTestCollector(t)
	root := shape.Root()
	obj := object.NewOrdinary(nil, root)
	v := c.Manage(obj)

	c.Notify(v)
	assert.True(t, obj.Hdr().Notified())
	// A second Notify before any sweep clears the bit must be a no-op.
	c.Notify(v)
}

func TestMarkFollowsPrototypeChain(t *testing.T) {
	c, roots := newTestCollector(t)
	root := shape.Root()
	proto := object.NewOrdinary(nil, root)
	protoV := c.Manage(proto)
	child := object.NewOrdinary(proto, root)
	childV := c.Manage(child)
	roots.roots = []value.Value{childV}

	c.CollectSync()

	assert.Equal(t, 2, c.LiveCount())
	_, ok := c.Resolve(protoV)
	assert.True(t, ok, "prototype must survive because child is reachable")
}

func TestFreeListReusesReclaimedCapacity(t *testing.T) {
	fl := newFreeList()
	buf := make([]value.Value, 3, 8)
	fl.Reclaim(buf)

	got := fl.Get(5)
	assert.Equal(t, 8, cap(got))
	assert.Equal(t, 0, len(got))
}

func TestFinalizerQueueRunsOnce(t *testing.T) {
	q := newFinalizerQueue()
	calls := 0
	p := &object.Private{Type: "TEST", GCCallback: func(object.GCReason) { calls++ }}
	q.Enqueue(p)
	q.Enqueue(p)
	q.Drain()
	assert.Equal(t, 2, calls)
	assert.Equal(t, 0, q.Len())
}

func TestCollectSyncDoesNotHangWithNoGarbage(t *testing.T) {
	c, _ := newTestCollector(t)
	done := make(chan struct{})
	go func() {
		c.CollectSync()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("CollectSync did not return")
	}
}

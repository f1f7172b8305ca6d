package object

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"jsrt/shape"
)

func TestInvariantSlotArrayLength(t *testing.T) {
	// spec §8 invariant 4: values.len >= shape.num_values
	sh := shape.Root()
	o := NewOrdinary(nil, sh)
	assert.GreaterOrEqual(t, len(o.Values), int(o.Shape.NumValues()))
}

func TestMarkedIsCompareAndSwapIdempotent(t *testing.T) {
	o := NewOrdinary(nil, shape.Root())
	assert.True(t, o.TryMark())
	assert.False(t, o.TryMark(), "a second TryMark must report false")
	assert.True(t, o.Marked())
}

func TestNotifySkippedOnceMarked(t *testing.T) {
	o := NewOrdinary(nil, shape.Root())
	assert.True(t, o.TryMark())
	assert.False(t, o.TryNotify(), "notify must be a no-op once marked")
}

func TestClearMarkAndNotify(t *testing.T) {
	o := NewOrdinary(nil, shape.Root())
	o.TryMark()
	o.ClearMarkAndNotify()
	assert.False(t, o.Marked())
	assert.False(t, o.Notified())
}

func TestArrayFastPathSentinel(t *testing.T) {
	a := NewArray(nil, shape.Root())
	assert.False(t, a.FastPathDisabled())
	a.DisableFastPath()
	assert.True(t, a.FastPathDisabled())
	assert.Equal(t, LengthSentinel, a.Length)
}

func TestKindsAreDistinct(t *testing.T) {
	sh := shape.Root()
	kinds := []Object{
		NewOrdinary(nil, sh),
		NewArray(nil, sh),
		NewFunction(nil, sh, nil),
		NewPrivate(nil, sh, "MAP1"),
		NewProxy(nil, sh),
		NewDataView(nil, sh),
	}
	seen := map[ExoticKind]bool{}
	for _, k := range kinds {
		assert.False(t, seen[k.Hdr().Kind])
		seen[k.Hdr().Kind] = true
	}
}

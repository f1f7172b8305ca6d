package coroutine

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jsrt/value"
)

func withTimeout(t *testing.T, fn func()) {
	t.Helper()
	done := make(chan struct{})
	go func() { fn(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("coroutine test timed out")
	}
}

func TestNextYieldsThenCompletes(t *testing.T) {
	withTimeout(t, func() {
		f := New(func(y *Yielder) (value.Value, error) {
			got, err := y.Yield(value.Number(1))
			require.NoError(t, err)
			assert.Equal(t, float64(10), got.Float64())
			return value.Number(99), nil
		})

		v, done, err := f.Next(value.VUndefined)
		require.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, float64(1), v.Float64())

		v, done, err = f.Next(value.Number(10))
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, float64(99), v.Float64())
		assert.Equal(t, StateDone, f.State())
	})
}

func TestThrowIntoSuspendedYieldIsCatchable(t *testing.T) {
	withTimeout(t, func() {
		f := New(func(y *Yielder) (value.Value, error) {
			_, err := y.Yield(value.Number(1))
			var tv *ThrownValue
			if err != nil {
				if v, ok := err.(*ThrownValue); ok {
					tv = v
				}
			}
			require.NotNil(t, tv)
			return tv.Val, nil
		})

		_, _, err := f.Next(value.VUndefined)
		require.NoError(t, err)

		v, done, err := f.Throw(value.Number(7))
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, float64(7), v.Float64())
	})
}

func TestUncaughtThrowPropagatesAsFiberError(t *testing.T) {
	withTimeout(t, func() {
		f := New(func(y *Yielder) (value.Value, error) {
			return y.Yield(value.Number(1))
		})
		_, _, err := f.Next(value.VUndefined)
		require.NoError(t, err)

		_, done, err := f.Throw(value.Number(5))
		assert.True(t, done)
		require.Error(t, err)
		tv, ok := err.(*ThrownValue)
		require.True(t, ok)
		assert.Equal(t, float64(5), tv.Val.Float64())
	})
}

func TestReturnUnwindsFiberEarly(t *testing.T) {
	withTimeout(t, func() {
		cleanupRan := false
		f := New(func(y *Yielder) (value.Value, error) {
			defer func() { cleanupRan = true }()
			return y.Yield(value.Number(1))
		})
		_, _, err := f.Next(value.VUndefined)
		require.NoError(t, err)

		v, done, err := f.Return(value.Number(42))
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, float64(42), v.Float64())
		assert.True(t, cleanupRan)
	})
}

func TestKillTearsDownWithoutObservableValue(t *testing.T) {
	withTimeout(t, func() {
		f := New(func(y *Yielder) (value.Value, error) {
			return y.Yield(value.Number(1))
		})
		_, _, err := f.Next(value.VUndefined)
		require.NoError(t, err)

		f.Kill()
		assert.Equal(t, StateDone, f.State())
		f.Kill() // idempotent on an already-done fiber
	})
}

func TestResumingRunningFiberIsRejected(t *testing.T) {
	withTimeout(t, func() {
		started := make(chan struct{})
		resume := make(chan struct{})
		f := New(func(y *Yielder) (value.Value, error) {
			close(started)
			<-resume
			return value.Number(1), nil
		})

		go func() { f.Next(value.VUndefined) }()
		<-started

		_, _, err := f.Next(value.VUndefined)
		assert.Error(t, err)
		close(resume)
	})
}

func TestYieldFromDelegatesToInnerSequence(t *testing.T) {
	withTimeout(t, func() {
		inner := []value.Value{value.Number(1), value.Number(2)}
		i := 0
		next := func(value.Value) (value.Value, bool, error) {
			if i >= len(inner) {
				return value.Number(100), true, nil
			}
			v := inner[i]
			i++
			return v, false, nil
		}

		f := New(func(y *Yielder) (value.Value, error) {
			return y.YieldFrom(next, value.VUndefined)
		})

		v, done, err := f.Next(value.VUndefined)
		require.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, float64(1), v.Float64())

		v, done, err = f.Next(value.VUndefined)
		require.NoError(t, err)
		assert.False(t, done)
		assert.Equal(t, float64(2), v.Float64())

		v, done, err = f.Next(value.VUndefined)
		require.NoError(t, err)
		assert.True(t, done)
		assert.Equal(t, float64(100), v.Float64())
	})
}

func TestGroupAggregatesRootsAcrossFibers(t *testing.T) {
	withTimeout(t, func() {
		g := NewGroup()
		a := New(func(y *Yielder) (value.Value, error) { return y.Yield(value.Number(1)) })
		b := New(func(y *Yielder) (value.Value, error) { return y.Yield(value.Number(2)) })
		g.Track(a)
		g.Track(b)

		a.Next(value.VUndefined)
		b.Next(value.VUndefined)

		roots := g.ScanRoots()
		assert.Len(t, roots, 2)

		g.Untrack(a)
		assert.Len(t, g.ScanRoots(), 1)
	})
}

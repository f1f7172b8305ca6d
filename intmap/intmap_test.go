package intmap

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPutGet(t *testing.T) {
	m := New[string](0)
	m.Put(1, "a")
	m.Put(2, "b")
	v, ok := m.Get(1)
	assert.True(t, ok)
	assert.Equal(t, "a", v)
	assert.Equal(t, 2, m.Len())
}

func TestDeleteAndHas(t *testing.T) {
	m := New[int](0)
	m.Put(42, 7)
	assert.True(t, m.Has(42))
	assert.True(t, m.Delete(42))
	assert.False(t, m.Has(42))
}

func TestEach(t *testing.T) {
	m := New[int](0)
	for i := uint64(0); i < 5; i++ {
		m.Put(i, int(i*i))
	}
	seen := map[uint64]int{}
	m.Each(func(k uint64, v int) bool {
		seen[k] = v
		return true
	})
	assert.Len(t, seen, 5)
	assert.Equal(t, 16, seen[4])
}

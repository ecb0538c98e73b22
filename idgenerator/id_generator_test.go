package idgenerator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSequence(t *testing.T) {
	t.Run("first id is start plus one", func(t *testing.T) {
		s := NewSequence(0)
		require.NotNil(t, s)
		assert.Equal(t, uint32(0), s.Current())
		assert.Equal(t, uint32(1), s.Next())
		assert.Equal(t, uint32(1), s.Current())
	})

	t.Run("custom start", func(t *testing.T) {
		s := NewSequence(100)
		assert.Equal(t, uint32(101), s.Next())
	})

	t.Run("wraps at max uint32", func(t *testing.T) {
		s := NewSequence(^uint32(0))
		assert.Equal(t, uint32(0), s.Next())
	})
}

func TestSequence_Concurrent(t *testing.T) {
	s := NewSequence(0)
	const n = 500

	ids := make([]uint32, n)
	var wg sync.WaitGroup
	wg.Add(n)
	for i := 0; i < n; i++ {
		go func(idx int) {
			defer wg.Done()
			ids[idx] = s.Next()
		}(i)
	}
	wg.Wait()

	seen := make(map[uint32]bool, n)
	for _, id := range ids {
		assert.False(t, seen[id], "duplicate id %d", id)
		assert.GreaterOrEqual(t, id, uint32(1))
		assert.LessOrEqual(t, id, uint32(n))
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestRandomKey(t *testing.T) {
	for i := 0; i < 100; i++ {
		k, err := RandomKey()
		require.NoError(t, err)
		assert.Positive(t, k)
	}
}

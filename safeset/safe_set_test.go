package safeset

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSafeSet_AddRemove(t *testing.T) {
	s := NewSafeSet[string]()

	t.Run("add reports first insertion", func(t *testing.T) {
		assert.True(t, s.Add("a"))
		assert.False(t, s.Add("a"))
		assert.Equal(t, 1, s.Size())
	})

	t.Run("remove reports presence", func(t *testing.T) {
		assert.True(t, s.Remove("a"))
		assert.False(t, s.Remove("a"))
		assert.False(t, s.Contains("a"))
	})
}

func TestSafeSet_Values(t *testing.T) {
	s := NewSafeSet[int]()
	s.Add(1)
	s.Add(2)
	s.Add(3)

	values := s.Values()
	assert.ElementsMatch(t, []int{1, 2, 3}, values)

	t.Run("snapshot allows mutation while walking", func(t *testing.T) {
		for _, v := range values {
			s.Remove(v)
		}
		assert.Equal(t, 0, s.Size())
	})
}

func TestSafeSet_Range(t *testing.T) {
	s := NewSafeSet[int]()
	s.Add(1)
	s.Add(2)

	seen := 0
	s.Range(func(int) bool {
		seen++
		return true
	})
	assert.Equal(t, 2, seen)

	seen = 0
	s.Range(func(int) bool {
		seen++
		return false
	})
	assert.Equal(t, 1, seen)
}

func TestSafeSet_Concurrent(t *testing.T) {
	s := NewSafeSet[int]()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(i)
			_ = s.Contains(i)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 50, s.Size())
}

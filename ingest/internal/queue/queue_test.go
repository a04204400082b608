package queue_test

import (
	"sync"
	"testing"

	"github.com/sandrayoe/mms-version2/ingest/internal/queue"
	"github.com/stretchr/testify/require"
)

func TestRingOrder(t *testing.T) {
	r := queue.NewRing[int](100)

	for i := 0; i < 50; i++ {
		r.Push(i)
	}

	for i := 0; i < 10; i++ {
		value, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, i, value)
	}

	for i := 50; i < 100; i++ {
		r.Push(i)
	}

	for i := 10; i < 100; i++ {
		value, ok := r.Pop()
		require.True(t, ok)
		require.Equal(t, i, value)
	}

	_, ok := r.Pop()
	require.False(t, ok)
}

func TestRingEvictsOldest(t *testing.T) {
	r := queue.NewRing[int](5)

	evictions := 0
	for i := 1; i <= 8; i++ {
		if r.Push(i) {
			evictions++
		}
	}

	require.Equal(t, 3, evictions)
	require.Equal(t, 5, r.Len())
	require.Equal(t, []int{4, 5, 6, 7, 8}, r.Items())
}

func TestRingPopN(t *testing.T) {
	r := queue.NewRing[int](10)
	for i := 0; i < 7; i++ {
		r.Push(i)
	}

	require.Equal(t, []int{0, 1, 2}, r.PopN(3))
	require.Equal(t, []int{3, 4, 5, 6}, r.PopN(100))
	require.Nil(t, r.PopN(3))
}

func TestRingClear(t *testing.T) {
	r := queue.NewRing[int](4)
	for i := 0; i < 4; i++ {
		r.Push(i)
	}

	r.Clear()
	require.Equal(t, 0, r.Len())

	r.Push(42)
	value, ok := r.Pop()
	require.True(t, ok)
	require.Equal(t, 42, value)
}

func TestRingMinimumCapacity(t *testing.T) {
	r := queue.NewRing[int](0)
	require.Equal(t, 1, r.Cap())

	r.Push(1)
	require.True(t, r.Push(2))
	value, ok := r.Pop()
	require.True(t, ok)
	require.Equal(t, 2, value)
}

func TestRingAsync(t *testing.T) {
	r := queue.NewRing[int](100)
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(val int) {
			defer wg.Done()
			r.Push(val)
		}(i)
	}
	wg.Wait()

	seen := make(map[int]bool)
	for i := 0; i < 100; i++ {
		value, ok := r.Pop()
		require.True(t, ok)
		seen[value] = true
	}

	for i := 0; i < 100; i++ {
		require.True(t, seen[i], i)
	}
}

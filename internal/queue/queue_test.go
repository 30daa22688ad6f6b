package queue

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBoundedOrderedQueueOrdering(t *testing.T) {
	q := New[int, string](8, 1, func(a, b int) bool { return a < b })
	q.Push(3, "three")
	q.Push(1, "one")
	q.Push(2, "two")
	q.RemoveProducer()

	var got []string
	for {
		_, v, err := q.Pop()
		if err == ErrNoProducers {
			break
		}
		require.NoError(t, err)
		got = append(got, v)
	}
	require.Equal(t, []string{"one", "two", "three"}, got)
}

func TestBoundedOrderedQueuePopWithoutProducers(t *testing.T) {
	q := New[int, string](1, 0, func(a, b int) bool { return a < b })
	_, _, err := q.Pop()
	require.ErrorIs(t, err, ErrNoProducers)
}

func TestBoundedOrderedQueueConcurrentProducers(t *testing.T) {
	const producers = 4
	const perProducer = 50
	q := New[int, int](4, producers, func(a, b int) bool { return a < b })

	var wg sync.WaitGroup
	wg.Add(producers)
	for p := 0; p < producers; p++ {
		go func(p int) {
			defer wg.Done()
			for i := 0; i < perProducer; i++ {
				q.Push(p*perProducer+i, i)
			}
			q.RemoveProducer()
		}(p)
	}

	count := 0
	for {
		_, _, err := q.Pop()
		if err == ErrNoProducers {
			break
		}
		require.NoError(t, err)
		count++
	}
	wg.Wait()
	require.Equal(t, producers*perProducer, count)
}

func TestTaskWait(t *testing.T) {
	task := Go(func() error { return nil })
	require.NoError(t, task.Wait())
}

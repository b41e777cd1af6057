package duel

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteQueue_RunsInOrder(t *testing.T) {
	q := newWriteQueue()
	defer q.close(time.Second)

	var mu sync.Mutex
	var got []int
	for i := 0; i < 100; i++ {
		q.push(func() {
			mu.Lock()
			defer mu.Unlock()
			got = append(got, i)
		})
	}
	require.True(t, q.flush(time.Second))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 100)
	for i, v := range got {
		assert.Equal(t, i, v)
	}
}

func TestWriteQueue_SurvivesPanic(t *testing.T) {
	q := newWriteQueue()
	defer q.close(time.Second)

	ran := make(chan struct{})
	q.push(func() { panic("boom") })
	q.push(func() { close(ran) })

	select {
	case <-ran:
	case <-time.After(time.Second):
		t.Fatal("queue stopped after a panic")
	}
}

func TestWriteQueue_CloseDrainsAndRejects(t *testing.T) {
	q := newWriteQueue()

	var count int
	var mu sync.Mutex
	for i := 0; i < 10; i++ {
		q.push(func() {
			mu.Lock()
			count++
			mu.Unlock()
		})
	}
	q.close(time.Second)
	q.close(time.Second)

	q.push(func() {
		mu.Lock()
		count++
		mu.Unlock()
	})
	assert.False(t, q.flush(50*time.Millisecond))

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 10, count)
}

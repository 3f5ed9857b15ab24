package event

import (
	"context"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueueFIFO(t *testing.T) {
	q := NewQueue(2)
	q.Push(Status("a", "one"))
	q.Push(Log("a", "two"))
	q.Push(RequestStop("a"))

	evs := q.Drain()
	require.Len(t, evs, 3)
	assert.Equal(t, "one", evs[0].Text)
	assert.Equal(t, KindLog, evs[1].Kind)
	assert.Equal(t, KindRequestStop, evs[2].Kind)
	assert.Empty(t, q.Drain())
}

func TestQueueDropsOldestFrame(t *testing.T) {
	q := NewQueue(2)
	frames := make([]*image.RGBA, 4)
	for i := range frames {
		frames[i] = image.NewRGBA(image.Rect(0, 0, i+1, 1))
	}
	q.Push(FrameReady("f", frames[0], nil))
	q.Push(Status("s", "between"))
	q.Push(FrameReady("f", frames[1], nil))
	q.Push(FrameReady("f", frames[2], nil))
	q.Push(FrameReady("f", frames[3], nil))

	evs := q.Drain()
	require.Len(t, evs, 3)
	assert.Equal(t, "between", evs[0].Text)
	assert.Same(t, frames[2], evs[1].Frame)
	assert.Same(t, frames[3], evs[2].Frame)
	assert.Equal(t, uint64(2), q.Dropped())

	// the frame budget resets after a drain
	q.Push(FrameReady("f", frames[0], nil))
	q.Push(FrameReady("f", frames[1], nil))
	assert.Len(t, q.Drain(), 2)
	assert.Equal(t, uint64(2), q.Dropped())
}

func TestQueuePerProducerOrder(t *testing.T) {
	q := NewQueue(1)
	const producers, n = 4, 100
	var wg sync.WaitGroup
	for p := 0; p < producers; p++ {
		wg.Add(1)
		go func(p int) {
			defer wg.Done()
			for i := 0; i < n; i++ {
				q.Push(Status(fmt.Sprint(p), fmt.Sprint(i)))
			}
		}(p)
	}
	wg.Wait()

	next := map[string]int{}
	for _, e := range q.Drain() {
		require.Equal(t, fmt.Sprint(next[e.Source]), e.Text)
		next[e.Source]++
	}
	for p := 0; p < producers; p++ {
		assert.Equal(t, n, next[fmt.Sprint(p)])
	}
}

func TestQueueWait(t *testing.T) {
	q := NewQueue(1)
	ctx := context.Background()
	assert.False(t, q.Wait(ctx, 10*time.Millisecond))

	go func() {
		time.Sleep(5 * time.Millisecond)
		q.Push(Status("x", "hi"))
	}()
	assert.True(t, q.Wait(ctx, time.Second))

	cctx, cancel := context.WithCancel(ctx)
	cancel()
	q.Drain()
	assert.False(t, q.Wait(cctx, time.Second))
}

func TestKindString(t *testing.T) {
	assert.Equal(t, "frame_ready", KindFrameReady.String())
	assert.Equal(t, "unknown", Kind(42).String())
}

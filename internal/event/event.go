// Package event is the only path from pipeline goroutines to the presentation loop.
package event

import (
	"context"
	"image"
	"sync"
	"time"
)

type Kind int

const (
	KindStatus Kind = iota
	KindLog
	KindFrameReady
	KindRequestStop
)

func (k Kind) String() string {
	switch k {
	case KindStatus:
		return "status"
	case KindLog:
		return "log"
	case KindFrameReady:
		return "frame_ready"
	case KindRequestStop:
		return "request_stop"
	default:
		return "unknown"
	}
}

// Event is a tagged union; Text is set for Status and Log, Frame and Histogram for FrameReady.
type Event struct {
	Kind      Kind
	Source    string
	Time      time.Time
	Text      string
	Frame     *image.RGBA
	Histogram *image.RGBA
}

func Status(source, text string) Event {
	return Event{Kind: KindStatus, Source: source, Text: text, Time: time.Now()}
}

func Log(source, text string) Event {
	return Event{Kind: KindLog, Source: source, Text: text, Time: time.Now()}
}

func FrameReady(source string, frame, hist *image.RGBA) Event {
	return Event{Kind: KindFrameReady, Source: source, Frame: frame, Histogram: hist, Time: time.Now()}
}

func RequestStop(source string) Event {
	return Event{Kind: KindRequestStop, Source: source, Time: time.Now()}
}

// Publisher is what producers see of the queue.
type Publisher interface {
	Push(Event)
}

// Queue is an unbounded FIFO for text events with a cap on pending frames.
// When the cap is reached the oldest pending frame is dropped.
type Queue struct {
	mu        sync.Mutex
	events    []Event
	frames    int
	maxFrames int
	dropped   uint64
	notify    chan struct{}
}

var _ Publisher = &Queue{}

func NewQueue(maxPendingFrames int) *Queue {
	if maxPendingFrames < 1 {
		maxPendingFrames = 1
	}
	return &Queue{
		maxFrames: maxPendingFrames,
		notify:    make(chan struct{}, 1),
	}
}

func (q *Queue) Push(e Event) {
	q.mu.Lock()
	if e.Kind == KindFrameReady {
		if q.frames >= q.maxFrames {
			q.dropOldestFrame()
		}
		q.frames++
	}
	q.events = append(q.events, e)
	q.mu.Unlock()

	select {
	case q.notify <- struct{}{}:
	default:
	}
}

// PRE: must own mutex
func (q *Queue) dropOldestFrame() {
	for i, e := range q.events {
		if e.Kind != KindFrameReady {
			continue
		}
		q.events = append(q.events[:i], q.events[i+1:]...)
		q.frames--
		q.dropped++
		return
	}
}

// Drain removes and returns every pending event in arrival order.
func (q *Queue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := q.events
	q.events = nil
	q.frames = 0
	return out
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped is the number of frames discarded because the consumer fell behind.
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Wait blocks until something has been pushed since the last Wait, or until timeout or ctx expire.
func (q *Queue) Wait(ctx context.Context, timeout time.Duration) bool {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case <-q.notify:
		return true
	case <-timer.C:
		return q.Len() > 0
	case <-ctx.Done():
		return false
	}
}

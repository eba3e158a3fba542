package recognition

import "sync"

const DefaultQueueSize = 256

// Waker is notified whenever new events are queued. Implementations must not block.
type Waker interface {
	Wake()
}

// WakerFunc adapts a function to Waker.
type WakerFunc func()

func (f WakerFunc) Wake() { f() }

// EventQueue 线程安全的有界事件队列，由引擎回调写入，由轮询线程读取
type EventQueue struct {
	mu      sync.Mutex
	events  []Event
	size    int
	dropped int
	waker   Waker
}

func NewEventQueue(size int, waker Waker) *EventQueue {
	if size <= 0 {
		size = DefaultQueueSize
	}
	return &EventQueue{
		events: make([]Event, 0, size),
		size:   size,
		waker:  waker,
	}
}

// Push appends an event, discarding the oldest one when the queue is full.
func (q *EventQueue) Push(event Event) {
	q.mu.Lock()
	if len(q.events) >= q.size {
		copy(q.events, q.events[1:])
		q.events = q.events[:len(q.events)-1]
		q.dropped++
	}
	q.events = append(q.events, event)
	waker := q.waker
	q.mu.Unlock()

	if waker != nil {
		waker.Wake()
	}
}

// Drain returns everything queued so far in arrival order. It never blocks on the producer.
func (q *EventQueue) Drain() []Event {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.events) == 0 {
		return nil
	}
	out := make([]Event, len(q.events))
	copy(out, q.events)
	q.events = q.events[:0]
	return out
}

func (q *EventQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Dropped reports how many events were discarded because the queue was full.
func (q *EventQueue) Dropped() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

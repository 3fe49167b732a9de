package localdata

import (
	"context"
	"sync"
)

// writeQueue runs write-behind persistence with at most one writer per key.
// An entry enqueued while a write for the same key is in flight replaces any
// entry still waiting, so the file only ever moves to newer commits.
type writeQueue[T any] struct {
	save func(key string, entry Entry[T])

	mu     sync.Mutex
	slots  map[string]*writeSlot[T]
	idle   chan struct{}
	closed bool
}

type writeSlot[T any] struct {
	next *Entry[T]
}

func newWriteQueue[T any](save func(key string, entry Entry[T])) *writeQueue[T] {
	return &writeQueue[T]{
		save:  save,
		slots: make(map[string]*writeSlot[T]),
	}
}

// enqueue schedules entry for key and reports whether it was accepted.
func (q *writeQueue[T]) enqueue(key string, entry Entry[T]) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if slot, ok := q.slots[key]; ok {
		slot.next = &entry
		return true
	}

	if len(q.slots) == 0 {
		q.idle = make(chan struct{})
	}
	slot := &writeSlot[T]{}
	q.slots[key] = slot
	go q.drain(key, slot, entry)
	return true
}

func (q *writeQueue[T]) drain(key string, slot *writeSlot[T], entry Entry[T]) {
	for {
		q.save(key, entry)

		q.mu.Lock()
		if slot.next == nil {
			delete(q.slots, key)
			if len(q.slots) == 0 {
				close(q.idle)
			}
			q.mu.Unlock()
			return
		}
		entry = *slot.next
		slot.next = nil
		q.mu.Unlock()
	}
}

// flush blocks until every write queued so far has been applied.
func (q *writeQueue[T]) flush(ctx context.Context) error {
	q.mu.Lock()
	if len(q.slots) == 0 {
		q.mu.Unlock()
		return nil
	}
	idle := q.idle
	q.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *writeQueue[T]) close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
}

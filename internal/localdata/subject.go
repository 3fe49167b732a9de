package localdata

import (
	"context"
	"sync"
)

// Update is a value delivered to a subscriber. WasCached is true only for the
// snapshot replayed when the subscription was established.
type Update[T any] struct {
	Object    T
	WasCached bool
}

// Subscription streams updates for one identifier until its context is done.
type Subscription[T any] struct {
	out    chan Update[T]
	signal chan struct{}

	mu    sync.Mutex
	queue []Update[T]
}

func newSubscription[T any]() *Subscription[T] {
	return &Subscription[T]{
		out:    make(chan Update[T]),
		signal: make(chan struct{}, 1),
	}
}

// Updates returns the delivery channel. It is closed once the subscription's
// context is done.
func (s *Subscription[T]) Updates() <-chan Update[T] {
	return s.out
}

// enqueue never blocks, so publishing under the Manager's mutex cannot stall
// on a slow reader.
func (s *Subscription[T]) enqueue(u Update[T]) {
	s.mu.Lock()
	s.queue = append(s.queue, u)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

// pump drains the mailbox into out in enqueue order and calls detach once ctx
// is done.
func (s *Subscription[T]) pump(ctx context.Context, detach func()) {
	defer close(s.out)
	defer detach()

	for {
		s.mu.Lock()
		batch := s.queue
		s.queue = nil
		s.mu.Unlock()

		for _, u := range batch {
			select {
			case s.out <- u:
			case <-ctx.Done():
				return
			}
		}
		if len(batch) > 0 {
			continue
		}

		select {
		case <-s.signal:
		case <-ctx.Done():
			return
		}
	}
}

// subject is the broadcast point for one identifier. It is guarded by the
// owning Manager's mutex and lives as long as the Manager.
type subject[T any] struct {
	subscribers map[*Subscription[T]]struct{}
}

func newSubject[T any]() *subject[T] {
	return &subject[T]{subscribers: make(map[*Subscription[T]]struct{})}
}

func (s *subject[T]) attach(sub *Subscription[T]) {
	s.subscribers[sub] = struct{}{}
}

func (s *subject[T]) detach(sub *Subscription[T]) bool {
	if _, ok := s.subscribers[sub]; !ok {
		return false
	}
	delete(s.subscribers, sub)
	return true
}

func (s *subject[T]) publish(object T) {
	for sub := range s.subscribers {
		sub.enqueue(Update[T]{Object: object})
	}
}

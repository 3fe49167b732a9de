package localdata

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/any-hub/localdata/internal/cache"
	"github.com/any-hub/localdata/internal/logging"
)

type agent struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
}

func (a agent) ObjectID() string { return a.ID }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

// countingStore wraps a real store, counts lookups and can hold writes until
// released.
type countingStore struct {
	cache.Store

	gets atomic.Int32
	puts atomic.Int32
	gate chan struct{}

	mu      sync.Mutex
	written [][]byte
}

func newCountingStore(t *testing.T) *countingStore {
	t.Helper()
	store, err := cache.NewStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	return &countingStore{Store: store}
}

func (s *countingStore) Get(ctx context.Context, locator cache.Locator) ([]byte, error) {
	s.gets.Add(1)
	return s.Store.Get(ctx, locator)
}

func (s *countingStore) Put(ctx context.Context, locator cache.Locator, data []byte, opts cache.PutOptions) (*cache.Entry, error) {
	if s.gate != nil {
		<-s.gate
	}
	s.puts.Add(1)
	s.mu.Lock()
	s.written = append(s.written, append([]byte(nil), data...))
	s.mu.Unlock()
	return s.Store.Put(ctx, locator, data, opts)
}

func (s *countingStore) writes() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.written...)
}

func newTestManager(t *testing.T, store cache.Store, opts Options) *Manager[string, agent] {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	m, err := New[string, agent](store, opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return m
}

func flush(t *testing.T, m *Manager[string, agent]) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := m.Flush(ctx); err != nil {
		t.Fatalf("Flush: %v", err)
	}
}

func receive(t *testing.T, sub *Subscription[agent]) Update[agent] {
	t.Helper()
	select {
	case u, ok := <-sub.Updates():
		if !ok {
			t.Fatal("subscription closed unexpectedly")
		}
		return u
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for update")
	}
	return Update[agent]{}
}

func expectNoUpdate(t *testing.T, sub *Subscription[agent]) {
	t.Helper()
	select {
	case u, ok := <-sub.Updates():
		if ok {
			t.Fatalf("unexpected update: %+v", u)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

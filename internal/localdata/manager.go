package localdata

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/any-hub/localdata/internal/cache"
	"github.com/any-hub/localdata/internal/logging"
	"github.com/any-hub/localdata/internal/metrics"
)

// Manager caches objects of one kind in memory, persists them through a
// cache.Store and broadcasts every accepted store to subscribers.
type Manager[ID comparable, T Object[ID]] struct {
	store       cache.Store
	kind        string
	maxAge      time.Duration
	now         func() time.Time
	logger      *logrus.Logger
	isTransient func(error) bool
	metrics     *metrics.Collectors
	writes      *writeQueue[T]

	mu sync.Mutex
	// A nil entry records that the disk was checked and nothing was found.
	cache    map[ID]*Entry[T]
	subjects map[ID]*subject[T]
}

// New builds a Manager for one kind and eagerly creates its directory.
func New[ID comparable, T Object[ID]](store cache.Store, opts Options) (*Manager[ID, T], error) {
	if store == nil {
		return nil, errors.New("localdata: store is required")
	}
	var zero T
	opts = opts.withDefaults(zero)

	if err := store.EnsureKind(opts.Kind); err != nil {
		return nil, fmt.Errorf("localdata: prepare %s directory: %w", opts.Kind, err)
	}

	m := &Manager[ID, T]{
		store:       store,
		kind:        opts.Kind,
		maxAge:      opts.MaxAge,
		now:         opts.Now,
		logger:      opts.Logger,
		isTransient: opts.IsTransient,
		metrics:     opts.Metrics,
		cache:       make(map[ID]*Entry[T]),
		subjects:    make(map[ID]*subject[T]),
	}
	m.writes = newWriteQueue(m.trySave)
	return m, nil
}

// Kind returns the entity kind this Manager serves.
func (m *Manager[ID, T]) Kind() string {
	return m.kind
}

// MaxAge returns the configured refresh threshold, zero when unset.
func (m *Manager[ID, T]) MaxAge() time.Duration {
	return m.maxAge
}

// Store records objects as of updateTime. Objects older than the entry already
// cached for their identifier are ignored.
func (m *Manager[ID, T]) Store(updateTime time.Time, objects ...T) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, object := range objects {
		m.storeLocked(object, updateTime)
	}
}

func (m *Manager[ID, T]) storeLocked(object T, updateTime time.Time) {
	id := object.ObjectID()
	entry := Entry[T]{LastUpdate: updateTime, Object: object}

	existing := m.cachedEntry(context.Background(), id)
	if !entry.Supersedes(existing) {
		m.metrics.ObserveStore(m.kind, metrics.StoreIgnored)
		m.logger.WithFields(logging.ObjectFields(m.kind, keyOf(id), "store_ignored")).
			WithField("existing", existing.LastUpdate).
			Debug("older entry ignored")
		return
	}

	m.cache[id] = &entry
	m.metrics.ObserveStore(m.kind, metrics.StoreAccepted)
	m.subject(id).publish(object)

	if !m.writes.enqueue(keyOf(id), entry) {
		m.logger.WithFields(logging.ObjectFields(m.kind, keyOf(id), "disk_save")).
			Debug("manager closed, entry kept in memory only")
	}
}

// CachedObject returns the cached object for id, consulting the disk at most
// once per identifier. It never triggers a fetch.
func (m *Manager[ID, T]) CachedObject(ctx context.Context, id ID) (T, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry := m.cachedEntry(ctx, id)
	if entry == nil {
		var zero T
		return zero, false
	}
	return entry.Object, true
}

// Subscribe returns a subscription that first replays the cached object, if
// any, with WasCached set and then delivers every accepted store for id.
// The subscription ends when ctx is done.
func (m *Manager[ID, T]) Subscribe(ctx context.Context, id ID) *Subscription[T] {
	sub := newSubscription[T]()

	m.mu.Lock()
	if entry := m.cachedEntry(ctx, id); entry != nil {
		sub.enqueue(Update[T]{Object: entry.Object, WasCached: true})
	}
	subj := m.subject(id)
	subj.attach(sub)
	m.mu.Unlock()

	m.metrics.SubscriberAdded(m.kind)
	go sub.pump(ctx, func() {
		m.mu.Lock()
		removed := subj.detach(sub)
		m.mu.Unlock()
		if removed {
			m.metrics.SubscriberRemoved(m.kind)
		}
	})
	return sub
}

// UpdateFunc produces a fresh object from the current one. ok is false when
// nothing is cached for the identifier.
type UpdateFunc[T any] func(ctx context.Context, current T, ok bool) (T, error)

// AutoUpdateObject calls update when the entry for id is missing or stale and
// stores its result as of now. Fresh entries are left untouched.
func (m *Manager[ID, T]) AutoUpdateObject(ctx context.Context, id ID, update UpdateFunc[T]) error {
	m.mu.Lock()
	cached := m.cachedEntry(ctx, id)
	fresh := cached != nil && !m.isStale(cached)
	m.mu.Unlock()

	if fresh {
		m.metrics.ObserveFetch(m.kind, metrics.FetchSkipped)
		return nil
	}

	var (
		current T
		ok      bool
	)
	if cached != nil {
		current, ok = cached.Object, true
	}

	object, err := update(ctx, current, ok)
	if err != nil {
		return m.absorb(err, logging.ObjectFields(m.kind, keyOf(id), "auto_update"))
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.metrics.ObserveFetch(m.kind, metrics.FetchOK)
	m.Store(m.now(), object)
	return nil
}

// FetchIfNecessary fetches id when its entry is missing or stale.
func (m *Manager[ID, T]) FetchIfNecessary(ctx context.Context, id ID, fetch func(ctx context.Context, id ID) (T, error)) error {
	return m.AutoUpdateObject(ctx, id, func(ctx context.Context, _ T, _ bool) (T, error) {
		return fetch(ctx, id)
	})
}

// FetchAllIfNecessary calls fetch once with the full ids list when any of them
// is missing or stale, then stores every returned object.
func (m *Manager[ID, T]) FetchAllIfNecessary(ctx context.Context, ids []ID, fetch func(ctx context.Context, ids []ID) ([]T, error)) error {
	if len(ids) == 0 {
		return nil
	}

	m.mu.Lock()
	needed := false
	for _, id := range ids {
		entry := m.cachedEntry(ctx, id)
		if entry == nil || m.isStale(entry) {
			needed = true
			break
		}
	}
	m.mu.Unlock()

	if !needed {
		m.metrics.ObserveFetch(m.kind, metrics.FetchSkipped)
		return nil
	}

	objects, err := fetch(ctx, ids)
	if err != nil {
		return m.absorb(err, logrus.Fields{"kind": m.kind, "ids": len(ids), "action": "fetch_batch"})
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	m.metrics.ObserveFetch(m.kind, metrics.FetchOK)
	m.Store(m.now(), objects...)
	return nil
}

// Flush waits until every write scheduled so far has reached the store.
func (m *Manager[ID, T]) Flush(ctx context.Context) error {
	return m.writes.flush(ctx)
}

// Close stops scheduling disk writes and flushes the pending ones. The
// in-memory cache stays readable and writable.
func (m *Manager[ID, T]) Close(ctx context.Context) error {
	m.writes.close()
	return m.writes.flush(ctx)
}

func (m *Manager[ID, T]) isStale(entry *Entry[T]) bool {
	return IsStale(m.now(), entry.LastUpdate, m.maxAge)
}

// absorb swallows transient fetch errors and passes every other error through.
func (m *Manager[ID, T]) absorb(err error, fields logrus.Fields) error {
	if !m.isTransient(err) {
		m.metrics.ObserveFetch(m.kind, metrics.FetchError)
		return err
	}
	m.metrics.ObserveFetch(m.kind, metrics.FetchOffline)
	m.logger.WithError(err).WithFields(fields).Warn("fetch_offline")
	return nil
}

// subject returns the subject for id, creating it on first use. Caller holds mu.
func (m *Manager[ID, T]) subject(id ID) *subject[T] {
	s, ok := m.subjects[id]
	if !ok {
		s = newSubject[T]()
		m.subjects[id] = s
	}
	return s
}

// cachedEntry resolves the slot for id, loading it from disk on first access.
// Caller holds mu.
func (m *Manager[ID, T]) cachedEntry(ctx context.Context, id ID) *Entry[T] {
	if entry, ok := m.cache[id]; ok {
		m.metrics.ObserveLookup(m.kind, metrics.LookupMemory)
		return entry
	}
	entry, settled := m.tryLoadEntry(ctx, id)
	if settled {
		m.cache[id] = entry
	}
	return entry
}

// tryLoadEntry treats every disk failure as a miss. settled is false only when
// the caller's context ended the lookup, so the slot stays unknown.
func (m *Manager[ID, T]) tryLoadEntry(ctx context.Context, id ID) (entry *Entry[T], settled bool) {
	key := keyOf(id)
	started := time.Now()
	entry, err := m.loadEntry(ctx, key)

	fields := logging.ObjectFields(m.kind, key, "disk_load")
	fields["elapsed_ms"] = float64(time.Since(started).Microseconds()) / 1000
	switch {
	case err != nil && ctx.Err() != nil:
		return nil, false
	case err != nil:
		m.metrics.ObserveLookup(m.kind, metrics.LookupError)
		m.logger.WithError(err).WithFields(fields).Warn("disk_load_failed")
		return nil, true
	case entry == nil:
		m.metrics.ObserveLookup(m.kind, metrics.LookupAbsent)
	default:
		m.metrics.ObserveLookup(m.kind, metrics.LookupDisk)
	}
	m.logger.WithFields(fields).Debug("disk_load")
	return entry, true
}

func (m *Manager[ID, T]) loadEntry(ctx context.Context, key string) (*Entry[T], error) {
	data, err := m.store.Get(ctx, cache.Locator{Kind: m.kind, Key: key})
	if errors.Is(err, cache.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var entry Entry[T]
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode entry: %w", err)
	}
	return &entry, nil
}

func (m *Manager[ID, T]) trySave(key string, entry Entry[T]) {
	if err := m.save(key, entry); err != nil {
		m.metrics.ObserveWrite(m.kind, metrics.WriteError)
		m.logger.WithError(err).
			WithFields(logging.ObjectFields(m.kind, key, "disk_save")).
			Warn("disk_save_failed")
		return
	}
	m.metrics.ObserveWrite(m.kind, metrics.WriteOK)
}

func (m *Manager[ID, T]) save(key string, entry Entry[T]) error {
	raw, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode entry: %w", err)
	}
	_, err = m.store.Put(context.Background(), cache.Locator{Kind: m.kind, Key: key}, raw, cache.PutOptions{ModTime: entry.LastUpdate})
	return err
}

// keyOf is the canonical textual form of an identifier, used as file name.
func keyOf[ID comparable](id ID) string {
	return fmt.Sprint(id)
}

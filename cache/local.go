package cache

// local.go mirrors cache.go for single-goroutine use: spec.md §4.7's
// "Local (single-thread) store" shares shard.go's primitive and the same
// Layer protocol, but drops the rwupgrade.Lock entirely — every read that
// would otherwise need to try-upgrade a read guard just mutates directly,
// since there is no other goroutine to race with (layer.AlwaysUpgraded
// models this: "Owned mut (local store)" in spec.md §5's guard table).
// Grounded on the same teacher shard shape as cache.go, with the RWMutex
// dropped per spec.md §4.7.

import (
	"context"

	"github.com/Voskan/layercache/internal/hashing"
	"github.com/Voskan/layercache/internal/layer"
)

// LocalCache is the unsynchronized counterpart to ShardedCache. Callers
// must not share one across goroutines without external synchronization;
// it exists for single-threaded hot loops where the sharded store's lock
// traffic is pure overhead.
type LocalCache[T Value[K], K comparable, V any] struct {
	s       *shard[T, K, V]
	hasher  hashing.Hasher[K]
	metrics metricsSink
}

func newLocalCache[T Value[K], K comparable, V any](l layer.Layer[T, Ptr[T, K, V], V], c *config[K], ejectCb EjectCallback[T]) *LocalCache[T, K, V] {
	ms := newMetricsSink(c.registry)
	return &LocalCache[T, K, V]{
		s:       newShard[T, K, V](0, c.capacity, l, c.hasher, ms, ejectCb),
		hasher:  c.hasher,
		metrics: ms,
	}
}

// Len returns the number of distinct keys currently stored.
func (c *LocalCache[T, K, V]) Len() int { return c.s.len() }

// Get looks up key, applying the configured layer's ReadRef/ReadMut touch
// inline — there is no lock to pick a strategy around, so LockNone,
// LockRef and LockMut all resolve to a direct call.
func (c *LocalCache[T, K, V]) Get(key K) (Ptr[T, K, V], bool) {
	h := c.hasher.Hash(key)
	p, _, ok := c.s.find(h, key)
	if !ok {
		c.metrics.incMiss(c.s.num)
		return nil, false
	}
	result := c.s.readRefResult(layer.AlwaysUpgraded{}, p)
	if result == layer.Retain {
		c.metrics.incHit(c.s.num)
		return p, true
	}
	c.s.layerShard.Remove(p)
	c.s.unlinkPtr(h, p)
	c.metrics.incExpiration(c.s.num)
	return nil, false
}

// Insert unconditionally stores value under value.Key().
func (c *LocalCache[T, K, V]) Insert(value T) Ptr[T, K, V] {
	key := value.Key()
	h := c.hasher.Hash(key)
	c.s.removeLocked(h, key)
	return c.s.write(h, value)
}

// Upsert is LocalCache's counterpart to ShardedCache.Upsert.
func (c *LocalCache[T, K, V]) Upsert(value T, merge Merge[T]) Ptr[T, K, V] {
	key := value.Key()
	h := c.hasher.Hash(key)
	if existing, _, ok := c.s.find(h, key); ok {
		merged, doReplace := merge(existing.Value(), value)
		if !doReplace {
			return existing
		}
		c.s.removeLocked(h, key)
		return c.s.write(h, merged)
	}
	return c.s.write(h, value)
}

// OrInsertWith is LocalCache's counterpart to ShardedCache.OrInsertWith.
func (c *LocalCache[T, K, V]) OrInsertWith(key K, f func() T) Ptr[T, K, V] {
	h := c.hasher.Hash(key)
	if existing, _, ok := c.s.find(h, key); ok {
		c.s.readMutResult(existing)
		return existing
	}
	return c.s.write(h, f())
}

// OrInsertDefault is LocalCache's counterpart to ShardedCache.OrInsertDefault.
func (c *LocalCache[T, K, V]) OrInsertDefault(key K, defaultFn func(K) T) Ptr[T, K, V] {
	return c.OrInsertWith(key, func() T { return defaultFn(key) })
}

// Remove deletes key unconditionally.
func (c *LocalCache[T, K, V]) Remove(key K) (Ptr[T, K, V], bool) {
	h := c.hasher.Hash(key)
	p := c.s.removeLocked(h, key)
	return p, p != nil
}

// RemoveIf deletes key only if pred(value) holds.
func (c *LocalCache[T, K, V]) RemoveIf(key K, pred func(T) bool) (Ptr[T, K, V], bool) {
	h := c.hasher.Hash(key)
	existing, _, ok := c.s.find(h, key)
	if !ok || !pred(existing.Value()) {
		return nil, false
	}
	c.s.removeLocked(h, key)
	return existing, true
}

// GetOrLoad is LocalCache's counterpart to ShardedCache.GetOrLoad. Since a
// LocalCache is never shared across goroutines there is no thundering herd
// to dedup against; fn just runs inline on a miss.
func (c *LocalCache[T, K, V]) GetOrLoad(ctx context.Context, key K, fn LoaderFunc[T, K]) (Ptr[T, K, V], error) {
	if p, ok := c.Get(key); ok {
		return p, nil
	}
	value, err := fn(ctx, key)
	if err != nil {
		return nil, err
	}
	return c.Upsert(value, upsertKeepExisting[T]), nil
}

// Entry opens the write-path entry for key. Unlike ShardedCache.Entry
// there is no lock to hold, so LocalEntry's Close is purely a
// double-finalize guard.
func (c *LocalCache[T, K, V]) Entry(key K) *LocalEntry[T, K, V] {
	h := c.hasher.Hash(key)
	if p, _, ok := c.s.find(h, key); ok {
		result := c.s.readMutResult(p)
		if result == layer.Retain {
			c.metrics.incHit(c.s.num)
			return &LocalEntry[T, K, V]{c: c, hash: h, key: key, ptr: p, occupied: true}
		}
		c.s.layerShard.Remove(p)
		c.s.unlinkPtr(h, p)
		c.metrics.incExpiration(c.s.num)
	} else {
		c.metrics.incMiss(c.s.num)
	}
	return &LocalEntry[T, K, V]{c: c, hash: h, key: key, occupied: false}
}

// Iter calls yield once per pointer currently stored, in the unspecified
// order of Go map iteration over the underlying index (no chunking is
// needed: single-threaded callers can't race the scan). Returning false
// from yield stops iteration early.
func (c *LocalCache[T, K, V]) Iter(yield func(Ptr[T, K, V]) bool) {
	for h, bucket := range c.s.index {
		for i := 0; i < len(bucket); {
			p := bucket[i]
			result := c.s.iterReadMutResult(p)
			if result == layer.Remove {
				c.s.layerShard.Remove(p)
				c.s.unlinkPtr(h, p)
				c.metrics.incExpiration(c.s.num)
				bucket = c.s.index[h]
				continue
			}
			if !yield(p) {
				return
			}
			i++
		}
	}
}

// LocalEntry is LocalCache's counterpart to Entry.
type LocalEntry[T Value[K], K comparable, V any] struct {
	c        *LocalCache[T, K, V]
	hash     uint64
	key      K
	ptr      Ptr[T, K, V]
	occupied bool
	done     bool
}

func (e *LocalEntry[T, K, V]) Occupied() bool { return e.occupied }

func (e *LocalEntry[T, K, V]) Value() T {
	e.mustOccupied("Value")
	return e.ptr.Value()
}

func (e *LocalEntry[T, K, V]) Pointer() Ptr[T, K, V] {
	e.mustOccupied("Pointer")
	return e.ptr
}

func (e *LocalEntry[T, K, V]) IntoPointer() Ptr[T, K, V] {
	e.mustOccupied("IntoPointer")
	p := e.ptr
	e.done = true
	return p
}

func (e *LocalEntry[T, K, V]) Replace(value T) Ptr[T, K, V] {
	e.mustOccupied("Replace")
	e.c.s.removeLocked(e.hash, e.key)
	p := e.c.s.write(e.hash, value)
	e.done = true
	return p
}

func (e *LocalEntry[T, K, V]) Remove() Ptr[T, K, V] {
	e.mustOccupied("Remove")
	p := e.c.s.removeLocked(e.hash, e.key)
	e.done = true
	return p
}

func (e *LocalEntry[T, K, V]) Insert(value T) Ptr[T, K, V] {
	if e.occupied {
		panic("layercache: Insert called on an occupied Entry")
	}
	if e.done {
		panic("layercache: Entry already finalized")
	}
	p := e.c.s.write(e.hash, value)
	e.done = true
	return p
}

func (e *LocalEntry[T, K, V]) OrInsert(value T) Ptr[T, K, V] {
	return e.OrInsertWith(func() T { return value })
}

func (e *LocalEntry[T, K, V]) OrInsertWith(f func() T) Ptr[T, K, V] {
	if e.done {
		panic("layercache: Entry already finalized")
	}
	if e.occupied {
		e.done = true
		return e.ptr
	}
	p := e.c.s.write(e.hash, f())
	e.done = true
	return p
}

func (e *LocalEntry[T, K, V]) OrInsertDefault(defaultFn func(K) T) Ptr[T, K, V] {
	return e.OrInsertWith(func() T { return defaultFn(e.key) })
}

// Close is a no-op beyond marking the entry finalized: LocalCache holds
// no lock to release.
func (e *LocalEntry[T, K, V]) Close() { e.done = true }

func (e *LocalEntry[T, K, V]) mustOccupied(method string) {
	if !e.occupied {
		panic("layercache: " + method + " called on a vacant Entry")
	}
	if e.done {
		panic("layercache: Entry already finalized")
	}
}

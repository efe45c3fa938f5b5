package cache

// cache.go assembles shard.go's per-partition primitive into the sharded
// ShardedCache the rest of spec.md §4.6 describes: a fixed array of
// independently-locked shards, the key→shard hash split of §4.6.2, and
// the get/entry/insert/remove surface of §6. Grounded on the teacher's
// pkg/cache.go top-level Cache type (shard array, shardIndex, New),
// generalized from a fixed capBytes/ttl/shards constructor to the
// Layer-driven Build in builder.go.

import (
	"github.com/Voskan/layercache/internal/hashing"
	"github.com/Voskan/layercache/internal/layer"

	"go.uber.org/zap"
)

// ShardedCache is the concurrent, sharded implementation of the cache
// contract described in spec.md §6. Every method is safe for concurrent
// use by multiple goroutines; ordering guarantees are exactly those of
// spec.md §5 ("no ordering across shards").
type ShardedCache[T Value[K], K comparable, V any] struct {
	shards  []*rwShard[T, K, V]
	mask    uint64
	hasher  hashing.Hasher[K]
	metrics metricsSink
	logger  *zap.Logger
	loader  *loaderGroup[T, K, V]
}

func newShardedCache[T Value[K], K comparable, V any](l layer.Layer[T, Ptr[T, K, V], V], c *config[K], numShards int, ejectCb EjectCallback[T]) *ShardedCache[T, K, V] {
	perShard := (c.capacity + numShards - 1) / numShards
	if perShard < 1 {
		perShard = 1
	}
	ms := newMetricsSink(c.registry)
	cc := &ShardedCache[T, K, V]{
		shards:  make([]*rwShard[T, K, V], numShards),
		mask:    uint64(numShards - 1),
		hasher:  c.hasher,
		metrics: ms,
		logger:  c.logger,
		loader:  newLoaderGroup[T, K, V](),
	}
	for i := range cc.shards {
		cc.shards[i] = &rwShard[T, K, V]{shard: newShard[T, K, V](i, perShard, l, c.hasher, ms, ejectCb)}
	}
	return cc
}

// shardFor computes spec.md §4.6.2's rotate-XOR shard split: the shard
// index is decorrelated from the table-slot hash (which stays the raw
// hash h) without a second hasher call.
func (c *ShardedCache[T, K, V]) shardFor(h uint64) *rwShard[T, K, V] {
	idx := hashing.Rehash(h) & c.mask
	return c.shards[idx]
}

// Len returns the total number of distinct keys across every shard
// (spec.md testable property #2).
func (c *ShardedCache[T, K, V]) Len() int {
	total := 0
	for _, rs := range c.shards {
		rs.lock.RLock()
		total += rs.len()
		rs.lock.RUnlock()
	}
	return total
}

// Get implements spec.md §4.6.3: the lock strategy is chosen by the
// composed layer's declared ReadLock.
func (c *ShardedCache[T, K, V]) Get(key K) (Ptr[T, K, V], bool) {
	h := c.hasher.Hash(key)
	rs := c.shardFor(h)

	switch rs.layerShard.ReadLock() {
	case layer.LockNone:
		rs.lock.RLock()
		p, _, ok := rs.find(h, key)
		rs.lock.RUnlock()
		c.recordHitMiss(rs, ok)
		return p, ok

	case layer.LockRef:
		guard := rs.lock.UpgradableRLock()
		p, _, ok := rs.find(h, key)
		if !ok {
			guard.Release()
			c.metrics.incMiss(rs.num)
			return nil, false
		}
		result := rs.readRefResult(guard, p)
		if result == layer.Retain {
			guard.Release()
			c.metrics.incHit(rs.num)
			return p, true
		}
		// Remove: upgrade (drop-then-acquire per rwupgrade's model) and
		// re-locate by pointer identity, since the window between
		// releasing the read lock and acquiring the write lock may have
		// let a concurrent writer replace or remove this exact bucket.
		guard.Upgrade()
		if cur, _, ok := rs.find(h, key); ok && cur == p {
			rs.layerShard.Remove(p)
			rs.unlinkPtr(h, p)
			c.metrics.incExpiration(rs.num)
		}
		guard.Release()
		return nil, false

	default: // layer.LockMut
		return c.getMut(rs, h, key)
	}
}

// getMut implements the Mut-locked get() path: it falls through to the
// write-lock-held entry machinery (spec.md §4.6.3's "Mut: fall through to
// the entry path"), but — unlike Entry() — never inserts on a miss.
func (c *ShardedCache[T, K, V]) getMut(rs *rwShard[T, K, V], h uint64, key K) (Ptr[T, K, V], bool) {
	rs.lock.Lock()
	defer rs.lock.Unlock()

	p, _, ok := rs.find(h, key)
	if !ok {
		c.metrics.incMiss(rs.num)
		return nil, false
	}
	result := rs.readMutResult(p)
	if result == layer.Retain {
		c.metrics.incHit(rs.num)
		return p, true
	}
	rs.layerShard.Remove(p)
	rs.unlinkPtr(h, p)
	c.metrics.incExpiration(rs.num)
	return nil, false
}

func (c *ShardedCache[T, K, V]) recordHitMiss(rs *rwShard[T, K, V], hit bool) {
	if hit {
		c.metrics.incHit(rs.num)
	} else {
		c.metrics.incMiss(rs.num)
	}
}

// Insert unconditionally stores value under value.Key(), replacing any
// existing entry. Returns the new pointer (spec.md §6's insert(value)->P).
func (c *ShardedCache[T, K, V]) Insert(value T) Ptr[T, K, V] {
	key := value.Key()
	h := c.hasher.Hash(key)
	rs := c.shardFor(h)

	rs.lock.Lock()
	defer rs.lock.Unlock()
	rs.removeLocked(h, key)
	return rs.write(h, value)
}

// Merge is supplied to Upsert: given the existing value and the proposed
// new one, it returns the value that should replace the entry, or ok=false
// to leave the entry untouched (spec.md §8's "upsert(v, |_,_| None) is a
// no-op on state" round-trip property).
type Merge[T any] func(old, proposed T) (merged T, ok bool)

// Upsert inserts value if key is absent, or calls merge(existing, value)
// to decide the replacement when it is present. Returns the pointer that
// is current after the call returns.
func (c *ShardedCache[T, K, V]) Upsert(value T, merge Merge[T]) Ptr[T, K, V] {
	key := value.Key()
	h := c.hasher.Hash(key)
	rs := c.shardFor(h)

	rs.lock.Lock()
	defer rs.lock.Unlock()

	if existing, _, ok := rs.find(h, key); ok {
		merged, doReplace := merge(existing.Value(), value)
		if !doReplace {
			return existing
		}
		rs.removeLocked(h, key)
		return rs.write(h, merged)
	}
	return rs.write(h, value)
}

// OrInsertWith returns the pointer for key if present (counting as a
// touch), or calls f to construct a value, inserts it, and returns the
// new pointer.
func (c *ShardedCache[T, K, V]) OrInsertWith(key K, f func() T) Ptr[T, K, V] {
	h := c.hasher.Hash(key)
	rs := c.shardFor(h)

	rs.lock.Lock()
	defer rs.lock.Unlock()

	if existing, _, ok := rs.find(h, key); ok {
		rs.readMutResult(existing)
		return existing
	}
	return rs.write(h, f())
}

// OrInsertDefault is OrInsertWith's counterpart for a caller-supplied zero
// value constructor. Go has no Default trait to call implicitly (unlike
// spec.md §6's T: Default bound), so the factory must be passed
// explicitly — recorded as a resolved Open Question in DESIGN.md.
func (c *ShardedCache[T, K, V]) OrInsertDefault(key K, defaultFn func(K) T) Ptr[T, K, V] {
	return c.OrInsertWith(key, func() T { return defaultFn(key) })
}

// Remove deletes key unconditionally. Returns the removed pointer and
// true, or false if key was absent.
func (c *ShardedCache[T, K, V]) Remove(key K) (Ptr[T, K, V], bool) {
	h := c.hasher.Hash(key)
	rs := c.shardFor(h)

	rs.lock.Lock()
	defer rs.lock.Unlock()
	p := rs.removeLocked(h, key)
	return p, p != nil
}

// RemoveIf deletes key only if pred(value) holds. Returns the removed
// pointer and true on removal; false if key was absent or pred rejected
// it.
func (c *ShardedCache[T, K, V]) RemoveIf(key K, pred func(T) bool) (Ptr[T, K, V], bool) {
	h := c.hasher.Hash(key)
	rs := c.shardFor(h)

	rs.lock.Lock()
	defer rs.lock.Unlock()

	existing, _, ok := rs.find(h, key)
	if !ok || !pred(existing.Value()) {
		return nil, false
	}
	rs.removeLocked(h, key)
	return existing, true
}

// Entry opens the write-path entry for key, holding the shard's write
// lock until the returned Entry is finalized by one of its terminal
// methods (or Close, for read-only inspection). See entry.go.
func (c *ShardedCache[T, K, V]) Entry(key K) *Entry[T, K, V] {
	h := c.hasher.Hash(key)
	rs := c.shardFor(h)
	rs.lock.Lock()

	if p, _, ok := rs.find(h, key); ok {
		result := rs.readMutResult(p)
		if result == layer.Retain {
			c.metrics.incHit(rs.num)
			return &Entry[T, K, V]{c: c, rs: rs, hash: h, key: key, ptr: p, occupied: true}
		}
		rs.layerShard.Remove(p)
		rs.unlinkPtr(h, p)
		c.metrics.incExpiration(rs.num)
	} else {
		c.metrics.incMiss(rs.num)
	}
	return &Entry[T, K, V]{c: c, rs: rs, hash: h, key: key, occupied: false}
}

// Iter calls yield once per pointer currently stored, in spec.md §4.6.5's
// chunk-at-a-time fashion: LockNone-configured layers only ever need a
// read lock per chunk, everything else takes the write lock per chunk so
// IterReadMut can evict lazily-expired entries as it goes. Iteration is
// best-effort per-chunk (spec.md §9's resolved Open Question), not a
// global snapshot. Returning false from yield stops iteration early.
func (c *ShardedCache[T, K, V]) Iter(yield func(Ptr[T, K, V]) bool) {
	for _, rs := range c.shards {
		if !c.iterShard(rs, yield) {
			return
		}
	}
}

const iterChunkSize = 256

func (c *ShardedCache[T, K, V]) iterShard(rs *rwShard[T, K, V], yield func(Ptr[T, K, V]) bool) bool {
	needsLock := rs.layerShard.IterReadLock() != layer.LockNone

restart:
	rs.lock.RLock()
	hashes := make([]uint64, 0, len(rs.index))
	for h := range rs.index {
		hashes = append(hashes, h)
	}
	startCount := rs.count
	rs.lock.RUnlock()

	for start := 0; start < len(hashes); start += iterChunkSize {
		end := start + iterChunkSize
		if end > len(hashes) {
			end = len(hashes)
		}
		chunk := hashes[start:end]

		if !needsLock {
			rs.lock.RLock()
			for _, h := range chunk {
				for _, p := range rs.index[h] {
					if !yield(p) {
						rs.lock.RUnlock()
						return false
					}
				}
			}
			rs.lock.RUnlock()
			continue
		}

		rs.lock.Lock()
		if rs.count < startCount {
			// Another caller removed entries since the hash snapshot:
			// restart this shard's scan. Growth is not checked; entries
			// added after the snapshot are not visited.
			rs.lock.Unlock()
			goto restart
		}
		for _, h := range chunk {
			bucket := rs.index[h]
			for i := 0; i < len(bucket); {
				p := bucket[i]
				result := rs.iterReadMutResult(p)
				if result == layer.Remove {
					rs.layerShard.Remove(p)
					rs.unlinkPtr(h, p)
					c.metrics.incExpiration(rs.num)
					startCount--
					bucket = rs.index[h]
					continue
				}
				if !yield(p) {
					rs.lock.Unlock()
					return false
				}
				i++
			}
		}
		rs.lock.Unlock()
	}
	return true
}

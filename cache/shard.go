package cache

// shard.go is the per-partition primitive the sharded and local stores
// are both built from: a hash-bucketed index of Ptr plus whatever layer
// state the configured Layer chain attaches to each one, guarded by one
// rwupgrade.Lock (sharded) or nothing at all (local). Grounded on the
// teacher's pkg/cache.go shard type (hash/index/lock shape) generalized
// from a hardcoded CLOCK-Pro policy to an arbitrary Layer[T,Ptr,V], and on
// spec.md §4.6's find_or_find_insert_slot / OccupiedEntry / VacantEntry
// description — mapped onto a Go map bucketed by hash with our own
// chaining of equal-hash entries (documented in DESIGN.md: Go has no
// hashbrown-style raw table to call find_or_find_insert_slot on
// directly).

import (
	"github.com/Voskan/layercache/internal/hashing"
	"github.com/Voskan/layercache/internal/layer"
	"github.com/Voskan/layercache/internal/rwupgrade"
)

// shard is the partition primitive shared by ShardedCache (behind a
// rwupgrade.Lock) and LocalCache (behind no lock at all — its methods are
// only ever called with layer.AlwaysUpgraded and no locking wrapper).
type shard[T Value[K], K comparable, V any] struct {
	num        int
	index      map[uint64][]Ptr[T, K, V]
	count      int
	layerShard layer.Shard[T, Ptr[T, K, V], V]
	valueAware layer.ValueAwareShard[T, Ptr[T, K, V]]
	capacity   int
	hasher     hashing.Hasher[K]
	metrics    metricsSink
	ejectCb    EjectCallback[T]
}

func newShard[T Value[K], K comparable, V any](num, capacity int, l layer.Layer[T, Ptr[T, K, V], V], hasher hashing.Hasher[K], metrics metricsSink, ejectCb EjectCallback[T]) *shard[T, K, V] {
	ls := l.NewShard(capacity)
	va, _ := any(ls).(layer.ValueAwareShard[T, Ptr[T, K, V]])
	return &shard[T, K, V]{
		num:        num,
		index:      make(map[uint64][]Ptr[T, K, V], 64),
		layerShard: ls,
		valueAware: va,
		capacity:   capacity,
		hasher:     hasher,
		metrics:    metrics,
		ejectCb:    ejectCb,
	}
}

// find scans the bucket for key, returning the matching pointer, the
// bucket's current slice and its position within it. ok is false if no
// element in the bucket has this exact key (a hash collision with a
// different key is not a match).
func (s *shard[T, K, V]) find(h uint64, key K) (p Ptr[T, K, V], pos int, ok bool) {
	bucket := s.index[h]
	for i, candidate := range bucket {
		if nodeKey[T, K, V](candidate) == key {
			return candidate, i, true
		}
	}
	return nil, -1, false
}

// readRefResult dispatches a read to ReadRef, or to the value-aware
// path when the configured layer needs the stored value to decide
// Retain/Remove (internal/expire's ExpireAfterRead).
func (s *shard[T, K, V]) readRefResult(ctx layer.ReadContext, p Ptr[T, K, V]) layer.ReadResult {
	if s.valueAware != nil {
		return s.valueAware.ReadRefWithValue(ctx, p, &p.value)
	}
	return s.layerShard.ReadRef(ctx, p)
}

func (s *shard[T, K, V]) readMutResult(p Ptr[T, K, V]) layer.ReadResult {
	if s.valueAware != nil {
		return s.valueAware.ReadMutWithValue(p, &p.value)
	}
	return s.layerShard.ReadMut(p)
}

// iterReadMutResult mirrors readMutResult for the full-table iteration
// path (spec.md §4.6.5's IterReadMut dispatch).
func (s *shard[T, K, V]) iterReadMutResult(p Ptr[T, K, V]) layer.ReadResult {
	return s.layerShard.IterReadMut(p)
}

// unlink removes p from the bucket it lives in (by hash) without
// touching the layer shard; callers are responsible for calling
// s.layerShard.Remove(p) themselves, since some callers (the visitor's
// Remove-as-side-effect-of-Write path) must not call it twice.
func (s *shard[T, K, V]) unlink(h uint64, key K) (Ptr[T, K, V], bool) {
	p, pos, ok := s.find(h, key)
	if !ok {
		return nil, false
	}
	bucket := s.index[h]
	last := len(bucket) - 1
	bucket[pos] = bucket[last]
	bucket = bucket[:last]
	if len(bucket) == 0 {
		delete(s.index, h)
	} else {
		s.index[h] = bucket
	}
	s.count--
	return p, true
}

func (s *shard[T, K, V]) unlinkPtr(h uint64, p Ptr[T, K, V]) {
	bucket := s.index[h]
	for i, candidate := range bucket {
		if candidate == p {
			last := len(bucket) - 1
			bucket[i] = bucket[last]
			bucket = bucket[:last]
			if len(bucket) == 0 {
				delete(s.index, h)
			} else {
				s.index[h] = bucket
			}
			s.count--
			return
		}
	}
}

func (s *shard[T, K, V]) link(h uint64, p Ptr[T, K, V]) {
	s.index[h] = append(s.index[h], p)
	s.count++
}

// shardVisitor adapts this shard's bookkeeping to layer.WriteVisitor: a
// brand-new node's own bucket is linked only once Insert finalizes the
// composed layer value; any Remove the layer chain calls along the way
// (an eviction triggered by this same write) is wired straight back to
// unlinkPtr and layerShard.Remove, per spec.md §4.6.6's "both mutations
// under the one held write lock" coherence invariant.
type shardVisitor[T Value[K], K comparable, V any] struct {
	s      *shard[T, K, V]
	value  T
	hash   uint64
	linked bool
}

func (v *shardVisitor[T, K, V]) Target() *T { return &v.value }

func (v *shardVisitor[T, K, V]) Remove(p Ptr[T, K, V]) {
	h := v.s.hasher.Hash(nodeKey[T, K, V](p))
	v.s.unlinkPtr(h, p)
	if v.s.metrics != nil {
		v.s.metrics.incEviction(v.s.num)
	}
	if v.s.ejectCb != nil {
		v.s.ejectCb(p.Value())
	}
}

func (v *shardVisitor[T, K, V]) Insert(state V) Ptr[T, K, V] {
	p := &node[T, K, V]{value: v.value, state: state}
	v.s.link(v.hash, p)
	return p
}

// write constructs a brand-new node for value under the write lock,
// running it through the configured layer chain (which may itself evict
// other entries as a side effect).
func (s *shard[T, K, V]) write(hash uint64, value T) Ptr[T, K, V] {
	visitor := &shardVisitor[T, K, V]{s: s, value: value, hash: hash}
	return s.layerShard.Write(visitor)
}

// removeLocked drops key's entry from both the map and the layer shard,
// maintaining spec.md §4.6.6's coherence invariant. Returns the removed
// pointer, or nil if key was not present.
func (s *shard[T, K, V]) removeLocked(h uint64, key K) Ptr[T, K, V] {
	p, ok := s.unlink(h, key)
	if !ok {
		return nil
	}
	s.layerShard.Remove(p)
	return p
}

// len reports the shard's current entry count.
func (s *shard[T, K, V]) len() int { return s.count }

// rwShard pairs a shard with the lock guarding it, for ShardedCache.
type rwShard[T Value[K], K comparable, V any] struct {
	*shard[T, K, V]
	lock rwupgrade.Lock
}

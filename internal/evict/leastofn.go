package evict

import (
	"math/rand"
	"time"

	"github.com/Voskan/layercache/internal/bag"
	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/layer"
)

// Strategy picks which of N sampled candidates is the worst one to keep.
// NewValue runs once, at write time, with the target in hand, so an
// intrusive strategy (one that reads a field off T, rather than tracking
// its own clock) can capture whatever it needs right there instead of
// needing T again at Compare time. Grounded on
// original_source/src/evict/random.rs's LeastOfNStrategy.
type Strategy[T any, V any] interface {
	NewValue(now time.Time, target *T) V
	// OnRead refreshes value on every surviving read, for strategies that
	// track recency of use rather than a fixed point in time.
	OnRead(now time.Time, value *V)
	// Compare orders two candidates; the one Compare ranks lowest (<0) is
	// the eviction victim.
	Compare(left, right V) int
}

// LeastOfN samples n random candidates on a full shard and evicts
// whichever one Compare ranks lowest, instead of a single uniformly
// random pick — this trades a little extra work per write for a result
// much closer to true LRU/LFU than plain Random. Grounded on
// original_source/src/evict/random.rs's EvictLeastOfN/BestOfNShard.
func LeastOfN[T any, P any, V any](deref Deref[LeastOfNElement[V], P], strategy Strategy[T, V], n int, clk clock.Clock, rnd func(size int) int) layer.Layer[T, P, LeastOfNElement[V]] {
	if n < 2 {
		n = 2
	}
	if rnd == nil {
		rnd = rand.Intn
	}
	return layer.LayerFunc[T, P, LeastOfNElement[V]](func(capacity int) layer.Shard[T, P, LeastOfNElement[V]] {
		return &leastOfNShard[T, P, V]{
			bag:      bag.WithCapacity[*bagElement[P, V]](capacity),
			capacity: capacity,
			strategy: strategy,
			n:        n,
			clk:      clk,
			rnd:      rnd,
			deref:    deref,
		}
	})
}

// LeastOfNElement is the Value this layer attaches to P: the bag key
// (for O(1) removal) alongside a pointer to the strategy's own
// per-element value, so a later read can refresh it in place. It does not
// parameterize over P itself — unlike bagElement, which needs a field of
// type P — so a Cache's composed state type can embed LeastOfNElement[V]
// directly without the self-referential P->V->P instantiation a
// P-parameterized version would force on callers.
type LeastOfNElement[V any] struct {
	Key   *bag.Key
	Value *V
}

type leastOfNShard[T any, P any, V any] struct {
	bag      *bag.Bag[*bagElement[P, V]]
	capacity int
	strategy Strategy[T, V]
	n        int
	clk      clock.Clock
	rnd      func(size int) int
	deref    Deref[LeastOfNElement[V], P]
}

func (s *leastOfNShard[T, P, V]) Write(v layer.WriteVisitor[T, P, LeastOfNElement[V]]) P {
	if s.bag.Len() >= s.capacity {
		var victim *bagElement[P, V]
		for i := 0; i < s.n; i++ {
			candidate := s.sample()
			if candidate == nil {
				continue
			}
			if victim == nil || s.strategy.Compare(candidate.extra, victim.extra) < 0 {
				victim = candidate
			}
		}
		if victim != nil {
			s.bag.RemoveAt(victim.key.Load())
			v.Remove(victim.p)
		}
	}

	now := s.clk.Now()
	elem := &bagElement[P, V]{}
	elem.extra = s.strategy.NewValue(now, v.Target())
	p := v.Insert(LeastOfNElement[V]{Key: &elem.key, Value: &elem.extra})
	elem.p = p
	s.bag.Insert(elem)
	return p
}

// sample picks one random element from the bag without removing it.
func (s *leastOfNShard[T, P, V]) sample() *bagElement[P, V] {
	var picked *bagElement[P, V]
	s.bag.Sample(1, s.rnd, func(e *bagElement[P, V]) { picked = e })
	return picked
}

func (s *leastOfNShard[T, P, V]) Remove(p P) {
	elem := s.deref(p)
	s.bag.RemoveAt(elem.Key.Load())
}

func (s *leastOfNShard[T, P, V]) touch(p P) layer.ReadResult {
	elem := s.deref(p)
	s.strategy.OnRead(s.clk.Now(), elem.Value)
	return layer.Retain
}

func (s *leastOfNShard[T, P, V]) ReadRef(_ layer.ReadContext, p P) layer.ReadResult { return s.touch(p) }
func (s *leastOfNShard[T, P, V]) ReadMut(p P) layer.ReadResult                    { return s.touch(p) }
func (s *leastOfNShard[T, P, V]) IterReadRef(layer.ReadContext, P) layer.ReadResult {
	return layer.Retain
}
func (s *leastOfNShard[T, P, V]) IterReadMut(P) layer.ReadResult { return layer.Retain }
func (s *leastOfNShard[T, P, V]) ReadLock() layer.LockKind       { return layer.LockRef }
func (s *leastOfNShard[T, P, V]) IterReadLock() layer.LockKind   { return layer.LockNone }

// LeastRecentlyWritten evicts whichever of the N sampled candidates was
// written longest ago, stamping the write time LeastOfN's own clock
// reports at insert time.
type LeastRecentlyWritten[T any] struct{}

func (s LeastRecentlyWritten[T]) NewValue(now time.Time, _ *T) time.Time { return now }
func (s LeastRecentlyWritten[T]) OnRead(time.Time, *time.Time)           {}
func (s LeastRecentlyWritten[T]) Compare(left, right time.Time) int {
	switch {
	case left.Before(right):
		return -1
	case left.After(right):
		return 1
	default:
		return 0
	}
}

// Written is implemented by values whose own write timestamp should
// drive LeastRecentlyWrittenIntrusive comparisons, instead of a
// side-channel clock read.
type Written interface {
	WrittenAt() time.Time
}

// LeastRecentlyWrittenIntrusive reads T's own write timestamp instead of
// recording the time LeastOfN's clock reports at insert (LeastOfN still
// reads its clock on every write, whichever strategy is configured).
type LeastRecentlyWrittenIntrusive[T Written] struct{}

func (s LeastRecentlyWrittenIntrusive[T]) NewValue(_ time.Time, target *T) time.Time {
	return (*target).WrittenAt()
}
func (s LeastRecentlyWrittenIntrusive[T]) OnRead(time.Time, *time.Time) {}
func (s LeastRecentlyWrittenIntrusive[T]) Compare(left, right time.Time) int {
	switch {
	case left.Before(right):
		return -1
	case left.After(right):
		return 1
	default:
		return 0
	}
}

// LeastRecentlyRead evicts whichever of the N sampled candidates was read
// longest ago (or never), refreshing its value on every surviving read.
// Its value is an *clock.Instant, not a plain time.Time: OnRead fires
// from however many concurrent readers land on the same candidate, so
// the update has to go through an atomic store rather than a plain
// assignment.
type LeastRecentlyRead[T any] struct{}

func (s LeastRecentlyRead[T]) NewValue(now time.Time, _ *T) *clock.Instant {
	inst := &clock.Instant{}
	inst.Store(now)
	return inst
}
func (s LeastRecentlyRead[T]) OnRead(now time.Time, value **clock.Instant) {
	(*value).Store(now)
}
func (s LeastRecentlyRead[T]) Compare(left, right *clock.Instant) int {
	l, r := left.Load(), right.Load()
	switch {
	case l.Before(r):
		return -1
	case l.After(r):
		return 1
	default:
		return 0
	}
}

package evict

import (
	"time"

	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/layer"
)

// Approximate wraps an inner layer so its touch-sensitive bookkeeping
// only actually runs once per window, instead of on every read: each
// element carries its own last-touched instant, and a read only forwards
// to inner once that instant is at least window old and a non-blocking
// upgrade to the write lock succeeds. A read that loses the race (window
// not yet elapsed, or the upgrade fails) just leaves the inner queue
// untouched — the whole point is an approximate, cheap LRT. Grounded on
// original_source/src/evict/approx.rs's EvictApproximate.
func Approximate[T any, P any, V any](inner layer.Layer[T, P, V], clk clock.Clock, window time.Duration, deref Deref[layer.Pair[*clock.Instant, V], P]) layer.Layer[T, P, layer.Pair[*clock.Instant, V]] {
	return layer.LayerFunc[T, P, layer.Pair[*clock.Instant, V]](func(capacity int) layer.Shard[T, P, layer.Pair[*clock.Instant, V]] {
		return &approxShard[T, P, V]{inner: inner.NewShard(capacity), clk: clk, window: window, deref: deref}
	})
}

type approxShard[T any, P any, V any] struct {
	inner  layer.Shard[T, P, V]
	clk    clock.Clock
	window time.Duration
	deref  Deref[layer.Pair[*clock.Instant, V], P]
}

func (s *approxShard[T, P, V]) Write(v layer.WriteVisitor[T, P, layer.Pair[*clock.Instant, V]]) P {
	inst := &clock.Instant{}
	inst.Store(s.clk.Now())
	return s.inner.Write(&approxWriteVisitor[T, P, V]{outer: v, inst: inst})
}

type approxWriteVisitor[T any, P any, V any] struct {
	outer layer.WriteVisitor[T, P, layer.Pair[*clock.Instant, V]]
	inst  *clock.Instant
}

func (w *approxWriteVisitor[T, P, V]) Target() *T { return w.outer.Target() }
func (w *approxWriteVisitor[T, P, V]) Remove(p P) { w.outer.Remove(p) }
func (w *approxWriteVisitor[T, P, V]) Insert(inner V) P {
	return w.outer.Insert(layer.Pair[*clock.Instant, V]{Fst: w.inst, Snd: inner})
}

func (s *approxShard[T, P, V]) Remove(p P) {
	s.inner.Remove(p)
}

func (s *approxShard[T, P, V]) touch(ctx layer.ReadContext, p P) layer.ReadResult {
	pair := s.deref(p)
	now := s.clk.Now()
	last := pair.Fst.Load()
	if now.Sub(last) < s.window {
		return layer.Retain
	}
	if !pair.Fst.CompareAndSwap(last, now) {
		return layer.Retain
	}
	if !ctx.TryUpgrade() {
		return layer.Retain
	}
	return s.inner.ReadMut(p)
}

func (s *approxShard[T, P, V]) ReadRef(ctx layer.ReadContext, p P) layer.ReadResult {
	return s.touch(ctx, p)
}
func (s *approxShard[T, P, V]) ReadMut(p P) layer.ReadResult {
	return s.touch(layer.AlwaysUpgraded{}, p)
}
func (s *approxShard[T, P, V]) IterReadRef(ctx layer.ReadContext, p P) layer.ReadResult {
	return s.inner.IterReadRef(ctx, p)
}
func (s *approxShard[T, P, V]) IterReadMut(p P) layer.ReadResult {
	return s.inner.IterReadMut(p)
}

// ReadLock is always Ref: the whole point of this layer is to avoid
// taking the write lock on every read, no matter what the inner layer
// would otherwise demand.
func (s *approxShard[T, P, V]) ReadLock() layer.LockKind     { return layer.LockRef }
func (s *approxShard[T, P, V]) IterReadLock() layer.LockKind { return s.inner.IterReadLock() }

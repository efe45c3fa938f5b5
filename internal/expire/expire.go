// Package expire implements the expiration layers of spec.md §4.5. Every
// layer here declares Remove on read when the entry is expired; the store
// then drops the entry lazily, on the next get() or iteration that
// touches it — expiration is never proactive: no layer removes an
// expired entry before a read or an iteration reaches it.
package expire

import (
	"time"

	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/layer"
)

// Expirable is implemented by values used with the Expire layer.
type Expirable interface {
	IsExpired() bool
}

// ExpiresAt is implemented by values used with the ExpireAt layer.
type ExpiresAt interface {
	ExpireAt() time.Time
}

// deref abstracts "get me the T this P refers to" without requiring the
// expire package to know P's concrete shape.
type Deref[T any, P any] func(P) *T

// NewExpire builds the Expire layer given a way to read T back out of P.
func NewExpire[T Expirable, P any](deref Deref[T, P]) layer.Layer[T, P, struct{}] {
	return layer.LayerFunc[T, P, struct{}](func(int) layer.Shard[T, P, struct{}] {
		return &boolExpireShard[T, P]{deref: deref}
	})
}

type boolExpireShard[T Expirable, P any] struct {
	deref Deref[T, P]
}

func (s *boolExpireShard[T, P]) Write(v layer.WriteVisitor[T, P, struct{}]) P {
	return v.Insert(struct{}{})
}
func (s *boolExpireShard[T, P]) Remove(P) {}
func (s *boolExpireShard[T, P]) ReadRef(_ layer.ReadContext, p P) layer.ReadResult {
	return s.result(p)
}
func (s *boolExpireShard[T, P]) ReadMut(p P) layer.ReadResult { return s.result(p) }
func (s *boolExpireShard[T, P]) IterReadRef(_ layer.ReadContext, p P) layer.ReadResult {
	return s.result(p)
}
func (s *boolExpireShard[T, P]) IterReadMut(p P) layer.ReadResult { return s.result(p) }
func (s *boolExpireShard[T, P]) ReadLock() layer.LockKind         { return layer.LockRef }
func (s *boolExpireShard[T, P]) IterReadLock() layer.LockKind     { return layer.LockRef }
func (s *boolExpireShard[T, P]) result(p P) layer.ReadResult {
	if (*s.deref(p)).IsExpired() {
		return layer.Remove
	}
	return layer.Retain
}

// NewExpireAt builds the ExpireAt layer: the per-element Value is the
// deadline (read from T.ExpireAt() once, at write time) and a read just
// compares it to clk.Now(). Grounded on original_source/src/expire.rs's
// ExpiryTime path and spec.md §4.5. deref resolves P back to the deadline
// this layer stored for it, so the cache package must supply the same
// projection it uses to build P.
func NewExpireAt[T ExpiresAt, P any](clk clock.Clock, deref Deref[time.Time, P]) layer.Layer[T, P, time.Time] {
	return WithDeref[T, P](clk, deref)
}

type deadlineExpireAtShard[T ExpiresAt, P any] struct {
	clk   clock.Clock
	deref Deref[time.Time, P]
}

func (s *deadlineExpireAtShard[T, P]) Write(v layer.WriteVisitor[T, P, time.Time]) P {
	return v.Insert((*v.Target()).ExpireAt())
}
func (s *deadlineExpireAtShard[T, P]) Remove(P) {}
func (s *deadlineExpireAtShard[T, P]) result(p P) layer.ReadResult {
	if !s.clk.Now().Before(*s.deref(p)) {
		return layer.Remove
	}
	return layer.Retain
}
func (s *deadlineExpireAtShard[T, P]) ReadRef(_ layer.ReadContext, p P) layer.ReadResult {
	return s.result(p)
}
func (s *deadlineExpireAtShard[T, P]) ReadMut(p P) layer.ReadResult { return s.result(p) }
func (s *deadlineExpireAtShard[T, P]) IterReadRef(_ layer.ReadContext, p P) layer.ReadResult {
	return s.result(p)
}
func (s *deadlineExpireAtShard[T, P]) IterReadMut(p P) layer.ReadResult { return s.result(p) }
func (s *deadlineExpireAtShard[T, P]) ReadLock() layer.LockKind         { return layer.LockRef }
func (s *deadlineExpireAtShard[T, P]) IterReadLock() layer.LockKind     { return layer.LockRef }

// WithDeref rebuilds an ExpireAt layer so its reads can resolve P -> the
// stored deadline directly, instead of through T.ExpireAt() again. The
// cache package uses this once it knows how to project P to its
// layer.Pair slice.
func WithDeref[T ExpiresAt, P any](clk clock.Clock, deref Deref[time.Time, P]) layer.Layer[T, P, time.Time] {
	return layer.LayerFunc[T, P, time.Time](func(int) layer.Shard[T, P, time.Time] {
		return &deadlineExpireAtShard[T, P]{clk: clk, deref: deref}
	})
}

// ExpireAfterWriteFn computes the deadline for a freshly-written value.
type ExpireAfterWriteFn[T any] func(now time.Time, value *T) time.Time

// NewExpireAfterWrite builds the ExpireAfterWrite layer: the deadline is
// computed once at write time via fn and stored as a plain time.Time
// (never touched again until it is read).
func NewExpireAfterWrite[T any, P any](clk clock.Clock, fn ExpireAfterWriteFn[T], deref Deref[time.Time, P]) layer.Layer[T, P, time.Time] {
	return layer.LayerFunc[T, P, time.Time](func(int) layer.Shard[T, P, time.Time] {
		return &expireAfterWriteShard[T, P]{clk: clk, fn: fn, deref: deref}
	})
}

type expireAfterWriteShard[T any, P any] struct {
	clk   clock.Clock
	fn    ExpireAfterWriteFn[T]
	deref Deref[time.Time, P]
}

func (s *expireAfterWriteShard[T, P]) Write(v layer.WriteVisitor[T, P, time.Time]) P {
	return v.Insert(s.fn(s.clk.Now(), v.Target()))
}
func (s *expireAfterWriteShard[T, P]) Remove(P) {}
func (s *expireAfterWriteShard[T, P]) result(p P) layer.ReadResult {
	if !s.clk.Now().Before(*s.deref(p)) {
		return layer.Remove
	}
	return layer.Retain
}
func (s *expireAfterWriteShard[T, P]) ReadRef(_ layer.ReadContext, p P) layer.ReadResult {
	return s.result(p)
}
func (s *expireAfterWriteShard[T, P]) ReadMut(p P) layer.ReadResult { return s.result(p) }
func (s *expireAfterWriteShard[T, P]) IterReadRef(_ layer.ReadContext, p P) layer.ReadResult {
	return s.result(p)
}
func (s *expireAfterWriteShard[T, P]) IterReadMut(p P) layer.ReadResult { return s.result(p) }
func (s *expireAfterWriteShard[T, P]) ReadLock() layer.LockKind         { return layer.LockRef }
func (s *expireAfterWriteShard[T, P]) IterReadLock() layer.LockKind     { return layer.LockRef }

// ExpireAfterReadFn computes the next deadline given the current time and
// the value, called on every read (sliding expiration).
type ExpireAfterReadFn[T any] func(now time.Time, value *T) time.Time

// NewExpireAfterRead builds the ExpireAfterRead layer: the per-element
// Value is an *clock.Instant (needs a stable address, since it is mutated
// via atomic Swap on every read without taking the write lock). On each
// read, fn computes the new deadline, the old one is swapped out and
// compared against now.
func NewExpireAfterRead[T any, P any](clk clock.Clock, fn ExpireAfterReadFn[T], deref Deref[*clock.Instant, P]) layer.Layer[T, P, *clock.Instant] {
	return layer.LayerFunc[T, P, *clock.Instant](func(int) layer.Shard[T, P, *clock.Instant] {
		return &expireAfterReadShard[T, P]{clk: clk, fn: fn, deref: deref}
	})
}

type expireAfterReadShard[T any, P any] struct {
	clk   clock.Clock
	fn    ExpireAfterReadFn[T]
	deref Deref[*clock.Instant, P]
}

func (s *expireAfterReadShard[T, P]) Write(v layer.WriteVisitor[T, P, *clock.Instant]) P {
	inst := &clock.Instant{}
	inst.Store(s.fn(s.clk.Now(), v.Target()))
	return v.Insert(inst)
}
func (s *expireAfterReadShard[T, P]) Remove(P) {}
func (s *expireAfterReadShard[T, P]) result(p P, value *T) layer.ReadResult {
	inst := *s.deref(p)
	now := s.clk.Now()
	prev := inst.Swap(s.fn(now, value))
	if !now.Before(prev) {
		return layer.Remove
	}
	return layer.Retain
}

// ReadRef/ReadMut need the target value T to recompute the sliding
// deadline; the cache package supplies it via targeted wrappers because
// this layer's Shard interface only receives P. See ResultWithValue.
func (s *expireAfterReadShard[T, P]) ReadRef(layer.ReadContext, P) layer.ReadResult {
	return layer.Retain
}
func (s *expireAfterReadShard[T, P]) ReadMut(P) layer.ReadResult { return layer.Retain }
func (s *expireAfterReadShard[T, P]) IterReadRef(layer.ReadContext, P) layer.ReadResult {
	return layer.Retain
}
func (s *expireAfterReadShard[T, P]) IterReadMut(P) layer.ReadResult { return layer.Retain }
func (s *expireAfterReadShard[T, P]) ReadLock() layer.LockKind      { return layer.LockRef }
func (s *expireAfterReadShard[T, P]) IterReadLock() layer.LockKind  { return layer.LockRef }

// ResultWithValue lets the store recompute the sliding deadline with the
// actual target value in hand, since Shard.ReadRef only receives P.
func (s *expireAfterReadShard[T, P]) ResultWithValue(p P, value *T) layer.ReadResult {
	return s.result(p, value)
}

// ReadRefWithValue/ReadMutWithValue implement layer.ValueAwareShard, so
// this layer participates correctly even composed inside an AndThen
// chain: the store type-asserts its top-level configured Shard against
// layer.ValueAwareShard once, at build time, and prefers these over plain
// ReadRef/ReadMut whenever it matches.
func (s *expireAfterReadShard[T, P]) ReadRefWithValue(_ layer.ReadContext, p P, value *T) layer.ReadResult {
	return s.result(p, value)
}
func (s *expireAfterReadShard[T, P]) ReadMutWithValue(p P, value *T) layer.ReadResult {
	return s.result(p, value)
}

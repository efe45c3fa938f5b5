package cache

// presets.go wires the primitive layers built in internal/evict and
// internal/expire to a Cache's Ptr type, so callers configuring a single
// eviction layer (or a single expiration layer) never have to write the
// deref closure by hand — it is always the identity projection,
// Ptr.State(), whenever the node's composed state type V is exactly that
// layer's own Value type. Pairing an eviction layer with an expiration
// layer goes through EvictExpire/EvictDeref/ExpireDeref instead (layers.go).

import (
	"time"

	"github.com/Voskan/layercache/internal/bag"
	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/evict"
	"github.com/Voskan/layercache/internal/expire"
	"github.com/Voskan/layercache/internal/islist"
	"github.com/Voskan/layercache/internal/layer"
)

// LRI builds a write-order (least-recently-inserted) eviction layer.
func LRI[T any, K comparable]() layer.Layer[T, Ptr[T, K, islist.Key], islist.Key] {
	return evict.LeastRecentlyInserted[T, Ptr[T, K, islist.Key]](
		func(p Ptr[T, K, islist.Key]) *islist.Key { return p.State() },
	)
}

// LRT builds a touch-order (least-recently-touched) eviction layer.
func LRT[T any, K comparable]() layer.Layer[T, Ptr[T, K, islist.Key], islist.Key] {
	return evict.LeastRecentlyTouched[T, Ptr[T, K, islist.Key]](
		func(p Ptr[T, K, islist.Key]) *islist.Key { return p.State() },
	)
}

// ApproximateLRT wraps LRT with a window-gated touch, so reads within the
// window never pay the inner queue's move-to-tail cost.
func ApproximateLRT[T any, K comparable](clk clock.Clock, window time.Duration) layer.Layer[T, Ptr[T, K, layer.Pair[*clock.Instant, islist.Key]], layer.Pair[*clock.Instant, islist.Key]] {
	type V = layer.Pair[*clock.Instant, islist.Key]
	inner := evict.LeastRecentlyTouched[T, Ptr[T, K, V]](
		func(p Ptr[T, K, V]) *islist.Key { return &p.State().Snd },
	)
	return evict.Approximate[T, Ptr[T, K, V], islist.Key](
		inner, clk, window,
		func(p Ptr[T, K, V]) *V { return p.State() },
	)
}

// RandomEvict builds a uniformly-random eviction layer. rnd is the
// per-shard index source; pass nil for math/rand.Intn.
func RandomEvict[T any, K comparable](rnd func(n int) int) layer.Layer[T, Ptr[T, K, *bag.Key], *bag.Key] {
	return evict.Random[T, Ptr[T, K, *bag.Key]](
		func(p Ptr[T, K, *bag.Key]) **bag.Key { return p.State() },
		rnd,
	)
}

// LeastOfNEvict builds a sample-and-compare eviction layer: on overflow,
// n random candidates are sampled and the strategy's Compare picks the
// eviction victim. See evict.LeastRecentlyWritten / LeastRecentlyRead /
// LeastRecentlyWrittenIntrusive for the three built-in strategies.
func LeastOfNEvict[T any, K comparable, SV any](strategy evict.Strategy[T, SV], n int, clk clock.Clock, rnd func(size int) int) layer.Layer[T, Ptr[T, K, evict.LeastOfNElement[SV]], evict.LeastOfNElement[SV]] {
	return evict.LeastOfN[T, Ptr[T, K, evict.LeastOfNElement[SV]], SV](
		func(p Ptr[T, K, evict.LeastOfNElement[SV]]) *evict.LeastOfNElement[SV] { return p.State() },
		strategy, n, clk, rnd,
	)
}

// Generational builds a two-queue (probation/protected) eviction layer.
// g0Fraction is the share of shard capacity given to the probationary
// queue; values outside (0,1) fall back to evict.Generational's own
// default of 0.2. opts forwards tunables such as evict.WithDeferredBatch.
func Generational[T any, K comparable](g0Fraction float64, opts ...evict.Option) layer.Layer[T, Ptr[T, K, *evict.GenerationalValue], *evict.GenerationalValue] {
	return evict.Generational[T, Ptr[T, K, *evict.GenerationalValue]](
		func(p Ptr[T, K, *evict.GenerationalValue]) **evict.GenerationalValue { return p.State() },
		g0Fraction,
		opts...,
	)
}

// Expire builds the boolean Expirable layer: T must implement
// expire.Expirable.
func Expire[T expire.Expirable, K comparable]() layer.Layer[T, Ptr[T, K, struct{}], struct{}] {
	return expire.NewExpire[T, Ptr[T, K, struct{}]](
		func(p Ptr[T, K, struct{}]) *T { return &p.value },
	)
}

// ExpireAt builds the fixed-deadline layer: the deadline is read once via
// T.ExpireAt() at write time and stored alongside the pointer.
func ExpireAt[T expire.ExpiresAt, K comparable](clk clock.Clock) layer.Layer[T, Ptr[T, K, time.Time], time.Time] {
	return expire.WithDeref[T, Ptr[T, K, time.Time]](
		clk,
		func(p Ptr[T, K, time.Time]) *time.Time { return p.State() },
	)
}

// ExpireAfterWrite builds the per-write-deadline layer: fn computes the
// deadline once at write time given the value being stored.
func ExpireAfterWrite[T any, K comparable](clk clock.Clock, fn expire.ExpireAfterWriteFn[T]) layer.Layer[T, Ptr[T, K, time.Time], time.Time] {
	return expire.NewExpireAfterWrite[T, Ptr[T, K, time.Time]](
		clk, fn,
		func(p Ptr[T, K, time.Time]) *time.Time { return p.State() },
	)
}

// ExpireAfterRead builds the sliding-deadline layer: fn recomputes the
// deadline on every read. Because Shard.ReadRef only receives P, this
// layer (and any AndThen chain containing it) implements
// layer.ValueAwareShard; the sharded/local store detects that once, at
// build time, and calls ReadRefWithValue/ReadMutWithValue instead of
// ReadRef/ReadMut for every read — see cache/shard.go.
func ExpireAfterRead[T any, K comparable](clk clock.Clock, fn expire.ExpireAfterReadFn[T]) layer.Layer[T, Ptr[T, K, *clock.Instant], *clock.Instant] {
	return expire.NewExpireAfterRead[T, Ptr[T, K, *clock.Instant]](
		clk, fn,
		func(p Ptr[T, K, *clock.Instant]) **clock.Instant { return p.State() },
	)
}

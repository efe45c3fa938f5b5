package cache

// loader.go implements GetOrLoad/LoadAsync: a thundering-herd dedup wrapper
// built as a *consumer* of ShardedCache's own Get/Upsert, not part of the
// core itself (spec.md and SPEC_FULL.md §1 put the async/dedup loader out
// of scope as a core component). Ground: teacher's pkg/loader.go and
// pkg/loaderfunc.go, generalized from a fixed (K,V) CLOCK-Pro shard to
// ShardedCache[T,K,V], still keyed by the shard-local 64-bit hash of the
// key the way pkg/loader.go already does it, so singleflight never needs to
// format or compare K directly.

import (
	"context"
	"strconv"

	"golang.org/x/sync/singleflight"
)

// LoaderFunc is invoked by GetOrLoad/LoadAsync when a key is absent. fn runs
// with no shard lock held; the value it returns is stored by Upsert after it
// returns, and an entry already present for the key at that point (for
// instance one fn inserted itself) is kept instead. A GetOrLoad or LoadAsync
// for the same key from within fn waits on the in-flight load it belongs to
// and never returns. The same LoaderFunc may be invoked concurrently for
// different keys; it must be safe for that.
type LoaderFunc[T Value[K], K comparable] func(ctx context.Context, key K) (T, error)

// LoadResult is delivered on the channel LoadAsync returns. Shared is true
// when this goroutine did not execute fn itself but received another
// in-flight caller's result, mirroring x/sync/singleflight's own semantics.
type LoadResult[T any] struct {
	Value  T
	Err    error
	Shared bool
}

// loaderGroup dedups concurrent loads for the same key across every caller
// of GetOrLoad/LoadAsync, independent of which shard the key hashes to.
type loaderGroup[T Value[K], K comparable, V any] struct {
	g singleflight.Group
}

func newLoaderGroup[T Value[K], K comparable, V any]() *loaderGroup[T, K, V] {
	return &loaderGroup[T, K, V]{}
}

func (lg *loaderGroup[T, K, V]) load(ctx context.Context, keyHash uint64, key K, fn LoaderFunc[T, K]) (value T, err error, shared bool) {
	k := strconv.FormatUint(keyHash, 16)
	res, err, shared := lg.g.Do(k, func() (any, error) {
		return fn(ctx, key)
	})
	if ctx.Err() != nil {
		var zero T
		return zero, ctx.Err(), shared
	}
	if err != nil {
		var zero T
		return zero, err, shared
	}
	return res.(T), nil, shared
}

func (lg *loaderGroup[T, K, V]) loadAsync(ctx context.Context, keyHash uint64, key K, fn LoaderFunc[T, K]) <-chan LoadResult[T] {
	out := make(chan LoadResult[T], 1)
	k := strconv.FormatUint(keyHash, 16)

	// DoChan does not propagate ctx to fn; cancellation below only stops
	// this caller from waiting, it does not abort the shared in-flight call,
	// since other waiters may still need its result.
	ch := lg.g.DoChan(k, func() (any, error) {
		return fn(context.Background(), key)
	})

	go func() {
		defer close(out)
		select {
		case res := <-ch:
			if res.Err != nil {
				out <- LoadResult[T]{Err: res.Err, Shared: res.Shared}
				return
			}
			out <- LoadResult[T]{Value: res.Val.(T), Shared: res.Shared}
		case <-ctx.Done():
			var zero T
			out <- LoadResult[T]{Value: zero, Err: ctx.Err()}
		}
	}()
	return out
}

// upsertKeepExisting is GetOrLoad's merge function: if another goroutine's
// Insert/Upsert raced ahead of this loaded value between Get's miss and
// Upsert's write lock, the entry already present wins and the freshly loaded
// value is discarded.
func upsertKeepExisting[T any](old, proposed T) (T, bool) { return old, false }

// GetOrLoad returns the pointer for key if present (no dedup needed), or
// runs fn to produce a value — joining any other in-flight GetOrLoad for
// the same key instead of running fn again — inserts it, and returns the
// new pointer.
func (c *ShardedCache[T, K, V]) GetOrLoad(ctx context.Context, key K, fn LoaderFunc[T, K]) (Ptr[T, K, V], error) {
	if p, ok := c.Get(key); ok {
		return p, nil
	}
	h := c.hasher.Hash(key)
	value, err, _ := c.loader.load(ctx, h, key, c.guardedLoader(fn))
	if err != nil {
		return nil, err
	}
	return c.Upsert(value, upsertKeepExisting[T]), nil
}

// guardedLoader wraps fn so a panicking loader surfaces as an error instead
// of unwinding into the singleflight group (which would otherwise poison
// every other goroutine currently waiting on the same in-flight call).
func (c *ShardedCache[T, K, V]) guardedLoader(fn LoaderFunc[T, K]) LoaderFunc[T, K] {
	return func(ctx context.Context, key K) (value T, err error) {
		defer recoverLoaderPanic(c.logger, &err)
		return fn(ctx, key)
	}
}

// LoadAsync is GetOrLoad's non-blocking counterpart: the load runs on its
// own goroutine (or joins one already in flight) and the result, including
// any error, is delivered on the returned channel, which is always closed
// exactly once.
func (c *ShardedCache[T, K, V]) LoadAsync(ctx context.Context, key K, fn LoaderFunc[T, K]) <-chan LoadResult[Ptr[T, K, V]] {
	out := make(chan LoadResult[Ptr[T, K, V]], 1)
	if p, ok := c.Get(key); ok {
		out <- LoadResult[Ptr[T, K, V]]{Value: p}
		close(out)
		return out
	}
	h := c.hasher.Hash(key)
	inner := c.loader.loadAsync(ctx, h, key, c.guardedLoader(fn))
	go func() {
		defer close(out)
		res := <-inner
		if res.Err != nil {
			out <- LoadResult[Ptr[T, K, V]]{Err: res.Err, Shared: res.Shared}
			return
		}
		p := c.Upsert(res.Value, upsertKeepExisting[T])
		out <- LoadResult[Ptr[T, K, V]]{Value: p, Shared: res.Shared}
	}()
	return out
}

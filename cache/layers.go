package cache

import "github.com/Voskan/layercache/internal/layer"

// EvictDeref projects a Ptr's composed state down to the eviction layer's
// own slice of it, for a Cache configured with exactly one eviction layer
// and one expiration layer composed via EvictExpire (state type
// layer.Pair[EV, XV]).
func EvictDeref[T any, K comparable, EV any, XV any]() func(Ptr[T, K, layer.Pair[EV, XV]]) *EV {
	return func(p Ptr[T, K, layer.Pair[EV, XV]]) *EV { return &p.State().Fst }
}

// ExpireDeref is EvictDeref's counterpart for the expiration slice.
func ExpireDeref[T any, K comparable, EV any, XV any]() func(Ptr[T, K, layer.Pair[EV, XV]]) *XV {
	return func(p Ptr[T, K, layer.Pair[EV, XV]]) *XV { return &p.State().Snd }
}

// EvictExpire composes a cache's eviction and expiration layers the way
// spec.md §2 describes the core: two orthogonal concerns sharing one
// per-shard lock without nesting. It is the two-slot instantiation of
// layer.AndThen most callers need; arbitrary deeper chains (e.g.
// Approximate wrapping a third concern) can still be built directly with
// layer.AndThen against Ptr[T, K, V] for a hand-chosen V.
func EvictExpire[T any, K comparable, EV any, XV any](
	evict layer.Layer[T, Ptr[T, K, layer.Pair[EV, XV]], EV],
	expire layer.Layer[T, Ptr[T, K, layer.Pair[EV, XV]], XV],
) layer.Layer[T, Ptr[T, K, layer.Pair[EV, XV]], layer.Pair[EV, XV]] {
	return layer.AndThen[T, Ptr[T, K, layer.Pair[EV, XV]], EV, XV](evict, expire)
}

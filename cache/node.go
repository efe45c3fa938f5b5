// Package cache implements the sharded, layered key-value store: the
// hash index, eviction/expiration layer composition, and the
// entry-based public API built on top of internal/layer, internal/evict
// and internal/expire. Grounded on the teacher's pkg/cache.go, pkg/config.go,
// pkg/loader.go, pkg/metrics.go and pkg/shard.go, generalized from a fixed
// CLOCK-Pro policy to an arbitrary composed Layer chain.
package cache

// Value is implemented by anything stored in a Cache: it reports the key
// it is filed under, so the store never needs a side channel to recover
// where "itself" lives in the index. Mirrors the teacher's bare `K`/`V`
// type parameters, generalized because the sharded store here needs to
// recompute a pointer's key on the eviction callback path (the teacher's
// CLOCK-Pro entry already carried key alongside value for the same
// reason — see pkg/cache.go's entry.key field).
type Value[K comparable] interface {
	Key() K
}

// node is the concrete shape behind a Ptr: the stored value plus whatever
// side-state the configured Layer chain attaches to it (eviction queue
// keys, expiration deadlines, or a Pair of both). Its address is stable
// for as long as any holder — the shard's index, a layer shard, or an
// external caller — retains the pointer. Go's garbage collector reclaims
// it once every holder drops its reference, which is why there is no
// refcounting here: spec.md's "destroyed when the last holder releases"
// invariant is satisfied by the GC instead of hand-rolled Arc-style
// counting (recorded in DESIGN.md as a deliberate simplification).
type node[T any, K comparable, V any] struct {
	value T
	state V
}

// Ptr is the pointer type P the layer protocol composes around: a plain
// Go pointer to a node, stable for its lifetime. It is the Go stand-in
// for spec.md's "owned, cheaply-cloneable, stable-address handle".
type Ptr[T any, K comparable, V any] = *node[T, K, V]

// Value returns the stored payload.
func (n *node[T, K, V]) Value() T { return n.value }

// State exposes the composed layer value for this pointer. Every Layer's
// deref closure is ultimately a projection from *V down to the layer's
// own slice of it; at the top level the projection is always the
// identity, State itself.
func (n *node[T, K, V]) State() *V { return &n.state }

func nodeKey[T Value[K], K comparable, V any](n Ptr[T, K, V]) K { return n.value.Key() }

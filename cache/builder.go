package cache

// builder.go is spec.md §6's Builder: "fluent chain starting from a base
// store kind (sharded / local), calling .layer(...), .expire(), .evict(),
// .shards(n)/.exact_shards(n)/.capacity(n)/.hasher(h)".
//
// The host-language source's builder grows a new type parameter on every
// .layer(...) call (the composed Value becomes a deeper nested tuple at
// compile time, per spec.md §9's "composed layer type grows with chain
// depth"). Go generics have no type-level recursion a *method* can use to
// change its own receiver's type parameters, so a literal
// builder.layer(a).layer(b).layer(c) chain that narrows V at each step is
// not expressible here — this is a genuine Go-generics limitation, not a
// design shortcut (recorded in DESIGN.md). The idiomatic equivalent kept
// here: compose the desired layer chain first with layer.AndThen (or the
// EvictExpire shorthand in layers.go) into one Layer[T,Ptr[T,K,V],V], then
// hand that single composed layer to NewBuilder/NewLocalBuilder; the
// .shards/.exact_shards/.capacity/.hasher/.clock/.logger/.metrics knobs
// remain genuinely fluent because they don't change any type parameter.
import (
	"runtime"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/hashing"
	"github.com/Voskan/layercache/internal/layer"
)

// Builder configures and constructs a ShardedCache.
type Builder[T Value[K], K comparable, V any] struct {
	layer   layer.Layer[T, Ptr[T, K, V], V]
	cfg     *config[K]
	ejectCb EjectCallback[T]
}

// NewBuilder starts a Builder from an already-composed layer chain.
func NewBuilder[T Value[K], K comparable, V any](l layer.Layer[T, Ptr[T, K, V], V]) *Builder[T, K, V] {
	return &Builder[T, K, V]{layer: l, cfg: defaultConfig[K]()}
}

// Shards requests a shard count, rounded up to the next power of two and
// capped at maxShards (spec.md §4.6.1).
func (b *Builder[T, K, V]) Shards(n int) *Builder[T, K, V] {
	WithShards[K](n)(b.cfg)
	return b
}

// ExactShards requests exactly n shards (must already be a power of two).
func (b *Builder[T, K, V]) ExactShards(n int) *Builder[T, K, V] {
	WithExactShards[K](n)(b.cfg)
	return b
}

// Capacity sets the total element capacity shared across all shards.
func (b *Builder[T, K, V]) Capacity(n int) *Builder[T, K, V] {
	WithCapacity[K](n)(b.cfg)
	return b
}

// Hasher overrides the default maphash-based Hasher.
func (b *Builder[T, K, V]) Hasher(h hashing.Hasher[K]) *Builder[T, K, V] {
	WithHasher[K](h)(b.cfg)
	return b
}

// Clock records c in the configuration (see WithClock); layers keep using
// the clock they were constructed with.
func (b *Builder[T, K, V]) Clock(c clock.Clock) *Builder[T, K, V] {
	WithClock[K](c)(b.cfg)
	return b
}

// Logger plugs an external zap.Logger.
func (b *Builder[T, K, V]) Logger(l *zap.Logger) *Builder[T, K, V] {
	WithLogger[K](l)(b.cfg)
	return b
}

// Metrics enables Prometheus metrics collection against reg.
func (b *Builder[T, K, V]) Metrics(reg *prometheus.Registry) *Builder[T, K, V] {
	WithMetrics[K](reg)(b.cfg)
	return b
}

// EjectCallback registers a function invoked whenever an entry is evicted
// by capacity pressure (never for explicit Remove or expiration). See
// EjectCallback's doc comment in config.go for the blocking/reentrancy
// constraint on cb.
func (b *Builder[T, K, V]) EjectCallback(cb EjectCallback[T]) *Builder[T, K, V] {
	b.ejectCb = cb
	return b
}

// Build validates the accumulated configuration and constructs the
// ShardedCache, or returns ErrInvalidCapacity/ErrInvalidShards.
func (b *Builder[T, K, V]) Build() (*ShardedCache[T, K, V], error) {
	if err := validateCapacity(b.cfg); err != nil {
		return nil, err
	}
	n, err := resolveShards(b.cfg, runtime.GOMAXPROCS(0))
	if err != nil {
		return nil, err
	}
	return newShardedCache[T, K, V](b.layer, b.cfg, n, b.ejectCb), nil
}

// LocalBuilder is Builder's counterpart for the unsynchronized store;
// shard count does not apply, so only Capacity/Hasher/Clock/Logger/
// Metrics carry over.
type LocalBuilder[T Value[K], K comparable, V any] struct {
	layer   layer.Layer[T, Ptr[T, K, V], V]
	cfg     *config[K]
	ejectCb EjectCallback[T]
}

// NewLocalBuilder starts a LocalBuilder from an already-composed layer
// chain.
func NewLocalBuilder[T Value[K], K comparable, V any](l layer.Layer[T, Ptr[T, K, V], V]) *LocalBuilder[T, K, V] {
	return &LocalBuilder[T, K, V]{layer: l, cfg: defaultConfig[K]()}
}

// Capacity sets the store's total element capacity.
func (b *LocalBuilder[T, K, V]) Capacity(n int) *LocalBuilder[T, K, V] {
	WithCapacity[K](n)(b.cfg)
	return b
}

// Hasher overrides the default maphash-based Hasher.
func (b *LocalBuilder[T, K, V]) Hasher(h hashing.Hasher[K]) *LocalBuilder[T, K, V] {
	WithHasher[K](h)(b.cfg)
	return b
}

// Clock records c in the configuration (see WithClock); layers keep using
// the clock they were constructed with.
func (b *LocalBuilder[T, K, V]) Clock(c clock.Clock) *LocalBuilder[T, K, V] {
	WithClock[K](c)(b.cfg)
	return b
}

// Logger plugs an external zap.Logger.
func (b *LocalBuilder[T, K, V]) Logger(l *zap.Logger) *LocalBuilder[T, K, V] {
	WithLogger[K](l)(b.cfg)
	return b
}

// Metrics enables Prometheus metrics collection against reg.
func (b *LocalBuilder[T, K, V]) Metrics(reg *prometheus.Registry) *LocalBuilder[T, K, V] {
	WithMetrics[K](reg)(b.cfg)
	return b
}

// EjectCallback registers a function invoked whenever an entry is evicted
// by capacity pressure. See Builder.EjectCallback.
func (b *LocalBuilder[T, K, V]) EjectCallback(cb EjectCallback[T]) *LocalBuilder[T, K, V] {
	b.ejectCb = cb
	return b
}

// Build validates the accumulated configuration and constructs the
// LocalCache.
func (b *LocalBuilder[T, K, V]) Build() (*LocalCache[T, K, V], error) {
	if err := validateCapacity(b.cfg); err != nil {
		return nil, err
	}
	return newLocalCache[T, K, V](b.layer, b.cfg, b.ejectCb), nil
}

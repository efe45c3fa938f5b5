package cache

// config.go defines the internal configuration object and the set of
// functional options the Builder/LocalBuilder methods apply, mirroring the
// teacher's pkg/config.go almost verbatim in structure: a private config
// struct, defaults computed in defaultConfig, options that mutate it, and
// validation in validateCapacity/resolveShards, which Build calls.
// Generalized to carry a Layer chain and a
// Hasher instead of a hardcoded CLOCK-Pro policy.

import (
	"errors"
	"math/bits"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/hashing"
)

// maxShards bounds shard count per spec.md §4.6.1.
const maxShards = 2048

// Option configures a Builder/LocalBuilder. K is threaded through so
// WithHasher stays type-safe against the concrete key type.
type Option[K comparable] func(*config[K])

// EjectCallback is invoked whenever an entry is evicted by capacity
// pressure — never for an explicit Remove and never for expiration, the
// same split the teacher's pkg/config.go EjectCallback documents. The
// callback runs in the goroutine that triggered the eviction (the writer
// holding the shard's write lock) and must not block or call back into the
// same Cache, or it will deadlock against that same lock.
type EjectCallback[T any] func(value T)

type config[K comparable] struct {
	shards      int
	exactShards bool
	capacity    int
	hasher      hashing.Hasher[K]
	clk         clock.Clock
	logger      *zap.Logger
	registry    *prometheus.Registry
}

func defaultConfig[K comparable]() *config[K] {
	return &config[K]{
		capacity: 0,
		hasher:   hashing.Default[K](),
		clk:      clock.Default,
		logger:   zap.NewNop(),
	}
}

// WithShards requests a shard count; it is rounded up to the next power
// of two and capped at maxShards (spec.md §4.6.1's sizing rule), unless
// WithExactShards was also supplied.
func WithShards[K comparable](n int) Option[K] {
	return func(c *config[K]) { c.shards = n }
}

// WithExactShards requests exactly n shards, bypassing the
// power-of-two-rounding WithShards applies; n must still be a power of
// two and <= maxShards or Build returns ErrInvalidShards.
func WithExactShards[K comparable](n int) Option[K] {
	return func(c *config[K]) { c.shards = n; c.exactShards = true }
}

// WithCapacity sets the total element capacity shared across all shards
// (per-shard capacity is ceil(capacity/shards), spec.md §4.6.1).
func WithCapacity[K comparable](n int) Option[K] {
	return func(c *config[K]) { c.capacity = n }
}

// WithHasher overrides the default maphash-based Hasher.
func WithHasher[K comparable](h hashing.Hasher[K]) Option[K] {
	return func(c *config[K]) {
		if h != nil {
			c.hasher = h
		}
	}
}

// WithClock records clk in the configuration in place of clock.Default.
// The stores do not read it: expiration and window layers use the clock
// passed to their own constructors (for example ExpireAt(clk)).
func WithClock[K comparable](clk clock.Clock) Option[K] {
	return func(c *config[K]) {
		if clk != nil {
			c.clk = clk
		}
	}
}

// WithLogger plugs an external zap.Logger. The cache never logs on the
// hot path (get/entry/iter); only slow/rare events go through it —
// matching the teacher's pkg/config.go WithLogger.
func WithLogger[K comparable](l *zap.Logger) Option[K] {
	return func(c *config[K]) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics enables Prometheus metrics collection. Passing nil disables
// metrics (the default): the hot path then pays nothing for a metric
// update, matching the teacher's pkg/metrics.go split.
func WithMetrics[K comparable](reg *prometheus.Registry) Option[K] {
	return func(c *config[K]) { c.registry = reg }
}

var (
	ErrInvalidCapacity = errors.New("layercache: capacity must be > 0")
	ErrInvalidShards   = errors.New("layercache: shards must be a power of two, > 0 and <= 2048")
)

// resolveShards applies the teacher's "capped next-power-of-two" sizing
// rule unless WithExactShards pinned a specific count.
func resolveShards[K comparable](c *config[K], defaultParallelism int) (int, error) {
	if c.shards == 0 {
		c.shards = defaultParallelism * 4
	}
	if c.exactShards {
		if c.shards <= 0 || (c.shards&(c.shards-1)) != 0 || c.shards > maxShards {
			return 0, ErrInvalidShards
		}
		return c.shards, nil
	}
	n := nextPowerOfTwo(c.shards)
	if n > maxShards {
		n = maxShards
	}
	if n <= 0 {
		return 0, ErrInvalidShards
	}
	return n, nil
}

func nextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

func validateCapacity[K comparable](c *config[K]) error {
	if c.capacity <= 0 {
		return ErrInvalidCapacity
	}
	return nil
}

// Package bench provides reproducible micro-benchmarks for layercache. Run
// via:  go test ./bench -bench=. -benchmem -cpu 1,4,16
//
// The benchmarks intentionally use a single key/value shape so results are
// comparable across versions:
//   - Key   – uint64 (cheap hashing, fits in register)
//   - Value – 64-byte struct (large enough to matter, small enough for cache)
//
// We measure:
//  1. Insert      – write-only workload
//  2. Get         – read-only workload (after warm-up)
//  3. GetParallel – highly concurrent reads (b.RunParallel)
//  4. GetOrLoad   – 90% hits, 10% misses with loader cost
//
// Ground: teacher's bench/bench_test.go, retargeted from pkg.New(capBytes,
// ttl, shards) at a fixed CLOCK-Pro policy to cache.NewBuilder with the
// generic LRI preset — capacity is now an element count (spec.md's
// composed-layer model has no notion of byte-weighted capacity), so
// capBytes/weight are dropped in favor of a plain key count.
package bench

import (
	"context"
	"math/rand"
	"runtime"
	"sync/atomic"
	"testing"

	cache "github.com/Voskan/layercache/cache"
	"github.com/Voskan/layercache/internal/islist"
)

type value64 struct {
	_ [64]byte
}

type entry64 struct {
	key uint64
	val value64
}

func (e entry64) Key() uint64 { return e.key }

const (
	shards   = 16
	capacity = 1 << 20 // total element cap across all shards
	keys     = 1 << 20 // 1M keys for dataset
)

func newTestCache() *cache.ShardedCache[entry64, uint64, islist.Key] {
	c, err := cache.NewBuilder[entry64, uint64, islist.Key](cache.LRI[entry64, uint64]()).
		ExactShards(shards).
		Capacity(capacity).
		Build()
	if err != nil {
		panic(err)
	}
	return c
}

// global dataset reused across benches to avoid reallocating large slices.
var ds = func() []uint64 {
	r := rand.New(rand.NewSource(42))
	arr := make([]uint64, keys)
	for i := range arr {
		arr[i] = r.Uint64()
	}
	return arr
}()

func BenchmarkInsert(b *testing.B) {
	c := newTestCache()
	val := value64{}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		key := ds[i&(keys-1)]
		c.Insert(entry64{key: key, val: val})
	}
}

func BenchmarkGet(b *testing.B) {
	c := newTestCache()
	val := value64{}
	for _, k := range ds {
		c.Insert(entry64{key: k, val: val})
	}
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		c.Get(k)
	}
}

func BenchmarkGetParallel(b *testing.B) {
	c := newTestCache()
	val := value64{}
	for _, k := range ds {
		c.Insert(entry64{key: k, val: val})
	}
	b.ReportAllocs()
	b.ResetTimer()
	b.RunParallel(func(pb *testing.PB) {
		idx := rand.Intn(keys)
		for pb.Next() {
			idx = (idx + 1) & (keys - 1)
			c.Get(ds[idx])
		}
	})
}

func BenchmarkGetOrLoad(b *testing.B) {
	c := newTestCache()
	val := value64{}
	// Preload 90% of keys to simulate mixed hit/miss.
	for i, k := range ds {
		if i%10 != 0 {
			c.Insert(entry64{key: k, val: val})
		}
	}
	var loaderCnt atomic.Uint64
	loader := func(ctx context.Context, key uint64) (entry64, error) {
		loaderCnt.Add(1)
		return entry64{key: key, val: val}, nil
	}
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		k := ds[i&(keys-1)]
		c.GetOrLoad(ctx, k, loader)
	}
	b.ReportMetric(float64(loaderCnt.Load())/float64(b.N)*100, "miss-%")
}

func init() {
	runtime.GOMAXPROCS(runtime.NumCPU())
}

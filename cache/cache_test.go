package cache

// cache_test.go exercises the sharded store end-to-end against spec.md
// §8's literal scenarios (S1-S6) and its for-all invariants, the way the
// teacher's pkg tests exercise New/Put/GetOrLoad end-to-end rather than
// unit-testing shard internals in isolation.

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/islist"
	"github.com/Voskan/layercache/internal/layer"
)

type item struct {
	k string
	v int
}

func (i item) Key() string { return i.k }

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Unix(0, 0)} }

func newLRICache(t *testing.T, shards, capacity int) *ShardedCache[item, string, islist.Key] {
	t.Helper()
	c, err := NewBuilder[item, string, islist.Key](LRI[item, string]()).
		ExactShards(shards).Capacity(capacity).Build()
	require.NoError(t, err)
	return c
}

// S1: LRI capacity eviction.
func TestLRICapacityEviction(t *testing.T) {
	c := newLRICache(t, 1, 3)

	c.Insert(item{"a", 1})
	c.Insert(item{"b", 2})
	c.Insert(item{"c", 3})
	c.Insert(item{"d", 4})

	_, ok := c.Get("a")
	require.False(t, ok)
	p, ok := c.Get("b")
	require.True(t, ok)
	require.Equal(t, 2, p.Value().v)
	p, ok = c.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, p.Value().v)
	p, ok = c.Get("d")
	require.True(t, ok)
	require.Equal(t, 4, p.Value().v)
	require.Equal(t, 3, c.Len())
}

// S2: LRT touch reorders the eviction victim.
func TestLRTTouchReordersEviction(t *testing.T) {
	c, err := NewBuilder[item, string, islist.Key](LRT[item, string]()).
		ExactShards(1).Capacity(3).Build()
	require.NoError(t, err)

	c.Insert(item{"a", 1})
	c.Insert(item{"b", 2})
	c.Insert(item{"c", 3})
	_, ok := c.Get("a")
	require.True(t, ok)
	c.Insert(item{"d", 4})

	p, ok := c.Get("a")
	require.True(t, ok, "a survives because it was touched before d was inserted")
	require.Equal(t, 1, p.Value().v)
	_, ok = c.Get("b")
	require.False(t, ok, "b is now the least-recently-touched entry")
	p, ok = c.Get("c")
	require.True(t, ok)
	require.Equal(t, 3, p.Value().v)
	p, ok = c.Get("d")
	require.True(t, ok)
	require.Equal(t, 4, p.Value().v)
}

type expiringItem struct {
	k      string
	v      int
	atTime time.Time
}

func (i expiringItem) Key() string         { return i.k }
func (i expiringItem) ExpireAt() time.Time { return i.atTime }

// S3: ExpireAt removes an entry once the deadline passes.
func TestExpireAtRemovesPastDeadline(t *testing.T) {
	clk := newFakeClock()
	c, err := NewBuilder[expiringItem, string, time.Time](ExpireAt[expiringItem, string](clk)).
		ExactShards(1).Capacity(8).Build()
	require.NoError(t, err)

	c.Insert(expiringItem{"a", 1, clk.Now().Add(10 * time.Second)})

	clk.Advance(5 * time.Second)
	p, ok := c.Get("a")
	require.True(t, ok)
	require.Equal(t, 1, p.Value().v)

	clk.Advance(5 * time.Second)
	_, ok = c.Get("a")
	require.False(t, ok)
	require.Equal(t, 0, c.Len())
}

// S4: Approximate-LRT coalesces reads inside its window into a single
// underlying touch. The window counts from the entry's write, so the reads
// start once it has elapsed: the first read touches a, the next two fall
// inside the new window and are coalesced into that one touch.
func TestApproximateLRTCoalescesReadsInWindow(t *testing.T) {
	clk := newFakeClock()
	window := 100 * time.Millisecond
	type V = layer.Pair[*clock.Instant, islist.Key]
	c, err := NewBuilder[item, string, V](ApproximateLRT[item, string](clk, window)).
		ExactShards(1).Capacity(3).Build()
	require.NoError(t, err)

	c.Insert(item{"a", 1})
	c.Insert(item{"b", 2})
	c.Insert(item{"c", 3})

	clk.Advance(window)
	for i := 0; i < 3; i++ {
		_, ok := c.Get("a")
		require.True(t, ok)
		clk.Advance(10 * time.Millisecond)
	}

	c.Insert(item{"d", 4})

	p, ok := c.Get("a")
	require.True(t, ok, "the single coalesced touch still protects a")
	require.Equal(t, 1, p.Value().v)
	_, ok = c.Get("b")
	require.False(t, ok)
}

// S6: concurrent Upsert on the same key converges to exactly one merged
// value, observed consistently by every caller once all calls return.
func TestConcurrentUpsertConverges(t *testing.T) {
	c := newLRICache(t, 1, 8)

	merge := func(old, proposed item) (item, bool) {
		if proposed.v <= old.v {
			return old, false
		}
		return proposed, true
	}

	var wg sync.WaitGroup
	for i := 1; i <= 50; i++ {
		wg.Add(1)
		go func(v int) {
			defer wg.Done()
			c.Upsert(item{"k", v}, merge)
		}(i)
	}
	wg.Wait()

	p, ok := c.Get("k")
	require.True(t, ok)
	require.Equal(t, 50, p.Value().v)
}

func TestRemoveThenGetReturnsNone(t *testing.T) {
	c := newLRICache(t, 1, 8)

	c.Insert(item{"a", 1})
	p, ok := c.Remove("a")
	require.True(t, ok)
	require.Equal(t, 1, p.Value().v)

	_, ok = c.Get("a")
	require.False(t, ok)
}

func TestEntryOrInsertIsIdempotentOnIdentity(t *testing.T) {
	c := newLRICache(t, 1, 8)

	var first Ptr[item, string, islist.Key]
	for i := 0; i < 3; i++ {
		e := c.Entry("a")
		p := e.OrInsert(item{"a", 1})
		if i == 0 {
			first = p
		} else {
			require.Same(t, first, p)
		}
	}
}

func TestUpsertNoOpReturnsExistingPointer(t *testing.T) {
	c := newLRICache(t, 1, 8)

	orig := c.Insert(item{"a", 1})
	again := c.Upsert(item{"a", 2}, func(old, proposed item) (item, bool) { return old, false })
	require.Same(t, orig, again)
	require.Equal(t, 1, again.Value().v)
}

func TestIterVisitsEveryStoredKeyOnce(t *testing.T) {
	c := newLRICache(t, 4, 64)

	want := map[string]int{}
	for i := 0; i < 20; i++ {
		k := string(rune('a' + i))
		c.Insert(item{k, i})
		want[k] = i
	}

	seen := map[string]int{}
	c.Iter(func(p Ptr[item, string, islist.Key]) bool {
		seen[p.Value().k]++
		return true
	})

	require.Len(t, seen, len(want))
	for k, n := range seen {
		require.Equal(t, 1, n, "key %s must be visited exactly once", k)
	}
}

func TestLenMatchesDistinctKeyCount(t *testing.T) {
	c := newLRICache(t, 2, 64)

	for i := 0; i < 10; i++ {
		c.Insert(item{string(rune('a' + i)), i})
	}
	require.Equal(t, 10, c.Len())
	c.Remove("a")
	require.Equal(t, 9, c.Len())
}

func TestInvalidCapacityRejected(t *testing.T) {
	_, err := NewBuilder[item, string, islist.Key](LRI[item, string]()).
		ExactShards(1).Build()
	require.ErrorIs(t, err, ErrInvalidCapacity)
}

func TestExactShardsMustBePowerOfTwo(t *testing.T) {
	_, err := NewBuilder[item, string, islist.Key](LRI[item, string]()).
		ExactShards(3).Capacity(8).Build()
	require.ErrorIs(t, err, ErrInvalidShards)
}

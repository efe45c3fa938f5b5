package islist

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPushTailPopHeadOrder(t *testing.T) {
	l := WithCapacity[string](0)
	for _, v := range []string{"a", "b", "c"} {
		v := v
		l.PushTailWithKey(func(Key) string { return v })
	}
	require.Equal(t, 3, l.Len())

	for _, want := range []string{"a", "b", "c"} {
		got, ok := l.PopHead()
		require.True(t, ok)
		require.Equal(t, want, got)
	}
	_, ok := l.PopHead()
	require.False(t, ok)
}

func TestPushTailAndPopIfFullEvictsHead(t *testing.T) {
	l := WithCapacity[int](2)
	l.PushTailWithKey(func(Key) int { return 1 })
	l.PushTailWithKey(func(Key) int { return 2 })

	v, evicted, had := l.PushTailWithKeyAndPopIfFull(func(Key) int { return 3 })
	require.True(t, had)
	require.Equal(t, 1, evicted)
	require.Equal(t, 3, v)
	require.Equal(t, 2, l.Len())
}

func TestRemoveByKey(t *testing.T) {
	l := WithCapacity[string](0)
	kb, _ := l.PushTailWithKey(func(Key) string { return "b" })
	l.PushTailWithKey(func(Key) string { return "a-before" })

	_, ok := l.Remove(kb)
	require.True(t, ok)
	require.Equal(t, 1, l.Len())

	// Removing again with the same (now-stale) key must fail cleanly.
	_, ok = l.Remove(kb)
	require.False(t, ok)
}

func TestRemoveRejectsStaleGenerationAfterReuse(t *testing.T) {
	l := WithCapacity[int](1)
	k1, _ := l.PushTailWithKey(func(Key) int { return 1 })
	_, _ = l.Remove(k1)

	// New push reuses the freed slot with a bumped generation.
	k2, _ := l.PushTailWithKey(func(Key) int { return 2 })
	require.Equal(t, k1.index, k2.index)
	require.NotEqual(t, k1.generation, k2.generation)

	_, ok := l.Remove(k1)
	require.False(t, ok, "stale key must not remove the new occupant")

	v, ok := l.Remove(k2)
	require.True(t, ok)
	require.Equal(t, 2, v)
}

func TestMoveToTail(t *testing.T) {
	l := WithCapacity[string](0)
	ka, _ := l.PushTailWithKey(func(Key) string { return "a" })
	l.PushTailWithKey(func(Key) string { return "b" })
	l.PushTailWithKey(func(Key) string { return "c" })

	l.MoveToTail(ka)

	var order []string
	l.Each(func(_ Key, v string) bool {
		order = append(order, v)
		return true
	})
	require.Equal(t, []string{"b", "c", "a"}, order)
}

func TestDrain(t *testing.T) {
	l := WithCapacity[int](0)
	for i := 1; i <= 3; i++ {
		i := i
		l.PushTailWithKey(func(Key) int { return i })
	}
	d := l.Drain()
	var got []int
	for {
		v, ok := d.Next()
		if !ok {
			break
		}
		got = append(got, v)
	}
	require.Equal(t, []int{1, 2, 3}, got)
	require.Equal(t, 0, l.Len())
}

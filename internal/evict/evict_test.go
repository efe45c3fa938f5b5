package evict

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Voskan/layercache/internal/bag"
	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/islist"
	"github.com/Voskan/layercache/internal/layer"
)

// node is a minimal pointer type carrying a layer's own key so a test can
// exercise that one layer in isolation without the cache package's entry
// machinery.
type node struct {
	val string
	lri islist.Key
	lrt islist.Key
}

type nodeVisitor struct {
	target  string
	removed []*node
}

func (v *nodeVisitor) Target() *string { return &v.target }
func (v *nodeVisitor) Remove(p *node)  { v.removed = append(v.removed, p) }

func TestLeastRecentlyInsertedEvictsHeadOnOverflow(t *testing.T) {
	deref := func(n *node) *islist.Key { return &n.lri }
	l := LeastRecentlyInserted[string, *node](deref)
	shard := l.NewShard(2)

	write := func(val string) (*node, []*node) {
		v := &nodeVisitor{target: val}
		p := shard.Write(nodeKeyVisitor{v, func(k islist.Key) *node { return &node{val: val, lri: k} }})
		return p, v.removed
	}

	a, _ := write("a")
	write("b")
	_, removed := write("c")

	require.Len(t, removed, 1)
	require.Equal(t, a.val, removed[0].val)
}

type nodeKeyVisitor struct {
	v       *nodeVisitor
	construct func(islist.Key) *node
}

func (w nodeKeyVisitor) Target() *string          { return w.v.Target() }
func (w nodeKeyVisitor) Remove(p *node)           { w.v.Remove(p) }
func (w nodeKeyVisitor) Insert(k islist.Key) *node { return w.construct(k) }

func TestLeastRecentlyTouchedMovesToTailOnRead(t *testing.T) {
	deref := func(n *node) *islist.Key { return &n.lrt }
	l := LeastRecentlyTouched[string, *node](deref)
	shard := l.NewShard(2)

	write := func(val string) *node {
		v := &nodeVisitor{target: val}
		return shard.Write(nodeKeyVisitor{v, func(k islist.Key) *node { return &node{val: val, lrt: k} }})
	}

	a := write("a")
	b := write("b")

	// touch a so it becomes the most-recently-used, then overflow: b
	// (never touched) should be evicted, not a.
	require.Equal(t, layer.Retain, shard.ReadMut(a))

	v := &nodeVisitor{target: "c"}
	shard.Write(nodeKeyVisitor{v, func(k islist.Key) *node { return &node{val: "c", lrt: k} }})

	require.Len(t, v.removed, 1)
	require.Equal(t, b.val, v.removed[0].val)
}

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type instantNode struct {
	val  string
	pair layer.Pair[*clock.Instant, islist.Key]
}

type instantVisitor struct {
	target  string
	removed []*instantNode
}

func (v *instantVisitor) Target() *string      { return &v.target }
func (v *instantVisitor) Remove(p *instantNode) { v.removed = append(v.removed, p) }
func (v *instantVisitor) Insert(pair layer.Pair[*clock.Instant, islist.Key]) *instantNode {
	return &instantNode{val: v.target, pair: pair}
}

func TestApproximateSkipsTouchWithinWindowThenAppliesAfter(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	inner := LeastRecentlyTouched[string, *instantNode](func(n *instantNode) *islist.Key { return &n.pair.Snd })
	deref := func(n *instantNode) *layer.Pair[*clock.Instant, islist.Key] { return &n.pair }
	l := Approximate[string, *instantNode, islist.Key](inner, clk, 5*time.Second, deref)
	shard := l.NewShard(2)

	a := shard.Write(&instantVisitor{target: "a"})
	b := shard.Write(&instantVisitor{target: "b"})

	// within the window: touching a must not move it in the inner queue.
	clk.now = time.Unix(1, 0)
	require.Equal(t, layer.Retain, shard.ReadRef(layer.AlwaysUpgraded{}, a))

	v := &instantVisitor{target: "c"}
	removed := evictViaOverflow(shard, v)
	require.Equal(t, "a", removed.val, "a was never actually touched inside the window, so it is still the oldest")

	// rebuild past the window: a real touch should now move it to the tail.
	clk.now = time.Unix(10, 0)
	a2 := shard.Write(&instantVisitor{target: "a2"})
	_ = b
	require.Equal(t, layer.Retain, shard.ReadRef(layer.AlwaysUpgraded{}, a2))
	clk.now = time.Unix(20, 0)
	require.Equal(t, layer.Retain, shard.ReadRef(layer.AlwaysUpgraded{}, a2))
}

func evictViaOverflow(shard layer.Shard[string, *instantNode, layer.Pair[*clock.Instant, islist.Key]], v *instantVisitor) *instantNode {
	shard.Write(v)
	return v.removed[len(v.removed)-1]
}

type randomNode struct {
	val string
	key *bag.Key
}

type randomVisitor struct {
	target  string
	removed []*randomNode
}

func (v *randomVisitor) Target() *string   { return &v.target }
func (v *randomVisitor) Remove(p *randomNode) { v.removed = append(v.removed, p) }
func (v *randomVisitor) Insert(k *bag.Key) *randomNode {
	return &randomNode{val: v.target, key: k}
}

func TestRandomEvictsOnOverflow(t *testing.T) {
	deref := func(n *randomNode) **bag.Key { return &n.key }
	l := Random[string, *randomNode](deref, func(n int) int { return 0 })
	shard := l.NewShard(2)

	shard.Write(&randomVisitor{target: "a"})
	shard.Write(&randomVisitor{target: "b"})

	v := &randomVisitor{target: "c"}
	shard.Write(v)
	require.Len(t, v.removed, 1)
}

type lofNode struct {
	val  string
	elem LeastOfNElement[time.Time]
}

type lofVisitor struct {
	target  string
	removed []*lofNode
}

func (v *lofVisitor) Target() *string  { return &v.target }
func (v *lofVisitor) Remove(p *lofNode) { v.removed = append(v.removed, p) }
func (v *lofVisitor) Insert(e LeastOfNElement[time.Time]) *lofNode {
	return &lofNode{val: v.target, elem: e}
}

func TestLeastOfNEvictsOldestOfSample(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	deref := func(n *lofNode) *LeastOfNElement[time.Time] { return &n.elem }
	strategy := LeastRecentlyWritten[string]{}
	l := LeastOfN[string, *lofNode, time.Time](deref, strategy, 2, clk, func(size int) int { return size - 1 })
	shard := l.NewShard(2)

	clk.now = time.Unix(1, 0)
	shard.Write(&lofVisitor{target: "a"})
	clk.now = time.Unix(2, 0)
	shard.Write(&lofVisitor{target: "b"})

	clk.now = time.Unix(3, 0)
	v := &lofVisitor{target: "c"}
	shard.Write(v)
	require.Len(t, v.removed, 1)
}

type genNode struct {
	val   string
	value *GenerationalValue
}

type genVisitor struct {
	target  string
	removed []*genNode
}

func (v *genVisitor) Target() *string  { return &v.target }
func (v *genVisitor) Remove(p *genNode) { v.removed = append(v.removed, p) }
func (v *genVisitor) Insert(val *GenerationalValue) *genNode {
	return &genNode{val: v.target, value: val}
}

func TestGenerationalPromotesOnTouch(t *testing.T) {
	deref := func(n *genNode) **GenerationalValue { return &n.value }
	l := Generational[string, *genNode](deref, 0.5)
	shard := l.NewShard(4)

	a := shard.Write(&genVisitor{target: "a"})
	require.Equal(t, segProbation, a.value.seg.Load())

	require.Equal(t, layer.Retain, shard.ReadMut(a))
	require.Equal(t, segProtected, a.value.seg.Load())
}

package expire

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Voskan/layercache/internal/clock"
	"github.com/Voskan/layercache/internal/layer"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

type boolValue struct {
	expired bool
}

func (v *boolValue) IsExpired() bool { return v.expired }

type ptr struct {
	val *boolValue
	exp struct{}
}

type visitor struct {
	target  *boolValue
	removed []*ptr
}

func (v *visitor) Target() *boolValue { return v.target }
func (v *visitor) Remove(p *ptr)       { v.removed = append(v.removed, p) }
func (v *visitor) Insert(exp struct{}) *ptr {
	return &ptr{val: v.target, exp: exp}
}

func TestExpireRemovesOnRead(t *testing.T) {
	deref := func(p *ptr) *boolValue { return p.val }
	l := NewExpire[*boolValue, *ptr](deref)
	shard := l.NewShard(4)

	fresh := &boolValue{expired: false}
	v := &visitor{target: fresh}
	p := shard.Write(v)
	require.Equal(t, layer.Retain, shard.ReadRef(layer.AlwaysUpgraded{}, p))

	fresh.expired = true
	require.Equal(t, layer.Remove, shard.ReadRef(layer.AlwaysUpgraded{}, p))
}

type deadlineValue struct {
	at time.Time
}

func (v deadlineValue) ExpireAt() time.Time { return v.at }

type deadlinePtr struct {
	deadline time.Time
}

type deadlineVisitor struct {
	target *deadlineValue
}

func (v *deadlineVisitor) Target() *deadlineValue { return v.target }
func (v *deadlineVisitor) Remove(*deadlinePtr)     {}
func (v *deadlineVisitor) Insert(d time.Time) *deadlinePtr {
	return &deadlinePtr{deadline: d}
}

func TestExpireAtUsesStoredDeadline(t *testing.T) {
	clk := &fakeClock{now: time.Unix(1000, 0)}
	deref := func(p *deadlinePtr) *time.Time { return &p.deadline }
	l := WithDeref[*deadlineValue, *deadlinePtr](clk, deref)
	shard := l.NewShard(4)

	val := &deadlineValue{at: time.Unix(1010, 0)}
	p := shard.Write(&deadlineVisitor{target: val})

	require.Equal(t, layer.Retain, shard.ReadRef(layer.AlwaysUpgraded{}, p))

	clk.now = time.Unix(1010, 0)
	require.Equal(t, layer.Remove, shard.ReadRef(layer.AlwaysUpgraded{}, p))
}

type writePtr struct {
	deadline time.Time
}

type writeVisitor struct {
	target *deadlineValue
}

func (v *writeVisitor) Target() *deadlineValue  { return v.target }
func (v *writeVisitor) Remove(*writePtr)         {}
func (v *writeVisitor) Insert(d time.Time) *writePtr {
	return &writePtr{deadline: d}
}

func TestExpireAfterWriteComputesOnceAtWrite(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	fn := func(now time.Time, v *deadlineValue) time.Time { return now.Add(5 * time.Second) }
	deref := func(p *writePtr) *time.Time { return &p.deadline }
	l := NewExpireAfterWrite[*deadlineValue, *writePtr](clk, fn, deref)
	shard := l.NewShard(4)

	val := &deadlineValue{}
	p := shard.Write(&writeVisitor{target: val})

	clk.now = time.Unix(4, 0)
	require.Equal(t, layer.Retain, shard.ReadRef(layer.AlwaysUpgraded{}, p))
	clk.now = time.Unix(5, 0)
	require.Equal(t, layer.Remove, shard.ReadRef(layer.AlwaysUpgraded{}, p))
}

type readPtr struct {
	inst *clock.Instant
}

type readVisitor struct {
	target *deadlineValue
}

func (v *readVisitor) Target() *deadlineValue       { return v.target }
func (v *readVisitor) Remove(*readPtr)              {}
func (v *readVisitor) Insert(inst *clock.Instant) *readPtr {
	return &readPtr{inst: inst}
}

func TestExpireAfterReadSlidesDeadlineOnEachRead(t *testing.T) {
	clk := &fakeClock{now: time.Unix(0, 0)}
	fn := func(now time.Time, v *deadlineValue) time.Time { return now.Add(3 * time.Second) }
	deref := func(p *readPtr) **clock.Instant { return &p.inst }
	l := NewExpireAfterRead[*deadlineValue, *readPtr](clk, fn, deref)
	shard := l.NewShard(4).(*expireAfterReadShard[*deadlineValue, *readPtr])

	val := &deadlineValue{}
	p := shard.Write(&readVisitor{target: val})

	clk.now = time.Unix(2, 0)
	require.Equal(t, layer.Retain, shard.ResultWithValue(p, val))

	clk.now = time.Unix(4, 0)
	require.Equal(t, layer.Retain, shard.ResultWithValue(p, val))

	clk.now = time.Unix(8, 0)
	require.Equal(t, layer.Remove, shard.ResultWithValue(p, val))
}

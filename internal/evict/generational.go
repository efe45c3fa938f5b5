package evict

import (
	"sync/atomic"

	"github.com/Voskan/layercache/internal/islist"
	"github.com/Voskan/layercache/internal/layer"
)

// defaultDeferredBatch is the number of parked overflow pointers drained
// per Write call when no WithDeferredBatch option is supplied.
const defaultDeferredBatch = 8

// Option configures a Generational layer. See WithDeferredBatch.
type Option func(*generationalConfig)

type generationalConfig struct {
	deferredBatch int
}

// WithDeferredBatch sets how many parked overflow pointers a single Write
// call drains before returning, tunable per spec.md §9's Open Question
// (resolved in SPEC_FULL.md §11/§12 as a tunable, default 8, rather than a
// fixed constant). n <= 0 falls back to the default.
func WithDeferredBatch(n int) Option {
	return func(c *generationalConfig) {
		if n > 0 {
			c.deferredBatch = n
		}
	}
}

// Generational implements a two-queue (SLRU-style) eviction policy: every
// new entry starts in a small probationary queue (g0); a touch promotes
// it once into the larger protected queue (g1), where it behaves like
// plain LeastRecentlyTouched. An entry that ages out of g0 without ever
// being touched is evicted outright. Promoting an entry out of g0 can in
// turn overflow g1; rather than evict inline mid-touch (which would need
// the Shard interface to report more than one evicted pointer from a
// read), the overflowed pointer is parked in a small deferred buffer and
// actually evicted — visitor.Remove called — the next time this shard's
// Write runs, capped at deferredBatch per call (WithDeferredBatch, default
// defaultDeferredBatch) so one unlucky write never pays for an entire
// backlog. Grounded on original_source/src/evict/generation.rs's
// EvictGenerationalLeastRecentlyTouched, simplified to drop its
// probationary promotion-frequency counter (Promote) in favor of
// unconditional promotion on first touch.
func Generational[T any, P any](deref Deref[*GenerationalValue, P], g0Fraction float64, opts ...Option) layer.Layer[T, P, *GenerationalValue] {
	if g0Fraction <= 0 || g0Fraction >= 1 {
		g0Fraction = 0.2
	}
	cfg := generationalConfig{deferredBatch: defaultDeferredBatch}
	for _, opt := range opts {
		opt(&cfg)
	}
	return layer.LayerFunc[T, P, *GenerationalValue](func(capacity int) layer.Shard[T, P, *GenerationalValue] {
		g0Cap := int(g0Fraction * float64(capacity))
		if g0Cap < 1 {
			g0Cap = 1
		}
		return &generationalShard[T, P]{
			g0:            islist.WithCapacity[P](g0Cap),
			g1:            islist.WithCapacity[P](capacity),
			deref:         deref,
			deferredBatch: cfg.deferredBatch,
		}
	})
}

const (
	segProbation int32 = 0
	segProtected int32 = 1
)

// GenerationalValue is the per-element state the Generational layer
// attaches to every pointer: which queue it currently lives in, and its
// key within that queue.
type GenerationalValue struct {
	seg   atomic.Int32
	g0Key islist.Key
	g1Key islist.Key
}

type generationalShard[T any, P any] struct {
	g0            *islist.List[P]
	g1            *islist.List[P]
	deref         Deref[*GenerationalValue, P]
	deferred      []P
	deferredBatch int
}

func (s *generationalShard[T, P]) Write(v layer.WriteVisitor[T, P, *GenerationalValue]) P {
	drain := len(s.deferred)
	if drain > s.deferredBatch {
		drain = s.deferredBatch
	}
	for i := 0; i < drain; i++ {
		n := len(s.deferred) - 1
		victim := s.deferred[n]
		s.deferred = s.deferred[:n]
		v.Remove(victim)
	}

	var value *GenerationalValue
	p, evicted, had := s.g0.PushTailWithKeyAndPopIfFull(func(k islist.Key) P {
		value = &GenerationalValue{g0Key: k}
		value.seg.Store(segProbation)
		return v.Insert(value)
	})
	if had {
		v.Remove(evicted)
	}
	return p
}

func (s *generationalShard[T, P]) Remove(p P) {
	value := *s.deref(p)
	switch value.seg.Load() {
	case segProbation:
		s.g0.Remove(value.g0Key)
	default:
		s.g1.Remove(value.g1Key)
	}
}

func (s *generationalShard[T, P]) touch(p P) layer.ReadResult {
	value := *s.deref(p)
	if value.seg.Load() == segProtected {
		s.g1.MoveToTail(value.g1Key)
		return layer.Retain
	}

	s.g0.Remove(value.g0Key)
	value.seg.Store(segProtected)
	_, evicted, had := s.g1.PushTailWithKeyAndPopIfFull(func(k islist.Key) P {
		value.g1Key = k
		return p
	})
	if had {
		s.deferred = append(s.deferred, evicted)
	}
	return layer.Retain
}

func (s *generationalShard[T, P]) ReadRef(_ layer.ReadContext, p P) layer.ReadResult { return s.touch(p) }
func (s *generationalShard[T, P]) ReadMut(p P) layer.ReadResult                    { return s.touch(p) }
func (s *generationalShard[T, P]) IterReadRef(layer.ReadContext, P) layer.ReadResult {
	return layer.Retain
}
func (s *generationalShard[T, P]) IterReadMut(P) layer.ReadResult { return layer.Retain }
func (s *generationalShard[T, P]) ReadLock() layer.LockKind       { return layer.LockMut }
func (s *generationalShard[T, P]) IterReadLock() layer.LockKind   { return layer.LockNone }

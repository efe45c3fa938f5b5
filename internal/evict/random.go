package evict

import (
	"math/rand"

	"github.com/Voskan/layercache/internal/bag"
	"github.com/Voskan/layercache/internal/layer"
)

// bagElement is the concrete element type stored in a Bag[*bagElement[P]]:
// it carries the element's own back-pointer key plus whatever payload the
// owning layer needs next to it.
type bagElement[P any, X any] struct {
	p     P
	key   bag.Key
	extra X
}

func (e *bagElement[P, X]) BagKey() *bag.Key { return &e.key }

// Random evicts a uniformly random entry once a shard reaches capacity.
// It never touches anything on read. Grounded on
// original_source/src/evict/random.rs's EvictRandom.
func Random[T any, P any](deref Deref[*bag.Key, P], rnd func(n int) int) layer.Layer[T, P, *bag.Key] {
	if rnd == nil {
		rnd = rand.Intn
	}
	return layer.LayerFunc[T, P, *bag.Key](func(capacity int) layer.Shard[T, P, *bag.Key] {
		return &randomShard[T, P]{bag: bag.WithCapacity[*bagElement[P, struct{}]](capacity), capacity: capacity, rnd: rnd, deref: deref}
	})
}

type randomShard[T any, P any] struct {
	bag      *bag.Bag[*bagElement[P, struct{}]]
	capacity int
	rnd      func(n int) int
	deref    Deref[*bag.Key, P]
}

func (s *randomShard[T, P]) Write(v layer.WriteVisitor[T, P, *bag.Key]) P {
	if s.bag.Len() >= s.capacity {
		if victim, ok := s.bag.RemoveRandom(s.rnd); ok {
			v.Remove(victim.p)
		}
	}
	elem := &bagElement[P, struct{}]{}
	p := v.Insert(&elem.key)
	elem.p = p
	s.bag.Insert(elem)
	return p
}

func (s *randomShard[T, P]) Remove(p P) {
	key := *s.deref(p)
	s.bag.RemoveAt(key.Load())
}

func (s *randomShard[T, P]) ReadRef(layer.ReadContext, P) layer.ReadResult     { return layer.Retain }
func (s *randomShard[T, P]) ReadMut(P) layer.ReadResult                       { return layer.Retain }
func (s *randomShard[T, P]) IterReadRef(layer.ReadContext, P) layer.ReadResult { return layer.Retain }
func (s *randomShard[T, P]) IterReadMut(P) layer.ReadResult                   { return layer.Retain }
func (s *randomShard[T, P]) ReadLock() layer.LockKind                        { return layer.LockNone }
func (s *randomShard[T, P]) IterReadLock() layer.LockKind                    { return layer.LockNone }

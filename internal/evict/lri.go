package evict

import (
	"github.com/Voskan/layercache/internal/islist"
	"github.com/Voskan/layercache/internal/layer"
)

// LeastRecentlyInserted evicts the oldest-inserted entry once a shard
// reaches capacity. It never mutates on read. Grounded on
// original_source/src/evict/lri.rs's EvictLeastRecentlyInserted.
func LeastRecentlyInserted[T any, P any](deref Deref[islist.Key, P]) layer.Layer[T, P, islist.Key] {
	return layer.LayerFunc[T, P, islist.Key](func(capacity int) layer.Shard[T, P, islist.Key] {
		return &lriShard[T, P]{queue: islist.WithCapacity[P](capacity), deref: deref}
	})
}

type lriShard[T any, P any] struct {
	queue *islist.List[P]
	deref Deref[islist.Key, P]
}

func (s *lriShard[T, P]) Write(v layer.WriteVisitor[T, P, islist.Key]) P {
	p, evicted, had := s.queue.PushTailWithKeyAndPopIfFull(func(k islist.Key) P {
		return v.Insert(k)
	})
	if had {
		v.Remove(evicted)
	}
	return p
}

func (s *lriShard[T, P]) Remove(p P) {
	s.queue.Remove(*s.deref(p))
}

func (s *lriShard[T, P]) ReadRef(layer.ReadContext, P) layer.ReadResult     { return layer.Retain }
func (s *lriShard[T, P]) ReadMut(P) layer.ReadResult                       { return layer.Retain }
func (s *lriShard[T, P]) IterReadRef(layer.ReadContext, P) layer.ReadResult { return layer.Retain }
func (s *lriShard[T, P]) IterReadMut(P) layer.ReadResult                   { return layer.Retain }
func (s *lriShard[T, P]) ReadLock() layer.LockKind                        { return layer.LockNone }
func (s *lriShard[T, P]) IterReadLock() layer.LockKind                    { return layer.LockNone }

package evict

import (
	"github.com/Voskan/layercache/internal/islist"
	"github.com/Voskan/layercache/internal/layer"
)

// LeastRecentlyTouched evicts the least-recently-read-or-written entry
// once a shard reaches capacity, moving an entry to the tail of its
// queue on every touch. Every read this layer sees mutates the queue, so
// it always asks for the write lock. Grounded on
// original_source/src/evict/touch.rs's EvictLeastRecentlyTouched.
func LeastRecentlyTouched[T any, P any](deref Deref[islist.Key, P]) layer.Layer[T, P, islist.Key] {
	return layer.LayerFunc[T, P, islist.Key](func(capacity int) layer.Shard[T, P, islist.Key] {
		return &lrtShard[T, P]{queue: islist.WithCapacity[P](capacity), deref: deref}
	})
}

type lrtShard[T any, P any] struct {
	queue *islist.List[P]
	deref Deref[islist.Key, P]
}

func (s *lrtShard[T, P]) Write(v layer.WriteVisitor[T, P, islist.Key]) P {
	p, evicted, had := s.queue.PushTailWithKeyAndPopIfFull(func(k islist.Key) P {
		return v.Insert(k)
	})
	if had {
		v.Remove(evicted)
	}
	return p
}

func (s *lrtShard[T, P]) Remove(p P) {
	s.queue.Remove(*s.deref(p))
}

func (s *lrtShard[T, P]) touch(p P) layer.ReadResult {
	s.queue.MoveToTail(*s.deref(p))
	return layer.Retain
}

func (s *lrtShard[T, P]) ReadRef(_ layer.ReadContext, p P) layer.ReadResult { return s.touch(p) }
func (s *lrtShard[T, P]) ReadMut(p P) layer.ReadResult                    { return s.touch(p) }

// IterReadRef/IterReadMut leave touch order alone: a full-table scan
// (Each/iteration) is not a "use" of an entry the way get() is.
func (s *lrtShard[T, P]) IterReadRef(layer.ReadContext, P) layer.ReadResult { return layer.Retain }
func (s *lrtShard[T, P]) IterReadMut(P) layer.ReadResult                   { return layer.Retain }
func (s *lrtShard[T, P]) ReadLock() layer.LockKind                        { return layer.LockMut }
func (s *lrtShard[T, P]) IterReadLock() layer.LockKind                    { return layer.LockNone }

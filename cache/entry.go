package cache

// entry.go implements spec.md §6's Entry sum type: Occupied{value(),
// pointer(), into_pointer(), replace(value), remove()} and
// Vacant{insert(value)}. ShardedCache.Entry already holds the shard's
// write lock and has performed the occupied-lookup touch (ReadMut) by the
// time it constructs an Entry (spec.md §4.6.4's "every occupied lookup
// counts as a touch"); Go has no destructor to run that touch lazily on
// drop the way the host-language source does, so Entry requires an
// explicit Close (typically deferred by the caller) once no terminal
// method was called, documented as a resolved Open Question in DESIGN.md.
type Entry[T Value[K], K comparable, V any] struct {
	c        *ShardedCache[T, K, V]
	rs       *rwShard[T, K, V]
	hash     uint64
	key      K
	ptr      Ptr[T, K, V]
	occupied bool
	done     bool
}

// Occupied reports whether the entry matched an existing, non-expired
// key at the time it was opened.
func (e *Entry[T, K, V]) Occupied() bool { return e.occupied }

// Value returns the occupied entry's current value. Panics if the entry
// is vacant — callers must check Occupied first, matching the
// host-language source's OccupiedEntry/VacantEntry split.
func (e *Entry[T, K, V]) Value() T {
	e.mustOccupied("Value")
	return e.ptr.Value()
}

// Pointer returns the occupied entry's pointer without finalizing the
// entry; Close (or another terminal method) is still required afterward.
func (e *Entry[T, K, V]) Pointer() Ptr[T, K, V] {
	e.mustOccupied("Pointer")
	return e.ptr
}

// IntoPointer returns the occupied entry's pointer and releases the write
// lock; no further methods may be called on this Entry afterward.
func (e *Entry[T, K, V]) IntoPointer() Ptr[T, K, V] {
	e.mustOccupied("IntoPointer")
	p := e.ptr
	e.finish()
	return p
}

// Replace swaps the occupied entry's value for value, via the same
// remove-then-write path as ShardedCache.Insert (spec.md §4.6.4's
// OccupiedEntry::replace), and releases the write lock. Returns the new
// pointer.
func (e *Entry[T, K, V]) Replace(value T) Ptr[T, K, V] {
	e.mustOccupied("Replace")
	e.rs.removeLocked(e.hash, e.key)
	p := e.rs.write(e.hash, value)
	e.finish()
	return p
}

// Remove deletes the occupied entry and releases the write lock,
// returning the removed pointer.
func (e *Entry[T, K, V]) Remove() Ptr[T, K, V] {
	e.mustOccupied("Remove")
	p := e.rs.removeLocked(e.hash, e.key)
	e.finish()
	return p
}

// Insert stores value in a vacant entry and releases the write lock,
// returning the new pointer. Panics if the entry is occupied.
func (e *Entry[T, K, V]) Insert(value T) Ptr[T, K, V] {
	if e.occupied {
		panic("layercache: Insert called on an occupied Entry")
	}
	if e.done {
		panic("layercache: Entry already finalized")
	}
	p := e.rs.write(e.hash, value)
	e.finish()
	return p
}

// OrInsert returns the occupied pointer unchanged, or inserts value and
// returns the new pointer if the entry was vacant. Either way the write
// lock is released.
func (e *Entry[T, K, V]) OrInsert(value T) Ptr[T, K, V] {
	return e.OrInsertWith(func() T { return value })
}

// OrInsertWith is OrInsert with lazily-computed value, so callers avoid
// constructing it on the (common) occupied path.
func (e *Entry[T, K, V]) OrInsertWith(f func() T) Ptr[T, K, V] {
	if e.done {
		panic("layercache: Entry already finalized")
	}
	if e.occupied {
		p := e.ptr
		e.finish()
		return p
	}
	p := e.rs.write(e.hash, f())
	e.finish()
	return p
}

// OrInsertDefault is OrInsertWith's counterpart for a caller-supplied
// value constructor keyed on K — see ShardedCache.OrInsertDefault for why
// Go needs the factory spelled out explicitly.
func (e *Entry[T, K, V]) OrInsertDefault(defaultFn func(K) T) Ptr[T, K, V] {
	return e.OrInsertWith(func() T { return defaultFn(e.key) })
}

// Close releases the entry's write lock if no terminal method has run
// yet. Safe to call multiple times and safe to call after a terminal
// method (it becomes a no-op). Callers that only inspect Value/Pointer
// on an Entry without mutating it must defer Close to release the lock —
// the touch itself already happened when Entry() was opened.
func (e *Entry[T, K, V]) Close() { e.finish() }

func (e *Entry[T, K, V]) finish() {
	if e.done {
		return
	}
	e.done = true
	e.rs.lock.Unlock()
}

func (e *Entry[T, K, V]) mustOccupied(method string) {
	if !e.occupied {
		panic("layercache: " + method + " called on a vacant Entry")
	}
	if e.done {
		panic("layercache: Entry already finalized")
	}
}

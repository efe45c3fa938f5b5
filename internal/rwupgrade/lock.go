// Package rwupgrade implements the upgradeable reader/writer lock the
// sharded store and its composed layers share (spec.md §5). Go's
// sync.RWMutex has no upgrade primitive, so Lock pairs one sync.RWMutex
// (the data lock) with one sync.Mutex (the upgrade-intent token): holding
// the token is what makes a read "upgradeable" — only one goroutine may
// hold an upgradeable read on a given Lock at a time, the same role
// parking_lot's upgradable-read slot plays in the host-language source.
package rwupgrade

import "sync"

// Lock is a reader/writer lock with an upgradeable-read mode layered on
// top of sync.RWMutex.
type Lock struct {
	mu      sync.RWMutex
	upgrade sync.Mutex
}

// RLock acquires an ordinary (non-upgradeable) read lock.
func (l *Lock) RLock() { l.mu.RLock() }

// RUnlock releases an ordinary read lock.
func (l *Lock) RUnlock() { l.mu.RUnlock() }

// Lock acquires the exclusive write lock.
func (l *Lock) Lock() { l.mu.Lock() }

// Unlock releases the exclusive write lock.
func (l *Lock) Unlock() { l.mu.Unlock() }

// UpgradableRLock acquires an upgradeable read guard. At most one
// upgradeable read is outstanding on a Lock at any time; a second caller
// blocks until the first's guard is dropped or upgraded-and-dropped.
func (l *Lock) UpgradableRLock() *UpgradeGuard {
	l.upgrade.Lock()
	l.mu.RLock()
	return &UpgradeGuard{l: l}
}

// UpgradeGuard is held by the single goroutine currently allowed to
// upgrade this Lock's read side to a write lock.
type UpgradeGuard struct {
	l        *Lock
	upgraded bool
	released bool
}

// Upgrade blocks until the guard holds the exclusive write lock. There is
// a window, documented in spec.md §5/§9, where the read lock is dropped
// before the write lock is acquired: any reader that mutates state during
// this call must re-validate pointer identity afterward, exactly as the
// sharded store's get() does on its Remove path.
func (g *UpgradeGuard) Upgrade() {
	if g.upgraded {
		return
	}
	g.l.mu.RUnlock()
	g.l.mu.Lock()
	g.upgraded = true
}

// TryUpgrade attempts a non-blocking upgrade. On success the guard now
// holds the write lock and true is returned. On failure the read lock is
// taken again before false is returned; as with Upgrade, the read lock is
// released first, so a writer can run between the release and the
// re-acquire. The write lock itself is only tried, never waited for, so
// Approximate-LRT can call TryUpgrade on a read without waiting to update
// a timestamp.
func (g *UpgradeGuard) TryUpgrade() bool {
	if g.upgraded {
		return true
	}
	g.l.mu.RUnlock()
	if g.l.mu.TryLock() {
		g.upgraded = true
		return true
	}
	g.l.mu.RLock()
	return false
}

// Release drops whichever guard (read or write) the UpgradeGuard currently
// holds, and frees the upgrade-intent token so another goroutine may take
// an upgradeable read.
func (g *UpgradeGuard) Release() {
	if g.released {
		return
	}
	g.released = true
	if g.upgraded {
		g.l.mu.Unlock()
	} else {
		g.l.mu.RUnlock()
	}
	g.l.upgrade.Unlock()
}

// Upgraded reports whether the guard currently holds the write lock.
func (g *UpgradeGuard) Upgraded() bool { return g.upgraded }

// MapGuard projects an UpgradeGuard's target through a field accessor, so
// a composed layer can be handed a guard typed to its own slice of the
// shard state without changing the lock identity underneath it. Upgrading
// or releasing a MapGuard upgrades or releases the UpgradeGuard it wraps.
type MapGuard[S any, F any] struct {
	inner *UpgradeGuard
	get   func(S) F
	state S
}

// NewMapGuard builds a MapGuard over state, using get to project to the
// field the caller actually wants to read.
func NewMapGuard[S any, F any](inner *UpgradeGuard, state S, get func(S) F) *MapGuard[S, F] {
	return &MapGuard[S, F]{inner: inner, get: get, state: state}
}

// Field returns the projected field.
func (m *MapGuard[S, F]) Field() F { return m.get(m.state) }

// Upgrade upgrades the underlying Lock.
func (m *MapGuard[S, F]) Upgrade() { m.inner.Upgrade() }

// TryUpgrade attempts to upgrade the underlying Lock.
func (m *MapGuard[S, F]) TryUpgrade() bool { return m.inner.TryUpgrade() }

// Upgraded reports whether the underlying Lock is currently write-locked.
func (m *MapGuard[S, F]) Upgraded() bool { return m.inner.Upgraded() }

// Release releases the underlying UpgradeGuard.
func (m *MapGuard[S, F]) Release() { m.inner.Release() }

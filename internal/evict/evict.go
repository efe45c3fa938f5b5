// Package evict implements the eviction layers of spec.md §4.4. Every
// layer in this package is a layer.Layer whose Value is opaque
// positional bookkeeping (an islist.Key, a bag.Key, or a small struct
// combining either with a timestamp); none of them inspect T beyond what
// a pluggable strategy needs. Layers are grounded on the corresponding
// files under original_source/src/evict/.
package evict

// Deref resolves a store pointer P back to the per-element state this
// layer attached to it at Write time. The cache package supplies this
// using the same projection it used to build P, so a layer never needs
// to know P's concrete shape.
type Deref[V any, P any] func(P) *V

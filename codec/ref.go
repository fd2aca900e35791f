package codec

// Address is a SHA-1 hex digest (40 ASCII chars) naming an object in the
// static subspace.
type Address string

// StaticRef is a handle into the content-addressed store. StaticRef is a
// plain comparable value type: two refs are equal iff their addresses are
// equal, which Go's == already gives us without the explicit interning
// map the spec's source language needs to get the same guarantee.
type StaticRef struct {
	Address Address
}

// Deleted is the sentinel ref used in a Changeset to mark a key removed
// relative to the underlying Manifest (spec §3: "Deleted ... has address
// literal 'deleted'").
var Deleted = StaticRef{Address: "deleted"}

// IsDeleted reports whether r is the Deleted sentinel.
func (r StaticRef) IsDeleted() bool { return r.Address == Deleted.Address }

// IsZero reports whether r is the unset StaticRef (distinct from Deleted;
// used to detect "no entry at all" versus "entry present but deleted").
func (r StaticRef) IsZero() bool { return r.Address == "" }

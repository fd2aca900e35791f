// Package objectstore implements the L2 StaticStore: a write-once,
// content-addressed object store layered on a store.BackingStore and a
// codec.BinaryCodec, with a bounded read-through cache.
package objectstore

import "errors"

// ErrBadObject is raised when a debug-mode Get re-hashes a loaded byte
// sequence and finds it does not match the address it was stored under.
// Per spec §7.3 this is fatal to the calling operation; callers MUST NOT
// retry it at the zipper layer.
var ErrBadObject = errors.New("objectstore: address/content mismatch")

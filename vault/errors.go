// Package vault implements the L4 Repository & Branches layer: a shared
// static object store plus a per-branch Zipper, partitioned by key
// prefix over one underlying store.BackingStore.
package vault

import "errors"

// ErrBranchExists is returned by CreateBranch when the named branch
// already has a descriptor.
var ErrBranchExists = errors.New("vault: branch already exists")

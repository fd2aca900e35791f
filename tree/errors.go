// Package tree implements the L5 content tree: the Item/Folder/Site/
// Subdomain/Page record family, path resolution, and the breadth-first
// descend / folder-chasing ascend walks that the query layer's
// descendant and ancestor axes build on.
package tree

import "errors"

// ErrUndefined is returned by Resolve when a path segment names a child
// that does not exist, and by Ascend/Descend when a folder/contents
// pointer refers to a key the underlying store no longer has — both are
// "the tree disagrees with itself" conditions, not ordinary not-found
// results.
var ErrUndefined = errors.New("tree: undefined")

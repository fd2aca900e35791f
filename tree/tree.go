package tree

import (
	"context"
	"fmt"
	"strings"

	"zipperdb.dev/codec"
)

// Store is the subset of zipper.Zipper (and vault.Branch, which embeds
// one) that the content tree needs to resolve paths and walk folders. A
// narrow interface here keeps tree independent of the zipper package's
// transaction machinery, which callers drive separately.
type Store interface {
	Get(ctx context.Context, key *codec.Key) (*codec.Record, bool, error)
}

// Item is one (key, record) pair produced by Descend and Ascend.
type Item struct {
	Key   *codec.Key
	Value *codec.Record
}

// IsFolder reports whether name is a subtype of Folder, i.e. whether a
// record of this type may carry a contents field.
func IsFolder(reg *codec.Registry, name codec.TypeName) bool {
	return reg.IsSubtype(name, FolderName)
}

// Resolve walks path left to right from the site root, descending one
// folder per "/"-separated segment (spec §4.6 "Path syntax"). A leading
// "/" is implicit; "/" or "" alone resolves to the root itself. Resolve
// fails with ErrUndefined as soon as a segment names a child that does
// not exist, or that exists only as a dangling contents entry.
func Resolve(ctx context.Context, s Store, path string) (*codec.Key, *codec.Record, error) {
	key, err := RootKey()
	if err != nil {
		return nil, nil, err
	}
	rec, found, err := s.Get(ctx, key)
	if err != nil {
		return nil, nil, fmt.Errorf("tree: resolve %q: %w", path, err)
	}
	if !found {
		return nil, nil, fmt.Errorf("tree: resolve %q: site root: %w", path, ErrUndefined)
	}

	for _, seg := range segments(path) {
		childKey, ok := Child(rec, seg)
		if !ok {
			return nil, nil, fmt.Errorf("tree: resolve %q: segment %q: %w", path, seg, ErrUndefined)
		}
		childRec, found, err := s.Get(ctx, childKey)
		if err != nil {
			return nil, nil, fmt.Errorf("tree: resolve %q: segment %q: %w", path, seg, err)
		}
		if !found {
			return nil, nil, fmt.Errorf("tree: resolve %q: segment %q: %w", path, seg, ErrUndefined)
		}
		key, rec = childKey, childRec
	}
	return key, rec, nil
}

func segments(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

// Child looks up name in folder's contents, returning the Key it is
// mapped to. It returns false for a non-folder record or an absent name.
func Child(folder *codec.Record, name string) (*codec.Key, bool) {
	om, ok := folder.Get("contents").(*codec.OMap)
	if !ok {
		return nil, false
	}
	v, ok := om.Get(name)
	if !ok {
		return nil, false
	}
	s, ok := v.(string)
	if !ok {
		return nil, false
	}
	k, err := codec.ParseKey(s)
	if err != nil {
		return nil, false
	}
	return k, true
}

// Folder reports whether item's folder pointer is set and parses it.
func Folder(item *codec.Record) (*codec.Key, bool) {
	v, ok := item.Get("folder").(string)
	if !ok || v == "" {
		return nil, false
	}
	k, err := codec.ParseKey(v)
	if err != nil {
		return nil, false
	}
	return k, true
}

// PathOf reconstructs the "/"-joined ancestor name chain for (key, rec),
// excluding the root (spec §4.6 "path(item)"). The root's own path is "".
func PathOf(ctx context.Context, s Store, key *codec.Key, rec *codec.Record) (string, error) {
	root, err := RootKey()
	if err != nil {
		return "", err
	}
	if key.Equal(root) {
		return "", nil
	}

	names := []string{name(rec)}
	cur, curKey := rec, key
	for {
		folderKey, ok := Folder(cur)
		if !ok {
			break
		}
		if folderKey.Equal(root) {
			break
		}
		parent, found, err := s.Get(ctx, folderKey)
		if err != nil {
			return "", fmt.Errorf("tree: path of %s: %w", curKey, err)
		}
		if !found {
			return "", fmt.Errorf("tree: path of %s: ancestor %s: %w", curKey, folderKey, ErrUndefined)
		}
		names = append(names, name(parent))
		cur, curKey = parent, folderKey
	}

	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	return strings.Join(names, "/"), nil
}

func name(rec *codec.Record) string {
	s, _ := rec.Get("name").(string)
	return s
}

// Children returns rec's direct children in contents order. It returns
// nil, nil for a non-folder record (one with no contents field).
func Children(ctx context.Context, s Store, rec *codec.Record) ([]Item, error) {
	var out []Item
	for _, k := range childKeys(rec) {
		child, found, err := s.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("tree: children: %w", err)
		}
		if !found {
			return nil, fmt.Errorf("tree: children: %s: %w", k, ErrUndefined)
		}
		out = append(out, Item{Key: k, Value: child})
	}
	return out, nil
}

// Descend performs a breadth-first walk of start's descendants (not
// including start itself), following contents edges folder by folder
// (spec §4.7 "descend is a breadth-first walk").
func Descend(ctx context.Context, s Store, start *codec.Record) ([]Item, error) {
	queue, err := Children(ctx, s, start)
	if err != nil {
		return nil, err
	}
	var out []Item
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		out = append(out, cur)
		kids, err := Children(ctx, s, cur.Value)
		if err != nil {
			return nil, err
		}
		queue = append(queue, kids...)
	}
	return out, nil
}

func childKeys(rec *codec.Record) []*codec.Key {
	om, ok := rec.Get("contents").(*codec.OMap)
	if !ok {
		return nil
	}
	var out []*codec.Key
	for _, name := range om.Keys() {
		v, _ := om.Get(name)
		s, ok := v.(string)
		if !ok {
			continue
		}
		k, err := codec.ParseKey(s)
		if err != nil {
			continue
		}
		out = append(out, k)
	}
	return out
}

// Ascend follows start's folder pointer to the root, returning ancestors
// nearest-first (parent, grandparent, ..., root). start itself is not
// included.
func Ascend(ctx context.Context, s Store, start *codec.Record) ([]Item, error) {
	var out []Item
	cur := start
	for {
		folderKey, ok := Folder(cur)
		if !ok {
			return out, nil
		}
		rec, found, err := s.Get(ctx, folderKey)
		if err != nil {
			return nil, fmt.Errorf("tree: ascend: %w", err)
		}
		if !found {
			return nil, fmt.Errorf("tree: ascend: %s: %w", folderKey, ErrUndefined)
		}
		out = append(out, Item{Key: folderKey, Value: rec})
		cur = rec
	}
}

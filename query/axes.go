package query

import (
	"fmt"

	"zipperdb.dev/tree"
)

// axisCandidates produces the raw, untested node sequence an axis yields
// from item, before node-test filtering and predicates are applied
// (spec §4.7 "Axes"). Tree navigation is built entirely on the content
// tree's public Resolve/Children/Descend/Ascend/Folder primitives.
func axisCandidates(env *Env, item Value, axis string) ([]Value, error) {
	it, ok := toItem(item)
	if !ok {
		return nil, fmt.Errorf("query: axis %q: context item is not a tree node (%T): %w", axis, item, ErrType)
	}

	switch axis {
	case "", "child":
		kids, err := tree.Children(env.ctx, env.store, it.Value)
		if err != nil {
			return nil, err
		}
		return itemsToValues(kids), nil

	case "self":
		return []Value{item}, nil

	case "parent":
		folderKey, ok := tree.Folder(it.Value)
		if !ok {
			return nil, nil
		}
		rec, found, err := env.store.Get(env.ctx, folderKey)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("query: axis parent: %s: %w", folderKey, tree.ErrUndefined)
		}
		return []Value{tree.Item{Key: folderKey, Value: rec}}, nil

	case "descendant":
		desc, err := tree.Descend(env.ctx, env.store, it.Value)
		if err != nil {
			return nil, err
		}
		return itemsToValues(desc), nil

	case "descendant-or-self":
		desc, err := tree.Descend(env.ctx, env.store, it.Value)
		if err != nil {
			return nil, err
		}
		return append([]Value{item}, itemsToValues(desc)...), nil

	case "ancestor":
		anc, err := tree.Ascend(env.ctx, env.store, it.Value)
		if err != nil {
			return nil, err
		}
		return itemsToValues(anc), nil

	case "ancestor-or-self":
		anc, err := tree.Ascend(env.ctx, env.store, it.Value)
		if err != nil {
			return nil, err
		}
		return append([]Value{item}, itemsToValues(anc)...), nil

	case "following-sibling", "following":
		return siblingsOf(env, it, false)

	case "preceeding-sibling", "preceeding":
		return siblingsOf(env, it, true)

	default:
		return nil, fmt.Errorf("query: unknown axis %q: %w", axis, ErrName)
	}
}

// siblingsOf returns it's siblings on one side of its position in its
// parent's contents order. backward selects preceding siblings (nearest
// first); forward (backward == false) selects following siblings. The
// "following"/"preceeding" axes are aliased to their "-sibling" forms:
// the content tree has no notion of document order deeper than one
// folder level for this engine to walk past siblings into.
func siblingsOf(env *Env, it tree.Item, backward bool) ([]Value, error) {
	folderKey, ok := tree.Folder(it.Value)
	if !ok {
		return nil, nil
	}
	folderRec, found, err := env.store.Get(env.ctx, folderKey)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("query: siblings of %s: %w", folderKey, tree.ErrUndefined)
	}
	siblings, err := tree.Children(env.ctx, env.store, folderRec)
	if err != nil {
		return nil, err
	}

	idx := -1
	for i, s := range siblings {
		if s.Key.Equal(it.Key) {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, nil
	}

	if backward {
		out := make([]Value, 0, idx)
		for i := idx - 1; i >= 0; i-- {
			out = append(out, siblings[i])
		}
		return out, nil
	}
	return itemsToValues(siblings[idx+1:]), nil
}

func itemsToValues(items []tree.Item) []Value {
	out := make([]Value, len(items))
	for i, it := range items {
		out[i] = it
	}
	return out
}

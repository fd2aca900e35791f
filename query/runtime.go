package query

import (
	"context"
	"fmt"
	"strconv"

	"zipperdb.dev/codec"
	"zipperdb.dev/tree"
)

// Value is anything a query expression can evaluate to: a tree.Item (a
// tree node), or a scalar float64/string/bool. Sequences are plain
// []Value slices, eagerly materialized rather than true lazy iterators —
// a deliberate simplification given the tree sizes this engine targets;
// spec §4.7 describes the semantics as if they were lazy.
type Value = any

// Env is the explicit evaluation context threaded through a compiled
// expression, replacing the source's dynamic "fluid" (collection, focus,
// index) cells (spec §9 "Dynamic environment"). Env is treated as
// immutable: withFocus/withVar return a modified copy rather than
// mutating the receiver, so sibling branches of a for/quantified
// expression never see each other's bindings.
type Env struct {
	ctx   context.Context
	store tree.Store
	reg   *codec.Registry
	vars  map[string]Value

	focus      Value
	collection []Value
	index      int // 1-based position of focus within collection
}

func (e *Env) withFocus(item Value, collection []Value, index int) *Env {
	cp := *e
	cp.focus = item
	cp.collection = collection
	cp.index = index
	return &cp
}

func (e *Env) withVar(name string, val Value) *Env {
	cp := *e
	cp.vars = make(map[string]Value, len(e.vars)+1)
	for k, v := range e.vars {
		cp.vars[k] = v
	}
	cp.vars[name] = val
	return &cp
}

// compiledExpr is a fully lowered expression: given an Env it produces
// the sequence of values the expression evaluates to.
type compiledExpr func(env *Env) ([]Value, error)

// stepApplier is one step of a path: given the current focus item, it
// produces the next sequence (spec §4.7 step 3: "Axis steps compose via
// a linked Step structure").
type stepApplier func(env *Env, item Value) ([]Value, error)

func toItem(v Value) (tree.Item, bool) {
	it, ok := v.(tree.Item)
	return it, ok
}

// truthy implements "empty sequence is falsy" (spec §4.7 "Semantics");
// a singleton boolean/number/string follows its own truthiness, and any
// other non-empty sequence is true.
func truthy(vals []Value) bool {
	if len(vals) == 0 {
		return false
	}
	if len(vals) == 1 {
		switch v := vals[0].(type) {
		case bool:
			return v
		case float64:
			return v != 0
		case string:
			return v != ""
		}
	}
	return true
}

func singleNumber(vals []Value) (float64, error) {
	if len(vals) != 1 {
		return 0, fmt.Errorf("query: expected a single numeric value, got %d: %w", len(vals), ErrType)
	}
	f, ok := vals[0].(float64)
	if !ok {
		return 0, fmt.Errorf("query: non-numeric operand %T: %w", vals[0], ErrType)
	}
	return f, nil
}

func equalValue(a, b Value) bool {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		return ok && av == bv
	case string:
		bv, ok := b.(string)
		return ok && av == bv
	case bool:
		bv, ok := b.(bool)
		return ok && av == bv
	case tree.Item:
		bv, ok := b.(tree.Item)
		return ok && av.Key.Equal(bv.Key)
	default:
		return false
	}
}

func lessValue(a, b Value) (bool, error) {
	switch av := a.(type) {
	case float64:
		bv, ok := b.(float64)
		if !ok {
			return false, fmt.Errorf("query: cannot compare %T and %T: %w", a, b, ErrType)
		}
		return av < bv, nil
	case string:
		bv, ok := b.(string)
		if !ok {
			return false, fmt.Errorf("query: cannot compare %T and %T: %w", a, b, ErrType)
		}
		return av < bv, nil
	default:
		return false, fmt.Errorf("query: cannot order %T: %w", a, ErrType)
	}
}

// compareOp implements both the symbolic and word-form comparison
// operators (spec §4.7 "comparisons (< <= > >= = != is, and word
// forms)"). It uses XPath's general-comparison rule: true if any pair
// drawn from the two operand sequences satisfies the operator.
func compareOp(op string, left, right []Value) (bool, error) {
	if op == "is" {
		for _, l := range left {
			for _, r := range right {
				if equalValue(l, r) {
					return true, nil
				}
			}
		}
		return false, nil
	}
	for _, l := range left {
		for _, r := range right {
			ok, err := compareOne(op, l, r)
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
		}
	}
	return false, nil
}

func compareOne(op string, a, b Value) (bool, error) {
	switch op {
	case "eq", "=":
		return equalValue(a, b), nil
	case "ne", "!=":
		return !equalValue(a, b), nil
	case "lt", "<":
		return lessValue(a, b)
	case "le", "<=":
		lt, err := lessValue(a, b)
		if err != nil {
			return false, err
		}
		return lt || equalValue(a, b), nil
	case "gt", ">":
		return lessValue(b, a)
	case "ge", ">=":
		lt, err := lessValue(b, a)
		if err != nil {
			return false, err
		}
		return lt || equalValue(a, b), nil
	default:
		return false, fmt.Errorf("query: unknown comparison %q: %w", op, ErrName)
	}
}

func valueKey(v Value) string {
	switch x := v.(type) {
	case tree.Item:
		return "item:" + x.Key.String()
	case string:
		return "str:" + x
	case float64:
		return "num:" + strconv.FormatFloat(x, 'g', -1, 64)
	case bool:
		return "bool:" + strconv.FormatBool(x)
	default:
		return fmt.Sprintf("other:%v", x)
	}
}

// dedupeValues implements the final dedup-by-identity pass (spec §4.7
// step 4), preserving first-occurrence order.
func dedupeValues(vals []Value) []Value {
	seen := make(map[string]bool, len(vals))
	out := make([]Value, 0, len(vals))
	for _, v := range vals {
		k := valueKey(v)
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, v)
	}
	return out
}

// applyPredicates filters items through each predicate in turn,
// evaluating a predicate with the focus set to the candidate item and
// the collection/index set to the candidate's position within the
// sequence being filtered — the runtime context predicates such as
// position()-based ones read (spec §4.7 step 4).
func applyPredicates(env *Env, items []Value, preds []compiledExpr) ([]Value, error) {
	for _, pred := range preds {
		var kept []Value
		for i, it := range items {
			child := env.withFocus(it, items, i+1)
			res, err := pred(child)
			if err != nil {
				return nil, err
			}
			if predicateMatches(res, i+1) {
				kept = append(kept, it)
			}
		}
		items = kept
	}
	return items, nil
}

// predicateMatches implements the XPath rule that a numeric predicate
// result is a positional test ("[2]" means position() == 2), while any
// other result is tested for truthiness.
func predicateMatches(res []Value, pos int) bool {
	if len(res) == 1 {
		if n, ok := res[0].(float64); ok {
			return int(n) == pos
		}
	}
	return truthy(res)
}

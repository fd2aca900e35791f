package query

import (
	"fmt"
	"math"
	"unicode"

	"zipperdb.dev/codec"
	"zipperdb.dev/tree"
)

// compile lowers an AST node to a callable fn(env) -> sequence (spec
// §4.7 step 3). It is the single dispatch point every node type goes
// through, including when a node appears nested inside another (e.g. a
// predicate expression, a function argument).
func compile(e Expr) (compiledExpr, error) {
	switch v := e.(type) {
	case Sequence:
		return compileSequence(v)
	case Number:
		val := v.Val
		return func(*Env) ([]Value, error) { return []Value{val}, nil }, nil
	case String:
		val := v.Val
		return func(*Env) ([]Value, error) { return []Value{val}, nil }, nil
	case ContextItem:
		return func(env *Env) ([]Value, error) {
			if env.focus == nil {
				return nil, fmt.Errorf("query: '.' has no context item: %w", ErrName)
			}
			return []Value{env.focus}, nil
		}, nil
	case VarRef:
		name := v.Name
		return func(env *Env) ([]Value, error) {
			val, ok := env.vars[name]
			if !ok {
				return nil, fmt.Errorf("query: undefined variable $%s: %w", name, ErrName)
			}
			if seq, ok := val.([]Value); ok {
				return seq, nil
			}
			return []Value{val}, nil
		}, nil
	case Paren:
		return compile(v.Inner)
	case Call:
		return compileCall(v)
	case BinOp:
		return compileBinOp(v)
	case CmpOp:
		return compileCmpOp(v)
	case UnaryOp:
		return compileUnaryOp(v)
	case And:
		return compileAnd(v)
	case Or:
		return compileOr(v)
	case For:
		return compileFor(v)
	case Quantified:
		return compileQuantified(v)
	case If:
		return compileIf(v)
	case RootStep:
		return func(env *Env) ([]Value, error) {
			key, rec, err := tree.Resolve(env.ctx, env.store, "/")
			if err != nil {
				return nil, err
			}
			return []Value{tree.Item{Key: key, Value: rec}}, nil
		}, nil
	case Step:
		return compilePathExpr(PathExpr{Steps: []Expr{v}})
	case PathExpr:
		return compilePathExpr(v)
	case FilterExpr:
		return compileFilterExpr(v)
	default:
		return nil, fmt.Errorf("query: unsupported expression node %T: %w", e, ErrSyntax)
	}
}

func compileSequence(v Sequence) (compiledExpr, error) {
	fns := make([]compiledExpr, len(v.Items))
	for i, it := range v.Items {
		f, err := compile(it)
		if err != nil {
			return nil, err
		}
		fns[i] = f
	}
	return func(env *Env) ([]Value, error) {
		var out []Value
		for _, f := range fns {
			r, err := f(env)
			if err != nil {
				return nil, err
			}
			out = append(out, r...)
		}
		return out, nil
	}, nil
}

func compileFilterExpr(v FilterExpr) (compiledExpr, error) {
	primary, err := compile(v.Primary)
	if err != nil {
		return nil, err
	}
	preds, err := compilePredicates(v.Predicates)
	if err != nil {
		return nil, err
	}
	return func(env *Env) ([]Value, error) {
		items, err := primary(env)
		if err != nil {
			return nil, err
		}
		return applyPredicates(env, items, preds)
	}, nil
}

func compilePredicates(preds []Expr) ([]compiledExpr, error) {
	fns := make([]compiledExpr, len(preds))
	for i, p := range preds {
		f, err := compile(p)
		if err != nil {
			return nil, err
		}
		fns[i] = f
	}
	return fns, nil
}

// compilePathExpr assembles a chain of stepAppliers and threads the
// current focus item through each in turn, flattening the per-item
// results into the next step's working sequence (spec §4.7 step 4).
func compilePathExpr(v PathExpr) (compiledExpr, error) {
	steps := v.Steps
	if v.LeadingDouble {
		steps = append([]Expr{Step{Axis: "descendant-or-self", Test: NodeTest{Any: true}}}, steps...)
	}

	// A Step with DoubleSlash set carries its own preceding "//" (spec
	// §4.7's descendant-or-self::node()/ shorthand on a non-leading
	// segment); splice the equivalent synthetic step in ahead of it so
	// the applier chain below never has to special-case it.
	var expanded []Expr
	for _, s := range steps {
		if step, ok := s.(Step); ok && step.DoubleSlash {
			expanded = append(expanded, Step{Axis: "descendant-or-self", Test: NodeTest{Any: true}})
			step.DoubleSlash = false
			expanded = append(expanded, step)
			continue
		}
		expanded = append(expanded, s)
	}
	steps = expanded

	appliers := make([]stepApplier, len(steps))
	for i, s := range steps {
		a, err := compileStepApplier(s)
		if err != nil {
			return nil, err
		}
		appliers[i] = a
	}

	absolute := v.Absolute
	return func(env *Env) ([]Value, error) {
		var items []Value
		if absolute {
			key, rec, err := tree.Resolve(env.ctx, env.store, "/")
			if err != nil {
				return nil, err
			}
			items = []Value{tree.Item{Key: key, Value: rec}}
		} else {
			if env.focus == nil {
				return nil, fmt.Errorf("query: relative path has no context item: %w", ErrName)
			}
			items = []Value{env.focus}
		}

		for _, apply := range appliers {
			var next []Value
			for i, it := range items {
				child := env.withFocus(it, items, i+1)
				r, err := apply(child, it)
				if err != nil {
					return nil, err
				}
				next = append(next, r...)
			}
			items = next
		}
		return items, nil
	}, nil
}

func compileStepApplier(e Expr) (stepApplier, error) {
	if s, ok := e.(Step); ok {
		return compileAxisStep(s)
	}
	compiled, err := compile(e)
	if err != nil {
		return nil, err
	}
	return func(env *Env, item Value) ([]Value, error) {
		child := env.withFocus(item, []Value{item}, 1)
		return compiled(child)
	}, nil
}

func compileAxisStep(s Step) (stepApplier, error) {
	preds, err := compilePredicates(s.Predicates)
	if err != nil {
		return nil, err
	}

	if s.Axis == "attribute" {
		local := s.Test.Local
		return func(env *Env, item Value) ([]Value, error) {
			it, ok := toItem(item)
			if !ok {
				return nil, fmt.Errorf("query: axis attribute: context item is not a tree node: %w", ErrType)
			}
			if local == "*" || s.Test.Any {
				return nil, fmt.Errorf("query: attribute::* is not supported: %w", ErrName)
			}
			if !it.Value.Has(local) {
				return applyPredicates(env, nil, preds)
			}
			return applyPredicates(env, []Value{it.Value.Get(local)}, preds)
		}, nil
	}

	test := s.Test
	axis := s.Axis
	return func(env *Env, item Value) ([]Value, error) {
		raw, err := axisCandidates(env, item, axis)
		if err != nil {
			return nil, err
		}
		var filtered []Value
		for _, c := range raw {
			ok, err := nodeTestMatches(env.reg, c, test)
			if err != nil {
				return nil, err
			}
			if ok {
				filtered = append(filtered, c)
			}
		}
		return applyPredicates(env, filtered, preds)
	}, nil
}

// nodeTestMatches implements "Name tests whose identifier starts with an
// uppercase letter are resolved via the type registry (kind tests);
// otherwise they match by attribute name" (spec §4.7 step 3), applied
// here to the node's "name" field per the content tree's conventions.
func nodeTestMatches(reg *codec.Registry, candidate Value, test NodeTest) (bool, error) {
	if test.Any || (test.NS == "*" && test.Local == "*") {
		return true, nil
	}
	it, ok := toItem(candidate)
	if !ok {
		return false, nil
	}
	if test.Local == "*" {
		return true, nil
	}
	if len(test.Local) > 0 && unicode.IsUpper(rune(test.Local[0])) {
		return reg.IsSubtype(it.Value.TypeName(), codec.NewTypeName(test.Local)), nil
	}
	name, _ := it.Value.Get("name").(string)
	return name == test.Local, nil
}

func compileBinOp(v BinOp) (compiledExpr, error) {
	left, err := compile(v.Left)
	if err != nil {
		return nil, err
	}
	right, err := compile(v.Right)
	if err != nil {
		return nil, err
	}
	op := v.Op

	switch op {
	case "union", "intersect", "except":
		return func(env *Env) ([]Value, error) {
			ls, err := left(env)
			if err != nil {
				return nil, err
			}
			rs, err := right(env)
			if err != nil {
				return nil, err
			}
			switch op {
			case "union":
				return dedupeValues(append(append([]Value{}, ls...), rs...)), nil
			case "intersect":
				var out []Value
				for _, l := range ls {
					for _, r := range rs {
						if equalValue(l, r) {
							out = append(out, l)
							break
						}
					}
				}
				return dedupeValues(out), nil
			default: // except
				var out []Value
				for _, l := range ls {
					found := false
					for _, r := range rs {
						if equalValue(l, r) {
							found = true
							break
						}
					}
					if !found {
						out = append(out, l)
					}
				}
				return out, nil
			}
		}, nil

	case "to":
		return func(env *Env) ([]Value, error) {
			lv, err := evalNumber(env, left)
			if err != nil {
				return nil, err
			}
			rv, err := evalNumber(env, right)
			if err != nil {
				return nil, err
			}
			lo, hi := int(lv), int(rv)
			var out []Value
			for i := lo; i <= hi; i++ {
				out = append(out, float64(i))
			}
			return out, nil
		}, nil

	default: // + - * div mod
		return func(env *Env) ([]Value, error) {
			lv, err := evalNumber(env, left)
			if err != nil {
				return nil, err
			}
			rv, err := evalNumber(env, right)
			if err != nil {
				return nil, err
			}
			switch op {
			case "+":
				return []Value{lv + rv}, nil
			case "-":
				return []Value{lv - rv}, nil
			case "*":
				return []Value{lv * rv}, nil
			case "div":
				if rv == 0 {
					return nil, fmt.Errorf("query: division by zero: %w", ErrType)
				}
				return []Value{lv / rv}, nil
			case "mod":
				if rv == 0 {
					return nil, fmt.Errorf("query: division by zero: %w", ErrType)
				}
				return []Value{math.Mod(lv, rv)}, nil
			default:
				return nil, fmt.Errorf("query: unknown operator %q: %w", op, ErrSyntax)
			}
		}, nil
	}
}

func evalNumber(env *Env, fn compiledExpr) (float64, error) {
	vs, err := fn(env)
	if err != nil {
		return 0, err
	}
	return singleNumber(vs)
}

func compileCmpOp(v CmpOp) (compiledExpr, error) {
	left, err := compile(v.Left)
	if err != nil {
		return nil, err
	}
	right, err := compile(v.Right)
	if err != nil {
		return nil, err
	}
	op := v.Op
	return func(env *Env) ([]Value, error) {
		ls, err := left(env)
		if err != nil {
			return nil, err
		}
		rs, err := right(env)
		if err != nil {
			return nil, err
		}
		ok, err := compareOp(op, ls, rs)
		if err != nil {
			return nil, err
		}
		return []Value{ok}, nil
	}, nil
}

func compileUnaryOp(v UnaryOp) (compiledExpr, error) {
	x, err := compile(v.X)
	if err != nil {
		return nil, err
	}
	neg := v.Op == "-"
	return func(env *Env) ([]Value, error) {
		f, err := evalNumber(env, x)
		if err != nil {
			return nil, err
		}
		if neg {
			f = -f
		}
		return []Value{f}, nil
	}, nil
}

func compileAnd(v And) (compiledExpr, error) {
	left, err := compile(v.Left)
	if err != nil {
		return nil, err
	}
	right, err := compile(v.Right)
	if err != nil {
		return nil, err
	}
	return func(env *Env) ([]Value, error) {
		l, err := left(env)
		if err != nil {
			return nil, err
		}
		if !truthy(l) {
			return []Value{false}, nil
		}
		r, err := right(env)
		if err != nil {
			return nil, err
		}
		return []Value{truthy(r)}, nil
	}, nil
}

func compileOr(v Or) (compiledExpr, error) {
	left, err := compile(v.Left)
	if err != nil {
		return nil, err
	}
	right, err := compile(v.Right)
	if err != nil {
		return nil, err
	}
	return func(env *Env) ([]Value, error) {
		l, err := left(env)
		if err != nil {
			return nil, err
		}
		if truthy(l) {
			return []Value{true}, nil
		}
		r, err := right(env)
		if err != nil {
			return nil, err
		}
		return []Value{truthy(r)}, nil
	}, nil
}

func compileFor(v For) (compiledExpr, error) {
	in, err := compile(v.In)
	if err != nil {
		return nil, err
	}
	ret, err := compile(v.Return)
	if err != nil {
		return nil, err
	}
	name := v.Var
	return func(env *Env) ([]Value, error) {
		items, err := in(env)
		if err != nil {
			return nil, err
		}
		var out []Value
		for _, it := range items {
			r, err := ret(env.withVar(name, it))
			if err != nil {
				return nil, err
			}
			out = append(out, r...)
		}
		return out, nil
	}, nil
}

func compileQuantified(v Quantified) (compiledExpr, error) {
	in, err := compile(v.In)
	if err != nil {
		return nil, err
	}
	sat, err := compile(v.Satisfies)
	if err != nil {
		return nil, err
	}
	name := v.Var
	every := v.Kind == "every"
	return func(env *Env) ([]Value, error) {
		items, err := in(env)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			r, err := sat(env.withVar(name, it))
			if err != nil {
				return nil, err
			}
			ok := truthy(r)
			if !every && ok {
				return []Value{true}, nil
			}
			if every && !ok {
				return []Value{false}, nil
			}
		}
		return []Value{every}, nil
	}, nil
}

func compileIf(v If) (compiledExpr, error) {
	cond, err := compile(v.Cond)
	if err != nil {
		return nil, err
	}
	then, err := compile(v.Then)
	if err != nil {
		return nil, err
	}
	els, err := compile(v.Else)
	if err != nil {
		return nil, err
	}
	return func(env *Env) ([]Value, error) {
		c, err := cond(env)
		if err != nil {
			return nil, err
		}
		if truthy(c) {
			return then(env)
		}
		return els(env)
	}, nil
}

// builtins is the function-call table (spec §9 names this ops.py's
// some/every/root/last/unique; some/every are grammar-level here, so
// only the sequence/node helpers remain as callable functions).
var builtins = map[string]func(env *Env, args [][]Value) ([]Value, error){
	"last": func(env *Env, _ [][]Value) ([]Value, error) {
		return []Value{float64(len(env.collection))}, nil
	},
	"position": func(env *Env, _ [][]Value) ([]Value, error) {
		return []Value{float64(env.index)}, nil
	},
	"count": func(_ *Env, args [][]Value) ([]Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("query: count() takes 1 argument: %w", ErrName)
		}
		return []Value{float64(len(args[0]))}, nil
	},
	"not": func(_ *Env, args [][]Value) ([]Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("query: not() takes 1 argument: %w", ErrName)
		}
		return []Value{!truthy(args[0])}, nil
	},
	"unique": func(_ *Env, args [][]Value) ([]Value, error) {
		if len(args) != 1 {
			return nil, fmt.Errorf("query: unique() takes 1 argument: %w", ErrName)
		}
		return dedupeValues(args[0]), nil
	},
	"root": func(env *Env, _ [][]Value) ([]Value, error) {
		key, rec, err := tree.Resolve(env.ctx, env.store, "/")
		if err != nil {
			return nil, err
		}
		return []Value{tree.Item{Key: key, Value: rec}}, nil
	},
	"name": func(env *Env, args [][]Value) ([]Value, error) {
		item := env.focus
		if len(args) == 1 {
			if len(args[0]) == 0 {
				return []Value{""}, nil
			}
			item = args[0][0]
		}
		it, ok := toItem(item)
		if !ok {
			return []Value{""}, nil
		}
		n, _ := it.Value.Get("name").(string)
		return []Value{n}, nil
	},
	"kind": func(env *Env, args [][]Value) ([]Value, error) {
		item := env.focus
		if len(args) == 1 {
			if len(args[0]) == 0 {
				return []Value{""}, nil
			}
			item = args[0][0]
		}
		it, ok := toItem(item)
		if !ok {
			return []Value{""}, nil
		}
		return []Value{it.Value.TypeName().String()}, nil
	},
}

func compileCall(v Call) (compiledExpr, error) {
	argFns := make([]compiledExpr, len(v.Args))
	for i, a := range v.Args {
		f, err := compile(a)
		if err != nil {
			return nil, err
		}
		argFns[i] = f
	}
	name := v.Name
	return func(env *Env) ([]Value, error) {
		fn, ok := builtins[name]
		if !ok {
			return nil, fmt.Errorf("query: undefined function %s(): %w", name, ErrName)
		}
		args := make([][]Value, len(argFns))
		for i, f := range argFns {
			r, err := f(env)
			if err != nil {
				return nil, err
			}
			args[i] = r
		}
		return fn(env, args)
	}, nil
}

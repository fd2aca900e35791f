package query

import (
	"context"

	"zipperdb.dev/codec"
	"zipperdb.dev/tree"
)

// Query is a parsed and compiled path query, ready to run against any
// number of stores sharing the same registry.
type Query struct {
	source   string
	compiled compiledExpr
}

// Compile parses and compiles src (spec §4.7 "Lexer"/"Parser"/
// "Compiler"). The returned Query is immutable and safe for concurrent
// use across goroutines, since compiling never closes over mutable
// state beyond the Env supplied at Run time.
func Compile(src string) (*Query, error) {
	expr, err := Parse(src)
	if err != nil {
		return nil, err
	}
	fn, err := compile(expr)
	if err != nil {
		return nil, err
	}
	return &Query{source: src, compiled: fn}, nil
}

// String returns the original query text.
func (q *Query) String() string { return q.source }

// Run evaluates the query against store and registry, with the content
// tree root as the initial context item (spec §4.7 "Runtime"). The
// result is deduplicated by identity.
func (q *Query) Run(ctx context.Context, s tree.Store, reg *codec.Registry) ([]Value, error) {
	env := &Env{ctx: ctx, store: s, reg: reg, vars: make(map[string]Value)}

	rootKey, rootRec, err := tree.Resolve(ctx, s, "/")
	if err == nil {
		root := tree.Item{Key: rootKey, Value: rootRec}
		env.focus = root
		env.collection = []Value{root}
		env.index = 1
	}

	vals, err := q.compiled(env)
	if err != nil {
		return nil, err
	}
	return dedupeValues(vals), nil
}

// Names extracts the "name" field of every tree.Item in results, in
// order, skipping non-node values — a convenience for the common case
// of listing the names a path query selected (spec E6's ".names()").
func Names(results []Value) []string {
	out := make([]string, 0, len(results))
	for _, v := range results {
		if it, ok := toItem(v); ok {
			n, _ := it.Value.Get("name").(string)
			out = append(out, n)
		}
	}
	return out
}

// Eval is a one-shot convenience combining Compile and Run.
func Eval(ctx context.Context, s tree.Store, reg *codec.Registry, src string) ([]Value, error) {
	q, err := Compile(src)
	if err != nil {
		return nil, err
	}
	return q.Run(ctx, s, reg)
}

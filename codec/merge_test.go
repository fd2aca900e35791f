package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"zipperdb.dev/codec"
)

func TestMergeOrderedAWinsTies(t *testing.T) {
	a := []codec.Pair[string]{{Key: "b", Value: "a-b"}, {Key: "d", Value: "a-d"}}
	b := []codec.Pair[string]{{Key: "a", Value: "b-a"}, {Key: "b", Value: "b-b"}, {Key: "c", Value: "b-c"}}

	got := codec.MergeOrdered(a, b)

	want := []codec.Pair[string]{
		{Key: "a", Value: "b-a"},
		{Key: "b", Value: "a-b"}, // present in both: a wins
		{Key: "c", Value: "b-c"},
		{Key: "d", Value: "a-d"},
	}
	assert.Equal(t, want, got)
}

func TestMergeOrderedEmptySides(t *testing.T) {
	a := []codec.Pair[int]{{Key: "x", Value: 1}}
	assert.Equal(t, a, codec.MergeOrdered(a, nil))
	assert.Equal(t, a, codec.MergeOrdered(nil, a))
	assert.Empty(t, codec.MergeOrdered[int](nil, nil))
}

func TestOMapPreservesInsertionOrderAcrossUpdates(t *testing.T) {
	om := codec.NewOMap()
	om.Set("z", 1)
	om.Set("a", 2)
	om.Set("z", 3) // update, should not move

	assert.Equal(t, []string{"z", "a"}, om.Keys())
	v, ok := om.Get("z")
	assert.True(t, ok)
	assert.Equal(t, 3, v)

	om.Delete("z")
	assert.Equal(t, []string{"a"}, om.Keys())
	assert.Equal(t, 1, om.Len())
}

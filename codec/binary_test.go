package codec_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/codec"
)

func TestBinaryRoundTripRecord(t *testing.T) {
	reg := newTestRegistry(t)
	bc := codec.NewBinaryCodec(reg)

	schema, err := reg.Lookup(codec.NewTypeName("M.Folder"))
	require.NoError(t, err)

	contents := codec.NewOMap()
	contents.Set("b", "key-b")
	contents.Set("a", "key-a")

	rec := codec.NewRecord(schema)
	rec.Set("name", "home")
	rec.Set("title", "Home")
	rec.Set("folder", nil)
	rec.Set("default_name", "index")
	rec.Set("description", "root folder")
	rec.Set("contents", contents)

	data, err := bc.MarshalBinary(rec)
	require.NoError(t, err)

	var out *codec.Record
	require.NoError(t, bc.UnmarshalBinary(data, &out))

	assert.Equal(t, "home", out.Get("name"))
	assert.Equal(t, "Home", out.Get("title"))
	assert.Nil(t, out.Get("folder"))
	assert.Equal(t, "index", out.Get("default_name"))
	assert.Equal(t, "root folder", out.Get("description"))

	gotContents, ok := out.Get("contents").(*codec.OMap)
	require.True(t, ok)
	// insertion order preserved, not sorted
	assert.Equal(t, []string{"b", "a"}, gotContents.Keys())
}

func TestBinarySetSortsAndDedups(t *testing.T) {
	reg := codec.NewRegistry()
	bc := codec.NewBinaryCodec(reg)
	schema := codec.NewSet(codec.String)

	data, err := bc.EncodeValue(schema, []any{"banana", "apple", "apple", "cherry"})
	require.NoError(t, err)

	decoded, err := bc.DecodeValue(schema, bytes.NewReader(data))
	require.NoError(t, err)

	assert.Equal(t, []any{"apple", "banana", "cherry"}, decoded)
}

func TestBinaryUnionRoundTrip(t *testing.T) {
	reg := codec.NewRegistry()
	bc := codec.NewBinaryCodec(reg)
	schema := codec.NewUnion(codec.Null, codec.String)

	data, err := bc.EncodeValue(schema, "hello")
	require.NoError(t, err)
	decoded, err := bc.DecodeValue(schema, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, "hello", decoded)

	data, err = bc.EncodeValue(schema, nil)
	require.NoError(t, err)
	decoded, err = bc.DecodeValue(schema, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestBinaryArrayRoundTripEmpty(t *testing.T) {
	reg := codec.NewRegistry()
	bc := codec.NewBinaryCodec(reg)
	schema := codec.NewArray(codec.Int64)

	data, err := bc.EncodeValue(schema, []any{})
	require.NoError(t, err)
	decoded, err := bc.DecodeValue(schema, bytes.NewReader(data))
	require.NoError(t, err)
	assert.Nil(t, decoded)
}

func TestBinaryUnmarshalRejectsWrongOutType(t *testing.T) {
	reg := codec.NewRegistry()
	bc := codec.NewBinaryCodec(reg)
	var out codec.Record
	err := bc.UnmarshalBinary([]byte{}, &out)
	assert.ErrorIs(t, err, codec.ErrType)
}

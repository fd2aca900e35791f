package codec_test

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/codec"
)

func TestKeyInterningByStringForm(t *testing.T) {
	kind := codec.NewTypeName("M.Page")
	k1, err := codec.NewKey(kind, "home")
	require.NoError(t, err)
	k2, err := codec.NewKey(kind, "home")
	require.NoError(t, err)
	assert.Same(t, k1, k2)

	parsed, err := codec.ParseKey(k1.String())
	require.NoError(t, err)
	assert.Same(t, k1, parsed)
}

func TestKeyParseRoundTripUUID(t *testing.T) {
	id := uuid.New()
	kind := codec.NewTypeName("M.Site")
	k1, err := codec.NewKey(kind, id)
	require.NoError(t, err)

	parsed, err := codec.ParseKey(k1.String())
	require.NoError(t, err)
	assert.True(t, k1.Equal(parsed))
	assert.Equal(t, id, parsed.ID)
	assert.Equal(t, kind.Qualified(), parsed.Kind.Qualified())
}

func TestKeyRejectsBadIDType(t *testing.T) {
	_, err := codec.NewKey(codec.NewTypeName("M.Page"), 42)
	assert.ErrorIs(t, err, codec.ErrType)
}

func TestKeyLessIsLexicographicOnStringForm(t *testing.T) {
	kind := codec.NewTypeName("M.Page")
	a, err := codec.NewKey(kind, "aaa")
	require.NoError(t, err)
	b, err := codec.NewKey(kind, "zzz")
	require.NoError(t, err)
	if a.String() < b.String() {
		assert.True(t, a.Less(b))
	} else {
		assert.True(t, b.Less(a))
	}
}

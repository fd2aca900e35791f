package codec_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/codec"
)

const itemSchemaJSON = `{
  "type": "record",
  "name": "M.Item",
  "fields": [
    {"name": "name", "type": "string"},
    {"name": "title", "type": "string"},
    {"name": "folder", "type": ["null", "string"]},
    {"name": "description", "type": "string"}
  ]
}`

const folderSchemaJSON = `{
  "type": "record",
  "name": "M.Folder",
  "base": "M.Item",
  "fields": [
    {"name": "default_name", "type": "string"},
    {"name": "description", "type": "string"},
    {"name": "contents", "type": {"type": "omap", "values": "string"}}
  ]
}`

func newTestRegistry(t *testing.T) *codec.Registry {
	t.Helper()
	reg := codec.NewRegistry()
	_, err := reg.RegisterJSON([]byte(itemSchemaJSON))
	require.NoError(t, err)
	_, err = reg.RegisterJSON([]byte(folderSchemaJSON))
	require.NoError(t, err)
	return reg
}

func TestRegistryFieldInheritanceOrder(t *testing.T) {
	reg := newTestRegistry(t)
	folder, err := reg.Lookup(codec.NewTypeName("M.Folder"))
	require.NoError(t, err)

	// Per invariant 7: base fields first (inherited order), excluding any
	// name the subclass redeclares ("description" here), then the
	// subclass's own fields in declaration order.
	assert.Equal(t, []string{"name", "title", "folder", "default_name", "description", "contents"}, folder.FieldNames())
}

func TestRegistryIsSubtype(t *testing.T) {
	reg := newTestRegistry(t)
	folder := codec.NewTypeName("M.Folder")
	item := codec.NewTypeName("M.Item")

	assert.True(t, reg.IsSubtype(folder, item))
	assert.True(t, reg.IsSubtype(folder, folder))
	assert.False(t, reg.IsSubtype(item, folder))
}

func TestRegistryDuplicateRejected(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.RegisterJSON([]byte(itemSchemaJSON))
	assert.ErrorIs(t, err, codec.ErrSchema)
}

func TestRegistryUnknownNameFails(t *testing.T) {
	reg := codec.NewRegistry()
	_, err := reg.Lookup(codec.NewTypeName("M.Nonexistent"))
	assert.ErrorIs(t, err, codec.ErrName)
}

func TestTypeNameDefaultNamespaceElided(t *testing.T) {
	tn := codec.NewTypeName("Folder")
	assert.Equal(t, "Folder", tn.String())
	assert.Equal(t, "M.Folder", tn.Qualified())

	tn2 := codec.NewTypeName("M.Folder")
	assert.Equal(t, tn.Qualified(), tn2.Qualified())
}

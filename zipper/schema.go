package zipper

import "zipperdb.dev/codec"

// Schema names for the repository entities (spec §3 "Repository
// entities"). These are registered once per Registry by RegisterSchemas;
// callers share one Registry across codec, objectstore, zipper, vault and
// tree so that M.Commit/M.Checkpoint/M.branch objects are addressable the
// same way as any content-tree record.
var (
	staticRefName  = codec.NewTypeName("M.StaticRef")
	manifestEntry  = codec.NewTypeName("M.ManifestEntry")
	changesetEntry = codec.NewTypeName("M.ChangesetEntry")
	manifestName   = codec.NewTypeName("M.Manifest")
	changesetName  = codec.NewTypeName("M.Changeset")
	commitName     = codec.NewTypeName("M.Commit")
	checkpointName = codec.NewTypeName("M.Checkpoint")
)

// RegisterSchemas declares the zipper's repository-entity schemas into
// reg. It is an error to call this twice on the same registry.
func RegisterSchemas(reg *codec.Registry) error {
	staticRef := &codec.Schema{
		Kind: codec.KindRecord,
		Name: staticRefName,
		Fields: []codec.Field{
			{Name: "address", Type: codec.String},
		},
	}
	if err := reg.Register(staticRefName, staticRef); err != nil {
		return err
	}

	manifestEntrySchema := &codec.Schema{
		Kind: codec.KindRecord,
		Name: manifestEntry,
		Fields: []codec.Field{
			{Name: "key", Type: codec.String},
			{Name: "ref", Type: staticRef},
		},
	}
	if err := reg.Register(manifestEntry, manifestEntrySchema); err != nil {
		return err
	}

	changesetEntrySchema := &codec.Schema{
		Kind: codec.KindRecord,
		Name: changesetEntry,
		Fields: []codec.Field{
			{Name: "key", Type: codec.String},
			{Name: "ref", Type: staticRef},
		},
	}
	if err := reg.Register(changesetEntry, changesetEntrySchema); err != nil {
		return err
	}

	manifestSchema := &codec.Schema{
		Kind: codec.KindRecord,
		Name: manifestName,
		Fields: []codec.Field{
			{Name: "entries", Type: codec.NewArray(manifestEntrySchema)},
		},
	}
	if err := reg.Register(manifestName, manifestSchema); err != nil {
		return err
	}

	changesetSchema := &codec.Schema{
		Kind: codec.KindRecord,
		Name: changesetName,
		Fields: []codec.Field{
			{Name: "entries", Type: codec.NewArray(changesetEntrySchema)},
		},
	}
	if err := reg.Register(changesetName, changesetSchema); err != nil {
		return err
	}

	commitSchema := &codec.Schema{
		Kind: codec.KindRecord,
		Name: commitName,
		Fields: []codec.Field{
			{Name: "author", Type: codec.String},
			{Name: "when", Type: codec.Float64},
			{Name: "message", Type: codec.String},
			{Name: "changes", Type: staticRef},
			{Name: "prev", Type: codec.NewArray(staticRef)},
		},
	}
	if err := reg.Register(commitName, commitSchema); err != nil {
		return err
	}

	checkpointSchema := &codec.Schema{
		Kind: codec.KindRecord,
		Name: checkpointName,
		Fields: []codec.Field{
			{Name: "author", Type: codec.String},
			{Name: "when", Type: codec.Float64},
			{Name: "message", Type: codec.String},
			{Name: "changes", Type: staticRef},
			{Name: "commits", Type: codec.NewArray(staticRef)},
			{Name: "prev", Type: codec.NewArray(staticRef)},
		},
	}
	return reg.Register(checkpointName, checkpointSchema)
}

// StaticRefSchema returns the registered M.StaticRef record schema, for
// packages that embed a StaticRef field in their own schemas.
func StaticRefSchema(reg *codec.Registry) (*codec.Schema, error) {
	return reg.Lookup(staticRefName)
}

package vault

import (
	"zipperdb.dev/codec"
)

var (
	branchConfigName = codec.NewTypeName("M.BranchConfig")
	branchName       = codec.NewTypeName("M.branch")
)

// RegisterSchemas declares the vault's branch-descriptor schemas into reg.
// It requires zipper.RegisterSchemas to have already run against the
// same registry, since the shared StaticStore and Zipper machinery the
// Repository builds on expect M.Commit/M.Checkpoint to be registered.
func RegisterSchemas(reg *codec.Registry) error {
	branchConfigSchema := &codec.Schema{
		Kind: codec.KindRecord,
		Name: branchConfigName,
		Fields: []codec.Field{
			{Name: "author", Type: codec.String},
			{Name: "config", Type: codec.NewMap(codec.String)},
		},
	}
	if err := reg.Register(branchConfigName, branchConfigSchema); err != nil {
		return err
	}

	branchSchema := &codec.Schema{
		Kind: codec.KindRecord,
		Name: branchName,
		Fields: []codec.Field{
			{Name: "name", Type: codec.String},
			{Name: "config", Type: branchConfigSchema},
		},
	}
	return reg.Register(branchName, branchSchema)
}

package config

import (
	"fmt"
	"io"

	"gopkg.in/yaml.v3"

	"zipperdb.dev/vault"
)

// branchDescriptor is the on-disk form of a vault.BranchInfo: a plain
// struct with yaml tags, kept separate from vault.BranchInfo so the
// wire/file format can evolve without touching the repository's runtime
// type.
type branchDescriptor struct {
	Name   string            `yaml:"name"`
	Config map[string]string `yaml:"config,omitempty"`
}

// ExportBranches writes branches as a YAML document, one list entry per
// branch, for operators inspecting or diffing a repository's branch set
// outside the process.
func ExportBranches(w io.Writer, branches []vault.BranchInfo) error {
	out := make([]branchDescriptor, len(branches))
	for i, b := range branches {
		out[i] = branchDescriptor{Name: b.Name, Config: b.Config}
	}
	enc := yaml.NewEncoder(w)
	defer enc.Close()
	if err := enc.Encode(out); err != nil {
		return fmt.Errorf("config: export branches: %w", err)
	}
	return nil
}

// ImportBranches reads a YAML document produced by ExportBranches back
// into BranchInfo values. It does not create the branches; callers pass
// the result to Repository.Branch/CreateBranch themselves.
func ImportBranches(r io.Reader) ([]vault.BranchInfo, error) {
	var descs []branchDescriptor
	if err := yaml.NewDecoder(r).Decode(&descs); err != nil {
		return nil, fmt.Errorf("config: import branches: %w", err)
	}
	out := make([]vault.BranchInfo, len(descs))
	for i, d := range descs {
		out[i] = vault.BranchInfo{Name: d.Name, Config: d.Config}
	}
	return out, nil
}

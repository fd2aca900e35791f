package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"zipperdb.dev/config"
	"zipperdb.dev/vault"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "memory", cfg.Store.Kind)
	assert.Equal(t, "objects/", cfg.Objects.Prefix)
	assert.Equal(t, 1000, cfg.Objects.CacheSize)
	assert.Equal(t, "main", cfg.Repository.DefaultBranch)
	assert.Equal(t, 10, cfg.Credential.BcryptCost)
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zipperdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: fsdir\n  path: /var/lib/zipperdb\n"), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fsdir", cfg.Store.Kind)
	assert.Equal(t, "/var/lib/zipperdb", cfg.Store.Path)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zipperdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: fsdir\n  path: /var/lib/zipperdb\n"), 0o644))

	t.Setenv("ZIPPERDB_STORE_KIND", "bolt")
	t.Setenv("ZIPPERDB_STORE_PATH", "/tmp/db.bolt")

	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, "bolt", cfg.Store.Kind)
	assert.Equal(t, "/tmp/db.bolt", cfg.Store.Path)
}

func TestLoadRejectsUnknownStoreKind(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zipperdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: magic\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestLoadRequiresPathForFsDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zipperdb.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store:\n  kind: fsdir\n"), 0o644))

	_, err := config.Load(path)
	assert.Error(t, err)
}

func TestExportImportBranchesRoundTrip(t *testing.T) {
	branches := []vault.BranchInfo{
		{Name: "main", Config: map[string]string{"protected": "true"}},
		{Name: "staging"},
	}

	var buf bytes.Buffer
	require.NoError(t, config.ExportBranches(&buf, branches))

	got, err := config.ImportBranches(&buf)
	require.NoError(t, err)
	assert.Equal(t, branches, got)
}

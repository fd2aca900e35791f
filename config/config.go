// Package config loads the settings that select and parameterize a
// zipperdb deployment: which store.BackingStore a vault.Repository opens,
// the objectstore cache bound, and default branch/commit metadata.
//
// Loading follows the teacher's layered precedence (flags are the
// caller's concern, not this package's): environment variables override
// a YAML config file, which overrides built-in defaults. The file layer
// and environment layer are both handled by viper, mirroring the
// teacher's cli.initConfig; validation is a adapted copy of the
// teacher's config.Validator.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/spf13/viper"
)

// StoreConfig selects and parameterizes a store.BackingStore variant.
type StoreConfig struct {
	// Kind is one of "memory", "fsdir", "bolt", "redis", "postgres".
	Kind string
	// Path is the filesystem path for "fsdir" and "bolt".
	Path string
	// URL is the connection URL for "redis".
	URL string
	// DSN is the connection string for "postgres".
	DSN string
}

// ObjectStoreConfig parameterizes the L2 content-addressed object cache.
type ObjectStoreConfig struct {
	Prefix    string
	CacheSize int
}

// RepositoryConfig holds branch defaults for a vault.Repository.
type RepositoryConfig struct {
	DefaultBranch string
}

// CredentialConfig parameterizes the bcrypt cost used by the credential
// package.
type CredentialConfig struct {
	BcryptCost int
}

// MetricsConfig parameterizes the metrics package's namespace.
type MetricsConfig struct {
	Namespace string
}

// Config aggregates every ambient and domain setting a zipperdb process
// needs at startup.
type Config struct {
	Store      StoreConfig
	Objects    ObjectStoreConfig
	Repository RepositoryConfig
	Credential CredentialConfig
	Metrics    MetricsConfig
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("store.kind", "memory")
	v.SetDefault("store.path", "")
	v.SetDefault("store.url", "")
	v.SetDefault("store.dsn", "")
	v.SetDefault("objects.prefix", "objects/")
	v.SetDefault("objects.cache_size", 1000)
	v.SetDefault("repository.default_branch", "main")
	v.SetDefault("credential.bcrypt_cost", 10)
	v.SetDefault("metrics.namespace", "zipperdb")
}

// Load reads configuration from, in ascending precedence: built-in
// defaults, an optional YAML file, and ZIPPERDB_-prefixed environment
// variables (ZIPPERDB_STORE_KIND overrides store.kind, etc). path may be
// empty, in which case ./zipperdb.yaml is searched for and silently
// skipped if absent; an explicit path that does not exist is skipped the
// same way.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigType("yaml")
		v.SetConfigName("zipperdb")
	}

	v.SetEnvPrefix("ZIPPERDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
	}

	cfg := &Config{
		Store: StoreConfig{
			Kind: v.GetString("store.kind"),
			Path: v.GetString("store.path"),
			URL:  v.GetString("store.url"),
			DSN:  v.GetString("store.dsn"),
		},
		Objects: ObjectStoreConfig{
			Prefix:    v.GetString("objects.prefix"),
			CacheSize: v.GetInt("objects.cache_size"),
		},
		Repository: RepositoryConfig{
			DefaultBranch: v.GetString("repository.default_branch"),
		},
		Credential: CredentialConfig{
			BcryptCost: v.GetInt("credential.bcrypt_cost"),
		},
		Metrics: MetricsConfig{
			Namespace: v.GetString("metrics.namespace"),
		},
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

var storeKinds = []string{"memory", "fsdir", "bolt", "redis", "postgres"}

func validate(cfg *Config) error {
	val := NewValidator()
	val.RequireOneOf("store.kind", cfg.Store.Kind, storeKinds)

	switch cfg.Store.Kind {
	case "fsdir", "bolt":
		val.RequireString("store.path", cfg.Store.Path)
	case "redis":
		val.RequireString("store.url", cfg.Store.URL)
	case "postgres":
		val.RequireString("store.dsn", cfg.Store.DSN)
	}

	val.RequirePositiveInt("objects.cache_size", cfg.Objects.CacheSize)
	val.RequireString("repository.default_branch", cfg.Repository.DefaultBranch)
	val.RequirePositiveInt("credential.bcrypt_cost", cfg.Credential.BcryptCost)

	return val.Validate()
}

package vault

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"zipperdb.dev/codec"
	"zipperdb.dev/logging"
	"zipperdb.dev/metrics"
	"zipperdb.dev/objectstore"
	"zipperdb.dev/store"
	"zipperdb.dev/zipper"
)

// objectsPrefix and branchPrefix match spec §4.5's repository layout:
// shared static objects under "objects/", per-branch state under
// "refs/<branch>/", repository-level state (HEAD, branch descriptors)
// under no extra prefix at all.
const objectsPrefix = "objects/"

func branchPrefix(name string) string { return "refs/" + name + "/" }

// Repository is a Zipper whose keyspace is partitioned into a
// repository-level logical space (branch descriptors) and one Branch
// keyspace per named branch, all sharing one static object store.
type Repository struct {
	backing store.BackingStore
	objects *objectstore.StaticStore
	reg     *codec.Registry
	log     *logrus.Entry
	metrics *metrics.Metrics

	repo *zipper.Zipper
}

// NewRepository creates a Repository over backing (unprefixed — the
// Repository itself partitions it). opts configure the shared
// StaticStore (cache size, debug verification). m is an optional metrics
// sink, threaded into both the shared StaticStore and every Zipper this
// Repository constructs (the repository-level one and every Branch's).
func NewRepository(backing store.BackingStore, reg *codec.Registry, log *logrus.Entry, m *metrics.Metrics, opts ...objectstore.Option) *Repository {
	log = logging.OrDiscard(log).WithField("component", "vault")
	bc := codec.NewBinaryCodec(reg)
	allOpts := append([]objectstore.Option{objectstore.WithPrefix(objectsPrefix), objectstore.WithLogger(log), objectstore.WithMetrics(m)}, opts...)
	objects := objectstore.NewStaticStore(backing, bc, allOpts...)
	return &Repository{
		backing: backing,
		objects: objects,
		reg:     reg,
		log:     log,
		metrics: m,
		repo:    zipper.New(backing, objects, reg, log, zipper.WithMetrics(m)),
	}
}

// Open opens the repository-level zipper, creating its initial empty
// checkpoint if this is a fresh backing store.
func (r *Repository) Open(ctx context.Context, author string, when float64) error {
	if err := r.repo.Open(ctx); err != nil {
		return fmt.Errorf("vault: open: %w", err)
	}
	return r.repo.Create(ctx, author, when)
}

// Close releases the repository's backing store.
func (r *Repository) Close() error { return r.repo.Close() }

// Branch is a per-branch Zipper: the repository's shared static store,
// keyed under "refs/<name>/" for its own HEAD and working-view state.
type Branch struct {
	Name string
	*zipper.Zipper
}

// Branch returns the named branch, creating it (and recording a
// descriptor commit in the repository) if it does not already exist. An
// existing branch is reused, per spec §4.5's default "reuse-if-present"
// policy.
func (r *Repository) Branch(ctx context.Context, name string, author string, when float64) (*Branch, error) {
	return r.branch(ctx, name, author, when, true)
}

// CreateBranch behaves like Branch but fails with ErrBranchExists instead
// of reusing an existing branch when reuseIfPresent is false.
func (r *Repository) CreateBranch(ctx context.Context, name string, author string, when float64, reuseIfPresent bool) (*Branch, error) {
	return r.branch(ctx, name, author, when, reuseIfPresent)
}

func (r *Repository) branch(ctx context.Context, name, author string, when float64, reuseIfPresent bool) (*Branch, error) {
	descKey, err := branchKey(name)
	if err != nil {
		return nil, err
	}

	_, found, err := r.repo.Get(ctx, descKey)
	if err != nil {
		return nil, fmt.Errorf("vault: branch %s: %w", name, err)
	}

	branchBacking := store.NewPrefixed(branchPrefix(name), r.backing, nil)
	bz := zipper.New(branchBacking, r.objects, r.reg, r.log, zipper.WithMetrics(r.metrics))
	if err := bz.Open(ctx); err != nil {
		return nil, fmt.Errorf("vault: branch %s: open: %w", name, err)
	}

	if found {
		if !reuseIfPresent {
			return nil, fmt.Errorf("vault: branch %s: %w", name, ErrBranchExists)
		}
		return &Branch{Name: name, Zipper: bz}, nil
	}

	if err := bz.Create(ctx, author, when); err != nil {
		return nil, fmt.Errorf("vault: branch %s: create: %w", name, err)
	}
	if err := r.addDescriptor(ctx, name, author, when); err != nil {
		return nil, fmt.Errorf("vault: branch %s: record descriptor: %w", name, err)
	}
	return &Branch{Name: name, Zipper: bz}, nil
}

// BranchInfo is one entry of Branches().
type BranchInfo struct {
	Name   string
	Config map[string]string
}

// Branches iterates the repository's M.branch descriptor records.
func (r *Repository) Branches(ctx context.Context) ([]BranchInfo, error) {
	keys, err := r.repo.Find(branchName)
	if err != nil {
		return nil, fmt.Errorf("vault: branches: %w", err)
	}
	out := make([]BranchInfo, 0, len(keys))
	for _, k := range keys {
		rec, found, err := r.repo.Get(ctx, k)
		if err != nil {
			return nil, fmt.Errorf("vault: branches: %w", err)
		}
		if !found {
			continue
		}
		name, _ := rec.Get("name").(string)
		info := BranchInfo{Name: name}
		if cfgRec, ok := rec.Get("config").(*codec.Record); ok {
			if m, ok := cfgRec.Get("config").(map[string]any); ok {
				info.Config = make(map[string]string, len(m))
				for k, v := range m {
					info.Config[k], _ = v.(string)
				}
			}
		}
		out = append(out, info)
	}
	return out, nil
}

// Remove deletes name's descriptor from the repository's logical space,
// as an explicit repository commit recording the branch's removal from
// history. The branch's own keyspace and static objects are untouched.
func (r *Repository) Remove(ctx context.Context, name, author string, when float64) error {
	descKey, err := branchKey(name)
	if err != nil {
		return err
	}
	return r.repo.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, author, "remove branch "+name, when, zipper.Delta{
			descKey: zipper.Delete(),
		})
	})
}

func (r *Repository) addDescriptor(ctx context.Context, name, author string, when float64) error {
	descKey, err := branchKey(name)
	if err != nil {
		return err
	}
	rec, err := r.descriptorRecord(name, author)
	if err != nil {
		return err
	}
	return r.repo.Transactionally(ctx, func(ctx context.Context, z *zipper.Zipper) (zipper.Checkpoint, error) {
		return z.Commit(ctx, author, "add branch "+name, when, zipper.Delta{
			descKey: zipper.Value(rec),
		})
	})
}

func (r *Repository) descriptorRecord(name, author string) (*codec.Record, error) {
	configSchema, err := r.reg.Lookup(branchConfigName)
	if err != nil {
		return nil, err
	}
	branchSchema, err := r.reg.Lookup(branchName)
	if err != nil {
		return nil, err
	}
	cfg := codec.NewRecord(configSchema)
	cfg.Set("author", author)
	cfg.Set("config", map[string]any{})

	rec := codec.NewRecord(branchSchema)
	rec.Set("name", name)
	rec.Set("config", cfg)
	return rec, nil
}

func branchKey(name string) (*codec.Key, error) {
	return codec.NewKey(branchName, name)
}

package zipper

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"zipperdb.dev/codec"
	"zipperdb.dev/logging"
	"zipperdb.dev/metrics"
	"zipperdb.dev/objectstore"
	"zipperdb.dev/store"
)

// headKey is the backing-store key holding the current checkpoint's
// address. A Zipper's backing store is expected to already be scoped to
// this zipper's keyspace (the vault package does this per branch via
// store.Prefixed), so the literal "HEAD" is unambiguous here.
var headKey = []byte("HEAD")

// Zipper is the L3 logical, versioned key/value mapping (spec §4.4). It
// owns a HEAD pointer in backing and shares its static objects (commits,
// checkpoints, manifests, changesets, and user values) with objects.
type Zipper struct {
	backing store.BackingStore
	objects *objectstore.StaticStore
	reg     *codec.Registry
	log     *logrus.Entry
	metrics *metrics.Metrics

	mu         sync.RWMutex
	head       codec.StaticRef
	checkpoint Checkpoint
	manifest   []entry
	changes    []entry
	working    []entry
}

// Option configures a Zipper at construction.
type Option func(*Zipper)

// WithMetrics attaches a metrics sink to observe EndTransaction latency
// and HEAD CAS conflicts; nil is safe and records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(z *Zipper) { z.metrics = m }
}

// New creates a Zipper over backing (scoped to this zipper's keyspace)
// and the shared static object store.
func New(backing store.BackingStore, objects *objectstore.StaticStore, reg *codec.Registry, log *logrus.Entry, opts ...Option) *Zipper {
	z := &Zipper{
		backing: backing,
		objects: objects,
		reg:     reg,
		log:     logging.OrDiscard(log).WithField("component", "zipper"),
	}
	for _, opt := range opts {
		opt(z)
	}
	return z
}

// Open connects the backing store and loads the current working view
// from HEAD. If no HEAD exists yet, Open succeeds with an empty working
// view; call Create to persist an initial empty checkpoint.
func (z *Zipper) Open(ctx context.Context) error {
	if err := z.backing.Open(ctx); err != nil {
		return fmt.Errorf("zipper: open backing: %w", err)
	}
	exists, err := z.Exists(ctx)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	addr, err := z.backing.Get(ctx, headKey)
	if err != nil {
		return fmt.Errorf("zipper: read HEAD: %w", err)
	}
	return z.loadHead(ctx, codec.StaticRef{Address: codec.Address(addr)})
}

// Close releases the backing store.
func (z *Zipper) Close() error { return z.backing.Close() }

// Exists reports whether a HEAD pointer has been written yet.
func (z *Zipper) Exists(ctx context.Context) (bool, error) {
	_, err := z.backing.Get(ctx, headKey)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, fmt.Errorf("zipper: exists: %w", err)
	}
	return true, nil
}

// Destroy clears this zipper's keyspace by deleting its HEAD pointer,
// the only key it writes to backing; an absent HEAD is not an error.
// Shared static objects are untouched.
func (z *Zipper) Destroy(ctx context.Context) error {
	if err := z.backing.Delete(ctx, headKey); err != nil && !isNotFound(err) {
		return fmt.Errorf("zipper: destroy: %w", err)
	}
	z.mu.Lock()
	defer z.mu.Unlock()
	z.head = codec.StaticRef{}
	z.checkpoint = Checkpoint{}
	z.manifest, z.changes, z.working = nil, nil, nil
	return nil
}

// Create writes an initial empty checkpoint (empty changeset, one commit
// with an empty manifest) as HEAD, if none exists yet. It is a no-op if
// HEAD already exists.
func (z *Zipper) Create(ctx context.Context, author string, when float64) error {
	exists, err := z.Exists(ctx)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}

	emptyManifest, err := manifestRecord(z.reg, nil)
	if err != nil {
		return err
	}
	manifestRef, _, err := z.objects.Put(ctx, emptyManifest)
	if err != nil {
		return fmt.Errorf("zipper: create: put empty manifest: %w", err)
	}

	commit := Commit{Author: author, When: when, Message: "initial commit", Changes: manifestRef}
	commitRec, err := commitToRecord(z.reg, commit)
	if err != nil {
		return err
	}
	commitRef, _, err := z.objects.Put(ctx, commitRec)
	if err != nil {
		return fmt.Errorf("zipper: create: put initial commit: %w", err)
	}

	emptyChangeset, err := changesetRecord(z.reg, nil)
	if err != nil {
		return err
	}
	changesetRef, _, err := z.objects.Put(ctx, emptyChangeset)
	if err != nil {
		return fmt.Errorf("zipper: create: put empty changeset: %w", err)
	}

	ckpt := Checkpoint{Author: author, When: when, Message: "initial checkpoint", Changes: changesetRef, Commits: []codec.StaticRef{commitRef}}
	ckptRec, err := checkpointToRecord(z.reg, ckpt)
	if err != nil {
		return err
	}
	ckptRef, _, err := z.objects.Put(ctx, ckptRec)
	if err != nil {
		return fmt.Errorf("zipper: create: put initial checkpoint: %w", err)
	}

	if err := z.backing.Add(ctx, headKey, []byte(ckptRef.Address)); err != nil {
		return fmt.Errorf("zipper: create: write HEAD: %w", err)
	}
	return z.loadHead(ctx, ckptRef)
}

// loadHead dereferences ref as a Checkpoint and rebuilds the in-memory
// manifest/changes/working view from it.
func (z *Zipper) loadHead(ctx context.Context, ref codec.StaticRef) error {
	ckptRec, found, err := z.objects.Get(ctx, ref.Address)
	if err != nil {
		return fmt.Errorf("zipper: load checkpoint %s: %w", ref.Address, err)
	}
	if !found {
		return fmt.Errorf("zipper: HEAD %s not found: %w", ref.Address, ErrRepo)
	}
	ckpt, err := checkpointFromRecord(ckptRec)
	if err != nil {
		return err
	}

	changesetEntries, err := z.loadChangeset(ctx, ckpt.Changes)
	if err != nil {
		return err
	}

	var manifestEntries []entry
	if len(ckpt.Commits) > 0 {
		manifestEntries, err = z.loadManifest(ctx, ckpt.Commits[0])
		if err != nil {
			return err
		}
	}

	working := applyOverlay(changesetEntries, manifestEntries, manifestEntries)
	visible := working[:0]
	for _, e := range working {
		if !e.Ref.IsDeleted() {
			visible = append(visible, e)
		}
	}
	working = visible

	z.mu.Lock()
	defer z.mu.Unlock()
	z.head = ref
	z.checkpoint = ckpt
	z.manifest = manifestEntries
	z.changes = changesetEntries
	z.working = working
	return nil
}

func (z *Zipper) loadChangeset(ctx context.Context, ref codec.StaticRef) ([]entry, error) {
	if ref.Address == "" {
		return nil, nil
	}
	rec, found, err := z.objects.Get(ctx, ref.Address)
	if err != nil {
		return nil, fmt.Errorf("zipper: load changeset %s: %w", ref.Address, err)
	}
	if !found {
		return nil, fmt.Errorf("zipper: changeset %s not found: %w", ref.Address, ErrRepo)
	}
	return changesetFromRecord(rec)
}

func (z *Zipper) loadManifest(ctx context.Context, commitRef codec.StaticRef) ([]entry, error) {
	commitRec, found, err := z.objects.Get(ctx, commitRef.Address)
	if err != nil {
		return nil, fmt.Errorf("zipper: load commit %s: %w", commitRef.Address, err)
	}
	if !found {
		return nil, fmt.Errorf("zipper: commit %s not found: %w", commitRef.Address, ErrRepo)
	}
	commit, err := commitFromRecord(commitRec)
	if err != nil {
		return nil, err
	}
	manifestRec, found, err := z.objects.Get(ctx, commit.Changes.Address)
	if err != nil {
		return nil, fmt.Errorf("zipper: load manifest %s: %w", commit.Changes.Address, err)
	}
	if !found {
		return nil, fmt.Errorf("zipper: manifest %s not found: %w", commit.Changes.Address, ErrRepo)
	}
	return manifestFromRecord(manifestRec)
}

// Get resolves key through the working view and dereferences its value.
// found is false when the key is absent or shadowed by a Deleted entry.
func (z *Zipper) Get(ctx context.Context, key *codec.Key) (*codec.Record, bool, error) {
	z.mu.RLock()
	ref, ok := lookupEntry(z.working, key.String())
	z.mu.RUnlock()
	if !ok {
		return nil, false, nil
	}
	return z.objects.Get(ctx, ref.Address)
}

// MGet resolves every key as Get, preserving input order.
func (z *Zipper) MGet(ctx context.Context, keys []*codec.Key) ([]*codec.Record, []bool, error) {
	vals := make([]*codec.Record, len(keys))
	found := make([]bool, len(keys))
	for i, k := range keys {
		v, ok, err := z.Get(ctx, k)
		if err != nil {
			return nil, nil, err
		}
		vals[i], found[i] = v, ok
	}
	return vals, found, nil
}

// Find scans the working view for keys whose kind is a subtype of kind,
// returning them in sorted (serialized-key) order.
func (z *Zipper) Find(kind codec.TypeName) ([]*codec.Key, error) {
	z.mu.RLock()
	working := append([]entry(nil), z.working...)
	z.mu.RUnlock()

	var out []*codec.Key
	for _, e := range working {
		k, err := codec.ParseKey(e.Key)
		if err != nil {
			return nil, fmt.Errorf("zipper: find: parse key %q: %w", e.Key, err)
		}
		if z.reg.IsSubtype(k.Kind, kind) {
			out = append(out, k)
		}
	}
	return out, nil
}

// Item is one (key, value) pair of the zipper's logical mapping.
type Item struct {
	Key   *codec.Key
	Value *codec.Record
}

// Items materializes the full logical mapping (spec §4.4 items/iteritems).
func (z *Zipper) Items(ctx context.Context) ([]Item, error) {
	z.mu.RLock()
	working := append([]entry(nil), z.working...)
	z.mu.RUnlock()

	out := make([]Item, 0, len(working))
	for _, e := range working {
		k, err := codec.ParseKey(e.Key)
		if err != nil {
			return nil, fmt.Errorf("zipper: items: parse key %q: %w", e.Key, err)
		}
		v, found, err := z.objects.Get(ctx, e.Ref.Address)
		if err != nil {
			return nil, err
		}
		if !found {
			return nil, fmt.Errorf("zipper: items: dangling ref %s for key %s: %w", e.Ref.Address, e.Key, ErrRepo)
		}
		out = append(out, Item{Key: k, Value: v})
	}
	return out, nil
}

// Put stores v in the static subspace, passthrough to L2.
func (z *Zipper) Put(ctx context.Context, v *codec.Record) (codec.StaticRef, *codec.Record, error) {
	return z.objects.Put(ctx, v)
}

// MPut stores every value, passthrough to L2.
func (z *Zipper) MPut(ctx context.Context, vs []*codec.Record) ([]codec.StaticRef, []*codec.Record, error) {
	return z.objects.MPut(ctx, vs)
}

func isNotFound(err error) bool { return errors.Is(err, store.ErrNotFound) }

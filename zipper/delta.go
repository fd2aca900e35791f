package zipper

import (
	"context"
	"fmt"

	"zipperdb.dev/codec"
)

// DeltaValue is one entry of a Delta: a value to materialize into the
// static store, a ref already known to point at one, or the Deleted
// tombstone. Construct with Value, Ref, or Delete.
type DeltaValue struct {
	value   *codec.Record
	ref     codec.StaticRef
	hasRef  bool
	deleted bool
}

// Value wraps a record to be materialized (objectstore.Put) when the
// delta is applied.
func Value(rec *codec.Record) DeltaValue { return DeltaValue{value: rec} }

// Ref wraps an already-known StaticRef, skipping materialization.
func Ref(ref codec.StaticRef) DeltaValue { return DeltaValue{ref: ref, hasRef: true} }

// Delete marks the key as removed relative to the underlying manifest.
func Delete() DeltaValue { return DeltaValue{deleted: true} }

// Delta is a mapping Key → value | StaticRef | Deleted (spec §4.4). Map
// iteration order does not matter; Zipper sorts by Key.String() before
// applying.
type Delta map[*codec.Key]DeltaValue

// materialize resolves every DeltaValue to a StaticRef, storing any
// concrete records into the object store, and returns the entries sorted
// by key.
func (z *Zipper) materialize(ctx context.Context, delta Delta) ([]entry, error) {
	out := make([]entry, 0, len(delta))
	for k, dv := range delta {
		var ref codec.StaticRef
		switch {
		case dv.deleted:
			ref = codec.Deleted
		case dv.hasRef:
			ref = dv.ref
		case dv.value != nil:
			r, _, err := z.objects.Put(ctx, dv.value)
			if err != nil {
				return nil, fmt.Errorf("zipper: materialize %s: %w", k.String(), err)
			}
			ref = r
		default:
			return nil, fmt.Errorf("zipper: delta entry for %s has no value, ref, or delete marker: %w", k.String(), ErrRepo)
		}
		out = append(out, entry{Key: k.String(), Ref: ref})
	}
	sortEntries(out)
	return out, nil
}

// applyOverlay merges newer over older (newer wins ties — the "changes
// shadow manifest" rule of spec §4.4/invariant 3) and drops any Deleted
// entry whose key is absent from baseline, per invariant 4.
func applyOverlay(newer, older, baseline []entry) []entry {
	merged := pairsToEntries(codec.MergeOrdered(entriesToPairs(newer), entriesToPairs(older)))
	out := merged[:0]
	for _, e := range merged {
		if e.Ref.IsDeleted() {
			if _, ok := lookupEntry(baseline, e.Key); !ok {
				continue
			}
		}
		out = append(out, e)
	}
	return out
}

// applyToManifest folds changeset entries onto manifest entries,
// producing a new sorted manifest: Deleted entries remove the key,
// everything else upserts it (spec §4.4 commit: "materialize the full
// manifest by applying changes to the previous manifest").
func applyToManifest(manifest, changeset []entry) []entry {
	byKey := make(map[string]codec.StaticRef, len(manifest)+len(changeset))
	for _, e := range manifest {
		byKey[e.Key] = e.Ref
	}
	for _, e := range changeset {
		if e.Ref.IsDeleted() {
			delete(byKey, e.Key)
			continue
		}
		byKey[e.Key] = e.Ref
	}
	out := make([]entry, 0, len(byKey))
	for k, ref := range byKey {
		out = append(out, entry{Key: k, Ref: ref})
	}
	sortEntries(out)
	return out
}

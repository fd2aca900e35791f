package zipper

import (
	"context"
	"errors"
	"fmt"
	"time"

	"zipperdb.dev/codec"
	"zipperdb.dev/store"
)

// snapshot is an immutable view of the zipper's state at the start of a
// transaction, read once under RLock so the mutation builders below see
// a consistent picture even if a concurrent Open/loadHead races them.
type snapshot struct {
	checkpoint Checkpoint
	manifest   []entry
	changes    []entry
}

func (z *Zipper) snapshot() snapshot {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return snapshot{
		checkpoint: z.checkpoint,
		manifest:   append([]entry(nil), z.manifest...),
		changes:    append([]entry(nil), z.changes...),
	}
}

// Amend builds a candidate Checkpoint whose full changeset is delta
// overlaid on the current changes, and whose prev equals the current
// checkpoint's prev — replacing the current checkpoint in history rather
// than extending it. It does not commit; pass the result to
// EndTransaction.
func (z *Zipper) Amend(ctx context.Context, author, message string, when float64, delta Delta) (Checkpoint, error) {
	snap := z.snapshot()
	deltaEntries, err := z.materialize(ctx, delta)
	if err != nil {
		return Checkpoint{}, err
	}
	newChanges := applyOverlay(deltaEntries, snap.changes, snap.manifest)

	changesetRef, err := z.putChangeset(ctx, newChanges)
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{
		Author:  author,
		Message: message,
		When:    when,
		Changes: changesetRef,
		Commits: snap.checkpoint.Commits,
		Prev:    snap.checkpoint.Prev,
	}, nil
}

// Checkpoint builds a candidate Checkpoint whose full changeset is delta
// overlaid on the current changes, chained onto the current checkpoint
// (prev = current checkpoint), preserving history.
func (z *Zipper) Checkpoint(ctx context.Context, author, message string, when float64, delta Delta) (Checkpoint, error) {
	snap := z.snapshot()
	deltaEntries, err := z.materialize(ctx, delta)
	if err != nil {
		return Checkpoint{}, err
	}
	newChanges := applyOverlay(deltaEntries, snap.changes, snap.manifest)

	changesetRef, err := z.putChangeset(ctx, newChanges)
	if err != nil {
		return Checkpoint{}, err
	}
	return Checkpoint{
		Author:  author,
		Message: message,
		When:    when,
		Changes: changesetRef,
		Commits: snap.checkpoint.Commits,
		Prev:    []codec.StaticRef{z.currentHead()},
	}, nil
}

// Commit materializes the full manifest by applying (changes + delta) to
// the previous manifest, writes a new Commit chained onto the prior one,
// and returns an empty-changeset Checkpoint pointing at it, chained onto
// the current checkpoint.
func (z *Zipper) Commit(ctx context.Context, author, message string, when float64, delta Delta) (Checkpoint, error) {
	snap := z.snapshot()
	deltaEntries, err := z.materialize(ctx, delta)
	if err != nil {
		return Checkpoint{}, err
	}
	fullChanges := applyOverlay(deltaEntries, snap.changes, snap.manifest)
	newManifest := applyToManifest(snap.manifest, fullChanges)

	manifestRef, err := z.putManifest(ctx, newManifest)
	if err != nil {
		return Checkpoint{}, err
	}

	commit := Commit{Author: author, Message: message, When: when, Changes: manifestRef, Prev: snap.checkpoint.Commits}
	commitRec, err := commitToRecord(z.reg, commit)
	if err != nil {
		return Checkpoint{}, err
	}
	commitRef, _, err := z.objects.Put(ctx, commitRec)
	if err != nil {
		return Checkpoint{}, fmt.Errorf("zipper: commit: put commit: %w", err)
	}

	emptyChangesetRef, err := z.putChangeset(ctx, nil)
	if err != nil {
		return Checkpoint{}, err
	}

	return Checkpoint{
		Author:  author,
		Message: message,
		When:    when,
		Changes: emptyChangesetRef,
		Commits: []codec.StaticRef{commitRef},
		Prev:    []codec.StaticRef{z.currentHead()},
	}, nil
}

func (z *Zipper) currentHead() codec.StaticRef {
	z.mu.RLock()
	defer z.mu.RUnlock()
	return z.head
}

func (z *Zipper) putManifest(ctx context.Context, es []entry) (codec.StaticRef, error) {
	rec, err := manifestRecord(z.reg, es)
	if err != nil {
		return codec.StaticRef{}, err
	}
	ref, _, err := z.objects.Put(ctx, rec)
	if err != nil {
		return codec.StaticRef{}, fmt.Errorf("zipper: put manifest: %w", err)
	}
	return ref, nil
}

func (z *Zipper) putChangeset(ctx context.Context, es []entry) (codec.StaticRef, error) {
	rec, err := changesetRecord(z.reg, es)
	if err != nil {
		return codec.StaticRef{}, err
	}
	ref, _, err := z.objects.Put(ctx, rec)
	if err != nil {
		return codec.StaticRef{}, fmt.Errorf("zipper: put changeset: %w", err)
	}
	return ref, nil
}

// BeginTransaction reads the current HEAD and its CAS token, for use with
// EndTransaction. A Zipper that has never been Created has no HEAD yet;
// callers in that state should use Create instead.
func (z *Zipper) BeginTransaction(ctx context.Context) (codec.StaticRef, store.CasToken, error) {
	val, tok, err := z.backing.Gets(ctx, headKey)
	if err != nil {
		return codec.StaticRef{}, nil, fmt.Errorf("zipper: begin transaction: %w", err)
	}
	return codec.StaticRef{Address: codec.Address(val)}, tok, nil
}

// EndTransaction commits checkpoint as the new HEAD if it differs from
// oldHead, using tok (from BeginTransaction) to guard the CAS. A result
// equal to oldHead is treated as a no-op success (e.g. Amend producing an
// identical checkpoint). On success, the in-memory working view is
// swapped atomically. ErrTransactionFailed signals a lost race; the
// caller is expected to retry from BeginTransaction.
func (z *Zipper) EndTransaction(ctx context.Context, oldHead codec.StaticRef, tok store.CasToken, checkpoint Checkpoint) (err error) {
	start := time.Now()
	conflicts := 0
	defer func() { z.metrics.ObserveCommit(time.Since(start), conflicts, err) }()

	ckptRec, err := checkpointToRecord(z.reg, checkpoint)
	if err != nil {
		return fmt.Errorf("zipper: end transaction: %w", err)
	}
	newHead, _, err := z.objects.Put(ctx, ckptRec)
	if err != nil {
		return fmt.Errorf("zipper: end transaction: put checkpoint: %w", err)
	}

	if newHead == oldHead {
		return nil
	}

	if casErr := z.backing.Cas(ctx, headKey, []byte(newHead.Address), tok); casErr != nil {
		if isNotStored(casErr) {
			conflicts = 1
			err = fmt.Errorf("zipper: end transaction: %w", ErrTransactionFailed)
			return err
		}
		err = fmt.Errorf("zipper: end transaction: cas HEAD: %w", casErr)
		return err
	}

	err = z.loadHead(ctx, newHead)
	return err
}

func isNotStored(err error) bool { return errors.Is(err, store.ErrNotStored) }

// Transactionally runs BeginTransaction, fn, and EndTransaction once (no
// automatic retry; per spec §4.4 the caller owns the retry policy on
// ErrTransactionFailed).
func (z *Zipper) Transactionally(ctx context.Context, fn func(ctx context.Context, z *Zipper) (Checkpoint, error)) error {
	oldHead, tok, err := z.BeginTransaction(ctx)
	if err != nil {
		return err
	}
	ckpt, err := fn(ctx, z)
	if err != nil {
		return fmt.Errorf("zipper: transactionally: %w", err)
	}
	if ckpt.Changes.IsZero() {
		return fmt.Errorf("zipper: transactionally: mutation returned no checkpoint: %w", ErrTransaction)
	}
	return z.EndTransaction(ctx, oldHead, tok, ckpt)
}

package zipper

import (
	"fmt"
	"sort"

	"zipperdb.dev/codec"
)

// entry is one (key, ref) pair of a Manifest or Changeset, where key is a
// Key's serialized string form (spec §3: keys compared lexicographically
// on that string).
type entry struct {
	Key string
	Ref codec.StaticRef
}

func entriesToPairs(es []entry) []codec.Pair[codec.StaticRef] {
	out := make([]codec.Pair[codec.StaticRef], len(es))
	for i, e := range es {
		out[i] = codec.Pair[codec.StaticRef]{Key: e.Key, Value: e.Ref}
	}
	return out
}

func pairsToEntries(ps []codec.Pair[codec.StaticRef]) []entry {
	out := make([]entry, len(ps))
	for i, p := range ps {
		out[i] = entry{Key: p.Key, Ref: p.Value}
	}
	return out
}

func sortEntries(es []entry) {
	sort.Slice(es, func(i, j int) bool { return es[i].Key < es[j].Key })
}

// lookupEntry binary-searches es (which must be sorted by Key) for key.
func lookupEntry(es []entry, key string) (codec.StaticRef, bool) {
	i := sort.Search(len(es), func(i int) bool { return es[i].Key >= key })
	if i < len(es) && es[i].Key == key {
		return es[i].Ref, true
	}
	return codec.StaticRef{}, false
}

// manifestRecord/changesetRecord/manifestFromRecord/changesetFromRecord
// (via entriesToRecordArray and its inverse) convert between the
// in-memory sorted entry slices and the *codec.Record shape the codec
// layer can marshal, per the M.Manifest/M.Changeset schemas in schema.go.

func entriesToRecordArray(reg *codec.Registry, kind codec.TypeName, es []entry) ([]any, error) {
	entrySchema, err := reg.Lookup(kind)
	if err != nil {
		return nil, err
	}
	refSchema, err := reg.Lookup(staticRefName)
	if err != nil {
		return nil, err
	}
	out := make([]any, len(es))
	for i, e := range es {
		refRec := codec.NewRecord(refSchema)
		refRec.Set("address", string(e.Ref.Address))
		rec := codec.NewRecord(entrySchema)
		rec.Set("key", e.Key)
		rec.Set("ref", refRec)
		out[i] = rec
	}
	return out, nil
}

func recordArrayToEntries(raw any) ([]entry, error) {
	items, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("zipper: expected entry array, got %T: %w", raw, ErrRepo)
	}
	out := make([]entry, len(items))
	for i, item := range items {
		rec, ok := item.(*codec.Record)
		if !ok {
			return nil, fmt.Errorf("zipper: expected entry record, got %T: %w", item, ErrRepo)
		}
		key, _ := rec.Get("key").(string)
		refRec, ok := rec.Get("ref").(*codec.Record)
		if !ok {
			return nil, fmt.Errorf("zipper: entry %q missing ref: %w", key, ErrRepo)
		}
		addr, _ := refRec.Get("address").(string)
		out[i] = entry{Key: key, Ref: codec.StaticRef{Address: codec.Address(addr)}}
	}
	return out, nil
}

func refToRecord(reg *codec.Registry, ref codec.StaticRef) (*codec.Record, error) {
	schema, err := reg.Lookup(staticRefName)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("address", string(ref.Address))
	return rec, nil
}

func refsToRecordArray(reg *codec.Registry, refs []codec.StaticRef) ([]any, error) {
	out := make([]any, len(refs))
	for i, ref := range refs {
		rec, err := refToRecord(reg, ref)
		if err != nil {
			return nil, err
		}
		out[i] = rec
	}
	return out, nil
}

func recordArrayToRefs(raw any) ([]codec.StaticRef, error) {
	items, ok := raw.([]any)
	if !ok {
		if raw == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("zipper: expected ref array, got %T: %w", raw, ErrRepo)
	}
	out := make([]codec.StaticRef, len(items))
	for i, item := range items {
		rec, ok := item.(*codec.Record)
		if !ok {
			return nil, fmt.Errorf("zipper: expected ref record, got %T: %w", item, ErrRepo)
		}
		addr, _ := rec.Get("address").(string)
		out[i] = codec.StaticRef{Address: codec.Address(addr)}
	}
	return out, nil
}

// manifestRecord builds the *codec.Record for a Manifest over es (which
// must already be sorted by Key; see invariant 2).
func manifestRecord(reg *codec.Registry, es []entry) (*codec.Record, error) {
	schema, err := reg.Lookup(manifestName)
	if err != nil {
		return nil, err
	}
	arr, err := entriesToRecordArray(reg, manifestEntry, es)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("entries", arr)
	return rec, nil
}

func manifestFromRecord(rec *codec.Record) ([]entry, error) {
	return recordArrayToEntries(rec.Get("entries"))
}

func changesetRecord(reg *codec.Registry, es []entry) (*codec.Record, error) {
	schema, err := reg.Lookup(changesetName)
	if err != nil {
		return nil, err
	}
	arr, err := entriesToRecordArray(reg, changesetEntry, es)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("entries", arr)
	return rec, nil
}

func changesetFromRecord(rec *codec.Record) ([]entry, error) {
	return recordArrayToEntries(rec.Get("entries"))
}

// Commit is the Go-level view of an M.Commit record (spec §3).
type Commit struct {
	Author  string
	When    float64
	Message string
	Changes codec.StaticRef // ref(Manifest)
	Prev    []codec.StaticRef
}

func commitToRecord(reg *codec.Registry, c Commit) (*codec.Record, error) {
	schema, err := reg.Lookup(commitName)
	if err != nil {
		return nil, err
	}
	changesRec, err := refToRecord(reg, c.Changes)
	if err != nil {
		return nil, err
	}
	prevArr, err := refsToRecordArray(reg, c.Prev)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("author", c.Author)
	rec.Set("when", c.When)
	rec.Set("message", c.Message)
	rec.Set("changes", changesRec)
	rec.Set("prev", prevArr)
	return rec, nil
}

func commitFromRecord(rec *codec.Record) (Commit, error) {
	changesRec, ok := rec.Get("changes").(*codec.Record)
	if !ok {
		return Commit{}, fmt.Errorf("zipper: commit missing changes ref: %w", ErrRepo)
	}
	addr, _ := changesRec.Get("address").(string)
	prev, err := recordArrayToRefs(rec.Get("prev"))
	if err != nil {
		return Commit{}, err
	}
	author, _ := rec.Get("author").(string)
	when, _ := rec.Get("when").(float64)
	msg, _ := rec.Get("message").(string)
	return Commit{
		Author:  author,
		When:    when,
		Message: msg,
		Changes: codec.StaticRef{Address: codec.Address(addr)},
		Prev:    prev,
	}, nil
}

// Checkpoint is the Go-level view of an M.Checkpoint record (spec §3).
type Checkpoint struct {
	Author  string
	When    float64
	Message string
	Changes codec.StaticRef // ref(Changeset)
	Commits []codec.StaticRef
	Prev    []codec.StaticRef
}

func checkpointToRecord(reg *codec.Registry, c Checkpoint) (*codec.Record, error) {
	schema, err := reg.Lookup(checkpointName)
	if err != nil {
		return nil, err
	}
	changesRec, err := refToRecord(reg, c.Changes)
	if err != nil {
		return nil, err
	}
	commitsArr, err := refsToRecordArray(reg, c.Commits)
	if err != nil {
		return nil, err
	}
	prevArr, err := refsToRecordArray(reg, c.Prev)
	if err != nil {
		return nil, err
	}
	rec := codec.NewRecord(schema)
	rec.Set("author", c.Author)
	rec.Set("when", c.When)
	rec.Set("message", c.Message)
	rec.Set("changes", changesRec)
	rec.Set("commits", commitsArr)
	rec.Set("prev", prevArr)
	return rec, nil
}

func checkpointFromRecord(rec *codec.Record) (Checkpoint, error) {
	changesRec, ok := rec.Get("changes").(*codec.Record)
	if !ok {
		return Checkpoint{}, fmt.Errorf("zipper: checkpoint missing changes ref: %w", ErrRepo)
	}
	addr, _ := changesRec.Get("address").(string)
	commits, err := recordArrayToRefs(rec.Get("commits"))
	if err != nil {
		return Checkpoint{}, err
	}
	prev, err := recordArrayToRefs(rec.Get("prev"))
	if err != nil {
		return Checkpoint{}, err
	}
	author, _ := rec.Get("author").(string)
	when, _ := rec.Get("when").(float64)
	msg, _ := rec.Get("message").(string)
	return Checkpoint{
		Author:  author,
		When:    when,
		Message: msg,
		Changes: codec.StaticRef{Address: codec.Address(addr)},
		Commits: commits,
		Prev:    prev,
	}, nil
}

package codec

// Pair is one (key, value) entry of an ordered sequence merged by
// MergeOrdered.
type Pair[V any] struct {
	Key   string
	Value V
}

// MergeOrdered merges two sequences already sorted ascending by Key into
// one sorted sequence, walking both in lockstep (linear in len(a)+len(b)).
// On a key present in both, a's value wins and b's is discarded — this is
// the "changes shadow manifest" rule (spec §4.4) and the generic form of
// the original `mdb/data/collections.py` ordered merge. Used by the
// zipper's working-view construction and available to omap-shaped
// iteration generally.
func MergeOrdered[V any](a, b []Pair[V]) []Pair[V] {
	out := make([]Pair[V], 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i].Key < b[j].Key:
			out = append(out, a[i])
			i++
		case a[i].Key > b[j].Key:
			out = append(out, b[j])
			j++
		default:
			out = append(out, a[i]) // a wins ties
			i++
			j++
		}
	}
	out = append(out, a[i:]...)
	out = append(out, b[j:]...)
	return out
}

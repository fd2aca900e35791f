package objectstore

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"zipperdb.dev/codec"
	"zipperdb.dev/logging"
	"zipperdb.dev/metrics"
	"zipperdb.dev/store"
)

// defaultCacheSize is the spec §4.3 default: once the cache holds more
// than this many entries, it is cleared wholesale before the next insert.
const defaultCacheSize = 1000

// StaticStore is the L2 write-once content-addressed object store. Values
// are *codec.Record; the address is the sha1 hex digest of the record's
// boxed binary encoding, so loading an address requires no external
// schema context — the type tag travels with the bytes.
type StaticStore struct {
	backing store.BackingStore
	bc      *codec.BinaryCodec
	log     *logrus.Entry
	metrics *metrics.Metrics

	prefix    string
	cacheSize int
	debug     bool

	mu    sync.Mutex
	cache map[codec.Address]*codec.Record
}

// Option configures a StaticStore at construction.
type Option func(*StaticStore)

// WithPrefix namespaces every backing-store key under prefix, letting
// multiple static stores (or a repository's branch keyspaces, see the
// vault package) share one BackingStore.
func WithPrefix(prefix string) Option {
	return func(s *StaticStore) { s.prefix = prefix }
}

// WithCacheSize overrides the default 1000-entry cache bound.
func WithCacheSize(n int) Option {
	return func(s *StaticStore) { s.cacheSize = n }
}

// WithDebug enables post-load hash verification: every Get/MGet re-hashes
// the loaded bytes and raises ErrBadObject on a mismatch. Off by default
// since it doubles the hashing cost of every cache-miss load.
func WithDebug(debug bool) Option {
	return func(s *StaticStore) { s.debug = debug }
}

// WithLogger attaches a logger; nil-safe, defaults to a discard logger.
func WithLogger(log *logrus.Entry) Option {
	return func(s *StaticStore) { s.log = log }
}

// WithMetrics attaches a metrics sink; nil is safe and records nothing.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *StaticStore) { s.metrics = m }
}

// NewStaticStore creates a StaticStore over backing using bc to
// marshal/unmarshal values.
func NewStaticStore(backing store.BackingStore, bc *codec.BinaryCodec, opts ...Option) *StaticStore {
	s := &StaticStore{
		backing:   backing,
		bc:        bc,
		cacheSize: defaultCacheSize,
		cache:     make(map[codec.Address]*codec.Record),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = logging.OrDiscard(s.log).WithField("component", "objectstore")
	return s
}

func (s *StaticStore) key(addr codec.Address) []byte {
	return []byte(s.prefix + string(addr))
}

func address(data []byte) codec.Address {
	sum := sha1.Sum(data)
	return codec.Address(hex.EncodeToString(sum[:]))
}

// Put serializes v, computes its address, and stores it if not already
// present. A NotStored result from the backing store (duplicate content)
// is treated as success — puts are idempotent. Returns the ref and the
// canonical cached value, which is v itself on a fresh insert.
func (s *StaticStore) Put(ctx context.Context, v *codec.Record) (codec.StaticRef, *codec.Record, error) {
	data, err := s.bc.MarshalBinary(v)
	if err != nil {
		return codec.StaticRef{}, nil, fmt.Errorf("objectstore: marshal: %w", err)
	}
	addr := address(data)

	if err := s.backing.Add(ctx, s.key(addr), data); err != nil {
		if !isNotStored(err) {
			return codec.StaticRef{}, nil, fmt.Errorf("objectstore: put %s: %w", addr, err)
		}
		s.log.WithField("addr", addr).Debug("put: duplicate content, treated as success")
	}

	canonical := s.cacheInsert(addr, v)
	return codec.StaticRef{Address: addr}, canonical, nil
}

// MPut applies Put to every value, returning results in input order.
func (s *StaticStore) MPut(ctx context.Context, vs []*codec.Record) ([]codec.StaticRef, []*codec.Record, error) {
	refs := make([]codec.StaticRef, len(vs))
	out := make([]*codec.Record, len(vs))
	for i, v := range vs {
		ref, canonical, err := s.Put(ctx, v)
		if err != nil {
			return nil, nil, fmt.Errorf("objectstore: mput[%d]: %w", i, err)
		}
		refs[i] = ref
		out[i] = canonical
	}
	return refs, out, nil
}

// Get loads the value at addr. found is false ("Undefined" in spec terms)
// when no such address exists in the backing store; it is never true
// together with a non-nil error.
func (s *StaticStore) Get(ctx context.Context, addr codec.Address) (v *codec.Record, found bool, err error) {
	if cached, ok := s.cacheGet(addr); ok {
		s.metrics.RecordCacheHit()
		return cached, true, nil
	}
	s.metrics.RecordCacheMiss()

	data, err := s.backing.Get(ctx, s.key(addr))
	if err != nil {
		if isNotFound(err) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("objectstore: get %s: %w", addr, err)
	}

	if s.debug {
		if got := address(data); got != addr {
			return nil, false, fmt.Errorf("objectstore: get %s: stored as %s: %w", addr, got, ErrBadObject)
		}
	}

	var rec *codec.Record
	if err := s.bc.UnmarshalBinary(data, &rec); err != nil {
		return nil, false, fmt.Errorf("objectstore: decode %s: %w", addr, err)
	}

	canonical := s.cacheInsert(addr, rec)
	return canonical, true, nil
}

// GetResult is one entry of an MGet response.
type GetResult struct {
	Address codec.Address
	Value   *codec.Record
	Found   bool
}

// MGet loads every address in addrs. Per spec §4.3, result ordering is
// not guaranteed to match input order (cached entries may be yielded
// first); callers that need positional correspondence should index by
// Address.
func (s *StaticStore) MGet(ctx context.Context, addrs []codec.Address) ([]GetResult, error) {
	out := make([]GetResult, 0, len(addrs))
	var misses []codec.Address
	for _, addr := range addrs {
		if cached, ok := s.cacheGet(addr); ok {
			s.metrics.RecordCacheHit()
			out = append(out, GetResult{Address: addr, Value: cached, Found: true})
			continue
		}
		misses = append(misses, addr)
	}

	for _, addr := range misses {
		v, found, err := s.Get(ctx, addr)
		if err != nil {
			return nil, err
		}
		out = append(out, GetResult{Address: addr, Value: v, Found: found})
	}
	return out, nil
}

// cacheInsert stores v under addr, applying the wholesale-clear policy,
// and returns the canonical cached instance (first-writer-wins on a
// concurrent insert of the same address).
func (s *StaticStore) cacheInsert(addr codec.Address, v *codec.Record) *codec.Record {
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.cache[addr]; ok {
		return existing
	}
	if len(s.cache) > s.cacheSize {
		s.cache = make(map[codec.Address]*codec.Record)
	}
	s.cache[addr] = v
	return v
}

func (s *StaticStore) cacheGet(addr codec.Address) (*codec.Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.cache[addr]
	return v, ok
}

func isNotFound(err error) bool  { return errors.Is(err, store.ErrNotFound) }
func isNotStored(err error) bool { return errors.Is(err, store.ErrNotStored) }

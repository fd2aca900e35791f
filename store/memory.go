package store

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"sync"

	"github.com/sirupsen/logrus"

	"zipperdb.dev/logging"
)

// Memory is an in-process BackingStore backed by a map. It is safe for
// concurrent use within a single process; it provides no cross-process
// coordination.
type Memory struct {
	log *logrus.Entry

	mu      sync.RWMutex
	values  map[string][]byte
	gen     map[string]uint64
	entered bool
}

// NewMemory creates an empty in-memory backing store.
func NewMemory(log *logrus.Entry) *Memory {
	return &Memory{
		log:    logging.OrDiscard(log).WithField("backend", "memory"),
		values: make(map[string][]byte),
		gen:    make(map[string]uint64),
	}
}

func (m *Memory) Open(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entered = true
	m.log.Debug("opened")
	return nil
}

func (m *Memory) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entered = false
	return nil
}

func (m *Memory) Destroy(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.values = make(map[string][]byte)
	m.gen = make(map[string]uint64)
	return nil
}

func (m *Memory) Get(ctx context.Context, key []byte) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[string(key)]
	if !ok {
		return nil, fmt.Errorf("memory get %q: %w", key, ErrNotFound)
	}
	return bytes.Clone(v), nil
}

func (m *Memory) MGet(ctx context.Context, keys [][]byte) ([]Entry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Entry, len(keys))
	for i, k := range keys {
		if v, ok := m.values[string(k)]; ok {
			out[i] = Entry{Key: k, Value: bytes.Clone(v), Found: true}
		} else {
			out[i] = Entry{Key: k, Found: false}
		}
	}
	return out, nil
}

func (m *Memory) Gets(ctx context.Context, key []byte) ([]byte, CasToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.values[string(key)]
	if !ok {
		return nil, nil, fmt.Errorf("memory gets %q: %w", key, ErrNotFound)
	}
	tok := StringToken(strconv.FormatUint(m.gen[string(key)], 10))
	return bytes.Clone(v), tok, nil
}

func (m *Memory) Set(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.setLocked(key, value)
	return nil
}

func (m *Memory) setLocked(key, value []byte) {
	k := string(key)
	m.values[k] = bytes.Clone(value)
	m.gen[k]++
}

func (m *Memory) MSet(ctx context.Context, pairs []KV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, p := range pairs {
		m.setLocked(p.Key, p.Value)
	}
	return nil
}

func (m *Memory) Add(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[string(key)]; ok {
		return fmt.Errorf("memory add %q: %w", key, ErrNotStored)
	}
	m.setLocked(key, value)
	return nil
}

func (m *Memory) MAdd(ctx context.Context, pairs []KV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	failed := map[string]error{}
	for _, p := range pairs {
		k := string(p.Key)
		if _, ok := m.values[k]; ok {
			failed[k] = ErrNotStored
			continue
		}
		m.setLocked(p.Key, p.Value)
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (m *Memory) Replace(ctx context.Context, key, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.values[string(key)]; !ok {
		return fmt.Errorf("memory replace %q: %w", key, ErrNotStored)
	}
	m.setLocked(key, value)
	return nil
}

func (m *Memory) MReplace(ctx context.Context, pairs []KV) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	failed := map[string]error{}
	for _, p := range pairs {
		k := string(p.Key)
		if _, ok := m.values[k]; !ok {
			failed[k] = ErrNotStored
			continue
		}
		m.setLocked(p.Key, p.Value)
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (m *Memory) Cas(ctx context.Context, key, value []byte, tok CasToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(key)
	cur := StringToken(strconv.FormatUint(m.gen[k], 10))
	if _, ok := m.values[k]; !ok {
		// Absent keys have generation 0, matching a freshly-read token of "0".
		if !cur.Equal(tok) {
			return fmt.Errorf("memory cas %q: %w", key, ErrNotStored)
		}
	} else if !cur.Equal(tok) {
		return fmt.Errorf("memory cas %q: %w", key, ErrNotStored)
	}
	m.setLocked(key, value)
	m.log.WithField("key", string(key)).Debug("cas applied")
	return nil
}

func (m *Memory) Delete(ctx context.Context, key []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := string(key)
	if _, ok := m.values[k]; !ok {
		return fmt.Errorf("memory delete %q: %w", key, ErrNotFound)
	}
	delete(m.values, k)
	delete(m.gen, k)
	return nil
}

func (m *Memory) MDelete(ctx context.Context, keys [][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	failed := map[string]error{}
	for _, key := range keys {
		k := string(key)
		if _, ok := m.values[k]; !ok {
			failed[k] = ErrNotFound
			continue
		}
		delete(m.values, k)
		delete(m.gen, k)
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

// Keys returns every key currently stored, sorted lexicographically by raw
// bytes.
func (m *Memory) Keys() [][]byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	keys := make([]string, 0, len(m.values))
	for k := range m.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	out := make([][]byte, len(keys))
	for i, k := range keys {
		out[i] = []byte(k)
	}
	return out
}

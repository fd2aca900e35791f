package store

import (
	"compress/gzip"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/sirupsen/logrus"

	"zipperdb.dev/logging"
)

// FsDir is a BackingStore that keeps one gzip-compressed file per key under
// a root directory, named by sha1(key) split as <root>/<h[0:2]>/<h[2:]>.
// Add/Replace/Cas are guarded by a process-local mutex; coordination across
// separate processes writing the same directory is not provided.
type FsDir struct {
	root string
	log  *logrus.Entry
	mu   sync.Mutex
}

// NewFsDir creates an FsDir rooted at dir. Open creates the directory if
// it does not exist.
func NewFsDir(dir string, log *logrus.Entry) *FsDir {
	return &FsDir{root: dir, log: logging.OrDiscard(log).WithField("backend", "fsdir")}
}

func (f *FsDir) Open(ctx context.Context) error {
	if err := os.MkdirAll(f.root, 0o755); err != nil {
		return fmt.Errorf("fsdir open %s: %w", f.root, err)
	}
	f.log.WithField("root", f.root).Debug("opened")
	return nil
}

func (f *FsDir) Close() error { return nil }

func (f *FsDir) Destroy(ctx context.Context) error {
	if err := os.RemoveAll(f.root); err != nil {
		return fmt.Errorf("fsdir destroy %s: %w", f.root, err)
	}
	return nil
}

func (f *FsDir) path(key []byte) string {
	h := sha1.Sum(key)
	hexKey := hex.EncodeToString(h[:])
	return filepath.Join(f.root, hexKey[:2], hexKey[2:])
}

// tokenPath stores the random CAS token alongside the value file.
func (f *FsDir) tokenPath(key []byte) string {
	return f.path(key) + ".tok"
}

func (f *FsDir) readRaw(key []byte) ([]byte, error) {
	fh, err := os.Open(f.path(key))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("fsdir get %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("fsdir get %q: %w", key, err)
	}
	defer fh.Close()

	gz, err := gzip.NewReader(fh)
	if err != nil {
		return nil, fmt.Errorf("fsdir gunzip %q: %w", key, err)
	}
	defer gz.Close()
	return io.ReadAll(gz)
}

func (f *FsDir) writeRaw(key, value []byte) error {
	p := f.path(key)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return fmt.Errorf("fsdir mkdir %q: %w", key, err)
	}
	fh, err := os.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("fsdir write %q: %w", key, err)
	}
	defer fh.Close()

	gz := gzip.NewWriter(fh)
	if _, err := gz.Write(value); err != nil {
		return fmt.Errorf("fsdir gzip %q: %w", key, err)
	}
	if err := gz.Close(); err != nil {
		return fmt.Errorf("fsdir gzip close %q: %w", key, err)
	}
	f.log.WithFields(logrus.Fields{"key": string(key), "size": humanize.Bytes(uint64(len(value)))}).Debug("wrote")
	return f.writeToken(key)
}

func (f *FsDir) writeToken(key []byte) error {
	tok := fmt.Sprintf("%04x", rand.Intn(1<<16))
	return os.WriteFile(f.tokenPath(key), []byte(tok), 0o644)
}

func (f *FsDir) readToken(key []byte) (string, error) {
	b, err := os.ReadFile(f.tokenPath(key))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", err
	}
	return string(b), nil
}

func (f *FsDir) exists(key []byte) bool {
	_, err := os.Stat(f.path(key))
	return err == nil
}

func (f *FsDir) Get(ctx context.Context, key []byte) ([]byte, error) {
	return f.readRaw(key)
}

func (f *FsDir) MGet(ctx context.Context, keys [][]byte) ([]Entry, error) {
	out := make([]Entry, len(keys))
	for i, k := range keys {
		v, err := f.readRaw(k)
		if err != nil {
			out[i] = Entry{Key: k, Found: false}
			continue
		}
		out[i] = Entry{Key: k, Value: v, Found: true}
	}
	return out, nil
}

func (f *FsDir) Gets(ctx context.Context, key []byte) ([]byte, CasToken, error) {
	v, err := f.readRaw(key)
	if err != nil {
		return nil, nil, err
	}
	tok, err := f.readToken(key)
	if err != nil {
		return nil, nil, fmt.Errorf("fsdir gets %q: %w", key, err)
	}
	return v, StringToken(tok), nil
}

func (f *FsDir) Set(ctx context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.writeRaw(key, value)
}

func (f *FsDir) MSet(ctx context.Context, pairs []KV) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range pairs {
		if err := f.writeRaw(p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func (f *FsDir) Add(ctx context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exists(key) {
		return fmt.Errorf("fsdir add %q: %w", key, ErrNotStored)
	}
	return f.writeRaw(key, value)
}

func (f *FsDir) MAdd(ctx context.Context, pairs []KV) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	failed := map[string]error{}
	for _, p := range pairs {
		if f.exists(p.Key) {
			failed[string(p.Key)] = ErrNotStored
			continue
		}
		if err := f.writeRaw(p.Key, p.Value); err != nil {
			failed[string(p.Key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (f *FsDir) Replace(ctx context.Context, key, value []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists(key) {
		return fmt.Errorf("fsdir replace %q: %w", key, ErrNotStored)
	}
	return f.writeRaw(key, value)
}

func (f *FsDir) MReplace(ctx context.Context, pairs []KV) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	failed := map[string]error{}
	for _, p := range pairs {
		if !f.exists(p.Key) {
			failed[string(p.Key)] = ErrNotStored
			continue
		}
		if err := f.writeRaw(p.Key, p.Value); err != nil {
			failed[string(p.Key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (f *FsDir) Cas(ctx context.Context, key, value []byte, tok CasToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cur, err := f.readToken(key)
	if err != nil {
		return fmt.Errorf("fsdir cas %q: %w", key, err)
	}
	if !StringToken(cur).Equal(tok) {
		return fmt.Errorf("fsdir cas %q: %w", key, ErrNotStored)
	}
	return f.writeRaw(key, value)
}

func (f *FsDir) Delete(ctx context.Context, key []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.exists(key) {
		return fmt.Errorf("fsdir delete %q: %w", key, ErrNotFound)
	}
	_ = os.Remove(f.tokenPath(key))
	if err := os.Remove(f.path(key)); err != nil {
		return fmt.Errorf("fsdir delete %q: %w", key, err)
	}
	return nil
}

func (f *FsDir) MDelete(ctx context.Context, keys [][]byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	failed := map[string]error{}
	for _, key := range keys {
		if !f.exists(key) {
			failed[string(key)] = ErrNotFound
			continue
		}
		_ = os.Remove(f.tokenPath(key))
		if err := os.Remove(f.path(key)); err != nil {
			failed[string(key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

package store

import (
	"context"
	"fmt"
	"math/rand"
	"os"
	"strconv"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/sirupsen/logrus"

	"zipperdb.dev/logging"
)

var bucketName = []byte("zipperdb")

// Bolt is a BackingStore backed by a single bbolt file, an embedded
// single-file alternative to FsDir for deployments that want one file
// instead of a directory tree of gzip blobs. Ground rule from the teacher's
// db/bolt.Open: a one-second open timeout so a crashed process holding the
// file lock fails fast instead of hanging.
type Bolt struct {
	path string
	db   *bolt.DB
	log  *logrus.Entry
}

// NewBolt creates a Bolt store backed by the file at path.
func NewBolt(path string, log *logrus.Entry) *Bolt {
	return &Bolt{path: path, log: logging.OrDiscard(log).WithField("backend", "bolt")}
}

func (b *Bolt) Open(ctx context.Context) error {
	db, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return fmt.Errorf("bolt open %s: %w", b.path, err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists(bucketName)
		return err
	})
	if err != nil {
		return fmt.Errorf("bolt create bucket: %w", err)
	}
	b.db = db
	b.log.WithField("path", b.path).Debug("opened")
	return nil
}

func (b *Bolt) Close() error {
	if b.db == nil {
		return nil
	}
	return b.db.Close()
}

func (b *Bolt) Destroy(ctx context.Context) error {
	if b.db != nil {
		_ = b.db.Close()
	}
	if err := os.Remove(b.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("bolt destroy %s: %w", b.path, err)
	}
	return nil
}

func tokenKey(key []byte) []byte {
	return append(append([]byte{}, key...), ".tok"...)
}

func (b *Bolt) Get(ctx context.Context, key []byte) ([]byte, error) {
	var out []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketName).Get(key)
		if v == nil {
			return fmt.Errorf("bolt get %q: %w", key, ErrNotFound)
		}
		out = append([]byte{}, v...)
		return nil
	})
	return out, err
}

func (b *Bolt) MGet(ctx context.Context, keys [][]byte) ([]Entry, error) {
	out := make([]Entry, len(keys))
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for i, k := range keys {
			if v := bucket.Get(k); v != nil {
				out[i] = Entry{Key: k, Value: append([]byte{}, v...), Found: true}
			} else {
				out[i] = Entry{Key: k, Found: false}
			}
		}
		return nil
	})
	return out, err
}

func (b *Bolt) Gets(ctx context.Context, key []byte) ([]byte, CasToken, error) {
	var value, tok []byte
	err := b.db.View(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		v := bucket.Get(key)
		if v == nil {
			return fmt.Errorf("bolt gets %q: %w", key, ErrNotFound)
		}
		value = append([]byte{}, v...)
		tok = append([]byte{}, bucket.Get(tokenKey(key))...)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return value, StringToken(string(tok)), nil
}

func (b *Bolt) writeLocked(tx *bolt.Tx, key, value []byte) error {
	bucket := tx.Bucket(bucketName)
	if err := bucket.Put(key, value); err != nil {
		return err
	}
	tok := strconv.Itoa(rand.Intn(1 << 16))
	return bucket.Put(tokenKey(key), []byte(tok))
}

func (b *Bolt) Set(ctx context.Context, key, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		return b.writeLocked(tx, key, value)
	})
}

func (b *Bolt) MSet(ctx context.Context, pairs []KV) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		for _, p := range pairs {
			if err := b.writeLocked(tx, p.Key, p.Value); err != nil {
				return err
			}
		}
		return nil
	})
}

func (b *Bolt) Add(ctx context.Context, key, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketName).Get(key) != nil {
			return fmt.Errorf("bolt add %q: %w", key, ErrNotStored)
		}
		return b.writeLocked(tx, key, value)
	})
}

func (b *Bolt) MAdd(ctx context.Context, pairs []KV) error {
	failed := map[string]error{}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for _, p := range pairs {
			if bucket.Get(p.Key) != nil {
				failed[string(p.Key)] = ErrNotStored
				continue
			}
			if err := b.writeLocked(tx, p.Key, p.Value); err != nil {
				failed[string(p.Key)] = err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (b *Bolt) Replace(ctx context.Context, key, value []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketName).Get(key) == nil {
			return fmt.Errorf("bolt replace %q: %w", key, ErrNotStored)
		}
		return b.writeLocked(tx, key, value)
	})
}

func (b *Bolt) MReplace(ctx context.Context, pairs []KV) error {
	failed := map[string]error{}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for _, p := range pairs {
			if bucket.Get(p.Key) == nil {
				failed[string(p.Key)] = ErrNotStored
				continue
			}
			if err := b.writeLocked(tx, p.Key, p.Value); err != nil {
				failed[string(p.Key)] = err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (b *Bolt) Cas(ctx context.Context, key, value []byte, tok CasToken) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		cur := StringToken(string(bucket.Get(tokenKey(key))))
		if !cur.Equal(tok) {
			return fmt.Errorf("bolt cas %q: %w", key, ErrNotStored)
		}
		return b.writeLocked(tx, key, value)
	})
}

func (b *Bolt) Delete(ctx context.Context, key []byte) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket.Get(key) == nil {
			return fmt.Errorf("bolt delete %q: %w", key, ErrNotFound)
		}
		if err := bucket.Delete(tokenKey(key)); err != nil {
			return err
		}
		return bucket.Delete(key)
	})
}

func (b *Bolt) MDelete(ctx context.Context, keys [][]byte) error {
	failed := map[string]error{}
	err := b.db.Update(func(tx *bolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		for _, key := range keys {
			if bucket.Get(key) == nil {
				failed[string(key)] = ErrNotFound
				continue
			}
			_ = bucket.Delete(tokenKey(key))
			if err := bucket.Delete(key); err != nil {
				failed[string(key)] = err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

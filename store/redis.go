package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"zipperdb.dev/logging"
)

// casScript performs a compare-and-set by checking a side token key
// before writing, atomically. KEYS[1] is the value key, KEYS[2] its token
// key; ARGV[1] the expected token, ARGV[2] the new value, ARGV[3] the new
// token.
var casScript = redis.NewScript(`
if redis.call("GET", KEYS[2]) ~= ARGV[1] then
	return 0
end
redis.call("SET", KEYS[1], ARGV[2])
redis.call("SET", KEYS[2], ARGV[3])
return 1
`)

// Redis is a BackingStore over Redis (or a Redis-protocol-compatible
// server such as Valkey or DragonflyDB), for multi-process HEAD
// contention across services sharing one cache/datastore tier. Tokens are
// carried as a side key so Cas can be evaluated atomically via a Lua
// script rather than a Redis transaction (WATCH/MULTI would require a
// round trip per retry under contention).
type Redis struct {
	client *redis.Client
	log    *logrus.Entry
}

// NewRedis creates a Redis-backed store from a connection URL
// (redis://host:port/db).
func NewRedis(url string, log *logrus.Entry) (*Redis, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis parse url: %w", err)
	}
	return &Redis{client: redis.NewClient(opts), log: logging.OrDiscard(log).WithField("backend", "redis")}, nil
}

// NewRedisClient wraps an already-constructed client, for tests against
// miniredis.
func NewRedisClient(client *redis.Client, log *logrus.Entry) *Redis {
	return &Redis{client: client, log: logging.OrDiscard(log).WithField("backend", "redis")}
}

func valueKey(key []byte) string { return "v:" + string(key) }
func tokKey(key []byte) string   { return "t:" + string(key) }

func (r *Redis) Open(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping: %w", err)
	}
	return nil
}

func (r *Redis) Close() error { return r.client.Close() }

func (r *Redis) Destroy(ctx context.Context) error {
	return r.client.FlushDB(ctx).Err()
}

func (r *Redis) Get(ctx context.Context, key []byte) ([]byte, error) {
	v, err := r.client.Get(ctx, valueKey(key)).Bytes()
	if err == redis.Nil {
		return nil, fmt.Errorf("redis get %q: %w", key, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	return v, nil
}

func (r *Redis) MGet(ctx context.Context, keys [][]byte) ([]Entry, error) {
	out := make([]Entry, len(keys))
	for i, k := range keys {
		v, err := r.Get(ctx, k)
		if err != nil {
			out[i] = Entry{Key: k, Found: false}
			continue
		}
		out[i] = Entry{Key: k, Value: v, Found: true}
	}
	return out, nil
}

func (r *Redis) Gets(ctx context.Context, key []byte) ([]byte, CasToken, error) {
	v, err := r.Get(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	tok, err := r.client.Get(ctx, tokKey(key)).Result()
	if err != nil && err != redis.Nil {
		return nil, nil, fmt.Errorf("redis gets token %q: %w", key, err)
	}
	return v, StringToken(tok), nil
}

func (r *Redis) writeToken(ctx context.Context, key []byte) error {
	return r.client.Set(ctx, tokKey(key), newToken(), 0).Err()
}

func (r *Redis) Set(ctx context.Context, key, value []byte) error {
	if err := r.client.Set(ctx, valueKey(key), value, 0).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return r.writeToken(ctx, key)
}

func (r *Redis) MSet(ctx context.Context, pairs []KV) error {
	for _, p := range pairs {
		if err := r.Set(ctx, p.Key, p.Value); err != nil {
			return err
		}
	}
	return nil
}

func (r *Redis) Add(ctx context.Context, key, value []byte) error {
	ok, err := r.client.SetNX(ctx, valueKey(key), value, 0).Result()
	if err != nil {
		return fmt.Errorf("redis add %q: %w", key, err)
	}
	if !ok {
		return fmt.Errorf("redis add %q: %w", key, ErrNotStored)
	}
	return r.writeToken(ctx, key)
}

func (r *Redis) MAdd(ctx context.Context, pairs []KV) error {
	failed := map[string]error{}
	for _, p := range pairs {
		if err := r.Add(ctx, p.Key, p.Value); err != nil {
			failed[string(p.Key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (r *Redis) Replace(ctx context.Context, key, value []byte) error {
	n, err := r.client.Exists(ctx, valueKey(key)).Result()
	if err != nil {
		return fmt.Errorf("redis replace %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("redis replace %q: %w", key, ErrNotStored)
	}
	return r.Set(ctx, key, value)
}

func (r *Redis) MReplace(ctx context.Context, pairs []KV) error {
	failed := map[string]error{}
	for _, p := range pairs {
		if err := r.Replace(ctx, p.Key, p.Value); err != nil {
			failed[string(p.Key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (r *Redis) Cas(ctx context.Context, key, value []byte, tok CasToken) error {
	st, ok := tok.(stringToken)
	if !ok {
		return fmt.Errorf("redis cas %q: %w", key, ErrNotStored)
	}
	newTok := newToken()
	res, err := casScript.Run(ctx, r.client, []string{valueKey(key), tokKey(key)}, string(st), value, newTok).Int()
	if err != nil {
		return fmt.Errorf("redis cas %q: %w", key, err)
	}
	if res == 0 {
		return fmt.Errorf("redis cas %q: %w", key, ErrNotStored)
	}
	return nil
}

func (r *Redis) Delete(ctx context.Context, key []byte) error {
	n, err := r.client.Del(ctx, valueKey(key), tokKey(key)).Result()
	if err != nil {
		return fmt.Errorf("redis delete %q: %w", key, err)
	}
	if n == 0 {
		return fmt.Errorf("redis delete %q: %w", key, ErrNotFound)
	}
	return nil
}

func (r *Redis) MDelete(ctx context.Context, keys [][]byte) error {
	failed := map[string]error{}
	for _, key := range keys {
		if err := r.Delete(ctx, key); err != nil {
			failed[string(key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

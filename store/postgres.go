package store

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"zipperdb.dev/logging"
)

// kvRow is the GORM model backing Postgres, one row per key: a durable
// multi-process BackingStore variant that needs neither a shared
// filesystem nor a Redis tier.
type kvRow struct {
	Key      []byte `gorm:"primaryKey"`
	Value    []byte
	CasToken string
}

func (kvRow) TableName() string { return "zipperdb_kv" }

// Postgres is a BackingStore over a single (key bytea primary key, value
// bytea, cas_token text) table.
type Postgres struct {
	db  *gorm.DB
	log *logrus.Entry
}

// NewPostgres opens (and migrates) a Postgres-backed store from a DSN.
func NewPostgres(dsn string, log *logrus.Entry) (*Postgres, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}
	if err := db.AutoMigrate(&kvRow{}); err != nil {
		return nil, fmt.Errorf("postgres migrate: %w", err)
	}
	return &Postgres{db: db, log: logging.OrDiscard(log).WithField("backend", "postgres")}, nil
}

func (p *Postgres) Open(ctx context.Context) error { return nil }
func (p *Postgres) Close() error {
	sqlDB, err := p.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (p *Postgres) Destroy(ctx context.Context) error {
	return p.db.WithContext(ctx).Exec("TRUNCATE TABLE " + (kvRow{}).TableName()).Error
}

func (p *Postgres) Get(ctx context.Context, key []byte) ([]byte, error) {
	var row kvRow
	err := p.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, fmt.Errorf("postgres get %q: %w", key, ErrNotFound)
		}
		return nil, fmt.Errorf("postgres get %q: %w", key, err)
	}
	return row.Value, nil
}

func (p *Postgres) MGet(ctx context.Context, keys [][]byte) ([]Entry, error) {
	out := make([]Entry, len(keys))
	for i, k := range keys {
		v, err := p.Get(ctx, k)
		if err != nil {
			out[i] = Entry{Key: k, Found: false}
			continue
		}
		out[i] = Entry{Key: k, Value: v, Found: true}
	}
	return out, nil
}

func (p *Postgres) Gets(ctx context.Context, key []byte) ([]byte, CasToken, error) {
	var row kvRow
	err := p.db.WithContext(ctx).Where("key = ?", key).First(&row).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil, fmt.Errorf("postgres gets %q: %w", key, ErrNotFound)
		}
		return nil, nil, fmt.Errorf("postgres gets %q: %w", key, err)
	}
	return row.Value, StringToken(row.CasToken), nil
}

func (p *Postgres) upsert(ctx context.Context, key, value []byte) error {
	row := kvRow{Key: key, Value: value, CasToken: newToken()}
	return p.db.WithContext(ctx).Save(&row).Error
}

func (p *Postgres) Set(ctx context.Context, key, value []byte) error {
	if err := p.upsert(ctx, key, value); err != nil {
		return fmt.Errorf("postgres set %q: %w", key, err)
	}
	return nil
}

func (p *Postgres) MSet(ctx context.Context, pairs []KV) error {
	for _, pr := range pairs {
		if err := p.Set(ctx, pr.Key, pr.Value); err != nil {
			return err
		}
	}
	return nil
}

func (p *Postgres) Add(ctx context.Context, key, value []byte) error {
	row := kvRow{Key: key, Value: value, CasToken: newToken()}
	err := p.db.WithContext(ctx).Create(&row).Error
	if err != nil {
		return fmt.Errorf("postgres add %q: %w", key, ErrNotStored)
	}
	return nil
}

func (p *Postgres) MAdd(ctx context.Context, pairs []KV) error {
	failed := map[string]error{}
	for _, pr := range pairs {
		if err := p.Add(ctx, pr.Key, pr.Value); err != nil {
			failed[string(pr.Key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (p *Postgres) Replace(ctx context.Context, key, value []byte) error {
	res := p.db.WithContext(ctx).Model(&kvRow{}).Where("key = ?", key).
		Updates(map[string]any{"value": value, "cas_token": newToken()})
	if res.Error != nil {
		return fmt.Errorf("postgres replace %q: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("postgres replace %q: %w", key, ErrNotStored)
	}
	return nil
}

func (p *Postgres) MReplace(ctx context.Context, pairs []KV) error {
	failed := map[string]error{}
	for _, pr := range pairs {
		if err := p.Replace(ctx, pr.Key, pr.Value); err != nil {
			failed[string(pr.Key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

func (p *Postgres) Cas(ctx context.Context, key, value []byte, tok CasToken) error {
	st, ok := tok.(stringToken)
	if !ok {
		return fmt.Errorf("postgres cas %q: %w", key, ErrNotStored)
	}
	res := p.db.WithContext(ctx).Model(&kvRow{}).
		Where("key = ? AND cas_token = ?", key, string(st)).
		Updates(map[string]any{"value": value, "cas_token": newToken()})
	if res.Error != nil {
		return fmt.Errorf("postgres cas %q: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("postgres cas %q: %w", key, ErrNotStored)
	}
	return nil
}

func (p *Postgres) Delete(ctx context.Context, key []byte) error {
	res := p.db.WithContext(ctx).Where("key = ?", key).Delete(&kvRow{})
	if res.Error != nil {
		return fmt.Errorf("postgres delete %q: %w", key, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("postgres delete %q: %w", key, ErrNotFound)
	}
	return nil
}

func (p *Postgres) MDelete(ctx context.Context, keys [][]byte) error {
	failed := map[string]error{}
	for _, key := range keys {
		if err := p.Delete(ctx, key); err != nil {
			failed[string(key)] = err
		}
	}
	if len(failed) > 0 {
		return &BatchError{Failed: failed}
	}
	return nil
}

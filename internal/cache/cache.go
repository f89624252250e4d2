// Package cache provides the namespaced key/value cache used to avoid
// repeated registry lookups and web searches.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache stores JSON-encoded values with a time-to-live.
type Cache interface {
	// Get decodes the value stored at key into dest. It reports false on a
	// miss or an expired entry.
	Get(ctx context.Context, key string, dest any) (bool, error)
	Set(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// DefaultTTL is used when Set is called with a non-positive ttl.
const DefaultTTL = time.Hour

// Key builds a "{namespace}:{identifier}" cache key.
func Key(namespace, identifier string) string {
	return namespace + ":" + identifier
}

// Badger is a Cache backed by BadgerDB.
type Badger struct {
	db *badger.DB
}

// Open opens a badger cache rooted at dir. An empty dir keeps the data in
// memory only.
func Open(dir string) (*Badger, error) {
	opts := badger.DefaultOptions(dir).WithLogger(zapLogger{zap.L().Named("badger")})
	if dir == "" {
		opts = opts.WithInMemory(true)
	}
	db, err := badger.Open(opts)
	if err != nil {
		return nil, eris.Wrap(err, "cache: open badger")
	}
	return &Badger{db: db}, nil
}

// Get implements Cache.
func (b *Badger) Get(ctx context.Context, key string, dest any) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	var raw []byte
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		raw, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, eris.Wrapf(err, "cache: get %s", key)
	}

	if err := json.Unmarshal(raw, dest); err != nil {
		return false, eris.Wrapf(err, "cache: decode %s", key)
	}
	return true, nil
}

// Set implements Cache.
func (b *Badger) Set(ctx context.Context, key string, value any, ttl time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if ttl <= 0 {
		ttl = DefaultTTL
	}

	raw, err := json.Marshal(value)
	if err != nil {
		return eris.Wrapf(err, "cache: encode %s", key)
	}

	err = b.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry([]byte(key), raw).WithTTL(ttl))
	})
	if err != nil {
		return eris.Wrapf(err, "cache: set %s", key)
	}
	return nil
}

// Delete implements Cache.
func (b *Badger) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := b.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(key))
	})
	if err != nil {
		return eris.Wrapf(err, "cache: delete %s", key)
	}
	return nil
}

// Close flushes and closes the database.
func (b *Badger) Close() error {
	return b.db.Close()
}

// zapLogger adapts a zap logger to badger.Logger. Badger is chatty at info
// level, so its info messages are logged at debug.
type zapLogger struct {
	l *zap.Logger
}

func (z zapLogger) Errorf(format string, args ...any) {
	z.l.Sugar().Errorf(format, args...)
}

func (z zapLogger) Warningf(format string, args ...any) {
	z.l.Sugar().Warnf(format, args...)
}

func (z zapLogger) Infof(format string, args ...any) {
	z.l.Sugar().Debugf(format, args...)
}

func (z zapLogger) Debugf(format string, args ...any) {
	z.l.Sugar().Debugf(format, args...)
}

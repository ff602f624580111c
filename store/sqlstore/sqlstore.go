// Package sqlstore is a store.Backend in a single SQL table.
// It supports sqlite3 and postgres.
package sqlstore

import (
	"context"
	"database/sql"
	"time"

	"github.com/bobg/sqlutil"
	"github.com/chain/txvm/errors"
	i10rnet "github.com/interstellar/starlight/net"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending/store"
)

// ErrDriver is returned by New for a driver other than sqlite3 or postgres.
var ErrDriver = errors.New("unsupported sql driver")

// Number of times Apply retries a commit that lost a lock.
const maxCommitRetries = 8

type Store struct {
	db     *sql.DB
	driver string
	logger *zap.Logger
}

var _ store.Backend = (*Store)(nil)

// Open opens a database with the given driver and data source and migrates it.
func Open(ctx context.Context, driver, dsn string, logger *zap.Logger) (*Store, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "opening %s db", driver)
	}
	s, err := New(ctx, db, driver, logger)
	if err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// New wraps an open db, creating or migrating its schema as needed.
func New(ctx context.Context, db *sql.DB, driver string, logger *zap.Logger) (*Store, error) {
	mt, ok := migrationsTable[driver]
	if !ok {
		return nil, errors.WithData(ErrDriver, "driver", driver)
	}
	if driver == "sqlite3" {
		// Serialize writers in this process; sqlite allows only one anyway.
		db.SetMaxOpenConns(1)
	}
	_, err := db.ExecContext(ctx, mt)
	if err != nil {
		return nil, errors.Wrap(err, "creating migrations table")
	}
	err = sqlutil.Migrate(ctx, db, migrations[driver])
	if err != nil {
		return nil, errors.Wrap(err, "migrating db")
	}
	return &Store{db: db, driver: driver, logger: logger}, nil
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	var value []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, errors.Wrapf(store.ErrNotFound, "key %s", key)
	}
	return value, errors.Wrapf(err, "reading key %s", key)
}

func (s *Store) Range(ctx context.Context, prefix string, fn func(string, []byte) error) error {
	var (
		q    = `SELECT key, value FROM kv WHERE key >= $1 ORDER BY key`
		args = []interface{}{prefix}
	)
	if end := store.PrefixEnd(prefix); end != "" {
		q = `SELECT key, value FROM kv WHERE key >= $1 AND key < $2 ORDER BY key`
		args = append(args, end)
	}
	// Rows are drained before fn runs, so fn may use s (sqlite has one connection).
	var writes []store.Write
	args = append(args, func(key string, value []byte) {
		writes = append(writes, store.Write{Key: key, Value: value})
	})
	err := sqlutil.ForQueryRows(ctx, s.db, q, args...)
	if err != nil {
		return errors.Wrapf(err, "scanning prefix %s", prefix)
	}
	for _, w := range writes {
		if err = fn(w.Key, w.Value); err != nil {
			return err
		}
	}
	return nil
}

// Apply commits writes in one db transaction,
// retrying with backoff when the db reports lock contention.
func (s *Store) Apply(ctx context.Context, writes []store.Write) error {
	backoff := i10rnet.Backoff{Base: 10 * time.Millisecond}
	for attempt := 1; ; attempt++ {
		err := s.apply(ctx, writes)
		if err == nil || !retryable(err) || attempt >= maxCommitRetries {
			return err
		}
		dur := backoff.Next()
		s.logger.Warn("retrying commit", zap.Int("attempt", attempt), zap.Duration("wait", dur), zap.Error(err))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
		}
	}
}

func (s *Store) apply(ctx context.Context, writes []store.Write) error {
	dbtx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "beginning db transaction")
	}
	defer dbtx.Rollback()

	const q = `INSERT INTO kv (key, value) VALUES ($1, $2) ON CONFLICT (key) DO UPDATE SET value = excluded.value`
	for _, w := range writes {
		_, err = dbtx.ExecContext(ctx, q, w.Key, w.Value)
		if err != nil {
			return errors.Wrapf(err, "writing key %s", w.Key)
		}
	}
	return errors.Wrap(dbtx.Commit(), "committing db transaction")
}

func (s *Store) Close() error {
	return s.db.Close()
}

// retryable reports whether err is a lock conflict that a later attempt may avoid.
func retryable(err error) bool {
	switch e := errors.Root(err).(type) {
	case sqlite3.Error:
		return e.Code == sqlite3.ErrBusy || e.Code == sqlite3.ErrLocked
	case *pq.Error:
		return e.Code.Name() == "serialization_failure" || e.Code.Name() == "deadlock_detected"
	}
	return false
}

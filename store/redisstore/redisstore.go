// Package redisstore is a store.Backend in a Redis keyspace.
package redisstore

import (
	"context"
	"sort"
	"strings"

	"github.com/chain/txvm/errors"
	"github.com/redis/go-redis/v9"

	"github.com/interstellar/slingshot/vending/store"
)

// DefaultNamespace prefixes every key this package writes.
const DefaultNamespace = "vending:"

type Store struct {
	rdb redis.UniversalClient
	ns  string
}

var _ store.Backend = (*Store)(nil)

// Open connects to the Redis server at url (redis://...) and checks that it answers.
func Open(ctx context.Context, url, namespace string) (*Store, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parsing redis url")
	}
	rdb := redis.NewClient(opts)
	if err = rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, errors.Wrap(err, "pinging redis")
	}
	return New(rdb, namespace), nil
}

// New wraps an existing client. An empty namespace means DefaultNamespace.
func New(rdb redis.UniversalClient, namespace string) *Store {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	return &Store{rdb: rdb, ns: namespace}
}

func (s *Store) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := s.rdb.Get(ctx, s.ns+key).Bytes()
	if err == redis.Nil {
		return nil, errors.Wrapf(store.ErrNotFound, "key %s", key)
	}
	return v, errors.Wrapf(err, "reading key %s", key)
}

func (s *Store) Range(ctx context.Context, prefix string, fn func(string, []byte) error) error {
	// SCAN may report a key more than once.
	seen := make(map[string]struct{})
	var keys []string
	iter := s.rdb.Scan(ctx, 0, globEscape(s.ns+prefix)+"*", 256).Iterator()
	for iter.Next(ctx) {
		k := iter.Val()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		keys = append(keys, k)
	}
	if err := iter.Err(); err != nil {
		return errors.Wrapf(err, "scanning prefix %s", prefix)
	}
	if len(keys) == 0 {
		return nil
	}
	sort.Strings(keys)

	vals, err := s.rdb.MGet(ctx, keys...).Result()
	if err != nil {
		return errors.Wrapf(err, "reading prefix %s", prefix)
	}
	for i, k := range keys {
		v, ok := vals[i].(string)
		if !ok {
			// Vanished between SCAN and MGET.
			continue
		}
		if err = fn(strings.TrimPrefix(k, s.ns), []byte(v)); err != nil {
			return err
		}
	}
	return nil
}

// Apply commits writes in one MULTI/EXEC block.
func (s *Store) Apply(ctx context.Context, writes []store.Write) error {
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		for _, w := range writes {
			pipe.Set(ctx, s.ns+w.Key, w.Value, 0)
		}
		return nil
	})
	return errors.Wrap(err, "committing to redis")
}

func (s *Store) Close() error {
	return s.rdb.Close()
}

func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

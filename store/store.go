// Package store defines the keyed storage the vending contract runs against.
//
// A Backend holds committed state. Each invocation works inside a Tx,
// which buffers its writes and reads them back, and hands them to
// Backend.Apply in a single batch when the invocation succeeds.
package store

import (
	"context"

	"github.com/chain/txvm/errors"
)

// ErrNotFound is returned by Get when a key has never been written.
var ErrNotFound = errors.New("key not found")

// Write is one key/value pair in a commit.
type Write struct {
	Key   string
	Value []byte
}

// Reader is read access to keyed state.
type Reader interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Range calls fn for every key with the given prefix, in ascending key order.
	// A non-nil error from fn stops the iteration and is returned.
	Range(ctx context.Context, prefix string, fn func(key string, value []byte) error) error
}

// Backend is committed keyed state.
type Backend interface {
	Reader

	// Apply commits writes atomically: either all of them become visible or none do.
	Apply(ctx context.Context, writes []Write) error

	Close() error
}

// PrefixEnd returns the smallest string greater than every string with the given prefix,
// or "" if there is no such string.
func PrefixEnd(prefix string) string {
	b := []byte(prefix)
	for i := len(b) - 1; i >= 0; i-- {
		if b[i] < 0xff {
			b[i]++
			return string(b[:i+1])
		}
	}
	return ""
}

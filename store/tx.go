package store

import (
	"context"
	"sort"
	"strings"
)

// Tx is a write buffer over a Reader.
// Reads through a Tx observe its own pending writes.
// Nothing reaches the underlying state until the caller passes Writes to Backend.Apply.
type Tx struct {
	r       Reader
	pending map[string][]byte
}

// NewTx produces a Tx reading through to r.
func NewTx(r Reader) *Tx {
	return &Tx{r: r, pending: make(map[string][]byte)}
}

// Get implements Reader.
func (tx *Tx) Get(ctx context.Context, key string) ([]byte, error) {
	if v, ok := tx.pending[key]; ok {
		return v, nil
	}
	return tx.r.Get(ctx, key)
}

// Set records a pending write of value under key.
func (tx *Tx) Set(key string, value []byte) {
	tx.pending[key] = append([]byte(nil), value...)
}

// Range implements Reader, merging pending writes into the underlying range.
func (tx *Tx) Range(ctx context.Context, prefix string, fn func(key string, value []byte) error) error {
	merged := make(map[string][]byte)
	err := tx.r.Range(ctx, prefix, func(k string, v []byte) error {
		merged[k] = v
		return nil
	})
	if err != nil {
		return err
	}
	for k, v := range tx.pending {
		if strings.HasPrefix(k, prefix) {
			merged[k] = v
		}
	}
	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if err := fn(k, merged[k]); err != nil {
			return err
		}
	}
	return nil
}

// Writes returns the pending writes in key order.
func (tx *Tx) Writes() []Write {
	writes := make([]Write, 0, len(tx.pending))
	for k, v := range tx.pending {
		writes = append(writes, Write{Key: k, Value: v})
	}
	sort.Slice(writes, func(i, j int) bool { return writes[i].Key < writes[j].Key })
	return writes
}

// Len is the number of pending writes.
func (tx *Tx) Len() int {
	return len(tx.pending)
}

package host

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/chain/txvm/errors"
	"github.com/google/uuid"

	"github.com/interstellar/slingshot/vending"
	"github.com/interstellar/slingshot/vending/store"
)

const (
	heightKey     = "host/height"
	journalPrefix = "host/journal/"
)

// Invocation is the journal record of one committed operation.
type Invocation struct {
	ID         uuid.UUID           `json:"id"`
	Height     uint64              `json:"height"`
	TimeMS     uint64              `json:"time_ms"`
	Sender     vending.Addr        `json:"sender"`
	Action     string              `json:"action"`
	Msg        json.RawMessage     `json:"msg"`
	Attributes []vending.Attribute `json:"attributes"`
}

// Heights are zero-padded so that key order is height order.
func journalKey(height uint64) string {
	return fmt.Sprintf("%s%020d", journalPrefix, height)
}

func readHeight(ctx context.Context, r store.Reader) (uint64, error) {
	bits, err := r.Get(ctx, heightKey)
	if errors.Root(err) == store.ErrNotFound {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "reading height")
	}
	h, err := strconv.ParseUint(string(bits), 10, 64)
	return h, errors.Wrap(err, "parsing height")
}

func getInvocation(ctx context.Context, r store.Reader, height uint64) (*Invocation, error) {
	bits, err := r.Get(ctx, journalKey(height))
	if err != nil {
		return nil, errors.Wrapf(err, "reading invocation %d", height)
	}
	inv := new(Invocation)
	err = json.Unmarshal(bits, inv)
	return inv, errors.Wrapf(err, "decoding invocation %d", height)
}

// listInvocations returns up to limit journaled invocations above height after, in height order.
// A limit of zero or less means no limit.
func listInvocations(ctx context.Context, r store.Reader, after uint64, limit int) ([]*Invocation, error) {
	var (
		invs []*Invocation
		done = errors.New("done")
	)
	err := r.Range(ctx, journalPrefix, func(key string, value []byte) error {
		if key <= journalKey(after) {
			return nil
		}
		inv := new(Invocation)
		if err := json.Unmarshal(value, inv); err != nil {
			return errors.Wrapf(err, "decoding %s", key)
		}
		invs = append(invs, inv)
		if limit > 0 && len(invs) >= limit {
			return done
		}
		return nil
	})
	if errors.Root(err) == done {
		err = nil
	}
	return invs, errors.Wrap(err, "listing invocations")
}

package vending

import (
	"context"
	"encoding/json"

	"github.com/chain/txvm/errors"

	"github.com/interstellar/slingshot/vending/store"
)

// Storage keys. Every value is JSON.
const (
	adminKey        = "admin"
	contractInfoKey = "contract_info"
	balancePrefix   = "balance/"
	beveragePrefix  = "beverages/"
)

func balanceKey(a Addr) string {
	return balancePrefix + string(a)
}

func beverageKey(bevType string) string {
	return beveragePrefix + bevType
}

// load decodes the value at key into v.
// It reports false, with no error, if the key was never written.
func load(ctx context.Context, r store.Reader, key string, v interface{}) (bool, error) {
	bits, err := r.Get(ctx, key)
	if errors.Root(err) == store.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrapf(err, "reading %s", key)
	}
	err = json.Unmarshal(bits, v)
	if err != nil {
		return false, errors.Wrapf(err, "decoding %s", key)
	}
	return true, nil
}

func save(s Storage, key string, v interface{}) error {
	bits, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encoding %s", key)
	}
	s.Set(key, bits)
	return nil
}

func loadAdmin(ctx context.Context, r store.Reader) (Addr, error) {
	var admin Addr
	ok, err := load(ctx, r, adminKey, &admin)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrNotInstantiated
	}
	return admin, nil
}

// requireAdmin fails with ErrUnauthorized unless sender is the admin.
func requireAdmin(ctx context.Context, r store.Reader, sender Addr) error {
	admin, err := loadAdmin(ctx, r)
	if err != nil {
		return err
	}
	if sender != admin {
		return errors.WithData(ErrUnauthorized, "sender", string(sender))
	}
	return nil
}

// ContractInfo names the code that owns a contract's state.
type ContractInfo struct {
	Contract string `json:"contract"`
	Version  string `json:"version"`
}

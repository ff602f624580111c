package vending

import (
	"context"
	"encoding/json"

	"github.com/chain/txvm/errors"

	"github.com/interstellar/slingshot/vending/store"
)

// MaxStock is the most units of one beverage the machine holds.
const MaxStock = 50

// BeverageStat is the catalog record for one beverage.
type BeverageStat struct {
	Price  Coins `json:"price"`
	Amount uint8 `json:"amount"`
}

func (b BeverageStat) refill(n uint8) (BeverageStat, error) {
	if int(b.Amount)+int(n) > MaxStock {
		return b, errors.WithData(ErrCapacityExceeded, "stock", b.Amount, "refill", n, "capacity", MaxStock)
	}
	b.Amount += n
	return b, nil
}

func (b BeverageStat) sell() (BeverageStat, error) {
	if b.Amount == 0 {
		return b, ErrSoldOut
	}
	b.Amount--
	return b, nil
}

// updateBeverage replaces the record for bevType with the result of f.
// If f fails nothing is written.
func updateBeverage(ctx context.Context, s Storage, bevType string, f func(stat BeverageStat, ok bool) (BeverageStat, error)) (BeverageStat, error) {
	var stat BeverageStat
	ok, err := load(ctx, s, beverageKey(bevType), &stat)
	if err != nil {
		return stat, err
	}
	stat, err = f(stat, ok)
	if err != nil {
		return stat, err
	}
	return stat, save(s, beverageKey(bevType), stat)
}

func loadBeverage(ctx context.Context, r store.Reader, bevType string) (BeverageStat, error) {
	var stat BeverageStat
	ok, err := load(ctx, r, beverageKey(bevType), &stat)
	if err != nil {
		return stat, err
	}
	if !ok {
		return stat, errors.WithData(ErrNotFound, "beverage_type", bevType)
	}
	return stat, nil
}

// upsertBeverage sets the price of bevType, creating it with no stock if needed.
func upsertBeverage(ctx context.Context, s Storage, bevType string, price Coins) error {
	_, err := updateBeverage(ctx, s, bevType, func(stat BeverageStat, _ bool) (BeverageStat, error) {
		stat.Price = price
		return stat, nil
	})
	return errors.Wrapf(err, "setting price of %s", bevType)
}

func refillBeverage(ctx context.Context, s Storage, bevType string, n uint8) (BeverageStat, error) {
	stat, err := updateBeverage(ctx, s, bevType, func(stat BeverageStat, ok bool) (BeverageStat, error) {
		if !ok {
			return stat, errors.WithData(ErrNotFound, "beverage_type", bevType)
		}
		return stat.refill(n)
	})
	return stat, errors.Wrapf(err, "refilling %s", bevType)
}

// decrementBeverage removes exactly one unit of bevType from stock.
func decrementBeverage(ctx context.Context, s Storage, bevType string) error {
	_, err := updateBeverage(ctx, s, bevType, func(stat BeverageStat, ok bool) (BeverageStat, error) {
		if !ok {
			return stat, errors.WithData(ErrNotFound, "beverage_type", bevType)
		}
		return stat.sell()
	})
	return errors.Wrapf(err, "dispensing %s", bevType)
}

// BeverageEntry pairs a beverage type with its record.
type BeverageEntry struct {
	BevType string `json:"bev_type"`
	BeverageStat
}

func listBeverages(ctx context.Context, r store.Reader) ([]BeverageEntry, error) {
	var entries []BeverageEntry
	err := r.Range(ctx, beveragePrefix, func(key string, value []byte) error {
		var stat BeverageStat
		if err := json.Unmarshal(value, &stat); err != nil {
			return errors.Wrapf(err, "decoding %s", key)
		}
		entries = append(entries, BeverageEntry{BevType: key[len(beveragePrefix):], BeverageStat: stat})
		return nil
	})
	return entries, errors.Wrap(err, "listing beverages")
}

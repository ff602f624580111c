package vending

import (
	"context"

	"github.com/chain/txvm/errors"

	"github.com/interstellar/slingshot/vending/store"
)

// balanceOf reads the balance of a, which is zero if never written.
func balanceOf(ctx context.Context, r store.Reader, a Addr) (Coins, error) {
	var bal Coins
	_, err := load(ctx, r, balanceKey(a), &bal)
	return bal, err
}

// updateBalance replaces the balance of a with the result of f.
// The existing balance, and whether one was ever written, are passed to f.
// If f fails nothing is written.
func updateBalance(ctx context.Context, s Storage, a Addr, f func(bal Coins, ok bool) (Coins, error)) (Coins, error) {
	var bal Coins
	ok, err := load(ctx, s, balanceKey(a), &bal)
	if err != nil {
		return 0, err
	}
	bal, err = f(bal, ok)
	if err != nil {
		return 0, err
	}
	return bal, save(s, balanceKey(a), bal)
}

func credit(ctx context.Context, s Storage, a Addr, amount Coins) error {
	_, err := updateBalance(ctx, s, a, func(bal Coins, _ bool) (Coins, error) {
		return bal.add(amount)
	})
	return errors.Wrapf(err, "crediting %s with %d", a, amount)
}

func debit(ctx context.Context, s Storage, a Addr, amount Coins) error {
	_, err := updateBalance(ctx, s, a, func(bal Coins, _ bool) (Coins, error) {
		return bal.sub(amount)
	})
	return errors.Wrapf(err, "debiting %s by %d", a, amount)
}

type account struct {
	addr    Addr
	balance Coins
}

// seedBalances writes each balance verbatim.
// Addresses must already be validated.
func seedBalances(s Storage, accounts []account) error {
	for _, acct := range accounts {
		if err := save(s, balanceKey(acct.addr), acct.balance); err != nil {
			return err
		}
	}
	return nil
}

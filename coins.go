package vending

import (
	"encoding/json"
	"strconv"

	"github.com/chain/txvm/errors"
)

// Coins is a quantity of the contract's single fungible credit unit.
// It is encoded in JSON as a decimal string.
type Coins uint64

func (c Coins) String() string {
	return strconv.FormatUint(uint64(c), 10)
}

func (c Coins) MarshalJSON() ([]byte, error) {
	return json.Marshal(c.String())
}

func (c *Coins) UnmarshalJSON(b []byte) error {
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return errors.Wrap(ErrInvalidMessage, "coin amount must be a decimal string")
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return errors.Wrapf(ErrInvalidMessage, "coin amount %q: %s", s, err)
	}
	*c = Coins(n)
	return nil
}

// add returns c+d, or ErrOverflow.
func (c Coins) add(d Coins) (Coins, error) {
	sum := c + d
	if sum < c {
		return 0, errors.WithData(ErrOverflow, "balance", uint64(c), "credit", uint64(d))
	}
	return sum, nil
}

// sub returns c-d, or ErrInsufficientFunds.
func (c Coins) sub(d Coins) (Coins, error) {
	if d > c {
		return 0, errors.WithData(ErrInsufficientFunds, "balance", uint64(c), "debit", uint64(d))
	}
	return c - d, nil
}

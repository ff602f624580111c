package vending

import "github.com/chain/txvm/errors"

// Errors returned by contract operations.
// Compare against these with errors.Root.
var (
	ErrUnauthorized      = errors.New("unauthorized")
	ErrNotFound          = errors.New("beverage not found")
	ErrCapacityExceeded  = errors.New("beverage stock would exceed capacity")
	ErrSoldOut           = errors.New("beverage sold out")
	ErrInsufficientFunds = errors.New("not enough coins")
	ErrOverflow          = errors.New("balance overflow")
	ErrInvalidAddress    = errors.New("invalid address")
	ErrInvalidMessage    = errors.New("invalid message")
	ErrNotInstantiated   = errors.New("contract not instantiated")
)

// Kind names the class of err for clients,
// or "internal" if err is not one of this package's errors.
func Kind(err error) string {
	switch errors.Root(err) {
	case ErrUnauthorized:
		return "unauthorized"
	case ErrNotFound:
		return "not_found"
	case ErrCapacityExceeded:
		return "capacity_exceeded"
	case ErrSoldOut:
		return "sold_out"
	case ErrInsufficientFunds:
		return "insufficient_funds"
	case ErrOverflow:
		return "overflow"
	case ErrInvalidAddress:
		return "invalid_address"
	case ErrInvalidMessage:
		return "invalid_message"
	case ErrNotInstantiated:
		return "not_instantiated"
	}
	return "internal"
}

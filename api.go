package vending

import (
	"strings"
	"time"
	"unicode"

	"github.com/chain/txvm/errors"
	"github.com/stellar/go/strkey"

	"github.com/interstellar/slingshot/vending/store"
)

// Addr is a validated account address.
type Addr string

func (a Addr) String() string { return string(a) }

// API validates caller-supplied addresses.
type API interface {
	ValidateAddress(s string) (Addr, error)
}

// StellarAPI accepts Stellar account ids (G...).
type StellarAPI struct{}

func (StellarAPI) ValidateAddress(s string) (Addr, error) {
	if _, err := strkey.Decode(strkey.VersionByteAccountID, s); err != nil {
		return "", errors.Wrapf(ErrInvalidAddress, "%q: %s", s, err)
	}
	return Addr(s), nil
}

// MockAPI accepts any non-empty address free of whitespace.
// It is meant for tests and local experiments.
type MockAPI struct{}

func (MockAPI) ValidateAddress(s string) (Addr, error) {
	if s == "" || strings.IndexFunc(s, unicode.IsSpace) >= 0 {
		return "", errors.Wrapf(ErrInvalidAddress, "%q", s)
	}
	return Addr(s), nil
}

// Storage is the keyed state an invocation reads and writes.
// Writes must not become durable until the invocation succeeds;
// *store.Tx provides that.
type Storage interface {
	store.Reader
	Set(key string, value []byte)
}

// Deps are the collaborators handed to every operation.
type Deps struct {
	Storage Storage
	API     API
}

// Env describes the environment an invocation runs in.
type Env struct {
	// Contract is the contract's own account, which holds sales income.
	Contract Addr
	Height   uint64
	Time     time.Time
}

// MessageInfo identifies the caller of an invocation.
type MessageInfo struct {
	Sender Addr
}

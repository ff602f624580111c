package vending

import (
	"github.com/chain/txvm/protocol/txvm"
	"github.com/stellar/go/strkey"
)

// ContractAddress derives the account that holds a deployment's sales income.
// Distinct labels yield distinct, stable addresses, and no ed25519 key is known for any of them.
func ContractAddress(label string) Addr {
	h := txvm.VMHash("VendingContractAccount", []byte(label))
	s, err := strkey.Encode(strkey.VersionByteAccountID, h[:])
	if err != nil {
		// Encode fails only for oversized payloads.
		panic(err)
	}
	return Addr(s)
}

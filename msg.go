package vending

import (
	"bytes"
	"encoding/json"
	"io"

	"github.com/chain/txvm/errors"
)

// InitialBalance is one account seeded at instantiation.
type InitialBalance struct {
	Address string `json:"address"`
	Amount  Coins  `json:"amount"`
}

// InstantiateMsg creates a contract.
type InstantiateMsg struct {
	InitialBalances []InitialBalance `json:"initial_balances"`
	Admin           string           `json:"admin"`
}

// ExecuteMsg is a state-changing request. Exactly one field must be set.
type ExecuteMsg struct {
	UpdateBeverage *UpdateBeverage `json:"update_beverage,omitempty"`
	RefillBeverage *RefillBeverage `json:"refill_beverage,omitempty"`
	Purchase       *Purchase       `json:"purchase,omitempty"`
	WithdrawIncome *WithdrawIncome `json:"withdraw_income,omitempty"`
}

type UpdateBeverage struct {
	BevType string `json:"bev_type"`
	Price   Coins  `json:"price"`
}

type RefillBeverage struct {
	BevType string `json:"bev_type"`
	Amount  uint8  `json:"amount"`
}

type Purchase struct {
	BevType string `json:"bev_type"`
}

type WithdrawIncome struct{}

func (b *InitialBalance) UnmarshalJSON(data []byte) error {
	type plain InitialBalance
	return decodeFields(data, (*plain)(b), "address", "amount")
}

func (u *UpdateBeverage) UnmarshalJSON(data []byte) error {
	type plain UpdateBeverage
	return decodeFields(data, (*plain)(u), "bev_type", "price")
}

func (r *RefillBeverage) UnmarshalJSON(data []byte) error {
	type plain RefillBeverage
	return decodeFields(data, (*plain)(r), "bev_type", "amount")
}

func (p *Purchase) UnmarshalJSON(data []byte) error {
	type plain Purchase
	return decodeFields(data, (*plain)(p), "bev_type")
}

// Action is the snake_case name of the operation m requests, or "" if m is malformed.
func (m ExecuteMsg) Action() string {
	var names []string
	if m.UpdateBeverage != nil {
		names = append(names, "update_beverage")
	}
	if m.RefillBeverage != nil {
		names = append(names, "refill_beverage")
	}
	if m.Purchase != nil {
		names = append(names, "purchase")
	}
	if m.WithdrawIncome != nil {
		names = append(names, "withdraw_income")
	}
	if len(names) != 1 {
		return ""
	}
	return names[0]
}

// QueryMsg is a read-only request. Exactly one field must be set.
type QueryMsg struct {
	Balance      *BalanceQuery      `json:"balance,omitempty"`
	BeverageStat *BeverageStatQuery `json:"beverage_stat,omitempty"`
	Beverages    *BeveragesQuery    `json:"beverages,omitempty"`
	ContractInfo *ContractInfoQuery `json:"contract_info,omitempty"`
}

type BalanceQuery struct {
	Address string `json:"address"`
}

type BeverageStatQuery struct {
	BevType string `json:"bev_type"`
}

func (q *BalanceQuery) UnmarshalJSON(data []byte) error {
	type plain BalanceQuery
	return decodeFields(data, (*plain)(q), "address")
}

func (q *BeverageStatQuery) UnmarshalJSON(data []byte) error {
	type plain BeverageStatQuery
	return decodeFields(data, (*plain)(q), "bev_type")
}

type BeveragesQuery struct{}

type ContractInfoQuery struct{}

func (m QueryMsg) count() int {
	n := 0
	if m.Balance != nil {
		n++
	}
	if m.BeverageStat != nil {
		n++
	}
	if m.Beverages != nil {
		n++
	}
	if m.ContractInfo != nil {
		n++
	}
	return n
}

// BalanceResponse answers a balance query.
type BalanceResponse struct {
	Balance Coins `json:"balance"`
}

// BeveragesResponse answers a beverages query, in beverage-type order.
type BeveragesResponse struct {
	Beverages []BeverageEntry `json:"beverages"`
}

// ParseInstantiateMsg decodes a JSON instantiate message.
func ParseInstantiateMsg(b []byte) (InstantiateMsg, error) {
	var m InstantiateMsg
	err := decodeStrict(b, &m)
	return m, err
}

// ParseExecuteMsg decodes and checks a JSON execute message.
func ParseExecuteMsg(b []byte) (ExecuteMsg, error) {
	var m ExecuteMsg
	if err := decodeStrict(b, &m); err != nil {
		return m, err
	}
	if m.Action() == "" {
		return m, errors.Wrap(ErrInvalidMessage, "execute message must name exactly one operation")
	}
	return m, nil
}

// ParseQueryMsg decodes and checks a JSON query message.
func ParseQueryMsg(b []byte) (QueryMsg, error) {
	var m QueryMsg
	if err := decodeStrict(b, &m); err != nil {
		return m, err
	}
	if m.count() != 1 {
		return m, errors.Wrap(ErrInvalidMessage, "query message must name exactly one query")
	}
	return m, nil
}

// decodeStrict decodes exactly one JSON value from b into v,
// rejecting unknown fields and trailing data.
func decodeStrict(b []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		if errors.Root(err) == ErrInvalidMessage {
			return err
		}
		return errors.Wrap(ErrInvalidMessage, err.Error())
	}
	if dec.Decode(&struct{}{}) != io.EOF {
		return errors.Wrap(ErrInvalidMessage, "trailing data after message")
	}
	return nil
}

// decodeFields is decodeStrict for an object whose named fields must all be present and non-null.
func decodeFields(b []byte, v interface{}, required ...string) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return errors.Wrap(ErrInvalidMessage, err.Error())
	}
	for _, name := range required {
		raw, ok := fields[name]
		if !ok || string(raw) == "null" {
			return errors.Wrapf(ErrInvalidMessage, "missing field %s", name)
		}
	}
	return decodeStrict(b, v)
}

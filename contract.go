// Package vending implements a vending-machine contract:
// a ledger of customer balances, a catalog of beverages with price and stock,
// and a single admin who manages the catalog and collects sales income.
//
// Operations are pure functions of their Deps.
// Each either returns a Response, having written its changes through Deps.Storage,
// or returns an error, in which case the caller must discard everything written.
// The host package runs operations that way.
package vending

import (
	"context"
	"encoding/json"
	"strconv"

	"github.com/chain/txvm/errors"
)

// Recorded in contract_info at instantiation.
const (
	ContractName    = "slingshot:vending"
	ContractVersion = "1.0.0"
)

// Config holds contract behavior options.
type Config struct {
	// CheckStockFirst makes Purchase reject a sold-out beverage
	// before examining the buyer's balance.
	// By default the balance is debited first,
	// so a buyer who is both short of coins and facing an empty slot sees ErrInsufficientFunds.
	CheckStockFirst bool
}

// Contract dispatches messages to operations.
type Contract struct {
	Config Config
}

// Instantiate seeds the ledger, records the admin and zeroes the contract's own balance.
func (c *Contract) Instantiate(ctx context.Context, deps Deps, env Env, info MessageInfo, msg InstantiateMsg) (*Response, error) {
	admin, err := deps.API.ValidateAddress(msg.Admin)
	if err != nil {
		return nil, errors.Wrap(err, "validating admin")
	}
	accounts := make([]account, 0, len(msg.InitialBalances))
	for i, ib := range msg.InitialBalances {
		addr, err := deps.API.ValidateAddress(ib.Address)
		if err != nil {
			return nil, errors.Wrapf(err, "validating initial balance %d", i)
		}
		accounts = append(accounts, account{addr: addr, balance: ib.Amount})
	}

	err = save(deps.Storage, contractInfoKey, ContractInfo{Contract: ContractName, Version: ContractVersion})
	if err != nil {
		return nil, err
	}
	if err = seedBalances(deps.Storage, accounts); err != nil {
		return nil, err
	}
	if err = save(deps.Storage, balanceKey(env.Contract), Coins(0)); err != nil {
		return nil, err
	}
	if err = save(deps.Storage, adminKey, admin); err != nil {
		return nil, err
	}

	resp := new(Response).
		add("method", "instantiate").
		add("owner", string(info.Sender))
	return resp, nil
}

// Execute runs a state-changing message.
func (c *Contract) Execute(ctx context.Context, deps Deps, env Env, info MessageInfo, msg ExecuteMsg) (*Response, error) {
	switch {
	case msg.Action() == "":
		return nil, errors.Wrap(ErrInvalidMessage, "execute message must name exactly one operation")
	case msg.UpdateBeverage != nil:
		return c.UpdateBeverage(ctx, deps, info, msg.UpdateBeverage.BevType, msg.UpdateBeverage.Price)
	case msg.RefillBeverage != nil:
		return c.RefillBeverage(ctx, deps, info, msg.RefillBeverage.BevType, msg.RefillBeverage.Amount)
	case msg.Purchase != nil:
		return c.Purchase(ctx, deps, env, info, msg.Purchase.BevType)
	default:
		return c.WithdrawIncome(ctx, deps, env, info)
	}
}

// UpdateBeverage sets the price of a beverage, adding it to the catalog with no stock if it is new.
// Only the admin may call it.
func (c *Contract) UpdateBeverage(ctx context.Context, deps Deps, info MessageInfo, bevType string, price Coins) (*Response, error) {
	if err := requireAdmin(ctx, deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	if err := upsertBeverage(ctx, deps.Storage, bevType, price); err != nil {
		return nil, err
	}
	resp := new(Response).
		add("beverage_type", bevType).
		add("price", price.String())
	return resp, nil
}

// RefillBeverage adds stock to an existing beverage. Only the admin may call it.
func (c *Contract) RefillBeverage(ctx context.Context, deps Deps, info MessageInfo, bevType string, amount uint8) (*Response, error) {
	if err := requireAdmin(ctx, deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	if _, err := refillBeverage(ctx, deps.Storage, bevType, amount); err != nil {
		return nil, err
	}
	resp := new(Response).
		add("action", "refill").
		add("beverage_type", bevType).
		add("amount", strconv.Itoa(int(amount)))
	return resp, nil
}

// Purchase sells one unit of a beverage to the caller,
// moving its price from the caller's balance to the contract's.
func (c *Contract) Purchase(ctx context.Context, deps Deps, env Env, info MessageInfo, bevType string) (*Response, error) {
	stat, err := loadBeverage(ctx, deps.Storage, bevType)
	if err != nil {
		return nil, err
	}
	if c.Config.CheckStockFirst && stat.Amount == 0 {
		return nil, errors.WithData(ErrSoldOut, "beverage_type", bevType)
	}
	if err = debit(ctx, deps.Storage, info.Sender, stat.Price); err != nil {
		return nil, err
	}
	if err = credit(ctx, deps.Storage, env.Contract, stat.Price); err != nil {
		return nil, err
	}
	if err = decrementBeverage(ctx, deps.Storage, bevType); err != nil {
		return nil, err
	}
	resp := new(Response).
		add("action", "purchase").
		add("beverage_type", bevType).
		add("price", stat.Price.String()).
		add("buyer", string(info.Sender))
	return resp, nil
}

// WithdrawIncome moves the contract's entire balance to the admin.
// Only the admin may call it. An empty balance is withdrawn as zero.
func (c *Contract) WithdrawIncome(ctx context.Context, deps Deps, env Env, info MessageInfo) (*Response, error) {
	if err := requireAdmin(ctx, deps.Storage, info.Sender); err != nil {
		return nil, err
	}
	income, err := balanceOf(ctx, deps.Storage, env.Contract)
	if err != nil {
		return nil, err
	}
	if err = credit(ctx, deps.Storage, info.Sender, income); err != nil {
		return nil, err
	}
	if err = debit(ctx, deps.Storage, env.Contract, income); err != nil {
		return nil, err
	}
	resp := new(Response).
		add("action", "withdraw_income").
		add("amount", income.String()).
		add("recipient", string(info.Sender))
	return resp, nil
}

// Query answers a read-only message with its JSON response.
func (c *Contract) Query(ctx context.Context, deps Deps, msg QueryMsg) ([]byte, error) {
	var (
		resp interface{}
		err  error
	)
	switch {
	case msg.count() != 1:
		return nil, errors.Wrap(ErrInvalidMessage, "query message must name exactly one query")
	case msg.Balance != nil:
		resp, err = QueryBalance(ctx, deps, msg.Balance.Address)
	case msg.BeverageStat != nil:
		resp, err = QueryBeverageStat(ctx, deps, msg.BeverageStat.BevType)
	case msg.Beverages != nil:
		resp, err = QueryBeverages(ctx, deps)
	default:
		resp, err = QueryContractInfo(ctx, deps)
	}
	if err != nil {
		return nil, err
	}
	return json.Marshal(resp)
}

// QueryBalance reports the balance of address, zero if it has none.
func QueryBalance(ctx context.Context, deps Deps, address string) (BalanceResponse, error) {
	addr, err := deps.API.ValidateAddress(address)
	if err != nil {
		return BalanceResponse{}, err
	}
	bal, err := balanceOf(ctx, deps.Storage, addr)
	return BalanceResponse{Balance: bal}, err
}

// QueryBeverageStat reports the price and stock of a beverage.
func QueryBeverageStat(ctx context.Context, deps Deps, bevType string) (BeverageStat, error) {
	return loadBeverage(ctx, deps.Storage, bevType)
}

// QueryBeverages lists the whole catalog.
func QueryBeverages(ctx context.Context, deps Deps) (BeveragesResponse, error) {
	entries, err := listBeverages(ctx, deps.Storage)
	if entries == nil {
		entries = []BeverageEntry{}
	}
	return BeveragesResponse{Beverages: entries}, err
}

// QueryContractInfo reports the code name and version recorded at instantiation.
func QueryContractInfo(ctx context.Context, deps Deps) (ContractInfo, error) {
	var info ContractInfo
	ok, err := load(ctx, deps.Storage, contractInfoKey, &info)
	if err == nil && !ok {
		err = ErrNotInstantiated
	}
	return info, err
}

// QueryAdmin reports the admin address.
func QueryAdmin(ctx context.Context, deps Deps) (Addr, error) {
	return loadAdmin(ctx, deps.Storage)
}

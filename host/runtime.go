// Package host runs the vending contract against a store.Backend.
//
// A Runtime serializes invocations. Each one reads and writes through its own store.Tx;
// its writes, its journal record and the new height are committed together
// or, if the contract rejects the invocation, not at all.
// Committed invocations are fanned out to followers.
package host

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/bobg/multichan"
	"github.com/chain/txvm/errors"
	"github.com/chain/txvm/protocol/bc"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending"
	"github.com/interstellar/slingshot/vending/store"
)

var (
	ErrAlreadyInstantiated = errors.New("contract already instantiated")
	ErrClosed              = errors.New("runtime closed")
)

// Options configure a Runtime.
type Options struct {
	Config vending.Config

	// API validates addresses. Default vending.StellarAPI.
	API vending.API

	// Label selects the contract's own account; see vending.ContractAddress.
	Label string

	// Default zap.NewNop().
	Logger *zap.Logger

	// Default time.Now.
	Now func() time.Time
}

// Runtime hosts one vending contract.
type Runtime struct {
	contract *vending.Contract
	api      vending.API
	address  vending.Addr
	backend  store.Backend
	logger   *zap.Logger
	now      func() time.Time

	w *multichan.W // of *Invocation

	mu     sync.Mutex
	height uint64
	closed bool
}

// New produces a Runtime over backend, resuming at the backend's last committed height.
func New(ctx context.Context, backend store.Backend, opts Options) (*Runtime, error) {
	height, err := readHeight(ctx, backend)
	if err != nil {
		return nil, err
	}
	r := &Runtime{
		contract: &vending.Contract{Config: opts.Config},
		api:      opts.API,
		address:  vending.ContractAddress(opts.Label),
		backend:  backend,
		logger:   opts.Logger,
		now:      opts.Now,
		w:        multichan.New((*Invocation)(nil)),
		height:   height,
	}
	if r.api == nil {
		r.api = vending.StellarAPI{}
	}
	if r.logger == nil {
		r.logger = zap.NewNop()
	}
	if r.now == nil {
		r.now = time.Now
	}
	return r, nil
}

// Address is the contract's own account, where sales income accumulates.
func (r *Runtime) Address() vending.Addr {
	return r.address
}

// Height is the number of committed invocations.
func (r *Runtime) Height() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.height
}

// Instantiated reports whether the contract has been created.
func (r *Runtime) Instantiated(ctx context.Context) (bool, error) {
	_, err := vending.QueryAdmin(ctx, r.deps(store.NewTx(r.backend)))
	if errors.Root(err) == vending.ErrNotInstantiated {
		return false, nil
	}
	return err == nil, err
}

// Instantiate creates the contract. It fails with ErrAlreadyInstantiated the second time.
func (r *Runtime) Instantiate(ctx context.Context, sender vending.Addr, msg vending.InstantiateMsg) (*Invocation, error) {
	return r.invoke(ctx, sender, "instantiate", msg, func(ctx context.Context, deps vending.Deps, env vending.Env) (*vending.Response, error) {
		_, err := vending.QueryAdmin(ctx, deps)
		if err == nil {
			return nil, ErrAlreadyInstantiated
		}
		if errors.Root(err) != vending.ErrNotInstantiated {
			return nil, err
		}
		return r.contract.Instantiate(ctx, deps, env, vending.MessageInfo{Sender: sender}, msg)
	})
}

// Execute runs msg on behalf of sender, who must already be authenticated.
func (r *Runtime) Execute(ctx context.Context, sender vending.Addr, msg vending.ExecuteMsg) (*Invocation, error) {
	return r.invoke(ctx, sender, msg.Action(), msg, func(ctx context.Context, deps vending.Deps, env vending.Env) (*vending.Response, error) {
		return r.contract.Execute(ctx, deps, env, vending.MessageInfo{Sender: sender}, msg)
	})
}

// Query answers msg from committed state.
func (r *Runtime) Query(ctx context.Context, msg vending.QueryMsg) ([]byte, error) {
	return r.contract.Query(ctx, r.deps(store.NewTx(r.backend)), msg)
}

// Admin reports the contract's admin.
func (r *Runtime) Admin(ctx context.Context) (vending.Addr, error) {
	return vending.QueryAdmin(ctx, r.deps(store.NewTx(r.backend)))
}

// Invocation returns the journal record at height.
func (r *Runtime) Invocation(ctx context.Context, height uint64) (*Invocation, error) {
	return getInvocation(ctx, r.backend, height)
}

// Invocations lists up to limit journal records above height after.
func (r *Runtime) Invocations(ctx context.Context, after uint64, limit int) ([]*Invocation, error) {
	return listInvocations(ctx, r.backend, after, limit)
}

// Close stops fan-out. Followers return ErrClosed once they have caught up.
func (r *Runtime) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.closed {
		r.closed = true
		r.w.Close()
	}
}

func (r *Runtime) deps(tx *store.Tx) vending.Deps {
	return vending.Deps{Storage: tx, API: r.api}
}

type operation func(context.Context, vending.Deps, vending.Env) (*vending.Response, error)

func (r *Runtime) invoke(ctx context.Context, sender vending.Addr, action string, msg interface{}, op operation) (*Invocation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil, ErrClosed
	}

	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return nil, errors.Wrap(err, "encoding message")
	}

	var (
		now    = r.now()
		height = r.height + 1
		tx     = store.NewTx(r.backend)
		env    = vending.Env{Contract: r.address, Height: height, Time: now}
		log    = r.logger.With(zap.String("sender", string(sender)), zap.String("action", action), zap.Uint64("height", height))
	)

	resp, err := op(ctx, r.deps(tx), env)
	if err != nil {
		log.Info("invocation rejected", zap.String("kind", vending.Kind(err)), zap.Error(err))
		return nil, err
	}

	inv := &Invocation{
		ID:         uuid.New(),
		Height:     height,
		TimeMS:     bc.Millis(now),
		Sender:     sender,
		Action:     action,
		Msg:        msgJSON,
		Attributes: resp.Attributes,
	}
	invJSON, err := json.Marshal(inv)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding invocation %d", height)
	}
	tx.Set(journalKey(height), invJSON)
	tx.Set(heightKey, []byte(strconv.FormatUint(height, 10)))

	err = r.backend.Apply(ctx, tx.Writes())
	if err != nil {
		log.Error("commit failed", zap.Error(err))
		return nil, errors.Wrapf(err, "committing invocation %d", height)
	}
	r.height = height
	r.w.Write(inv)

	log.Info("invocation committed", zap.String("id", inv.ID.String()), zap.Int("writes", tx.Len()))
	return inv, nil
}

package host

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/chain/txvm/errors"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending"
	"github.com/interstellar/slingshot/vending/store"
	"github.com/interstellar/slingshot/vending/store/memstore"
	"github.com/interstellar/slingshot/vending/store/sqlstore"
)

const (
	admin    vending.Addr = "admin"
	customer vending.Addr = "customer"
)

func newTestRuntime(ctx context.Context, t *testing.T, backend store.Backend) *Runtime {
	r, err := New(ctx, backend, Options{
		API:    vending.MockAPI{},
		Label:  "test",
		Logger: zap.NewNop(),
		Now:    func() time.Time { return time.Unix(1700000000, 0) },
	})
	require.NoError(t, err)
	return r
}

func instantiate(ctx context.Context, t *testing.T, r *Runtime) {
	_, err := r.Instantiate(ctx, admin, vending.InstantiateMsg{
		Admin:           string(admin),
		InitialBalances: []vending.InitialBalance{{Address: string(customer), Amount: 10}},
	})
	require.NoError(t, err)
}

func balance(ctx context.Context, t *testing.T, r *Runtime, addr vending.Addr) string {
	out, err := r.Query(ctx, vending.QueryMsg{Balance: &vending.BalanceQuery{Address: string(addr)}})
	require.NoError(t, err)
	return string(out)
}

func TestRuntime(t *testing.T) {
	ctx := context.Background()
	r := newTestRuntime(ctx, t, memstore.New())
	defer r.Close()

	ok, err := r.Instantiated(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	instantiate(ctx, t, r)
	require.Equal(t, uint64(1), r.Height())

	ok, err = r.Instantiated(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	_, err = r.Instantiate(ctx, admin, vending.InstantiateMsg{Admin: string(admin)})
	require.Equal(t, ErrAlreadyInstantiated, errors.Root(err))
	require.Equal(t, uint64(1), r.Height())

	inv, err := r.Execute(ctx, admin, vending.ExecuteMsg{UpdateBeverage: &vending.UpdateBeverage{BevType: "americano", Price: 2}})
	require.NoError(t, err)
	require.Equal(t, uint64(2), inv.Height)
	require.Equal(t, "update_beverage", inv.Action)
	require.JSONEq(t, `{"update_beverage":{"bev_type":"americano","price":"2"}}`, string(inv.Msg))

	// Sold out: the debit has happened inside the invocation, but none of it may land.
	_, err = r.Execute(ctx, customer, vending.ExecuteMsg{Purchase: &vending.Purchase{BevType: "americano"}})
	require.Equal(t, vending.ErrSoldOut, errors.Root(err))
	require.Equal(t, uint64(2), r.Height())
	require.Equal(t, `{"balance":"10"}`, balance(ctx, t, r, customer))
	require.Equal(t, `{"balance":"0"}`, balance(ctx, t, r, r.Address()))

	_, err = r.Execute(ctx, admin, vending.ExecuteMsg{RefillBeverage: &vending.RefillBeverage{BevType: "americano", Amount: 1}})
	require.NoError(t, err)
	inv, err = r.Execute(ctx, customer, vending.ExecuteMsg{Purchase: &vending.Purchase{BevType: "americano"}})
	require.NoError(t, err)
	require.Equal(t, uint64(4), inv.Height)
	require.Equal(t, `{"balance":"8"}`, balance(ctx, t, r, customer))
	require.Equal(t, `{"balance":"2"}`, balance(ctx, t, r, r.Address()))

	got, err := r.Invocation(ctx, 4)
	require.NoError(t, err)
	require.Equal(t, inv.ID, got.ID)
	require.Equal(t, uint64(1700000000000), got.TimeMS)

	invs, err := r.Invocations(ctx, 1, 2)
	require.NoError(t, err)
	require.Len(t, invs, 2)
	require.Equal(t, uint64(2), invs[0].Height)
	require.Equal(t, uint64(3), invs[1].Height)

	_, err = r.Invocation(ctx, 99)
	require.Equal(t, store.ErrNotFound, errors.Root(err))
}

func TestResume(t *testing.T) {
	ctx := context.Background()
	dir, err := ioutil.TempDir("", "host")
	require.NoError(t, err)
	defer os.RemoveAll(dir)

	dbfile := filepath.Join(dir, "vending.db")
	backend, err := sqlstore.Open(ctx, "sqlite3", dbfile, zap.NewNop())
	require.NoError(t, err)

	r := newTestRuntime(ctx, t, backend)
	instantiate(ctx, t, r)
	_, err = r.Execute(ctx, admin, vending.ExecuteMsg{UpdateBeverage: &vending.UpdateBeverage{BevType: "latte", Price: 5}})
	require.NoError(t, err)
	r.Close()
	require.NoError(t, backend.Close())

	backend, err = sqlstore.Open(ctx, "sqlite3", dbfile, zap.NewNop())
	require.NoError(t, err)
	defer backend.Close()

	r = newTestRuntime(ctx, t, backend)
	defer r.Close()
	require.Equal(t, uint64(2), r.Height())

	inv, err := r.Execute(ctx, admin, vending.ExecuteMsg{RefillBeverage: &vending.RefillBeverage{BevType: "latte", Amount: 2}})
	require.NoError(t, err)
	require.Equal(t, uint64(3), inv.Height)

	out, err := r.Query(ctx, vending.QueryMsg{BeverageStat: &vending.BeverageStatQuery{BevType: "latte"}})
	require.NoError(t, err)
	require.JSONEq(t, `{"price":"5","amount":2}`, string(out))
}

func TestClosedRuntime(t *testing.T) {
	ctx := context.Background()
	r := newTestRuntime(ctx, t, memstore.New())
	instantiate(ctx, t, r)
	r.Close()
	r.Close()

	_, err := r.Execute(ctx, admin, vending.ExecuteMsg{WithdrawIncome: &vending.WithdrawIncome{}})
	require.Equal(t, ErrClosed, errors.Root(err))
}

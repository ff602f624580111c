package main

import (
	"context"
	"flag"
	"io/ioutil"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/chain/txvm/errors"
	"github.com/interstellar/starlight/env"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending"
	"github.com/interstellar/slingshot/vending/host"
	"github.com/interstellar/slingshot/vending/httpapi"
	"github.com/interstellar/slingshot/vending/store"
	"github.com/interstellar/slingshot/vending/store/memstore"
	"github.com/interstellar/slingshot/vending/store/redisstore"
	"github.com/interstellar/slingshot/vending/store/sqlstore"
)

func main() {
	ctx := context.Background()

	var (
		addr       = flag.String("addr", env.String("VENDINGD_ADDR", "localhost:2424"), "server listen address")
		backend    = flag.String("backend", env.String("VENDINGD_BACKEND", "sqlite"), "storage backend: memory, sqlite, postgres or redis")
		dbfile     = flag.String("db", env.String("VENDINGD_DB", "vending.db"), "path to sqlite db, or postgres connection url")
		redisURL   = flag.String("redis", env.String("VENDINGD_REDIS", "redis://localhost:6379/0"), "redis url")
		genesis    = flag.String("genesis", env.String("VENDINGD_GENESIS", ""), "path to a JSON instantiate message, applied if the contract does not exist yet")
		creator    = flag.String("creator", env.String("VENDINGD_CREATOR", ""), "account allowed to instantiate the contract over HTTP; if empty, only -genesis can")
		label      = flag.String("label", env.String("VENDINGD_LABEL", "vending"), "deployment label, selects the contract's own account")
		stockFirst = flag.Bool("stock-first", env.Bool("VENDINGD_STOCK_FIRST", false), "reject purchases of sold-out beverages before checking the buyer's balance")
		dev        = flag.Bool("dev", env.Bool("VENDINGD_DEV", false), "human-readable logging")
		mockAddrs  = flag.Bool("mock-addresses", env.Bool("VENDINGD_MOCK_ADDRESSES", false), "accept any address in queries and genesis, not just Stellar account ids")
	)
	flag.Parse()

	var (
		logger *zap.Logger
		err    error
	)
	if *dev {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	be, err := openBackend(ctx, *backend, *dbfile, *redisURL, logger)
	if err != nil {
		logger.Fatal("opening backend", zap.String("backend", *backend), zap.Error(err))
	}
	defer be.Close()

	opts := host.Options{
		Config: vending.Config{CheckStockFirst: *stockFirst},
		Label:  *label,
		Logger: logger,
	}
	if *mockAddrs {
		opts.API = vending.MockAPI{}
	}
	rt, err := host.New(ctx, be, opts)
	if err != nil {
		logger.Fatal("starting runtime", zap.Error(err))
	}

	if *genesis != "" {
		err = applyGenesis(ctx, rt, *genesis)
		if err != nil {
			logger.Fatal("applying genesis", zap.String("file", *genesis), zap.Error(err))
		}
	}

	listener, err := net.Listen("tcp", *addr)
	if err != nil {
		logger.Fatal("listening", zap.Error(err))
	}
	logger.Info("listening",
		zap.String("addr", listener.Addr().String()),
		zap.String("contract", rt.Address().String()),
		zap.Uint64("height", rt.Height()),
	)

	api := httpapi.New(rt, logger)
	api.Creator = vending.Addr(*creator)
	server := &http.Server{Handler: api.Handler()}

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		logger.Info("shutting down", zap.String("signal", sig.String()))
		rt.Close()
		shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	err = server.Serve(listener)
	if err != http.ErrServerClosed {
		logger.Fatal("serving", zap.Error(err))
	}
}

func openBackend(ctx context.Context, kind, dbfile, redisURL string, logger *zap.Logger) (store.Backend, error) {
	switch kind {
	case "memory":
		return memstore.New(), nil
	case "sqlite":
		return sqlstore.Open(ctx, "sqlite3", dbfile, logger)
	case "postgres":
		return sqlstore.Open(ctx, "postgres", dbfile, logger)
	case "redis":
		return redisstore.Open(ctx, redisURL, redisstore.DefaultNamespace)
	}
	return nil, errors.New("unknown backend " + kind)
}

// applyGenesis instantiates the contract from the message in file,
// unless the contract already exists.
// The genesis admin is recorded as the sender.
func applyGenesis(ctx context.Context, rt *host.Runtime, file string) error {
	ok, err := rt.Instantiated(ctx)
	if err != nil {
		return err
	}
	if ok {
		return nil
	}
	bits, err := ioutil.ReadFile(file)
	if err != nil {
		return errors.Wrap(err, "reading genesis")
	}
	msg, err := vending.ParseInstantiateMsg(bits)
	if err != nil {
		return errors.Wrap(err, "parsing genesis")
	}
	_, err = rt.Instantiate(ctx, vending.Addr(msg.Admin), msg)
	return err
}

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strconv"

	"github.com/interstellar/starlight/env"
	"github.com/stellar/go/keypair"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending"
	"github.com/interstellar/slingshot/vending/host"
	"github.com/interstellar/slingshot/vending/httpapi"
)

var (
	args   []string
	logger = zap.NewNop()
)

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	subcommand := os.Args[1]
	args = os.Args[2:]

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, os.Interrupt)
		<-sigs
		cancel()
	}()

	switch subcommand {
	case "update":
		var (
			fs    = newFlagSet("update")
			bev   = fs.String("bev", "", "beverage type")
			price = fs.Uint64("price", 0, "price in coins")
		)
		c := parse(fs)
		requireFlag("bev", *bev)
		execute(ctx, c, vending.ExecuteMsg{UpdateBeverage: &vending.UpdateBeverage{BevType: *bev, Price: vending.Coins(*price)}})

	case "refill":
		var (
			fs     = newFlagSet("refill")
			bev    = fs.String("bev", "", "beverage type")
			amount = fs.Uint("amount", 0, "units to add, 0-255")
		)
		c := parse(fs)
		requireFlag("bev", *bev)
		if *amount > 255 {
			fatalf("amount %d out of range", *amount)
		}
		execute(ctx, c, vending.ExecuteMsg{RefillBeverage: &vending.RefillBeverage{BevType: *bev, Amount: uint8(*amount)}})

	case "purchase":
		var (
			fs  = newFlagSet("purchase")
			bev = fs.String("bev", "", "beverage type")
		)
		c := parse(fs)
		requireFlag("bev", *bev)
		execute(ctx, c, vending.ExecuteMsg{Purchase: &vending.Purchase{BevType: *bev}})

	case "withdraw":
		c := parse(newFlagSet("withdraw"))
		execute(ctx, c, vending.ExecuteMsg{WithdrawIncome: &vending.WithdrawIncome{}})

	case "balance":
		var (
			fs      = newFlagSet("balance")
			address = fs.String("address", "", "account to query, default the -seed account")
		)
		c := parse(fs)
		if *address == "" {
			if c.Signer == nil {
				fatalf("must specify -address or -seed")
			}
			*address = c.Signer.Address()
		}
		var resp vending.BalanceResponse
		check(c.Query(ctx, vending.QueryMsg{Balance: &vending.BalanceQuery{Address: *address}}, &resp))
		show(resp)

	case "stat":
		var (
			fs  = newFlagSet("stat")
			bev = fs.String("bev", "", "beverage type")
		)
		c := parse(fs)
		requireFlag("bev", *bev)
		stat, err := c.BeverageStat(ctx, *bev)
		check(err)
		show(stat)

	case "list":
		c := parse(newFlagSet("list"))
		var resp vending.BeveragesResponse
		check(c.Query(ctx, vending.QueryMsg{Beverages: &vending.BeveragesQuery{}}, &resp))
		show(resp)

	case "contract":
		c := parse(newFlagSet("contract"))
		resp, err := c.Contract(ctx)
		check(err)
		show(resp)

	case "invocations":
		var (
			fs    = newFlagSet("invocations")
			after = fs.Uint64("after", 0, "list invocations above this height")
			limit = fs.Int("limit", 100, "maximum number to list")
		)
		c := parse(fs)
		invs, err := c.Invocations(ctx, *after, *limit)
		check(err)
		show(invs)

	case "watch":
		var (
			fs    = newFlagSet("watch")
			after = fs.String("after", "", "stream invocations above this height, default the current height")
		)
		c := parse(fs)
		var from uint64
		if *after == "" {
			resp, err := c.Contract(ctx)
			check(err)
			from = resp.Height
		} else {
			n, err := strconv.ParseUint(*after, 10, 64)
			check(err)
			from = n
		}
		err := c.Watch(ctx, from, func(inv *host.Invocation) error {
			show(inv)
			return nil
		})
		if err != nil && ctx.Err() == nil {
			check(err)
		}

	default:
		usage()
	}
}

type flagSet struct {
	*flag.FlagSet
	url     *string
	seed    *string
	verbose *bool
}

func newFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ExitOnError)
	return &flagSet{
		FlagSet: fs,
		url:     fs.String("url", env.String("VENDING_URL", "http://localhost:2424"), "url of vendingd server"),
		seed:    fs.String("seed", env.String("VENDING_SEED", ""), "Stellar seed (S...) of the calling account"),
		verbose: fs.Bool("v", false, "log requests"),
	}
}

func parse(fs *flagSet) *httpapi.Client {
	if err := fs.Parse(args); err != nil {
		fatalf("%s", err)
	}
	if *fs.verbose {
		l, err := zap.NewDevelopment()
		check(err)
		logger = l
	}
	c := &httpapi.Client{URL: *fs.url, Logger: logger}
	if *fs.seed != "" {
		kp, err := keypair.Parse(*fs.seed)
		check(err)
		full, ok := kp.(*keypair.Full)
		if !ok {
			fatalf("-seed must be a secret seed, not an address")
		}
		c.Signer = full
	}
	return c
}

func execute(ctx context.Context, c *httpapi.Client, msg vending.ExecuteMsg) {
	if c.Signer == nil {
		fatalf("must specify -seed to %s", msg.Action())
	}
	inv, err := c.Execute(ctx, msg)
	check(err)
	logger.Debug("committed", zap.Uint64("height", inv.Height), zap.String("id", inv.ID.String()))
	show(inv)
}

func requireFlag(name, val string) {
	if val == "" {
		fatalf("must specify -%s", name)
	}
}

func show(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	check(enc.Encode(v))
}

func check(err error) {
	if err != nil {
		fatalf("error: %s (%s)", err, vending.Kind(err))
	}
}

func fatalf(format string, args ...interface{}) {
	logger.Sync()
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func usage() {
	fmt.Fprint(os.Stderr, `Usage:
	vending SUBCOMMAND [-url URL] [-seed SEED] ...args...

	Available subcommands are: update, refill, purchase, withdraw,
	balance, stat, list, contract, invocations, watch.

	update, refill and withdraw must be signed by the admin's seed.
	purchase debits the -seed account.

	update:   -bev TYPE -price N     set a beverage's price, adding it if new
	refill:   -bev TYPE -amount N    add stock, at most 50 units in total
	purchase: -bev TYPE              buy one unit
	withdraw:                        move sales income to the admin
	balance:  [-address ADDR]        show a balance
	stat:     -bev TYPE              show a beverage's price and stock
	list:                            show the whole catalog
	contract:                        show the contract's address, admin and height
	invocations: [-after H] [-limit N]
	watch:    [-after H]             stream committed invocations

	The -url and -seed flags default to $VENDING_URL and $VENDING_SEED.
`)
	os.Exit(1)
}

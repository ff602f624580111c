package vending

import (
	"testing"

	"github.com/chain/txvm/errors"
)

func TestParseExecuteMsg(t *testing.T) {
	cases := []struct {
		in     string
		action string
		err    error
	}{
		{`{"update_beverage":{"bev_type":"americano","price":"2"}}`, "update_beverage", nil},
		{`{"refill_beverage":{"bev_type":"americano","amount":20}}`, "refill_beverage", nil},
		{`{"purchase":{"bev_type":"americano"}}`, "purchase", nil},
		{`{"withdraw_income":{}}`, "withdraw_income", nil},
		{`{}`, "", ErrInvalidMessage},
		{`{"purchase":{"bev_type":"a"},"withdraw_income":{}}`, "", ErrInvalidMessage},
		{`{"refill_beverage":{"bev_type":"americano","amount":300}}`, "", ErrInvalidMessage},
		{`{"update_beverage":{"bev_type":"americano","price":2}}`, "", ErrInvalidMessage},
		{`{"update_beverage":{"bev_type":"americano","price":"-1"}}`, "", ErrInvalidMessage},
		{`{"steal":{}}`, "", ErrInvalidMessage},
		{`{"purchase":{"bev_type":"latte"}} {"withdraw_income":{}}`, "", ErrInvalidMessage},
		{`{"withdraw_income":{}}x`, "", ErrInvalidMessage},
		{`{"update_beverage":{"bev_type":"latte"}}`, "", ErrInvalidMessage},
		{`{"update_beverage":{"price":"2"}}`, "", ErrInvalidMessage},
		{`{"update_beverage":{"bev_type":"latte","price":null}}`, "", ErrInvalidMessage},
		{`{"refill_beverage":{"bev_type":"latte"}}`, "", ErrInvalidMessage},
		{`{"refill_beverage":{"amount":1}}`, "", ErrInvalidMessage},
		{`{"purchase":{}}`, "", ErrInvalidMessage},
		{`{"purchase":{"bev_type":"latte","price":"0"}}`, "", ErrInvalidMessage},
		{`not json`, "", ErrInvalidMessage},
	}
	for _, c := range cases {
		msg, err := ParseExecuteMsg([]byte(c.in))
		if errors.Root(err) != c.err {
			t.Errorf("%s: got error %v, want %v", c.in, err, c.err)
			continue
		}
		if err == nil && msg.Action() != c.action {
			t.Errorf("%s: got action %q, want %q", c.in, msg.Action(), c.action)
		}
	}
}

func TestParseExecuteMsgValues(t *testing.T) {
	msg, err := ParseExecuteMsg([]byte(`{"update_beverage":{"bev_type":"latte","price":"18446744073709551615"}}`))
	if err != nil {
		t.Fatal(err)
	}
	if msg.UpdateBeverage.BevType != "latte" || msg.UpdateBeverage.Price != 18446744073709551615 {
		t.Fatalf("got %+v", msg.UpdateBeverage)
	}
}

func TestParseQueryMsg(t *testing.T) {
	good := []string{
		`{"balance":{"address":"addr0"}}`,
		`{"beverage_stat":{"bev_type":"latte"}}`,
		`{"beverages":{}}`,
		`{"contract_info":{}}`,
	}
	for _, in := range good {
		if _, err := ParseQueryMsg([]byte(in)); err != nil {
			t.Errorf("%s: %s", in, err)
		}
	}
	bad := []string{
		`{}`,
		`{"balance":{"address":"a"},"beverages":{}}`,
		`[]`,
		`{"balance":{}}`,
		`{"beverage_stat":{}}`,
		`{"beverages":{}} {}`,
	}
	for _, in := range bad {
		if _, err := ParseQueryMsg([]byte(in)); errors.Root(err) != ErrInvalidMessage {
			t.Errorf("%s: got error %v, want %s", in, err, ErrInvalidMessage)
		}
	}
}

func TestParseInstantiateMsg(t *testing.T) {
	msg, err := ParseInstantiateMsg([]byte(`{"admin":"admin","initial_balances":[{"address":"addr0","amount":"10"}]}`))
	if err != nil {
		t.Fatal(err)
	}
	if len(msg.InitialBalances) != 1 || msg.InitialBalances[0].Amount != 10 {
		t.Fatalf("got %+v", msg)
	}

	bad := []string{
		`{"admin":"admin","initial_balances":[{"address":"addr0"}]}`,
		`{"admin":"admin","initial_balances":[{"amount":"10"}]}`,
		`{"admin":"admin","initial_balances":[]} {}`,
		`{"admin":"admin","owner":"addr0"}`,
	}
	for _, in := range bad {
		if _, err := ParseInstantiateMsg([]byte(in)); errors.Root(err) != ErrInvalidMessage {
			t.Errorf("%s: got error %v, want %s", in, err, ErrInvalidMessage)
		}
	}
}

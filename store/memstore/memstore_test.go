package memstore

import (
	"context"
	"testing"

	"github.com/chain/txvm/errors"

	"github.com/interstellar/slingshot/vending/store"
)

func TestGetMissing(t *testing.T) {
	s := New()
	_, err := s.Get(context.Background(), "nope")
	if errors.Root(err) != store.ErrNotFound {
		t.Fatalf("got error %v, want %s", err, store.ErrNotFound)
	}
}

func TestApplyAndRange(t *testing.T) {
	ctx := context.Background()
	s := New()
	err := s.Apply(ctx, []store.Write{
		{Key: "balance/b", Value: []byte("2")},
		{Key: "balance/a", Value: []byte("1")},
		{Key: "beverages/x", Value: []byte("{}")},
	})
	if err != nil {
		t.Fatal(err)
	}

	var keys []string
	err = s.Range(ctx, "balance/", func(k string, _ []byte) error {
		keys = append(keys, k)
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(keys) != 2 || keys[0] != "balance/a" || keys[1] != "balance/b" {
		t.Fatalf("got keys %v, want [balance/a balance/b]", keys)
	}
}

func TestTxReadsOwnWrites(t *testing.T) {
	ctx := context.Background()
	s := New()
	if err := s.Apply(ctx, []store.Write{{Key: "k1", Value: []byte("old")}}); err != nil {
		t.Fatal(err)
	}

	tx := store.NewTx(s)
	tx.Set("k1", []byte("new"))
	tx.Set("k2", []byte("fresh"))

	got, err := tx.Get(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "new" {
		t.Fatalf("got %q through tx, want new", got)
	}

	got, err = s.Get(ctx, "k1")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "old" {
		t.Fatalf("got %q from backend before commit, want old", got)
	}
	if _, err = s.Get(ctx, "k2"); errors.Root(err) != store.ErrNotFound {
		t.Fatalf("got error %v for uncommitted key, want %s", err, store.ErrNotFound)
	}

	var seen []string
	err = tx.Range(ctx, "k", func(k string, v []byte) error {
		seen = append(seen, k+"="+string(v))
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != "k1=new" || seen[1] != "k2=fresh" {
		t.Fatalf("got %v, want [k1=new k2=fresh]", seen)
	}

	if err = s.Apply(ctx, tx.Writes()); err != nil {
		t.Fatal(err)
	}
	got, err = s.Get(ctx, "k2")
	if err != nil {
		t.Fatal(err)
	}
	if string(got) != "fresh" {
		t.Fatalf("got %q after commit, want fresh", got)
	}
}

func TestPrefixEnd(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"balance/", "balance0"},
		{"a", "b"},
		{"a\xff", "b"},
		{"\xff\xff", ""},
		{"", ""},
	}
	for _, c := range cases {
		if got := store.PrefixEnd(c.in); got != c.want {
			t.Errorf("PrefixEnd(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

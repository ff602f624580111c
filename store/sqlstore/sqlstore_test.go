package sqlstore

import (
	"context"
	"database/sql"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/chain/txvm/errors"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending/store"
)

func withTestStore(ctx context.Context, t *testing.T, fn func(context.Context, *Store)) {
	dir, err := ioutil.TempDir("", "sqlstore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	s, err := Open(ctx, "sqlite3", filepath.Join(dir, "vending.db"), zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	fn(ctx, s)
}

func TestApplyGetRange(t *testing.T) {
	withTestStore(context.Background(), t, func(ctx context.Context, s *Store) {
		_, err := s.Get(ctx, "balance/a")
		if errors.Root(err) != store.ErrNotFound {
			t.Fatalf("got error %v, want %s", err, store.ErrNotFound)
		}

		err = s.Apply(ctx, []store.Write{
			{Key: "balance/a", Value: []byte(`"10"`)},
			{Key: "balance/b", Value: []byte(`"0"`)},
			{Key: "beverages/latte", Value: []byte(`{"price":"5","amount":2}`)},
		})
		if err != nil {
			t.Fatal(err)
		}

		// Overwrite.
		err = s.Apply(ctx, []store.Write{{Key: "balance/a", Value: []byte(`"8"`)}})
		if err != nil {
			t.Fatal(err)
		}
		got, err := s.Get(ctx, "balance/a")
		if err != nil {
			t.Fatal(err)
		}
		if string(got) != `"8"` {
			t.Fatalf("got %s, want \"8\"", got)
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
	})
}

func TestRangeCallbackMayRead(t *testing.T) {
	withTestStore(context.Background(), t, func(ctx context.Context, s *Store) {
		err := s.Apply(ctx, []store.Write{
			{Key: "p/1", Value: []byte("x")},
			{Key: "p/2", Value: []byte("y")},
		})
		if err != nil {
			t.Fatal(err)
		}
		err = s.Range(ctx, "p/", func(k string, _ []byte) error {
			_, err := s.Get(ctx, k)
			return err
		})
		if err != nil {
			t.Fatal(err)
		}
	})
}

func TestMigrateTwice(t *testing.T) {
	ctx := context.Background()
	dir, err := ioutil.TempDir("", "sqlstore")
	if err != nil {
		t.Fatal(err)
	}
	defer os.RemoveAll(dir)

	dbfile := filepath.Join(dir, "vending.db")
	s, err := Open(ctx, "sqlite3", dbfile, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	err = s.Apply(ctx, []store.Write{{Key: "admin", Value: []byte(`"G"`)}})
	if err != nil {
		t.Fatal(err)
	}
	s.Close()

	s, err = Open(ctx, "sqlite3", dbfile, zap.NewNop())
	if err != nil {
		t.Fatalf("reopening: %s", err)
	}
	defer s.Close()
	if _, err = s.Get(ctx, "admin"); err != nil {
		t.Fatalf("reading after reopen: %s", err)
	}
}

func TestUnsupportedDriver(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()
	_, err = New(context.Background(), db, "mysql", zap.NewNop())
	if errors.Root(err) != ErrDriver {
		t.Fatalf("got error %v, want %s", err, ErrDriver)
	}
}

func TestPostgres(t *testing.T) {
	dsn := os.Getenv("VENDING_TEST_POSTGRES_URL")
	if dsn == "" {
		t.Skip("VENDING_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := Open(ctx, "postgres", dsn, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer s.Close()

	err = s.Apply(ctx, []store.Write{{Key: "test/pg", Value: []byte("1")}})
	if err != nil {
		t.Fatal(err)
	}
	var n int
	err = s.Range(ctx, "test/", func(string, []byte) error {
		n++
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	if n == 0 {
		t.Fatal("got no rows under test/, want at least 1")
	}
}

package redisstore

import (
	"context"
	"os"
	"testing"

	"github.com/chain/txvm/errors"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"

	"github.com/interstellar/slingshot/vending/store"
)

func TestGlobEscape(t *testing.T) {
	require.Equal(t, `vending:beverages/\*x\?`, globEscape("vending:beverages/*x?"))
	require.Equal(t, `a\[b\]\\`, globEscape(`a[b]\`))
}

// scanClient serves SCAN and MGET from a map, reporting keys in scan's order.
type scanClient struct {
	redis.UniversalClient
	vals map[string]string
	scan []string
}

func (c *scanClient) Scan(ctx context.Context, cursor uint64, match string, count int64) *redis.ScanCmd {
	return redis.NewScanCmdResult(c.scan, 0, nil)
}

func (c *scanClient) MGet(ctx context.Context, keys ...string) *redis.SliceCmd {
	vals := make([]interface{}, len(keys))
	for i, k := range keys {
		if v, ok := c.vals[k]; ok {
			vals[i] = v
		}
	}
	return redis.NewSliceResult(vals, nil)
}

func TestRangeRepeatedScanKeys(t *testing.T) {
	const (
		k1 = "vending:host/journal/00000000000000000001"
		k2 = "vending:host/journal/00000000000000000002"
	)
	c := &scanClient{
		vals: map[string]string{k1: "1", k2: "2"},
		scan: []string{k1, k2, k1},
	}
	s := New(c, "")

	var keys []string
	err := s.Range(context.Background(), "host/journal/", func(k string, _ []byte) error {
		keys = append(keys, k)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"host/journal/00000000000000000001", "host/journal/00000000000000000002"}, keys)
}

func TestRedis(t *testing.T) {
	url := os.Getenv("VENDING_TEST_REDIS_URL")
	if url == "" {
		t.Skip("VENDING_TEST_REDIS_URL not set")
	}
	ctx := context.Background()

	// A fresh namespace per run keeps reruns independent.
	s, err := Open(ctx, url, "vendingtest:"+uuid.NewString()+":")
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(ctx, "balance/a")
	require.Equal(t, store.ErrNotFound, errors.Root(err))

	err = s.Apply(ctx, []store.Write{
		{Key: "balance/b", Value: []byte(`"2"`)},
		{Key: "balance/a", Value: []byte(`"1"`)},
		{Key: "admin", Value: []byte(`"G"`)},
	})
	require.NoError(t, err)

	got, err := s.Get(ctx, "balance/a")
	require.NoError(t, err)
	require.Equal(t, `"1"`, string(got))

	var keys []string
	err = s.Range(ctx, "balance/", func(k string, _ []byte) error {
		keys = append(keys, k)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []string{"balance/a", "balance/b"}, keys)
}

package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/chain/txvm/errors"
	"github.com/chain/txvm/protocol/bc"
	"github.com/gorilla/websocket"
	i10rnet "github.com/interstellar/starlight/net"
	"github.com/stellar/go/keypair"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending"
	"github.com/interstellar/slingshot/vending/host"
	"github.com/interstellar/slingshot/vending/net"
)

// Client calls a vending server.
type Client struct {
	// URL is the server's base URL, e.g. http://localhost:2424.
	URL string

	// Signer signs state-changing requests. It may be nil for read-only use.
	Signer *keypair.Full

	// Default http.DefaultClient.
	HTTP *http.Client

	// Default zap.NewNop().
	Logger *zap.Logger
}

// Error is a server error reply whose kind this package does not recognize.
type Error struct {
	Status  int
	Kind    string
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("status %d (%s): %s", e.Status, e.Kind, e.Message)
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}

// Instantiate creates the contract on a server that has none.
func (c *Client) Instantiate(ctx context.Context, msg vending.InstantiateMsg) (*host.Invocation, error) {
	inv := new(host.Invocation)
	return inv, c.signedPost(ctx, "/instantiate", msg, inv)
}

// Execute runs msg as the Signer.
func (c *Client) Execute(ctx context.Context, msg vending.ExecuteMsg) (*host.Invocation, error) {
	inv := new(host.Invocation)
	return inv, c.signedPost(ctx, "/execute", msg, inv)
}

// Query runs msg and decodes the response into v.
func (c *Client) Query(ctx context.Context, msg vending.QueryMsg, v interface{}) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding query")
	}
	return c.do(ctx, http.MethodPost, "/query", body, nil, v)
}

// Balance reports the balance of address.
func (c *Client) Balance(ctx context.Context, address string) (vending.Coins, error) {
	var resp vending.BalanceResponse
	err := c.Query(ctx, vending.QueryMsg{Balance: &vending.BalanceQuery{Address: address}}, &resp)
	return resp.Balance, err
}

// BeverageStat reports the price and stock of a beverage.
func (c *Client) BeverageStat(ctx context.Context, bevType string) (vending.BeverageStat, error) {
	var stat vending.BeverageStat
	err := c.Query(ctx, vending.QueryMsg{BeverageStat: &vending.BeverageStatQuery{BevType: bevType}}, &stat)
	return stat, err
}

// Contract describes the hosted contract.
func (c *Client) Contract(ctx context.Context) (*ContractResponse, error) {
	resp := new(ContractResponse)
	return resp, c.do(ctx, http.MethodGet, "/contract", nil, nil, resp)
}

// Invocations lists up to limit committed invocations above height after.
func (c *Client) Invocations(ctx context.Context, after uint64, limit int) ([]*host.Invocation, error) {
	var invs []*host.Invocation
	path := fmt.Sprintf("/invocations?after=%d&limit=%d", after, limit)
	err := c.do(ctx, http.MethodGet, path, nil, nil, &invs)
	return invs, err
}

const watchBackoffBase = 100 * time.Millisecond

// Watch calls f on each invocation committed above height after, reconnecting with backoff
// when the stream drops. It returns when ctx is canceled or f fails.
// The backoff starts over after any stream that delivered an invocation.
func (c *Client) Watch(ctx context.Context, after uint64, f func(*host.Invocation) error) error {
	backoff := i10rnet.Backoff{Base: watchBackoffBase}
	for {
		prev := after
		fnFailed, err := c.watchOnce(ctx, &after, f)
		if fnFailed {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if after != prev {
			backoff = i10rnet.Backoff{Base: watchBackoffBase}
		}
		dur := backoff.Next()
		c.logger().Info("watch stream dropped, reconnecting", zap.Error(err), zap.Duration("wait", dur))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(dur):
		}
	}
}

// watchOnce streams until the connection drops or f fails.
// It reports true when the error came from f.
func (c *Client) watchOnce(ctx context.Context, after *uint64, f func(*host.Invocation) error) (bool, error) {
	u, err := url.Parse(c.URL)
	if err != nil {
		return false, errors.Wrap(err, "parsing server url")
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	default:
		u.Scheme = "ws"
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/watch"
	u.RawQuery = fmt.Sprintf("after=%d", *after)

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return false, errors.Wrap(err, "dialing watch stream")
	}
	defer conn.Close()

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			conn.Close()
		case <-done:
		}
	}()

	for {
		inv := new(host.Invocation)
		if err = conn.ReadJSON(inv); err != nil {
			return false, errors.Wrap(err, "reading watch stream")
		}
		if err = f(inv); err != nil {
			return true, err
		}
		*after = inv.Height
	}
}

func (c *Client) signedPost(ctx context.Context, path string, msg, v interface{}) error {
	if c.Signer == nil {
		return errors.New("client has no signer")
	}
	msgJSON, err := json.Marshal(msg)
	if err != nil {
		return errors.Wrap(err, "encoding message")
	}
	body, sig, err := Sign(c.Signer, SignedRequest{
		Sender:    c.Signer.Address(),
		ExpiresMS: bc.Millis(time.Now().Add(time.Minute)),
		Msg:       msgJSON,
	})
	if err != nil {
		return err
	}
	return c.do(ctx, http.MethodPost, path, body, http.Header{SignatureHeader: []string{sig}}, v)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, hdr http.Header, v interface{}) error {
	req, err := http.NewRequest(method, strings.TrimSuffix(c.URL, "/")+path, bytes.NewReader(body))
	if err != nil {
		return errors.Wrapf(err, "building %s %s", method, path)
	}
	req = req.WithContext(ctx)
	for k, vals := range hdr {
		req.Header[k] = vals
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return errors.Wrapf(err, "%s %s", method, path)
	}
	defer resp.Body.Close()

	respBody, err := ioutil.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading response to %s %s", method, path)
	}
	if resp.StatusCode/100 != 2 {
		var eb net.ErrorBody
		if json.Unmarshal(respBody, &eb) != nil || eb.Error == "" {
			return &Error{Status: resp.StatusCode, Kind: "unknown", Message: string(respBody)}
		}
		if known := errorFor(eb.Error); known != nil {
			return errors.Wrap(known, eb.Message)
		}
		return &Error{Status: resp.StatusCode, Kind: eb.Error, Message: eb.Message}
	}
	if v == nil {
		return nil
	}
	err = json.Unmarshal(respBody, v)
	return errors.Wrapf(err, "decoding response to %s %s", method, path)
}

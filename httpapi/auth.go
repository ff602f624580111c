package httpapi

import (
	"encoding/base64"
	"encoding/json"
	"sync"
	"time"

	"github.com/chain/txvm/errors"
	"github.com/chain/txvm/protocol/bc"
	"github.com/stellar/go/keypair"

	"github.com/interstellar/slingshot/vending"
)

// SignatureHeader carries the base64 ed25519 signature of the request body,
// made with the key of the request's sender.
const SignatureHeader = "X-Vending-Signature"

// MaxExpiry bounds how far in the future a signed request may expire.
const MaxExpiry = 5 * time.Minute

var (
	ErrBadSignature = errors.New("bad signature")
	ErrExpired      = errors.New("request expired")
	ErrReplayed     = errors.New("request already seen")
)

// SignedRequest is the body of a state-changing request.
type SignedRequest struct {
	Sender string `json:"sender"`

	// ExpiresMS is a deadline in Unix milliseconds.
	// It must be in the future and no more than MaxExpiry away.
	ExpiresMS uint64 `json:"expires_ms"`

	Msg json.RawMessage `json:"msg"`
}

// Sign encodes req and signs it with kp.
// It returns the body and the value for SignatureHeader.
func Sign(kp *keypair.Full, req SignedRequest) ([]byte, string, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, "", errors.Wrap(err, "encoding request")
	}
	sig, err := kp.Sign(body)
	if err != nil {
		return nil, "", errors.Wrap(err, "signing request")
	}
	return body, base64.StdEncoding.EncodeToString(sig), nil
}

// verify authenticates body against its signature header
// and returns the decoded request.
func verify(body []byte, sigHeader string, now time.Time) (*SignedRequest, []byte, error) {
	sig, err := base64.StdEncoding.DecodeString(sigHeader)
	if err != nil || len(sig) == 0 {
		return nil, nil, errors.Wrap(ErrBadSignature, "missing or malformed "+SignatureHeader)
	}
	req := new(SignedRequest)
	if err = json.Unmarshal(body, req); err != nil {
		return nil, nil, errors.Wrap(vending.ErrInvalidMessage, err.Error())
	}
	kp, err := keypair.Parse(req.Sender)
	if err != nil {
		return nil, nil, errors.Wrapf(vending.ErrInvalidAddress, "sender %q: %s", req.Sender, err)
	}
	if err = kp.Verify(body, sig); err != nil {
		return nil, nil, errors.Wrapf(ErrBadSignature, "sender %s", req.Sender)
	}
	nowMS := bc.Millis(now)
	if req.ExpiresMS <= nowMS {
		return nil, nil, errors.WithData(ErrExpired, "expires_ms", req.ExpiresMS, "now_ms", nowMS)
	}
	if req.ExpiresMS > nowMS+uint64(MaxExpiry/time.Millisecond) {
		return nil, nil, errors.Wrapf(vending.ErrInvalidMessage, "expiry more than %s away", MaxExpiry)
	}
	return req, sig, nil
}

// replayGuard remembers signatures until their requests expire.
type replayGuard struct {
	mu   sync.Mutex
	seen map[string]uint64 // signature -> expires_ms
}

// check records sig, failing if it was already recorded.
func (g *replayGuard) check(sig []byte, expiresMS, nowMS uint64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.seen == nil {
		g.seen = make(map[string]uint64)
	}
	for s, exp := range g.seen {
		if exp <= nowMS {
			delete(g.seen, s)
		}
	}
	if _, ok := g.seen[string(sig)]; ok {
		return ErrReplayed
	}
	g.seen[string(sig)] = expiresMS
	return nil
}

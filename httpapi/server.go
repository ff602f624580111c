// Package httpapi serves a host.Runtime over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/chain/txvm/errors"
	"github.com/chain/txvm/protocol/bc"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending"
	"github.com/interstellar/slingshot/vending/host"
)

const (
	maxBodyBytes       = 1 << 16
	defaultWaitTimeout = 30 * time.Second
)

// Server handles the vending HTTP API.
type Server struct {
	rt       *host.Runtime
	logger   *zap.Logger
	upgrader websocket.Upgrader
	replays  replayGuard

	// Now is the clock for request expiry. Default time.Now.
	Now func() time.Time

	// Creator is the only account allowed to POST /instantiate.
	// If empty, the contract cannot be instantiated over HTTP.
	Creator vending.Addr

	// WaitTimeout bounds how long GET /invocations/{height} waits
	// for the invocation to commit.
	WaitTimeout time.Duration
}

// ContractResponse describes the hosted contract.
type ContractResponse struct {
	Address vending.Addr         `json:"address"`
	Admin   vending.Addr         `json:"admin"`
	Height  uint64               `json:"height"`
	Info    vending.ContractInfo `json:"info"`
}

func New(rt *host.Runtime, logger *zap.Logger) *Server {
	return &Server{
		rt:          rt,
		logger:      logger,
		Now:         time.Now,
		WaitTimeout: defaultWaitTimeout,
	}
}

// Handler routes requests to s.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)

	r.Post("/instantiate", s.instantiate)
	r.Post("/execute", s.execute)
	r.Post("/query", s.query)
	r.Get("/contract", s.contract)
	r.Get("/invocations", s.invocations)
	r.Get("/invocations/{height}", s.invocation)
	r.Get("/watch", s.watch)
	return r
}

// readSigned reads and authenticates a SignedRequest body.
func (s *Server) readSigned(w http.ResponseWriter, req *http.Request) (*SignedRequest, bool) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, s.logger, errors.Wrap(errBadRequest, "reading request body: "+err.Error()))
		return nil, false
	}
	now := s.Now()
	sr, sig, err := verify(body, req.Header.Get(SignatureHeader), now)
	if err != nil {
		writeErr(w, s.logger, err)
		return nil, false
	}
	if err = s.replays.check(sig, sr.ExpiresMS, bc.Millis(now)); err != nil {
		writeErr(w, s.logger, err)
		return nil, false
	}
	return sr, true
}

func (s *Server) instantiate(w http.ResponseWriter, req *http.Request) {
	sr, ok := s.readSigned(w, req)
	if !ok {
		return
	}
	sender := vending.Addr(sr.Sender)
	if s.Creator == "" || sender != s.Creator {
		writeErr(w, s.logger, errors.WithData(vending.ErrUnauthorized, "sender", string(sender)))
		return
	}
	msg, err := vending.ParseInstantiateMsg(sr.Msg)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	inv, err := s.rt.Instantiate(req.Context(), sender, msg)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	s.writeJSON(w, inv)
}

func (s *Server) execute(w http.ResponseWriter, req *http.Request) {
	sr, ok := s.readSigned(w, req)
	if !ok {
		return
	}
	msg, err := vending.ParseExecuteMsg(sr.Msg)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	inv, err := s.rt.Execute(req.Context(), vending.Addr(sr.Sender), msg)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	s.writeJSON(w, inv)
}

func (s *Server) query(w http.ResponseWriter, req *http.Request) {
	body, err := ioutil.ReadAll(http.MaxBytesReader(w, req.Body, maxBodyBytes))
	if err != nil {
		writeErr(w, s.logger, errors.Wrap(errBadRequest, "reading request body: "+err.Error()))
		return
	}
	msg, err := vending.ParseQueryMsg(body)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	out, err := s.rt.Query(req.Context(), msg)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.Write(out)
}

func (s *Server) contract(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	admin, err := s.rt.Admin(ctx)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	out, err := s.rt.Query(ctx, vending.QueryMsg{ContractInfo: &vending.ContractInfoQuery{}})
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	resp := ContractResponse{
		Address: s.rt.Address(),
		Admin:   admin,
		Height:  s.rt.Height(),
	}
	if err = json.Unmarshal(out, &resp.Info); err != nil {
		writeErr(w, s.logger, err)
		return
	}
	s.writeJSON(w, resp)
}

func (s *Server) invocations(w http.ResponseWriter, req *http.Request) {
	after, err := uintParam(req, "after", 0)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	limit, err := uintParam(req, "limit", 100)
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	invs, err := s.rt.Invocations(req.Context(), after, int(limit))
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	if invs == nil {
		invs = []*host.Invocation{}
	}
	s.writeJSON(w, invs)
}

// invocation returns the invocation at a height, waiting for it to commit if necessary.
func (s *Server) invocation(w http.ResponseWriter, req *http.Request) {
	height, err := strconv.ParseUint(chi.URLParam(req, "height"), 10, 64)
	if err != nil || height == 0 {
		writeErr(w, s.logger, errors.Wrap(errBadRequest, "height must be a positive integer"))
		return
	}
	ctx, cancel := context.WithTimeout(req.Context(), s.WaitTimeout)
	defer cancel()
	inv, err := s.rt.WaitFor(ctx, height)
	if err == context.DeadlineExceeded || err == context.Canceled {
		writeErrTimeout(w, s.logger, height)
		return
	}
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	s.writeJSON(w, inv)
}

// watch streams committed invocations over a websocket, one JSON message each.
func (s *Server) watch(w http.ResponseWriter, req *http.Request) {
	after, err := uintParam(req, "after", s.rt.Height())
	if err != nil {
		writeErr(w, s.logger, err)
		return
	}
	conn, err := s.upgrader.Upgrade(w, req, nil)
	if err != nil {
		// Upgrade has already replied.
		s.logger.Info("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(req.Context())
	defer cancel()

	// Drain client frames; a read error means the client went away.
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	err = s.rt.Follow(ctx, after, func(_ context.Context, inv *host.Invocation) error {
		conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
		return conn.WriteJSON(inv)
	})
	if ctx.Err() != nil {
		return
	}
	code := websocket.CloseInternalServerErr
	if errors.Root(err) == host.ErrClosed {
		code = websocket.CloseGoingAway
	} else {
		s.logger.Error("watch stream failed", zap.Error(err))
	}
	conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, ""), time.Now().Add(time.Second))
}

func (s *Server) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("sending response", zap.Error(err))
	}
}

func uintParam(req *http.Request, name string, dflt uint64) (uint64, error) {
	str := req.FormValue(name)
	if str == "" {
		return dflt, nil
	}
	n, err := strconv.ParseUint(str, 10, 64)
	if err != nil {
		return 0, errors.Wrapf(errBadRequest, "parsing %s: %s", name, err)
	}
	return n, nil
}

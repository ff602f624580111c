package httpapi

import (
	"net/http"

	"github.com/chain/txvm/errors"
	"go.uber.org/zap"

	"github.com/interstellar/slingshot/vending"
	"github.com/interstellar/slingshot/vending/host"
	"github.com/interstellar/slingshot/vending/net"
	"github.com/interstellar/slingshot/vending/store"
)

// errBadRequest marks malformed requests outside the contract's message format.
var errBadRequest = errors.New("bad request")

var errorKinds = []struct {
	err    error
	status int
	kind   string
}{
	{vending.ErrUnauthorized, http.StatusForbidden, ""},
	{ErrBadSignature, http.StatusForbidden, "bad_signature"},
	{ErrExpired, http.StatusForbidden, "expired"},
	{ErrReplayed, http.StatusConflict, "replayed"},
	{vending.ErrNotFound, http.StatusNotFound, ""},
	{store.ErrNotFound, http.StatusNotFound, "not_found"},
	{vending.ErrInsufficientFunds, http.StatusConflict, ""},
	{vending.ErrSoldOut, http.StatusConflict, ""},
	{vending.ErrCapacityExceeded, http.StatusConflict, ""},
	{host.ErrAlreadyInstantiated, http.StatusConflict, "already_instantiated"},
	{vending.ErrInvalidMessage, http.StatusBadRequest, ""},
	{vending.ErrInvalidAddress, http.StatusBadRequest, ""},
	{errBadRequest, http.StatusBadRequest, "bad_request"},
	{vending.ErrOverflow, http.StatusUnprocessableEntity, ""},
	{vending.ErrNotInstantiated, http.StatusServiceUnavailable, ""},
	{host.ErrClosed, http.StatusServiceUnavailable, "closed"},
}

// classify maps err to an HTTP status and an error kind.
func classify(err error) (int, string) {
	root := errors.Root(err)
	for _, k := range errorKinds {
		if root == k.err {
			kind := k.kind
			if kind == "" {
				kind = vending.Kind(root)
			}
			return k.status, kind
		}
	}
	return http.StatusInternalServerError, "internal"
}

// errorFor is the inverse of classify, for clients.
func errorFor(kind string) error {
	for _, k := range errorKinds {
		name := k.kind
		if name == "" {
			name = vending.Kind(k.err)
		}
		if name == kind {
			return k.err
		}
	}
	return nil
}

func writeErr(w http.ResponseWriter, logger *zap.Logger, err error) {
	status, kind := classify(err)
	net.Errorf(w, logger, status, kind, "%s", err)
}

func writeErrTimeout(w http.ResponseWriter, logger *zap.Logger, height uint64) {
	net.Errorf(w, logger, http.StatusRequestTimeout, "timeout", "timed out waiting for invocation %d", height)
}

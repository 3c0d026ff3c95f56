package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"

	"github.com/ardanlabs/ledger/foundation/blockchain/database"
	"github.com/ardanlabs/ledger/foundation/validate"
)

// maxRequestSize caps the size of an inbound envelope.
const maxRequestSize = 16 << 20

// EventHandler defines a function that is called when events
// occur in the processing of a procedure.
type EventHandler func(v string, args ...any)

// Backend represents the behavior required by the server to apply the
// procedures against the local repositories. Every mutating method must use
// the same deduplicated insert path local inserts use.
type Backend interface {
	Blocks() []database.Block
	Transactions() []database.Transaction
	PendingTransactions() []database.Transaction
	KnownPeers() []string
	AcceptBlock(ctx context.Context, block database.Block) error
	AcceptPeer(ctx context.Context, address string) error
	AcceptPendingTransaction(ctx context.Context, tx database.Transaction) error
	AcceptBlockTransaction(ctx context.Context, tx database.Transaction) error
}

// procedure is the typed binding of one procedure name.
type procedure func(ctx context.Context, params json.RawMessage) (any, *Error)

// Server dispatches procedure calls against a backend.
type Server struct {
	procs     map[string]procedure
	evHandler EventHandler
}

// NewServer binds every procedure to the backend. The binding is checked
// against the Procedures list so a missing or unknown procedure fails at
// startup instead of at call time.
func NewServer(backend Backend, evHandler EventHandler) (*Server, error) {
	ev := func(v string, args ...any) {
		if evHandler != nil {
			evHandler(v, args...)
		}
	}

	procs := map[string]procedure{
		ProcPing:              query(func() bool { return true }),
		ProcGetBlockchain:     query(backend.Blocks),
		ProcGetTransactions:   query(backend.Transactions),
		ProcGetNodes:          query(backend.KnownPeers),
		ProcGetUntransactions: query(backend.PendingTransactions),
		ProcNewBlock:          command(backend.AcceptBlock),
		ProcAddNode:           command(acceptPeer(backend)),
		ProcNewUntransaction:  command(backend.AcceptPendingTransaction),
		ProcBlockTransaction:  command(backend.AcceptBlockTransaction),
	}

	if err := verify(procs); err != nil {
		return nil, err
	}

	srv := Server{
		procs:     procs,
		evHandler: ev,
	}

	return &srv, nil
}

// Handle executes the procedure named in the request. Handle never
// returns an error, failures are carried in the response.
func (s *Server) Handle(ctx context.Context, req Request) Response {
	resp := Response{
		JSONRPC: Version,
		ID:      req.ID,
	}

	if req.JSONRPC != "" && req.JSONRPC != Version {
		resp.Error = NewError(CodeInvalidRequest, "unsupported version %q", req.JSONRPC)
		return resp
	}

	if req.Method == "" {
		resp.Error = NewError(CodeInvalidRequest, "method is required")
		return resp
	}

	proc, exists := s.procs[req.Method]
	if !exists {
		s.evHandler("rpc: %s: method not found", req.Method)
		resp.Error = NewError(CodeMethodNotFound, "method %q not found", req.Method)
		return resp
	}

	result, rpcErr := proc(ctx, req.Params)
	if rpcErr != nil {
		s.evHandler("rpc: %s: ERROR: %s", req.Method, rpcErr.Message)
		resp.Error = rpcErr
		return resp
	}

	data, err := json.Marshal(result)
	if err != nil {
		resp.Error = NewError(CodeInternalError, "encoding result: %s", err)
		return resp
	}
	resp.Result = data

	s.evHandler("rpc: %s: completed", req.Method)

	return resp
}

// ServeHTTP implements the http.Handler interface so the protocol can be
// served without the web framework.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var resp Response

	req, err := DecodeRequest(r.Body)
	switch {
	case err != nil:
		resp = Response{JSONRPC: Version, Error: err}
	default:
		resp = s.Handle(r.Context(), req)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)
}

// DecodeRequest reads a request envelope. A body that is not JSON is a
// parse error, a JSON body that is not an envelope is an invalid request.
func DecodeRequest(body io.Reader) (Request, *Error) {
	data, err := io.ReadAll(io.LimitReader(body, maxRequestSize))
	if err != nil {
		return Request{}, NewError(CodeParseError, "reading request: %s", err)
	}

	if !json.Valid(data) {
		return Request{}, NewError(CodeParseError, "request is not valid JSON")
	}

	var req Request
	if err := json.Unmarshal(data, &req); err != nil {
		return Request{}, NewError(CodeInvalidRequest, "decoding request: %s", err)
	}

	if err := validate.Check(req); err != nil {
		return Request{}, NewError(CodeInvalidRequest, "invalid request: %s", err)
	}

	return req, nil
}

// =============================================================================

// query binds a procedure that ignores its parameters and returns a value.
func query[R any](fn func() R) procedure {
	return func(ctx context.Context, params json.RawMessage) (any, *Error) {
		return fn(), nil
	}
}

// command binds a procedure that takes a single typed payload, applies it,
// and acknowledges with true. A payload that fails to decode or validate
// never reaches fn.
func command[T any](fn func(ctx context.Context, payload T) error) procedure {
	return func(ctx context.Context, params json.RawMessage) (any, *Error) {
		var payload T
		if err := decodeParam(params, &payload); err != nil {
			return nil, NewError(CodeInvalidParams, "invalid payload: %s", err)
		}

		if reflect.TypeOf(payload).Kind() == reflect.Struct {
			if err := validate.Check(payload); err != nil {
				rpcErr := NewError(CodeInvalidParams, "invalid payload")
				if fe := validate.GetFieldErrors(err); fe != nil {
					rpcErr.Data = fe.Fields()
				}
				return nil, rpcErr
			}
		}

		if err := fn(ctx, payload); err != nil {
			if rpcErr := GetError(err); rpcErr != nil {
				return nil, rpcErr
			}
			return nil, NewError(CodeStorageError, "%s", err)
		}

		return true, nil
	}
}

// acceptPeer rejects blank addresses before they reach the backend.
func acceptPeer(backend Backend) func(ctx context.Context, address string) error {
	return func(ctx context.Context, address string) error {
		if strings.TrimSpace(address) == "" {
			return NewError(CodeInvalidParams, "invalid payload: address is empty")
		}
		return backend.AcceptPeer(ctx, address)
	}
}

// verify checks the bound procedures match the protocol table exactly.
func verify(procs map[string]procedure) error {
	var errs []error

	known := make(map[string]bool, len(Procedures))
	for _, name := range Procedures {
		known[name] = true
		if procs[name] == nil {
			errs = append(errs, fmt.Errorf("procedure %q is not bound", name))
		}
	}

	for name := range procs {
		if !known[name] {
			errs = append(errs, fmt.Errorf("procedure %q is not part of the protocol", name))
		}
	}

	return errors.Join(errs...)
}

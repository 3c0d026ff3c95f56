// Package rpc implements the node to node request/response protocol. A
// request names a procedure and carries a JSON payload, a response carries
// either a JSON result or a structured error. Procedure names and payload
// shapes are the compatibility contract between independently deployed
// nodes, so the server bindings and client methods in this package are
// two faces of the same table.
package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Version is the JSON-RPC version carried in every envelope.
const Version = "2.0"

// Path is the HTTP route the protocol is served on.
const Path = "/v1/rpc"

// Set of procedure names that make up the protocol.
const (
	ProcPing              = "ping"
	ProcGetBlockchain     = "get_blockchain"
	ProcGetTransactions   = "get_transactions"
	ProcGetNodes          = "get_nodes"
	ProcGetUntransactions = "get_untransactions"
	ProcNewBlock          = "new_block"
	ProcAddNode           = "add_node"
	ProcNewUntransaction  = "new_untransaction"
	ProcBlockTransaction  = "block_transaction"
)

// Procedures lists every procedure the server must bind.
var Procedures = []string{
	ProcPing,
	ProcGetBlockchain,
	ProcGetTransactions,
	ProcGetNodes,
	ProcGetUntransactions,
	ProcNewBlock,
	ProcAddNode,
	ProcNewUntransaction,
	ProcBlockTransaction,
}

// Set of error codes carried in structured errors.
const (
	CodeParseError     = -32700
	CodeInvalidRequest = -32600
	CodeMethodNotFound = -32601
	CodeInvalidParams  = -32602
	CodeInternalError  = -32603
	CodeStorageError   = -32000
)

// =============================================================================

// Request is the envelope for calling a procedure.
type Request struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method" validate:"required"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// NewRequest constructs a request with the payload as its single
// positional parameter. A nil payload produces an empty parameter list.
func NewRequest(id string, method string, payload any) (Request, error) {
	rawID, err := json.Marshal(id)
	if err != nil {
		return Request{}, err
	}

	params := []any{}
	if payload != nil {
		params = append(params, payload)
	}

	rawParams, err := json.Marshal(params)
	if err != nil {
		return Request{}, fmt.Errorf("encoding %s params: %w", method, err)
	}

	req := Request{
		JSONRPC: Version,
		ID:      rawID,
		Method:  method,
		Params:  rawParams,
	}

	return req, nil
}

// Response is the envelope for the outcome of a procedure.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is the structured error returned by a procedure.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// NewError constructs a structured error.
func NewError(code int, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// IsError checks if an error of type Error exists.
func IsError(err error) bool {
	var re *Error
	return errors.As(err, &re)
}

// GetError returns a copy of the Error pointer.
func GetError(err error) *Error {
	var re *Error
	if !errors.As(err, &re) {
		return nil
	}
	return re
}

// =============================================================================

// decodeParam unmarshals the single payload parameter of a request. The
// payload may be wrapped in a one element array or sent bare. Unknown
// fields are rejected.
func decodeParam(params json.RawMessage, v any) error {
	params = bytes.TrimSpace(params)
	if len(params) == 0 || bytes.Equal(params, []byte("null")) {
		return errors.New("missing payload")
	}

	if params[0] == '[' {
		var list []json.RawMessage
		if err := json.Unmarshal(params, &list); err != nil {
			return err
		}
		if len(list) != 1 {
			return fmt.Errorf("expected exactly one parameter, got %d", len(list))
		}
		params = list[0]
	}

	d := json.NewDecoder(bytes.NewReader(params))
	d.DisallowUnknownFields()
	if err := d.Decode(v); err != nil {
		return err
	}

	if d.More() {
		return errors.New("trailing data after payload")
	}

	return nil
}

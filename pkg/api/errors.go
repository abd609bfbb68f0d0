package api

import (
	"errors"
	"fmt"
)

// JSON-RPC error codes.
const (
	ErrCodeParseError     = -32700
	ErrCodeInvalidRequest = -32600
	ErrCodeMethodNotFound = -32601
	ErrCodeInvalidParams  = -32602
	ErrCodeInternal       = -32603
	ErrCodeServer         = -32000
)

// Kind classifies API errors.
type Kind int

// Error kinds.
const (
	KindBackend Kind = iota
	KindInvalidParams
	KindInvalidTransaction
	KindAccountNotFound
	KindNonceOverflow
	KindBalanceConversion
	KindBlockNotFound
	KindTransactionNotFound
	KindEthRPC
	KindSnapshot
	KindTxPool
	KindUnimplemented
)

var kindNames = map[Kind]string{
	KindBackend:             "backend error",
	KindInvalidParams:       "invalid params",
	KindInvalidTransaction:  "invalid transaction",
	KindAccountNotFound:     "account not found",
	KindNonceOverflow:       "nonce overflow",
	KindBalanceConversion:   "balance conversion error",
	KindBlockNotFound:       "block not found",
	KindTransactionNotFound: "transaction not found",
	KindEthRPC:              "eth rpc error",
	KindSnapshot:            "snapshot error",
	KindTxPool:              "transaction pool error",
	KindUnimplemented:       "unimplemented",
}

// String returns the name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Error is the error returned by request handlers.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	switch {
	case e.Msg != "" && e.Err != nil:
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Msg, e.Err)
	case e.Msg != "":
		return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	default:
		return e.Kind.String()
	}
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Code returns the JSON-RPC error code of the error.
func (e *Error) Code() int {
	switch e.Kind {
	case KindInvalidParams:
		return ErrCodeInvalidParams
	case KindUnimplemented:
		return ErrCodeMethodNotFound
	case KindInvalidTransaction, KindAccountNotFound, KindNonceOverflow, KindBalanceConversion,
		KindTxPool, KindBlockNotFound, KindTransactionNotFound:
		return ErrCodeServer
	default:
		return ErrCodeInternal
	}
}

// RPCError is the JSON-RPC error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError converts the error into its JSON-RPC form.
func (e *Error) RPCError() *RPCError {
	return &RPCError{Code: e.Code(), Message: e.Error()}
}

func newError(kind Kind, format string, args ...interface{}) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func wrapError(kind Kind, err error) *Error {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return &Error{Kind: kind, Err: err}
}

// errUnimplemented is returned for requests the server decodes but does not serve.
func errUnimplemented(method string) *Error {
	return newError(KindUnimplemented, "%s is not implemented", method)
}

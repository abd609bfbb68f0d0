package api

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Code(t *testing.T) {
	tests := []struct {
		kind Kind
		code int
	}{
		{KindInvalidParams, ErrCodeInvalidParams},
		{KindUnimplemented, ErrCodeMethodNotFound},
		{KindInvalidTransaction, ErrCodeServer},
		{KindAccountNotFound, ErrCodeServer},
		{KindNonceOverflow, ErrCodeServer},
		{KindBalanceConversion, ErrCodeServer},
		{KindTxPool, ErrCodeServer},
		{KindBlockNotFound, ErrCodeServer},
		{KindTransactionNotFound, ErrCodeServer},
		{KindBackend, ErrCodeInternal},
		{KindEthRPC, ErrCodeInternal},
		{KindSnapshot, ErrCodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := &Error{Kind: tt.kind, Msg: "boom"}
			assert.Equal(t, tt.code, err.Code())
			assert.Equal(t, &RPCError{Code: tt.code, Message: tt.kind.String() + ": boom"}, err.RPCError())
		})
	}
}

func TestWrapError(t *testing.T) {
	cause := errors.New("disk on fire")

	wrapped := wrapError(KindBackend, fmt.Errorf("context: %w", cause))
	assert.Equal(t, KindBackend, wrapped.Kind)
	assert.ErrorIs(t, wrapped, cause)

	// Classified errors keep their kind.
	inner := newError(KindInvalidParams, "bad %s", "input")
	assert.Same(t, inner, wrapError(KindBackend, fmt.Errorf("outer: %w", inner)))
	assert.Equal(t, "invalid params: bad input", inner.Error())
}

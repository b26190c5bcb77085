package errs

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapPreservesCause(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := Wrap(ErrKindConnectionFailed, "acquire failed", cause)

	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "acquire failed")
	assert.Contains(t, err.Error(), "connection reset by peer")
}

func TestPredicates(t *testing.T) {
	tests := []struct {
		kind  ErrKind
		check func(error) bool
	}{
		{ErrKindNotFound, IsNotFound},
		{ErrKindTimeout, IsTimeout},
		{ErrKindConnectionFailed, IsConnectionFailed},
		{ErrKindQueryFailed, IsQueryFailed},
		{ErrKindInvalidInput, IsInvalidInput},
		{ErrKindConflict, IsConflict},
		{ErrKindNotConnected, IsNotConnected},
		{ErrKindPoolCreation, IsPoolCreation},
		{ErrKindPoolTerminated, IsPoolTerminated},
		{ErrKindTxDepth, IsTxDepth},
		{ErrKindNoTask, IsNoTask},
	}
	for _, tt := range tests {
		t.Run(tt.kind.String(), func(t *testing.T) {
			err := New(tt.kind, "boom")
			assert.True(t, tt.check(err))
			assert.False(t, tt.check(New(ErrKindUnknown, "boom")))
			assert.False(t, tt.check(nil))
		})
	}
}

func TestKindOf(t *testing.T) {
	assert.Equal(t, ErrKindConflict, KindOf(New(ErrKindConflict, "dup")))
	assert.Equal(t, ErrKindUnknown, KindOf(errors.New("plain")))
	assert.Equal(t, ErrKindUnknown, KindOf(nil))
}

package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_Error(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"plain", New(CodeClientNotFound, "client ghost not found"), "[CLIENT_NOT_FOUND] client ghost not found"},
		{"wrapped", Wrap(errors.New("connection refused"), CodeStorageError, "write cache"), "[STORAGE_ERROR] write cache: connection refused"},
		{"formatted", Newf(CodeUnknownType, "unknown message type: %s", "fly"), "[UNKNOWN_TYPE] unknown message type: fly"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.err.Error())
		})
	}
}

func TestError_IsByCode(t *testing.T) {
	err := Newf(CodeTimeout, "request %s timed out", "abc")
	assert.True(t, errors.Is(err, ErrTimeout))
	assert.False(t, errors.Is(err, ErrClientNotFound))

	outer := fmt.Errorf("sendAndWait: %w", err)
	assert.True(t, IsCode(outer, CodeTimeout))
	assert.Equal(t, CodeTimeout, GetCode(outer))
}

func TestWrap_Nil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeStorageError, "x"))
	assert.Nil(t, Wrapf(nil, CodeStorageError, "x %d", 1))
}

func TestGetCode_Foreign(t *testing.T) {
	assert.Equal(t, CodeInternal, GetCode(errors.New("plain")))
	assert.False(t, IsCode(nil, CodeTimeout))
}

func TestUnwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Wrap(cause, CodeStorageError, "persist")
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrStorage)
}

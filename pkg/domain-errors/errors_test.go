package domainerrors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches direct code", func(t *testing.T) {
		err := New(CodeNotFound, "item not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInvalidState))
	})

	t.Run("walks nested coded errors", func(t *testing.T) {
		inner := New(CodeInsufficientAvailable, "only 4 units available")
		outer := Wrap(inner, CodeInternal, "reserve failed")
		assert.True(t, HasCode(outer, CodeInternal))
		assert.True(t, HasCode(outer, CodeInsufficientAvailable))
	})

	t.Run("sees through fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("handler: %w", New(CodeExpired, "reservation expired"))
		assert.True(t, HasCode(err, CodeExpired))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(cause, CodePersistence, "failed to persist reservation")

	require.ErrorIs(t, err, cause)
	assert.Equal(t, "failed to persist reservation: connection refused", err.Error())
	assert.Equal(t, CodePersistence, CodeOf(err))
	assert.Equal(t, "failed to persist reservation", MessageOf(err))
}

func TestCodeOfDefaultsToInternal(t *testing.T) {
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	assert.Equal(t, "internal error", MessageOf(errors.New("boom")))
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		code      Code
		retryable bool
	}{
		{CodeLockTimeout, true},
		{CodePersistence, true},
		{CodeInsufficientAvailable, true},
		{CodeInvalidArgument, false},
		{CodeNotFound, false},
		{CodeInvalidState, false},
		{CodeExpired, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.retryable, IsRetryable(New(tt.code, "x")))
		})
	}
}

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		code   Code
		status int
	}{
		{CodeInvalidArgument, http.StatusBadRequest},
		{CodeBadRequest, http.StatusBadRequest},
		{CodeNotFound, http.StatusNotFound},
		{CodeInsufficientAvailable, http.StatusConflict},
		{CodeInvalidState, http.StatusConflict},
		{CodeExpired, http.StatusConflict},
		{CodeUnsupportedMediaType, http.StatusUnsupportedMediaType},
		{CodeLockTimeout, http.StatusServiceUnavailable},
		{CodePersistence, http.StatusServiceUnavailable},
		{CodeInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			assert.Equal(t, tt.status, HTTPStatus(tt.code))
		})
	}
}

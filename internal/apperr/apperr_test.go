package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestErrorIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("extend loan: %w", ErrExtend.Withf("date %s is past max", "2024-01-01"))

	assert.True(t, errors.Is(err, ErrExtend))
	assert.False(t, errors.Is(err, ErrGuestNotAllowed))
	assert.Equal(t, PreconditionFailed, KindOf(err))
	assert.Equal(t, "ExtendError", CodeOf(err))
}

func TestBadInputErrorsStayDistinct(t *testing.T) {
	generic := ErrBadInput.Withf("capacity must be positive")

	assert.False(t, errors.Is(generic, ErrBadPageToken))
	assert.False(t, errors.Is(ErrBadPageToken, ErrBadInput))
	assert.True(t, errors.Is(ErrBadPageToken.Withf("token %q", "x"), ErrBadPageToken))
	assert.Equal(t, BadInput, KindOf(ErrBadPageToken))
}

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("rpc timeout")
	err := ErrDirectoryRPC.Wrap(cause)

	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrDirectoryRPC)
	assert.Contains(t, err.Error(), "rpc timeout")
}

func TestHTTPStatus(t *testing.T) {
	testCases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", ErrDeviceDoesNotExist, http.StatusNotFound},
		{"bad input", ErrLatLong, http.StatusBadRequest},
		{"conflict", ErrShelfCapacity, http.StatusConflict},
		{"unauthorized", ErrNotAssignee, http.StatusForbidden},
		{"precondition", ErrExtend, http.StatusPreconditionFailed},
		{"upstream", ErrDirectoryRPC, http.StatusBadGateway},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, HTTPStatus(tc.err))
		})
	}
}

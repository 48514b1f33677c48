package errs

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewErrorFormatsTemplate(t *testing.T) {
	err := NewError(ErrRejected, "login", "Invalid credentials")
	assert.Equal(t, "login: Invalid credentials", err.Message)
	assert.Equal(t, KindRejected, err.Kind)

	err = NewError(ErrUnauthorized, "session")
	assert.Equal(t, "session: ", err.Message)
	assert.Equal(t, http.StatusUnauthorized, err.Status)
}

func TestUnknownCodeFallsBack(t *testing.T) {
	err := NewError(424242)
	assert.Equal(t, ErrUnknown, err.Code)
	assert.Equal(t, KindUnknown, err.Kind)
}

func TestKindOfWrapped(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("session: %w", Wrap(ErrNetwork, cause, "session"))

	assert.Equal(t, KindTransport, KindOf(err))
	assert.Equal(t, ErrNetwork, CodeOf(err))
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, NewError(ErrNetwork))
	assert.NotErrorIs(t, err, NewError(ErrUnauthorized))
	assert.Equal(t, KindUnknown, KindOf(cause))
}

func TestUserMessage(t *testing.T) {
	assert.Equal(t, "permission denied", UserMessage(NewError(ErrPermissionDenied)))
	assert.Equal(t, "boom", UserMessage(errors.New("boom")))
	assert.Empty(t, UserMessage(nil))
}

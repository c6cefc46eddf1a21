package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_MatchesKindThroughWrapping(t *testing.T) {
	err := fmt.Errorf("submit feedback: %w", New(ErrConflict, "You have already submitted feedback for this event."))

	assert.True(t, errors.Is(err, ErrConflict))
	assert.False(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, "You have already submitted feedback for this event.", Message(err, "fallback"))
}

func TestMessage_Fallback(t *testing.T) {
	assert.Equal(t, "fallback", Message(errors.New("boom"), "fallback"))
}

func TestFieldErrors(t *testing.T) {
	err := FieldErrors{"username": "That username is taken.", "email": "That email is taken."}

	assert.True(t, Is(err, ErrValidation))
	assert.Equal(t, "email: That email is taken.; username: That username is taken.", err.Error())

	var fe FieldErrors
	assert.True(t, errors.As(fmt.Errorf("wrap: %w", err), &fe))
	assert.Equal(t, "That username is taken.", fe["username"])
}

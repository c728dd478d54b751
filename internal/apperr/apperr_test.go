package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsMatchesByKind(t *testing.T) {
	err := fmt.Errorf("reserve: %w", New(KindSlotAlreadyBooked, "tutor 7 busy at 10:00"))

	assert.True(t, errors.Is(err, ErrSlotAlreadyBooked))
	assert.False(t, errors.Is(err, ErrStudentDoubleBooked))
	assert.Equal(t, KindSlotAlreadyBooked, KindOf(err))
}

func TestClassifyKeepsCause(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")

	err := Classify(cause, "load rules")
	require.Error(t, err)
	assert.Equal(t, KindStoreUnavailable, KindOf(err))
	assert.ErrorIs(t, err, cause)

	already := New(KindConflict, "version mismatch")
	assert.Same(t, already, Classify(already, "ignored"))
	assert.NoError(t, Classify(nil, "nothing"))
}

func TestOnlyConflictIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(ErrConflict))
	for _, err := range []error{ErrInvalidInterval, ErrSlotAlreadyBooked, ErrStudentDoubleBooked,
		ErrSlotNoLongerAvailable, ErrNotFound, ErrUnauthorized, ErrInvalidTransition, ErrStoreUnavailable} {
		assert.False(t, IsRetryable(err), err.Error())
	}
}

func TestUnauthorizedLooksLikeNotFound(t *testing.T) {
	assert.Equal(t, http.StatusNotFound, KindUnauthorized.HTTPStatus())
	assert.Equal(t, KindNotFound.HTTPStatus(), KindUnauthorized.HTTPStatus())
	assert.Equal(t, KindNotFound.PublicCode(), KindUnauthorized.PublicCode())
	assert.Equal(t, KindNotFound.UserMessage(), KindUnauthorized.UserMessage())
}

func TestUserMessages(t *testing.T) {
	assert.Equal(t, KindSlotAlreadyBooked.UserMessage(), KindSlotNoLongerAvailable.UserMessage())
	assert.Equal(t, "you already have a session at this time", KindStudentDoubleBooked.UserMessage())
	assert.Equal(t, http.StatusServiceUnavailable, KindStoreUnavailable.HTTPStatus())
	assert.Equal(t, http.StatusBadRequest, KindInvalidInterval.HTTPStatus())
}

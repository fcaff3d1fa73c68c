package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{New(ErrNotFound, "delivery not found"), "not_found"},
		{New(ErrConflict, "taken"), "conflict"},
		{ErrForbidden, "forbidden"},
		{fmt.Errorf("wrap: %w", New(ErrInvalidTransition, "nope")), "invalid_transition"},
		{ErrInvalid, "invalid_input"},
		{New(ErrUnavailable, "offline"), "unavailable"},
		{errors.New("db down"), "internal"},
	}
	for _, tt := range tests {
		require.Equal(t, tt.want, KindOf(tt.err), tt.err.Error())
	}
}

func TestError_IsAndMessage(t *testing.T) {
	t.Parallel()

	err := New(ErrConflict, "delivery is no longer available")

	require.ErrorIs(t, err, ErrConflict)
	require.NotErrorIs(t, err, ErrNotFound)
	require.Equal(t, "delivery is no longer available", Message(err))
	require.Equal(t, "internal error", Message(errors.New("pq: connection reset")))
}

package notify

import (
	"context"
	"errors"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/require"

	testlog "parcel-dispatch/internal/testutil"
)

type senderFunc func(context.Context, Notification) error

func (f senderFunc) Send(ctx context.Context, n Notification) error { return f(ctx, n) }

type counterStub struct{ n int64 }

func (c *counterStub) Inc()         { atomic.AddInt64(&c.n, 1) }
func (c *counterStub) Count() int64 { return atomic.LoadInt64(&c.n) }

func TestRetryingSender_RetriesThenSucceeds(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	var calls int32
	next := senderFunc(func(context.Context, Notification) error {
		switch atomic.AddInt32(&calls, 1) {
		case 1, 2:
			return &StatusError{Code: http.StatusBadGateway}
		default:
			return nil
		}
	})
	ctr := &counterStub{}

	s := NewRetryingSender(next, rec.Logger(), ctr, RetryConfig{MaxAttempts: 5})
	require.NoError(t, s.Send(context.Background(), Notification{Recipient: "rider:1"}))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
	require.EqualValues(t, 2, ctr.Count())
	require.True(t, rec.Has("warn", "notification retry"))
}

func TestRetryingSender_NoRetryOnNonRetryable(t *testing.T) {
	t.Parallel()

	var calls int32
	next := senderFunc(func(context.Context, Notification) error {
		atomic.AddInt32(&calls, 1)
		return ErrNoRecipient
	})
	ctr := &counterStub{}

	s := NewRetryingSender(next, testlog.New().Logger(), ctr, RetryConfig{MaxAttempts: 5})
	require.ErrorIs(t, s.Send(context.Background(), Notification{}), ErrNoRecipient)
	require.EqualValues(t, 1, atomic.LoadInt32(&calls))
	require.Zero(t, ctr.Count())
}

func TestRetryingSender_StopsAtMaxAttempts(t *testing.T) {
	t.Parallel()

	var calls int32
	next := senderFunc(func(context.Context, Notification) error {
		atomic.AddInt32(&calls, 1)
		return &StatusError{Code: http.StatusTooManyRequests}
	})

	s := NewRetryingSender(next, testlog.New().Logger(), nil, RetryConfig{MaxAttempts: 3})
	err := s.Send(context.Background(), Notification{})
	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.EqualValues(t, 3, atomic.LoadInt32(&calls))
}

func TestRetryingSender_NilNext(t *testing.T) {
	t.Parallel()
	require.Nil(t, NewRetryingSender(nil, testlog.New().Logger(), nil, RetryConfig{}))
}

func TestBackoff(t *testing.T) {
	t.Parallel()

	require.Equal(t, 100, int(backoff(100, 1000, 1)))
	require.Equal(t, 400, int(backoff(100, 1000, 3)))
	require.Equal(t, 1000, int(backoff(100, 1000, 6)))
}

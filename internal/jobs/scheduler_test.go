package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	testlog "parcel-dispatch/internal/testutil"
)

type settlementStub struct {
	limit int
	n     int
	err   error
}

func (s *settlementStub) Sweep(_ context.Context, limit int) (int, error) {
	s.limit = limit
	return s.n, s.err
}

type dispatchStub struct {
	olderThan time.Duration
	limit     int
}

func (s *dispatchStub) Sweep(_ context.Context, olderThan time.Duration, limit int) (int, error) {
	s.olderThan, s.limit = olderThan, limit
	return 1, nil
}

func TestSweeps_PassBatchAndThreshold(t *testing.T) {
	t.Parallel()

	st := &settlementStub{n: 3}
	n, err := SettlementRetry(st, "@every 5m").Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, sweepBatch, st.limit)

	ds := &dispatchStub{}
	_, err = Redispatch(ds, "@every 1m", 7*time.Minute).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 7*time.Minute, ds.olderThan)
	require.Equal(t, sweepBatch, ds.limit)
}

func TestScheduler_RunLogsOutcome(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	s := NewScheduler(rec.Logger())

	s.run(SettlementRetry(&settlementStub{n: 2}, "@every 5m"))
	require.True(t, rec.Has("info", "job done"))

	s.run(SettlementRetry(&settlementStub{err: errors.New("db down")}, "@every 5m"))
	require.True(t, rec.Has("error", "job failed"))
}

func TestScheduler_QuietWhenIdle(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	NewScheduler(rec.Logger()).run(SettlementRetry(&settlementStub{}, "@every 5m"))
	require.Empty(t, rec.Entries())
}

func TestScheduler_StartRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewScheduler(nil,
		SettlementRetry(&settlementStub{}, "@every 5m"),
		Redispatch(&dispatchStub{}, "every now and then", time.Minute),
	)
	err := s.Start()
	require.Error(t, err)
	require.Contains(t, err.Error(), "redispatch")
}

func TestScheduler_StartStop(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	s := NewScheduler(rec.Logger(), SettlementRetry(&settlementStub{}, "@every 1h"))
	require.NoError(t, s.Start())
	require.True(t, rec.Has("info", "job scheduled"))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	s.Stop(ctx)
}

package app

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/dig"

	"parcel-dispatch/internal/events"
	"parcel-dispatch/internal/logx"
	testlog "parcel-dispatch/internal/testutil"
)

func containerWithLogger(t *testing.T, logger logx.Logger) *dig.Container {
	t.Helper()
	c := dig.New()
	require.NoError(t, c.Provide(func() logx.Logger { return logger }))
	return c
}

func TestRunner_MustRun(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name     string
		err      error
		wantMsg  string
		wantExit bool
	}{
		{name: "clean exit", err: nil},
		{name: "shutdown", err: context.Canceled, wantMsg: "shutdown requested, exiting"},
		{name: "startup timeout", err: context.DeadlineExceeded, wantMsg: "startup aborted: startup timeout exceeded"},
		{name: "failure", err: errors.New("listen tcp: address in use"), wantMsg: "run error", wantExit: true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			rec := testlog.New()
			exitCode := -1
			r := &Runner{
				runFn: func(*dig.Container) error { return tc.err },
				exit:  func(code int) { exitCode = code },
			}
			r.MustRun(containerWithLogger(t, rec.Logger()))

			if tc.wantMsg != "" {
				require.True(t, hasMsg(rec.Entries(), tc.wantMsg), "missing %q", tc.wantMsg)
			} else {
				require.Empty(t, rec.Entries())
			}
			if tc.wantExit {
				require.Equal(t, 1, exitCode)
			} else {
				require.Equal(t, -1, exitCode)
			}
		})
	}
}

func TestRunner_MustRun_WithoutLoggerInContainer(t *testing.T) {
	t.Parallel()

	exited := false
	r := &Runner{runFn: func(*dig.Container) error { return errors.New("boom") }, exit: func(int) { exited = true }}
	require.NotPanics(t, func() { r.MustRun(dig.New()) })
	require.True(t, exited)
}

func TestAppRun_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	rec := testlog.New()
	bus := events.NewBus(rec.Logger())
	srv := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}

	done := make(chan error, 1)
	go func() {
		done <- appRun(appIn{Ctx: ctx, Logger: rec.Logger(), Server: srv, Bus: bus})
	}()
	cancel()

	select {
	case err := <-done:
		require.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("appRun did not return after cancel")
	}
	require.True(t, rec.Has("info", "shutting down parcel-dispatch"))
}

func TestAppRun_ReturnsListenError(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	srv := &http.Server{Addr: "127.0.0.1:-1", ReadHeaderTimeout: time.Second}

	err := appRun(appIn{Ctx: context.Background(), Logger: rec.Logger(), Server: srv, Bus: events.NewBus(rec.Logger())})
	require.Error(t, err)
	require.True(t, rec.Has("error", "component failed, shutting down"))
}

func TestGracefulShutdown_IdleServer(t *testing.T) {
	t.Parallel()

	rec := testlog.New()
	srv := &http.Server{Addr: "127.0.0.1:0", ReadHeaderTimeout: time.Second}
	gracefulShutdown(srv, rec.Logger(), time.Second)

	require.Empty(t, rec.Entries())
	require.ErrorIs(t, srv.ListenAndServe(), http.ErrServerClosed)
}

func TestRun_FailsWithoutSubscribers(t *testing.T) {
	t.Parallel()

	err := run(dig.New())
	require.Error(t, err)
}

func hasMsg(entries []testlog.Entry, msg string) bool {
	for _, e := range entries {
		if e.Msg == msg {
			return true
		}
	}
	return false
}

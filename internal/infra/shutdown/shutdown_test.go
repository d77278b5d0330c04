package shutdown_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
	"github.com/skillcoder/toolmanager/internal/infra/shutdown/mocks"
)

type quitChan chan os.Signal

func (q quitChan) Quit() <-chan os.Signal { return q }

func TestCheckTerminationFile(t *testing.T) {
	t.Parallel()

	logger := slog.Default()

	t.Run("empty path returns false", func(t *testing.T) {
		t.Parallel()

		require.False(t, shutdown.CheckTerminationFile(t.Context(), logger, ""))
	})

	t.Run("file missing returns false", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "nonexistent")

		require.False(t, shutdown.CheckTerminationFile(t.Context(), logger, path))
	})

	t.Run("file exists returns true", func(t *testing.T) {
		t.Parallel()

		path := filepath.Join(t.TempDir(), "terminating")
		require.NoError(t, os.WriteFile(path, nil, 0o600))

		require.True(t, shutdown.CheckTerminationFile(t.Context(), logger, path))
	})
}

func TestHandler_CheckTermination(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "terminating")
	h := shutdown.New(slog.Default(), make(quitChan), path)

	require.NoError(t, h.CheckTermination(t.Context()))

	require.NoError(t, os.WriteFile(path, nil, 0o600))
	require.ErrorIs(t, h.CheckTermination(t.Context()), shutdown.ErrTerminating)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()
	require.ErrorIs(t, h.CheckTermination(ctx), context.Canceled)
}

func TestHandler_HandleSignals(t *testing.T) {
	t.Parallel()

	t.Run("signal cancels", func(t *testing.T) {
		t.Parallel()

		quit := make(quitChan, 1)
		h := shutdown.New(slog.Default(), quit, "")

		ctx, cancel := context.WithCancel(t.Context())
		defer cancel()

		done := make(chan struct{})

		go func() {
			defer close(done)
			h.HandleSignals(ctx, cancel)
		}()

		quit <- syscall.SIGTERM

		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatal("handler did not return")
		}

		require.ErrorIs(t, ctx.Err(), context.Canceled)
	})

	t.Run("context done returns without cancel", func(t *testing.T) {
		t.Parallel()

		h := shutdown.New(slog.Default(), make(quitChan), "")

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		called := false
		h.HandleSignals(ctx, func() { called = true })
		require.False(t, called)
	})
}

func TestGracefulShutdown(t *testing.T) {
	t.Parallel()

	logger := slog.Default()

	t.Run("empty list returns nil", func(t *testing.T) {
		t.Parallel()

		require.NoError(t, shutdown.GracefulShutdown(t.Context(), logger, nil))
	})

	t.Run("errors are joined and do not stop the rest", func(t *testing.T) {
		t.Parallel()

		errBoom := errors.New("boom")

		failing := mocks.NewMockShutdowner(t)
		failing.EXPECT().Name().Return("failing").Once()
		failing.EXPECT().Shutdown(mock.Anything).Return(errBoom).Once()

		slow := mocks.NewMockShutdowner(t)
		slow.EXPECT().Name().Return("slow").Once()
		slow.EXPECT().Shutdown(mock.Anything).Return(context.DeadlineExceeded).Once()

		ok := mocks.NewMockShutdowner(t)
		ok.EXPECT().Name().Return("ok").Once()
		ok.EXPECT().Shutdown(mock.Anything).Return(nil).Once()

		err := shutdown.GracefulShutdown(t.Context(), logger, []shutdown.Shutdowner{ok, slow, failing})
		require.ErrorIs(t, err, errBoom)
		require.ErrorIs(t, err, context.DeadlineExceeded)
		require.ErrorContains(t, err, "shutdown failing")
	})

	t.Run("reverse order", func(t *testing.T) {
		t.Parallel()

		var (
			mu    sync.Mutex
			order []string
		)

		record := func(name string) *mocks.MockShutdowner {
			m := mocks.NewMockShutdowner(t)
			m.EXPECT().Name().Return(name).Once()
			m.EXPECT().Shutdown(mock.Anything).RunAndReturn(func(context.Context) error {
				mu.Lock()
				defer mu.Unlock()

				order = append(order, name)

				return nil
			}).Once()

			return m
		}

		err := shutdown.GracefulShutdown(t.Context(), logger, []shutdown.Shutdowner{
			record("first"), record("second"), record("third"),
		})
		require.NoError(t, err)
		require.Equal(t, []string{"third", "second", "first"}, order)
	})

	t.Run("canceled origin still shuts down", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		m := mocks.NewMockShutdowner(t)
		m.EXPECT().Name().Return("component").Once()
		m.EXPECT().Shutdown(mock.Anything).RunAndReturn(func(ctx context.Context) error {
			return ctx.Err()
		}).Once()

		require.NoError(t, shutdown.GracefulShutdown(ctx, logger, []shutdown.Shutdowner{m}))
	})
}

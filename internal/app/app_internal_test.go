package app

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/toolmanager/internal/config"
	"github.com/skillcoder/toolmanager/internal/infra/appstate"
	"github.com/skillcoder/toolmanager/internal/infra/shutdown"
	"github.com/skillcoder/toolmanager/internal/logic/lifecycle"
	"github.com/skillcoder/toolmanager/internal/logic/resource"
	"github.com/skillcoder/toolmanager/internal/logic/scaling"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()

	dir := t.TempDir()

	return &config.Config{
		LogLevel:         "debug",
		LogFormat:        "text",
		HTTPPort:         "0",
		MetricsPort:      "0",
		ConfigFile:       filepath.Join(dir, "tools.json"),
		WatchConfig:      true,
		MonitorInterval:  100 * time.Millisecond,
		PingerInterval:   50 * time.Millisecond,
		DiskPath:         dir,
		ProcPath:         "/proc",
		HistorySize:      resource.DefaultHistorySize,
		Thresholds:       resource.DefaultThresholds(),
		MaxErrorCount:    lifecycle.DefaultMaxErrors,
		Policy:           scaling.DefaultPolicy(),
		BallastMB:        1,
		TerminationFile:  filepath.Join(dir, "terminating"),
		RestartJitterMax: 0,
	}
}

func TestApp_RunUntilSignal(t *testing.T) {
	cfg := testConfig(t)
	signals := make(chan os.Signal, 1)

	a, err := New(slog.Default(), cfg, signals)
	require.NoError(t, err)

	errCh := make(chan error, 1)

	go func() {
		errCh <- a.Run(t.Context())
	}()

	require.Eventually(t, func() bool {
		return a.appState.GetState() == appstate.StateRunning
	}, 5*time.Second, 10*time.Millisecond)

	_, err = os.Stat(cfg.ConfigFile)
	require.NoError(t, err, "built-in tools are persisted on first start")

	signals <- syscall.SIGTERM

	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(20 * time.Second):
		t.Fatal("app did not stop after SIGTERM")
	}

	require.Equal(t, appstate.StateTerminated, a.appState.GetState())
}

func TestApp_RefusesToStartWhenTerminating(t *testing.T) {
	cfg := testConfig(t)
	require.NoError(t, os.WriteFile(cfg.TerminationFile, nil, 0o644))

	a, err := New(slog.Default(), cfg, make(chan os.Signal))
	require.NoError(t, err)

	err = a.Run(t.Context())
	require.ErrorIs(t, err, shutdown.ErrTerminating)
	require.Equal(t, appstate.StateInit, a.appState.GetState())
}

func TestApp_RunWithDoneContext(t *testing.T) {
	a, err := New(slog.Default(), testConfig(t), make(chan os.Signal))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	err = a.Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	require.Equal(t, appstate.StateInit, a.appState.GetState())
}

type allChannelsCloseCase struct {
	name                         string
	giveNumChannels              int
	giveContextCancelBeforeClose bool
	wantClosed                   bool
}

func TestAllChannelsClose(t *testing.T) {
	logger := slog.Default()

	tests := []allChannelsCloseCase{
		{
			name:            "zero channels closes immediately",
			giveNumChannels: 0,
			wantClosed:      true,
		},
		{
			name:            "one channel closes when it closes",
			giveNumChannels: 1,
			wantClosed:      true,
		},
		{
			name:            "two channels close when both close",
			giveNumChannels: 2,
			wantClosed:      true,
		},
		{
			name:                         "context cancelled then channels close",
			giveNumChannels:              2,
			giveContextCancelBeforeClose: true,
			wantClosed:                   true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := t.Context()

			if tt.giveContextCancelBeforeClose {
				var cancel context.CancelFunc

				ctx, cancel = context.WithCancel(ctx)
				cancel()
			}

			chans := make([]<-chan struct{}, 0, tt.giveNumChannels)
			readyChans := make([]chan struct{}, 0, tt.giveNumChannels)

			for range tt.giveNumChannels {
				ch := make(chan struct{})

				readyChans = append(readyChans, ch)
				chans = append(chans, ch)
			}

			out := allChannelsClose(ctx, logger, chans...)

			if tt.giveNumChannels == 0 {
				select {
				case <-out:
				case <-time.After(100 * time.Millisecond):
					t.Fatal("expected out channel to close immediately")
				}

				return
			}

			for _, ch := range readyChans {
				close(ch)
			}

			select {
			case <-out:
			case <-time.After(500 * time.Millisecond):
				t.Fatal("expected out channel to close after all input channels closed")
			}
		})
	}
}

package filestore_test

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/skillcoder/toolmanager/internal/adapters/outbound/filestore"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

func settingsPath(t *testing.T) string {
	t.Helper()

	return filepath.Join(t.TempDir(), "config", "tools.json")
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestStore_RoundTrip(t *testing.T) {
	t.Parallel()

	alpha := tool.DefaultConfig("alpha")
	alpha.Priority = 2
	alpha.Dependencies = []string{"beta", "gamma"}
	alpha.StartupTimeout = 1500 * time.Millisecond
	alpha.Description = "renders reports"
	alpha.RestartSchedule = "0 3 * * *"

	beta := tool.DefaultConfig("beta")
	beta.Enabled = false
	beta.AutoScale = false
	beta.MaxMemoryMB = 512
	beta.HealthCheckInterval = 2 * time.Minute

	want := tool.Settings{
		AutoScalingEnabled: false,
		Tools:              map[string]tool.Config{"alpha": alpha, "beta": beta},
	}

	path := settingsPath(t)

	require.NoError(t, filestore.New(slog.Default(), path).Save(t.Context(), want))

	got, err := filestore.New(slog.Default(), path).Load(t.Context())
	require.NoError(t, err)
	require.Equal(t, want, got)
}

func TestStore_FileFormat(t *testing.T) {
	t.Parallel()

	path := settingsPath(t)
	store := filestore.New(slog.Default(), path)

	err := store.Save(t.Context(), tool.Settings{
		AutoScalingEnabled: true,
		Tools:              map[string]tool.Config{"alpha": tool.DefaultConfig("alpha")},
	})
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	require.Equal(t, true, doc["auto_scaling_enabled"])

	alpha := doc["tools"].(map[string]any)["alpha"].(map[string]any)
	require.Equal(t, []any{}, alpha["dependencies"])
	require.InDelta(t, 30.0, alpha["startup_timeout"], 0)
	require.InDelta(t, 60.0, alpha["health_check_interval"], 0)
	require.InDelta(t, 10.0, alpha["resource_check_interval"], 0)
	require.InDelta(t, 5.0, alpha["priority"], 0)
	require.NotContains(t, alpha, "restart_schedule")

	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestStore_Load(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		giveContent *string
		wantAuto    bool
		wantTools   map[string]tool.Config
		wantErr     error
	}{
		{
			name:      "missing file is empty",
			wantAuto:  true,
			wantTools: map[string]tool.Config{},
		},
		{
			name:        "missing fields take defaults",
			giveContent: ptr(`{"tools": {"alpha": {"priority": 7}}}`),
			wantAuto:    true,
			wantTools: map[string]tool.Config{
				"alpha": func() tool.Config {
					c := tool.DefaultConfig("alpha")
					c.Priority = 7

					return c
				}(),
			},
		},
		{
			name:        "invalid tool is skipped",
			giveContent: ptr(`{"auto_scaling_enabled": false, "tools": {"bad": {"priority": 42}, "good": {}}}`),
			wantAuto:    false,
			wantTools:   map[string]tool.Config{"good": tool.DefaultConfig("good")},
		},
		{
			name:        "malformed json",
			giveContent: ptr(`{"tools": [`),
			wantErr:     filestore.ErrDecode,
		},
		{
			name:        "wrong field type",
			giveContent: ptr(`{"tools": {"alpha": {"priority": "high"}}}`),
			wantErr:     filestore.ErrDecode,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := settingsPath(t)
			if tt.giveContent != nil {
				writeFile(t, path, *tt.giveContent)
			}

			got, err := filestore.New(slog.Default(), path).Load(t.Context())
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				return
			}

			require.NoError(t, err)
			require.Equal(t, tt.wantAuto, got.AutoScalingEnabled)
			require.Equal(t, tt.wantTools, got.Tools)
		})
	}
}

func TestStore_ConcurrentSaves(t *testing.T) {
	t.Parallel()

	path := settingsPath(t)
	store := filestore.New(slog.Default(), path)

	var wg sync.WaitGroup

	for i := range 20 {
		wg.Go(func() {
			cfg := tool.DefaultConfig(fmt.Sprintf("tool-%02d", i))
			cfg.Priority = i%tool.MaxPriority + 1

			err := store.Save(context.Background(), tool.Settings{
				AutoScalingEnabled: true,
				Tools:              map[string]tool.Config{cfg.Name: cfg},
			})
			assert.NoError(t, err)
		})
	}

	wg.Wait()

	got, err := store.Load(t.Context())
	require.NoError(t, err)
	require.Len(t, got.Tools, 1, "file holds exactly one complete document")

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	require.Len(t, entries, 1, "no temp files left behind")
}

func TestWatcher(t *testing.T) {
	t.Parallel()

	path := settingsPath(t)

	var calls atomic.Int32

	w := filestore.NewWatcher(slog.Default(), path, 20*time.Millisecond, func(context.Context) {
		calls.Add(1)
	})

	require.NoError(t, w.Start(t.Context()))

	select {
	case <-w.Ready():
	case <-time.After(2 * time.Second):
		t.Fatal("watcher did not become ready")
	}

	require.NoError(t, w.Ping(t.Context()))
	require.Equal(t, "config-watcher", w.Name())

	writeFile(t, filepath.Join(filepath.Dir(path), "other.json"), "{}")
	time.Sleep(100 * time.Millisecond)
	require.Zero(t, calls.Load(), "other files are ignored")

	writeFile(t, path, `{"tools": {}}`)

	require.Eventually(t, func() bool {
		return calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	require.GreaterOrEqual(t, w.Reloads(), int64(1))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, w.Shutdown(shutdownCtx))
	require.Error(t, w.Ping(t.Context()))
}

func ptr[T any](v T) *T {
	return &v
}

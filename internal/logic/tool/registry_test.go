package tool_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

func noopFactory(context.Context) (tool.Instance, error) {
	return struct{}{}, nil
}

func ptr[T any](v T) *T {
	return &v
}

func TestRegistry_Register(t *testing.T) {
	t.Parallel()

	t.Run("new name gets default config", func(t *testing.T) {
		t.Parallel()

		r := tool.NewRegistry()

		created, err := r.Register("alpha", noopFactory)
		require.NoError(t, err)
		require.True(t, created)

		cfg, ok := r.Config("alpha")
		require.True(t, ok)
		require.Equal(t, tool.DefaultConfig("alpha"), cfg)
	})

	t.Run("re-register keeps config and replaces factory", func(t *testing.T) {
		t.Parallel()

		r := tool.NewRegistry()

		_, err := r.Register("alpha", noopFactory)
		require.NoError(t, err)

		_, err = r.UpdateConfig("alpha", tool.ConfigPatch{Priority: ptr(9)})
		require.NoError(t, err)

		replaced := false
		created, err := r.Register("alpha", func(context.Context) (tool.Instance, error) {
			replaced = true

			return nil, nil
		})
		require.NoError(t, err)
		require.False(t, created)

		cfg, _ := r.Config("alpha")
		require.Equal(t, 9, cfg.Priority)

		f, ok := r.Factory("alpha")
		require.True(t, ok)

		_, _ = f(t.Context())
		require.True(t, replaced)
	})

	t.Run("loaded config is kept on register", func(t *testing.T) {
		t.Parallel()

		r := tool.NewRegistry()
		loaded := tool.DefaultConfig("beta")
		loaded.Priority = 2
		loaded.Dependencies = []string{"gamma"}

		_, err := r.Put(loaded)
		require.NoError(t, err)

		created, err := r.Register("beta", noopFactory)
		require.NoError(t, err)
		require.False(t, created)

		cfg, _ := r.Config("beta")
		require.Equal(t, loaded, cfg)
	})

	t.Run("empty name and nil factory are rejected", func(t *testing.T) {
		t.Parallel()

		r := tool.NewRegistry()

		_, err := r.Register("", noopFactory)
		require.ErrorIs(t, err, tool.ErrEmptyName)

		_, err = r.Register("x", nil)
		require.ErrorIs(t, err, tool.ErrNilFactory)
	})
}

type updateConfigCase struct {
	name      string
	giveTool  string
	givePatch tool.ConfigPatch
	wantErr   error
	wantCheck func(t *testing.T, cfg tool.Config)
}

func TestRegistry_UpdateConfig(t *testing.T) {
	t.Parallel()

	tests := []updateConfigCase{
		{
			name:      "unknown tool",
			giveTool:  "unknown_tool",
			givePatch: tool.ConfigPatch{Priority: ptr(9)},
			wantErr:   tool.ErrToolNotFound,
		},
		{
			name:      "priority out of range",
			giveTool:  "alpha",
			givePatch: tool.ConfigPatch{Priority: ptr(11)},
			wantErr:   tool.ErrInvalidConfig,
		},
		{
			name:      "negative memory cap",
			giveTool:  "alpha",
			givePatch: tool.ConfigPatch{MaxMemoryMB: ptr(-1.0)},
			wantErr:   tool.ErrInvalidConfig,
		},
		{
			name:      "zero startup timeout",
			giveTool:  "alpha",
			givePatch: tool.ConfigPatch{StartupTimeout: ptr(time.Duration(0))},
			wantErr:   tool.ErrInvalidConfig,
		},
		{
			name:      "self dependency",
			giveTool:  "alpha",
			givePatch: tool.ConfigPatch{Dependencies: ptr([]string{"alpha"})},
			wantErr:   tool.ErrInvalidConfig,
		},
		{
			name:     "merge several fields",
			giveTool: "alpha",
			givePatch: tool.ConfigPatch{
				Priority:       ptr(2),
				AutoScale:      ptr(false),
				Dependencies:   ptr([]string{"gamma"}),
				StartupTimeout: ptr(5 * time.Second),
				Description:    ptr("simulation engine"),
			},
			wantCheck: func(t *testing.T, cfg tool.Config) {
				t.Helper()

				require.Equal(t, 2, cfg.Priority)
				require.False(t, cfg.AutoScale)
				require.Equal(t, []string{"gamma"}, cfg.Dependencies)
				require.Equal(t, 5*time.Second, cfg.StartupTimeout)
				require.Equal(t, "simulation engine", cfg.Description)
				require.InDelta(t, tool.DefaultMaxMemoryMB, cfg.MaxMemoryMB, 0)
				require.True(t, cfg.Enabled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			r := tool.NewRegistry()

			_, err := r.Register("alpha", noopFactory)
			require.NoError(t, err)

			got, err := r.UpdateConfig(tt.giveTool, tt.givePatch)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)

				cfg, _ := r.Config("alpha")
				require.Equal(t, tool.DefaultConfig("alpha"), cfg)

				return
			}

			require.NoError(t, err)
			tt.wantCheck(t, got)

			stored, _ := r.Config(tt.giveTool)
			require.Equal(t, got, stored)
		})
	}
}

func TestRegistry_ConfigIsCopied(t *testing.T) {
	t.Parallel()

	r := tool.NewRegistry()
	cfg := tool.DefaultConfig("alpha")
	cfg.Dependencies = []string{"beta"}

	_, err := r.Put(cfg)
	require.NoError(t, err)

	got, _ := r.Config("alpha")
	got.Dependencies[0] = "mutated"

	again, _ := r.Config("alpha")
	require.Equal(t, []string{"beta"}, again.Dependencies)
}

func TestRegistry_Unregister(t *testing.T) {
	t.Parallel()

	r := tool.NewRegistry()

	_, err := r.Register("alpha", noopFactory)
	require.NoError(t, err)

	require.True(t, r.Unregister("alpha"))
	require.False(t, r.Unregister("alpha"))
	require.Empty(t, r.Names())

	_, ok := r.Factory("alpha")
	require.False(t, ok)
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		mutate  func(*tool.Config)
		wantErr bool
	}{
		{name: "defaults", mutate: func(*tool.Config) {}},
		{name: "priority zero", mutate: func(c *tool.Config) { c.Priority = 0 }, wantErr: true},
		{name: "negative memory cap", mutate: func(c *tool.Config) { c.MaxMemoryMB = -1 }, wantErr: true},
		{name: "zero startup timeout", mutate: func(c *tool.Config) { c.StartupTimeout = 0 }, wantErr: true},
		{name: "self dependency", mutate: func(c *tool.Config) { c.Dependencies = []string{"alpha"} }, wantErr: true},
		{name: "other dependency", mutate: func(c *tool.Config) { c.Dependencies = []string{"beta"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := tool.DefaultConfig("alpha")
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.wantErr {
				require.ErrorIs(t, err, tool.ErrInvalidConfig)

				return
			}

			require.NoError(t, err)
		})
	}
}

func TestConfig_Equal(t *testing.T) {
	t.Parallel()

	base := tool.DefaultConfig("alpha")

	withDeps := base
	withDeps.Dependencies = []string{"beta"}

	emptyDeps := base
	emptyDeps.Dependencies = []string{}

	slower := base
	slower.StartupTimeout = 2 * base.StartupTimeout

	require.True(t, base.Equal(emptyDeps), "nil and empty dependencies are equal")
	require.True(t, withDeps.Equal(withDeps.Clone()))
	require.False(t, base.Equal(withDeps))
	require.False(t, base.Equal(slower))
}

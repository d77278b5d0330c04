package ballast_test

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/toolmanager/internal/tools"
	"github.com/skillcoder/toolmanager/internal/tools/ballast"
)

func TestBallast(t *testing.T) {
	t.Parallel()

	inst, err := ballast.NewFactory(slog.Default(), 2)(t.Context())
	require.NoError(t, err)

	b, ok := inst.(*ballast.Ballast)
	require.True(t, ok)
	require.Equal(t, 2<<20, b.HeldBytes())

	require.NoError(t, b.Pause(t.Context()))
	require.Zero(t, b.HeldBytes())

	require.NoError(t, b.Resume(t.Context()))
	require.Equal(t, 2<<20, b.HeldBytes())

	require.NoError(t, b.Cleanup(t.Context()))
	require.Zero(t, b.HeldBytes())
}

func TestBallast_CanceledFill(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(t.Context())
	cancel()

	_, err := ballast.NewFactory(slog.Default(), 2)(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestBallast_Registered(t *testing.T) {
	t.Parallel()

	factories := tools.Factories(slog.Default(), tools.Options{BallastMB: 1})
	require.Contains(t, factories, ballast.Name)

	inst, err := factories[ballast.Name](t.Context())
	require.NoError(t, err)
	require.Equal(t, 1<<20, inst.(*ballast.Ballast).HeldBytes())
}

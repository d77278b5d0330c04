package resource_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	clocktesting "k8s.io/utils/clock/testing"

	"github.com/skillcoder/toolmanager/internal/logic/resource"
	"github.com/skillcoder/toolmanager/internal/logic/resource/mocks"
)

const mb = 1024 * 1024

var errProcUnavailable = errors.New("proc unavailable")

type levelCase struct {
	name      string
	giveCPU   float64
	giveMem   float64
	wantLevel resource.Level
}

func TestThresholds_Level(t *testing.T) {
	t.Parallel()

	tests := []levelCase{
		{name: "idle", giveCPU: 5, giveMem: 10, wantLevel: resource.LevelLow},
		{name: "exactly medium threshold stays low", giveCPU: 50, giveMem: 0, wantLevel: resource.LevelLow},
		{name: "just above medium", giveCPU: 50.1, giveMem: 0, wantLevel: resource.LevelMedium},
		{name: "exactly high threshold stays medium", giveCPU: 70, giveMem: 0, wantLevel: resource.LevelMedium},
		{name: "memory drives high", giveCPU: 10, giveMem: 75, wantLevel: resource.LevelHigh},
		{name: "exactly critical threshold stays high", giveCPU: 90, giveMem: 90, wantLevel: resource.LevelHigh},
		{name: "cpu critical", giveCPU: 95, giveMem: 10, wantLevel: resource.LevelCritical},
		{name: "memory critical", giveCPU: 0, giveMem: 99, wantLevel: resource.LevelCritical},
	}

	thresholds := resource.DefaultThresholds()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := thresholds.Level(resource.Snapshot{CPUPercent: tt.giveCPU, MemoryPercent: tt.giveMem})
			require.Equal(t, tt.wantLevel, got)
		})
	}
}

func TestThresholds_Validate(t *testing.T) {
	t.Parallel()

	require.NoError(t, resource.DefaultThresholds().Validate())
	require.ErrorIs(t, resource.Thresholds{Medium: 70, High: 50, Critical: 90}.Validate(), resource.ErrInvalidThresholds)
	require.ErrorIs(t, resource.Thresholds{Medium: 50, High: 70, Critical: 101}.Validate(), resource.ErrInvalidThresholds)
	require.ErrorIs(t, resource.Thresholds{Medium: -1, High: 70, Critical: 90}.Validate(), resource.ErrInvalidThresholds)
}

func TestLevel_String(t *testing.T) {
	t.Parallel()

	require.Equal(t, "low", resource.LevelLow.String())
	require.Equal(t, "critical", resource.LevelCritical.String())
	require.Equal(t, "level(7)", resource.Level(7).String())
}

func hostStats(busy, total float64) resource.HostStats {
	return resource.HostStats{
		CPU:               resource.CPUTimes{Busy: busy, Total: total},
		MemTotalBytes:     1000 * mb,
		MemAvailableBytes: 250 * mb,
		DiskTotalBytes:    100_000 * mb,
		DiskFreeBytes:     40_000 * mb,
	}
}

func newSampler(t *testing.T, reader resource.HostReader, clk *clocktesting.FakeClock) *resource.Sampler {
	t.Helper()

	return resource.NewSampler(slog.Default(), reader, clk, resource.DefaultThresholds(), 10)
}

func TestSampler_Sample(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	reader := mocks.NewMockHostReader(t)
	sampler := newSampler(t, reader, clk)

	reader.EXPECT().Read(mock.Anything).Return(hostStats(25, 100), nil).Once()
	reader.EXPECT().Read(mock.Anything).Return(hostStats(85, 200), nil).Once()

	first := sampler.Sample(t.Context())
	require.False(t, first.Degraded)
	require.InDelta(t, 25.0, first.CPUPercent, 1e-9)
	require.InDelta(t, 75.0, first.MemoryPercent, 1e-9)
	require.InDelta(t, 750.0, first.MemoryUsedMB, 1e-9)
	require.InDelta(t, 250.0, first.MemoryAvailableMB, 1e-9)
	require.InDelta(t, 60.0, first.DiskPercent, 1e-9)
	require.InDelta(t, 40_000.0, first.DiskFreeMB, 1e-9)
	require.Equal(t, clk.Now(), first.Timestamp)

	clk.Step(10 * time.Second)

	second := sampler.Sample(t.Context())
	require.InDelta(t, 60.0, second.CPUPercent, 1e-9, "busy 60 of 100 seconds since previous read")
	require.Equal(t, resource.LevelHigh, sampler.Level(second))
	require.Equal(t, 2, sampler.HistoryLen())
}

func TestSampler_PeekLeavesBaseline(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	reader := mocks.NewMockHostReader(t)
	sampler := newSampler(t, reader, clk)

	reader.EXPECT().Read(mock.Anything).Return(hostStats(25, 100), nil).Once()
	reader.EXPECT().Read(mock.Anything).Return(hostStats(35, 110), nil).Once()
	reader.EXPECT().Read(mock.Anything).Return(hostStats(85, 200), nil).Once()

	first := sampler.Sample(t.Context())

	clk.Step(time.Second)

	peeked := sampler.Peek(t.Context())
	require.InDelta(t, 100.0, peeked.CPUPercent, 1e-9, "busy 10 of 10 seconds since the committed read")
	require.Equal(t, clk.Now(), peeked.Timestamp)
	require.Equal(t, first, sampler.Last(), "peek does not replace the last snapshot")
	require.Equal(t, 1, sampler.HistoryLen())

	clk.Step(9 * time.Second)

	second := sampler.Sample(t.Context())
	require.InDelta(t, 60.0, second.CPUPercent, 1e-9, "measured from the first committed read")
	require.Equal(t, 2, sampler.HistoryLen())
}

func TestSampler_SampleDegraded(t *testing.T) {
	t.Parallel()

	t.Run("failure before any success returns zero snapshot", func(t *testing.T) {
		t.Parallel()

		clk := clocktesting.NewFakeClock(time.Now())
		reader := mocks.NewMockHostReader(t)
		sampler := newSampler(t, reader, clk)

		reader.EXPECT().Read(mock.Anything).Return(resource.HostStats{}, errProcUnavailable).Once()

		snap := sampler.Sample(t.Context())
		require.True(t, snap.Degraded)
		require.Zero(t, snap.CPUPercent)
		require.Equal(t, clk.Now(), snap.Timestamp)
		require.Equal(t, resource.LevelLow, sampler.Level(snap))
		require.Zero(t, sampler.HistoryLen())
	})

	t.Run("failure after success keeps previous values", func(t *testing.T) {
		t.Parallel()

		clk := clocktesting.NewFakeClock(time.Now())
		reader := mocks.NewMockHostReader(t)
		sampler := newSampler(t, reader, clk)

		reader.EXPECT().Read(mock.Anything).Return(hostStats(25, 100), nil).Once()
		reader.EXPECT().Read(mock.Anything).Return(resource.HostStats{}, errProcUnavailable).Once()

		good := sampler.Sample(t.Context())

		clk.Step(time.Second)

		degraded := sampler.Sample(t.Context())
		require.True(t, degraded.Degraded)
		require.InDelta(t, good.MemoryPercent, degraded.MemoryPercent, 0)
		require.InDelta(t, good.CPUPercent, degraded.CPUPercent, 0)
		require.Equal(t, clk.Now(), degraded.Timestamp)
		require.Equal(t, 1, sampler.HistoryLen())
	})

	t.Run("panicking reader is contained", func(t *testing.T) {
		t.Parallel()

		clk := clocktesting.NewFakeClock(time.Now())
		reader := mocks.NewMockHostReader(t)
		sampler := newSampler(t, reader, clk)

		reader.EXPECT().
			Read(mock.Anything).
			RunAndReturn(func(context.Context) (resource.HostStats, error) {
				panic("boom")
			}).
			Once()

		require.NotPanics(t, func() {
			snap := sampler.Sample(t.Context())
			require.True(t, snap.Degraded)
		})
	})
}

func TestSampler_AverageCPU(t *testing.T) {
	t.Parallel()

	clk := clocktesting.NewFakeClock(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
	reader := mocks.NewMockHostReader(t)
	sampler := newSampler(t, reader, clk)

	require.Zero(t, sampler.AverageCPU(time.Minute))

	// Cumulative busy/total pairs chosen so each interval yields 10%, 20%, 30%.
	reader.EXPECT().Read(mock.Anything).Return(hostStats(10, 100), nil).Once()
	reader.EXPECT().Read(mock.Anything).Return(hostStats(30, 200), nil).Once()
	reader.EXPECT().Read(mock.Anything).Return(hostStats(60, 300), nil).Once()

	sampler.Sample(t.Context())
	clk.Step(2 * time.Minute)
	sampler.Sample(t.Context())
	clk.Step(2 * time.Minute)
	sampler.Sample(t.Context())

	require.InDelta(t, 25.0, sampler.AverageCPU(3*time.Minute), 1e-9)
	require.InDelta(t, 20.0, sampler.AverageCPU(10*time.Minute), 1e-9)
	require.InDelta(t, 75.0, sampler.AverageMemory(10*time.Minute), 1e-9)
}

func TestHistory(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		capacity int
		addCount int
		wantLen  int
		wantHead float64
	}{
		{name: "add within capacity", capacity: 10, addCount: 5, wantLen: 5, wantHead: 0},
		{name: "add beyond capacity", capacity: 10, addCount: 15, wantLen: 10, wantHead: 5},
		{name: "add exactly capacity", capacity: 10, addCount: 10, wantLen: 10, wantHead: 0},
		{name: "non-positive capacity uses default", capacity: 0, addCount: 150, wantLen: resource.DefaultHistorySize, wantHead: 50},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			h := resource.NewHistory(tt.capacity)

			for i := range tt.addCount {
				h.Add(resource.Sample{CPUPercent: float64(i)})
			}

			require.Equal(t, tt.wantLen, h.Len())

			all := h.All()
			require.Len(t, all, tt.wantLen)
			require.InDelta(t, tt.wantHead, all[0].CPUPercent, 0, "oldest sample first")
			require.InDelta(t, float64(tt.addCount-1), all[len(all)-1].CPUPercent, 0)
		})
	}
}

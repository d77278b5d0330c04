package cronparser_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/skillcoder/toolmanager/internal/infra/cronparser"
)

func TestParser_NextAfter(t *testing.T) {
	t.Parallel()

	p := cronparser.New()

	t.Run("standard spec returns next occurrence", func(t *testing.T) {
		t.Parallel()

		after := time.Date(2026, 2, 15, 7, 0, 0, 0, time.UTC)
		next, err := p.NextAfter("40 7 * * *", "", after)
		require.NoError(t, err)
		require.True(t, next.After(after))
		require.Equal(t, 7, next.Hour())
		require.Equal(t, 40, next.Minute())
	})

	t.Run("step spec restarts every five minutes", func(t *testing.T) {
		t.Parallel()

		after := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
		next, err := p.NextAfter("*/5 * * * *", "", after)
		require.NoError(t, err)
		require.Equal(t, after.Add(5*time.Minute), next.UTC())
	})

	t.Run("descriptor", func(t *testing.T) {
		t.Parallel()

		after := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
		next, err := p.NextAfter("@daily", "", after)
		require.NoError(t, err)
		require.Equal(t, time.Date(2026, 2, 16, 0, 0, 0, 0, time.UTC), next.UTC())
	})

	t.Run("with tz uses timezone", func(t *testing.T) {
		t.Parallel()

		after := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
		next, err := p.NextAfter("0 8 * * *", "America/New_York", after)
		require.NoError(t, err)
		require.True(t, next.After(after))
	})

	t.Run("inline CRON_TZ ignores tz param", func(t *testing.T) {
		t.Parallel()

		after := time.Date(2026, 2, 15, 12, 0, 0, 0, time.UTC)
		next, err := p.NextAfter("CRON_TZ=UTC 0 14 * * *", "America/New_York", after)
		require.NoError(t, err)
		require.True(t, next.After(after))
		require.Equal(t, 14, next.Hour())
	})

	t.Run("malformed spec returns error", func(t *testing.T) {
		t.Parallel()

		_, err := p.NextAfter("invalid", "", time.Now())
		require.Error(t, err)
	})
}

func TestParser_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		give    string
		wantErr bool
	}{
		{name: "five fields", give: "0 3 * * *"},
		{name: "descriptor", give: "@hourly"},
		{name: "inline timezone", give: "CRON_TZ=Europe/Berlin 30 2 * * 1"},
		{name: "empty", give: "", wantErr: true},
		{name: "garbage", give: "every tuesday", wantErr: true},
		{name: "out of range minute", give: "61 * * * *", wantErr: true},
	}

	p := cronparser.New()

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := p.Validate(tt.give)
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
		})
	}
}

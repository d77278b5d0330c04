package appstate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeProber struct {
	healthy bool
	ready   bool
	status  Status
}

func (f fakeProber) IsHealthy() bool { return f.healthy }
func (f fakeProber) IsReady() bool   { return f.ready }
func (f fakeProber) Status() Status  { return f.status }

func serve(t *testing.T, handler http.HandlerFunc, path string) *httptest.ResponseRecorder {
	t.Helper()

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, http.NoBody))

	return rec
}

func TestProbeHandlers(t *testing.T) {
	t.Parallel()

	logger := slog.Default()

	tests := []struct {
		name        string
		giveProber  fakeProber
		wantHealthz int
		wantReadyz  int
	}{
		{name: "healthy and ready", giveProber: fakeProber{healthy: true, ready: true}, wantHealthz: http.StatusOK, wantReadyz: http.StatusOK},
		{name: "healthy not ready", giveProber: fakeProber{healthy: true}, wantHealthz: http.StatusOK, wantReadyz: http.StatusServiceUnavailable},
		{name: "unhealthy", giveProber: fakeProber{}, wantHealthz: http.StatusServiceUnavailable, wantReadyz: http.StatusServiceUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			require.Equal(t, tt.wantHealthz, serve(t, HandleHealthz(logger, tt.giveProber), "/-/healthz").Code)
			require.Equal(t, tt.wantReadyz, serve(t, HandleReadyz(logger, tt.giveProber), "/-/readyz").Code)
		})
	}
}

func TestHandleStatus(t *testing.T) {
	t.Parallel()

	giveStart := time.Date(2026, 1, 15, 10, 0, 0, 0, time.UTC)
	givePing := giveStart.Add(time.Minute)

	p := fakeProber{status: Status{
		State:     StateRunning,
		StartTime: giveStart,
		Uptime:    5 * time.Second,
		Components: []NamedComponentStatus{
			{Name: "monitor", ComponentStatus: ComponentStatus{Healthy: true, Ready: true, LastPing: givePing, P90: 2 * time.Millisecond}},
			{Name: "watcher", ComponentStatus: ComponentStatus{LastError: "stopped"}},
		},
	}}

	rec := serve(t, HandleStatus(slog.Default(), p), "/-/status")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var body statusResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))

	require.Equal(t, "running", body.State)
	require.Equal(t, "5s", body.Uptime)
	require.InDelta(t, 5.0, body.UptimeSec, 0)
	require.True(t, giveStart.Equal(body.StartTime))
	require.Nil(t, body.ReadyAt)
	require.Len(t, body.Components, 2)
	require.Equal(t, "monitor", body.Components[0].Name)
	require.NotNil(t, body.Components[0].LastPing)
	require.InDelta(t, 0.002, body.Components[0].P90Seconds, 1e-9)
	require.Nil(t, body.Components[1].LastPing)
	require.Equal(t, "stopped", body.Components[1].LastError)
}

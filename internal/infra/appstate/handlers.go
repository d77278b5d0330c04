package appstate

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
)

type componentResponse struct {
	Name       string     `json:"name"`
	Healthy    bool       `json:"healthy"`
	Ready      bool       `json:"ready"`
	LastPing   *time.Time `json:"lastPing,omitempty"`
	LastError  string     `json:"lastError,omitempty"`
	P90Seconds float64    `json:"p90Seconds"`
}

type statusResponse struct {
	State      string              `json:"state"`
	Uptime     string              `json:"uptime"`
	StartTime  time.Time           `json:"startTime"`
	ReadyAt    *time.Time          `json:"readyAt,omitempty"`
	UptimeSec  float64             `json:"uptimeSeconds"`
	Components []componentResponse `json:"components"`
}

// HandleHealthz returns an http.HandlerFunc for the /-/healthz endpoint
func HandleHealthz(logger *slog.Logger, appState prober) http.HandlerFunc {
	return probe(logger, "health", appState.IsHealthy)
}

// HandleReadyz returns an http.HandlerFunc for the /-/readyz endpoint
func HandleReadyz(logger *slog.Logger, appState prober) http.HandlerFunc {
	return probe(logger, "readiness", appState.IsReady)
}

func probe(logger *slog.Logger, kind string, check func() bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.With("traceID", middleware.GetReqID(ctx))

		if !check() {
			w.WriteHeader(http.StatusServiceUnavailable)
			log.DebugContext(ctx, kind+" check failed")

			return
		}

		w.WriteHeader(http.StatusOK)
	}
}

// HandleStatus returns an http.HandlerFunc for the /-/status endpoint
func HandleStatus(logger *slog.Logger, appState prober) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		log := logger.With("traceID", middleware.GetReqID(ctx))

		st := appState.Status()

		response := statusResponse{
			State:      string(st.State),
			Uptime:     st.Uptime.String(),
			StartTime:  st.StartTime,
			ReadyAt:    st.ReadyAt,
			UptimeSec:  st.Uptime.Seconds(),
			Components: make([]componentResponse, 0, len(st.Components)),
		}

		for _, c := range st.Components {
			cr := componentResponse{
				Name:       c.Name,
				Healthy:    c.Healthy,
				Ready:      c.Ready,
				LastError:  c.LastError,
				P90Seconds: c.P90.Seconds(),
			}

			if !c.LastPing.IsZero() {
				lastPing := c.LastPing
				cr.LastPing = &lastPing
			}

			response.Components = append(response.Components, cr)
		}

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)

		if err := json.NewEncoder(w).Encode(response); err != nil {
			log.ErrorContext(ctx, "failed to encode status response", "reason", err)
		}
	}
}

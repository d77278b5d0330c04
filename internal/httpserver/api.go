package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"slices"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

type resourceUsageResponse struct {
	CPUPercent  float64 `json:"cpuPercent"`
	MemoryMB    float64 `json:"memoryMb"`
	GPUPercent  float64 `json:"gpuPercent"`
	GPUMemoryMB float64 `json:"gpuMemoryMb"`
}

type configResponse struct {
	Enabled               bool     `json:"enabled"`
	Priority              int      `json:"priority"`
	MaxCPUPercent         float64  `json:"maxCpuPercent"`
	MaxMemoryMB           float64  `json:"maxMemoryMb"`
	MaxGPUPercent         float64  `json:"maxGpuPercent"`
	AutoScale             bool     `json:"autoScale"`
	Dependencies          []string `json:"dependencies"`
	StartupTimeout        string   `json:"startupTimeout"`
	HealthCheckInterval   string   `json:"healthCheckInterval"`
	ResourceCheckInterval string   `json:"resourceCheckInterval"`
	Description           string   `json:"description,omitempty"`
	RestartSchedule       string   `json:"restartSchedule,omitempty"`
}

type toolResponse struct {
	Name            string                `json:"name"`
	Status          string                `json:"status"`
	ErrorCount      int                   `json:"errorCount"`
	LastError       string                `json:"lastError,omitempty"`
	LastHealthCheck *time.Time            `json:"lastHealthCheck,omitempty"`
	StartupTime     *time.Time            `json:"startupTime,omitempty"`
	InstanceID      string                `json:"instanceId,omitempty"`
	ResourceUsage   resourceUsageResponse `json:"resourceUsage"`
	Config          configResponse        `json:"config"`
}

type commandResponse struct {
	OK     bool   `json:"ok"`
	Status string `json:"status"`
}

type resourcesResponse struct {
	CPUPercent        float64   `json:"cpuPercent"`
	MemoryPercent     float64   `json:"memoryPercent"`
	MemoryAvailableMB float64   `json:"memoryAvailableMb"`
	MemoryUsedMB      float64   `json:"memoryUsedMb"`
	DiskPercent       float64   `json:"diskPercent"`
	DiskFreeMB        float64   `json:"diskFreeMb"`
	Timestamp         time.Time `json:"timestamp"`
	Degraded          bool      `json:"degraded"`
	Level             string    `json:"level"`
	AverageCPU5m      float64   `json:"averageCpu5m"`
}

type autoScalingRequest struct {
	Enabled *bool `json:"enabled"`
}

type autoScalingResponse struct {
	Enabled bool `json:"enabled"`
}

// configPatchRequest mirrors tool.ConfigPatch; durations use Go syntax ("30s").
type configPatchRequest struct {
	Enabled               *bool     `json:"enabled"`
	Priority              *int      `json:"priority"`
	MaxCPUPercent         *float64  `json:"maxCpuPercent"`
	MaxMemoryMB           *float64  `json:"maxMemoryMb"`
	MaxGPUPercent         *float64  `json:"maxGpuPercent"`
	AutoScale             *bool     `json:"autoScale"`
	Dependencies          *[]string `json:"dependencies"`
	StartupTimeout        *string   `json:"startupTimeout"`
	HealthCheckInterval   *string   `json:"healthCheckInterval"`
	ResourceCheckInterval *string   `json:"resourceCheckInterval"`
	Description           *string   `json:"description"`
	RestartSchedule       *string   `json:"restartSchedule"`
}

type errorResponse struct {
	Error string `json:"error"`
}

var errEmptyPatch = errors.New("patch has no fields")

func (p configPatchRequest) toDomain() (tool.ConfigPatch, error) {
	patch := tool.ConfigPatch{
		Enabled:         p.Enabled,
		Priority:        p.Priority,
		MaxCPUPercent:   p.MaxCPUPercent,
		MaxMemoryMB:     p.MaxMemoryMB,
		MaxGPUPercent:   p.MaxGPUPercent,
		AutoScale:       p.AutoScale,
		Dependencies:    p.Dependencies,
		Description:     p.Description,
		RestartSchedule: p.RestartSchedule,
	}

	durations := []struct {
		field string
		in    *string
		out   **time.Duration
	}{
		{"startupTimeout", p.StartupTimeout, &patch.StartupTimeout},
		{"healthCheckInterval", p.HealthCheckInterval, &patch.HealthCheckInterval},
		{"resourceCheckInterval", p.ResourceCheckInterval, &patch.ResourceCheckInterval},
	}

	for _, d := range durations {
		if d.in == nil {
			continue
		}

		v, err := time.ParseDuration(*d.in)
		if err != nil {
			return tool.ConfigPatch{}, fmt.Errorf("%s: %w", d.field, err)
		}

		*d.out = &v
	}

	if patch.IsEmpty() {
		return tool.ConfigPatch{}, errEmptyPatch
	}

	return patch, nil
}

func toToolResponse(info tool.RuntimeInfo) toolResponse {
	cfg := info.Config

	deps := cfg.Dependencies
	if deps == nil {
		deps = []string{}
	}

	resp := toolResponse{
		Name:        info.Name,
		Status:      string(info.Status),
		ErrorCount:  info.ErrorCount,
		LastError:   info.LastError,
		StartupTime: info.StartupTime,
		InstanceID:  info.InstanceID,
		ResourceUsage: resourceUsageResponse{
			CPUPercent:  info.ResourceUsage.CPUPercent,
			MemoryMB:    info.ResourceUsage.MemoryMB,
			GPUPercent:  info.ResourceUsage.GPUPercent,
			GPUMemoryMB: info.ResourceUsage.GPUMemoryMB,
		},
		Config: configResponse{
			Enabled:               cfg.Enabled,
			Priority:              cfg.Priority,
			MaxCPUPercent:         cfg.MaxCPUPercent,
			MaxMemoryMB:           cfg.MaxMemoryMB,
			MaxGPUPercent:         cfg.MaxGPUPercent,
			AutoScale:             cfg.AutoScale,
			Dependencies:          deps,
			StartupTimeout:        cfg.StartupTimeout.String(),
			HealthCheckInterval:   cfg.HealthCheckInterval.String(),
			ResourceCheckInterval: cfg.ResourceCheckInterval.String(),
			Description:           cfg.Description,
			RestartSchedule:       cfg.RestartSchedule,
		},
	}

	if !info.LastHealthCheck.IsZero() {
		last := info.LastHealthCheck
		resp.LastHealthCheck = &last
	}

	return resp
}

func (s *Server) writeJSON(w http.ResponseWriter, r *http.Request, code int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.ErrorContext(r.Context(), "failed to encode response", "path", r.URL.Path, "reason", err)
	}
}

func (s *Server) writeError(w http.ResponseWriter, r *http.Request, code int, msg string) {
	s.writeJSON(w, r, code, errorResponse{Error: msg})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		s.writeError(w, r, http.StatusBadRequest, "invalid request body: "+err.Error())

		return false
	}

	return true
}

func (s *Server) handleListTools(w http.ResponseWriter, r *http.Request) {
	statuses := s.manager.GetAllToolStatuses()

	names := make([]string, 0, len(statuses))
	for name := range statuses {
		names = append(names, name)
	}

	slices.Sort(names)

	out := make([]toolResponse, 0, len(names))
	for _, name := range names {
		out = append(out, toToolResponse(statuses[name]))
	}

	s.writeJSON(w, r, http.StatusOK, out)
}

func (s *Server) handleGetTool(w http.ResponseWriter, r *http.Request) {
	info, ok := s.manager.GetToolStatus(chi.URLParam(r, "name"))
	if !ok {
		s.writeError(w, r, http.StatusNotFound, tool.ErrToolNotFound.Error())

		return
	}

	s.writeJSON(w, r, http.StatusOK, toToolResponse(info))
}

func (s *Server) handleUnregisterTool(w http.ResponseWriter, r *http.Request) {
	if !s.manager.UnregisterTool(r.Context(), chi.URLParam(r, "name")) {
		s.writeError(w, r, http.StatusNotFound, tool.ErrToolNotFound.Error())

		return
	}

	w.WriteHeader(http.StatusNoContent)
}

type (
	syncCommand  func(ctx context.Context, name string) bool
	asyncCommand func(ctx context.Context, name string) <-chan bool
)

func (s *Server) commands(action string) (syncCommand, asyncCommand, bool) {
	switch action {
	case "enable":
		return s.manager.EnableTool, s.manager.EnableToolAsync, true
	case "disable":
		return s.manager.DisableTool, s.manager.DisableToolAsync, true
	case "pause":
		return s.manager.PauseTool, s.manager.PauseToolAsync, true
	case "resume":
		return s.manager.ResumeTool, s.manager.ResumeToolAsync, true
	default:
		return nil, nil, false
	}
}

// handleCommand runs enable, disable, pause or resume. With ?async=true the
// command is accepted and completes in the background.
func (s *Server) handleCommand(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")
	action := chi.URLParam(r, "action")

	run, runAsync, ok := s.commands(action)
	if !ok {
		s.writeError(w, r, http.StatusNotFound, "unknown action "+strconv.Quote(action))

		return
	}

	if _, known := s.manager.GetToolStatus(name); !known {
		s.writeError(w, r, http.StatusNotFound, tool.ErrToolNotFound.Error())

		return
	}

	if async, _ := strconv.ParseBool(r.URL.Query().Get("async")); async {
		done := runAsync(ctx, name)
		logger := s.logger.With("tool", name, "action", action)

		go func() {
			logger.DebugContext(ctx, "async command finished", "ok", <-done)
		}()

		w.WriteHeader(http.StatusAccepted)

		return
	}

	result := run(ctx, name)

	info, _ := s.manager.GetToolStatus(name)
	resp := commandResponse{OK: result, Status: string(info.Status)}

	if !result {
		s.writeJSON(w, r, http.StatusConflict, resp)

		return
	}

	s.writeJSON(w, r, http.StatusOK, resp)
}

func (s *Server) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	if _, known := s.manager.GetToolStatus(name); !known {
		s.writeError(w, r, http.StatusNotFound, tool.ErrToolNotFound.Error())

		return
	}

	var req configPatchRequest
	if !s.decode(w, r, &req) {
		return
	}

	patch, err := req.toDomain()
	if err != nil {
		s.writeError(w, r, http.StatusBadRequest, err.Error())

		return
	}

	if !s.manager.UpdateToolConfig(r.Context(), name, patch) {
		s.writeError(w, r, http.StatusBadRequest, tool.ErrInvalidConfig.Error())

		return
	}

	info, _ := s.manager.GetToolStatus(name)
	s.writeJSON(w, r, http.StatusOK, toToolResponse(info))
}

func (s *Server) handleResources(w http.ResponseWriter, r *http.Request) {
	snap := s.manager.GetSystemResources(r.Context())

	s.writeJSON(w, r, http.StatusOK, resourcesResponse{
		CPUPercent:        snap.CPUPercent,
		MemoryPercent:     snap.MemoryPercent,
		MemoryAvailableMB: snap.MemoryAvailableMB,
		MemoryUsedMB:      snap.MemoryUsedMB,
		DiskPercent:       snap.DiskPercent,
		DiskFreeMB:        snap.DiskFreeMB,
		Timestamp:         snap.Timestamp,
		Degraded:          snap.Degraded,
		Level:             s.manager.Level(snap).String(),
		AverageCPU5m:      s.manager.AverageCPU(resourceAverageWindow),
	})
}

func (s *Server) handleGetAutoScaling(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, r, http.StatusOK, autoScalingResponse{Enabled: s.manager.AutoScalingEnabled()})
}

func (s *Server) handleSetAutoScaling(w http.ResponseWriter, r *http.Request) {
	var req autoScalingRequest
	if !s.decode(w, r, &req) {
		return
	}

	if req.Enabled == nil {
		s.writeError(w, r, http.StatusBadRequest, "enabled is required")

		return
	}

	s.manager.SetAutoScaling(r.Context(), *req.Enabled)
	s.writeJSON(w, r, http.StatusOK, autoScalingResponse{Enabled: s.manager.AutoScalingEnabled()})
}

package httpserver

import (
	"context"
	"time"

	"github.com/skillcoder/toolmanager/internal/infra/appstate"
	"github.com/skillcoder/toolmanager/internal/logic/resource"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

// appstater is what the probe endpoints read.
type appstater interface {
	IsHealthy() bool
	IsReady() bool
	Status() appstate.Status
}

// toolManager is the programmatic API served over HTTP.
type toolManager interface {
	GetToolStatus(name string) (tool.RuntimeInfo, bool)
	GetAllToolStatuses() map[string]tool.RuntimeInfo
	UnregisterTool(ctx context.Context, name string) bool

	EnableTool(ctx context.Context, name string) bool
	DisableTool(ctx context.Context, name string) bool
	PauseTool(ctx context.Context, name string) bool
	ResumeTool(ctx context.Context, name string) bool
	EnableToolAsync(ctx context.Context, name string) <-chan bool
	DisableToolAsync(ctx context.Context, name string) <-chan bool
	PauseToolAsync(ctx context.Context, name string) <-chan bool
	ResumeToolAsync(ctx context.Context, name string) <-chan bool

	UpdateToolConfig(ctx context.Context, name string, patch tool.ConfigPatch) bool

	GetSystemResources(ctx context.Context) resource.Snapshot
	AverageCPU(window time.Duration) float64
	Level(snapshot resource.Snapshot) resource.Level

	SetAutoScaling(ctx context.Context, enabled bool)
	AutoScalingEnabled() bool
}

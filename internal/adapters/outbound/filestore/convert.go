package filestore

import (
	"math"
	"time"

	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

// settingsFile is the on-disk document.
type settingsFile struct {
	AutoScalingEnabled bool                `json:"auto_scaling_enabled"`
	Tools              map[string]toolFile `json:"tools"`
}

// toolFile is one tool entry; durations are seconds.
type toolFile struct {
	Enabled               bool     `json:"enabled"`
	Priority              int      `json:"priority"`
	MaxCPUPercent         float64  `json:"max_cpu_percent"`
	MaxMemoryMB           float64  `json:"max_memory_mb"`
	MaxGPUPercent         float64  `json:"max_gpu_percent"`
	AutoScale             bool     `json:"auto_scale"`
	Dependencies          []string `json:"dependencies"`
	StartupTimeout        float64  `json:"startup_timeout"`
	HealthCheckInterval   float64  `json:"health_check_interval"`
	ResourceCheckInterval float64  `json:"resource_check_interval"`
	Description           string   `json:"description,omitempty"`
	RestartSchedule       string   `json:"restart_schedule,omitempty"`
}

func toToolFile(c tool.Config) toolFile {
	deps := c.Dependencies
	if deps == nil {
		deps = []string{}
	}

	return toolFile{
		Enabled:               c.Enabled,
		Priority:              c.Priority,
		MaxCPUPercent:         c.MaxCPUPercent,
		MaxMemoryMB:           c.MaxMemoryMB,
		MaxGPUPercent:         c.MaxGPUPercent,
		AutoScale:             c.AutoScale,
		Dependencies:          deps,
		StartupTimeout:        c.StartupTimeout.Seconds(),
		HealthCheckInterval:   c.HealthCheckInterval.Seconds(),
		ResourceCheckInterval: c.ResourceCheckInterval.Seconds(),
		Description:           c.Description,
		RestartSchedule:       c.RestartSchedule,
	}
}

func toDomainConfig(name string, f toolFile) tool.Config {
	var deps []string
	if len(f.Dependencies) > 0 {
		deps = f.Dependencies
	}

	return tool.Config{
		Name:                  name,
		Enabled:               f.Enabled,
		Priority:              f.Priority,
		MaxCPUPercent:         f.MaxCPUPercent,
		MaxMemoryMB:           f.MaxMemoryMB,
		MaxGPUPercent:         f.MaxGPUPercent,
		AutoScale:             f.AutoScale,
		Dependencies:          deps,
		StartupTimeout:        seconds(f.StartupTimeout),
		HealthCheckInterval:   seconds(f.HealthCheckInterval),
		ResourceCheckInterval: seconds(f.ResourceCheckInterval),
		Description:           f.Description,
		RestartSchedule:       f.RestartSchedule,
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(math.Round(s * float64(time.Second)))
}

package tool

import (
	"fmt"
	"slices"
	"time"
)

// Status is the lifecycle status of a registered tool.
type Status string

const (
	StatusDisabled Status = "disabled"
	StatusStarting Status = "starting"
	StatusEnabled  Status = "enabled"
	StatusPaused   Status = "paused"
	StatusStopping Status = "stopping"
	StatusError    Status = "error"
)

// Statuses lists every status in a stable order.
var Statuses = []Status{
	StatusDisabled,
	StatusStarting,
	StatusEnabled,
	StatusPaused,
	StatusStopping,
	StatusError,
}

// IsActive reports whether a live instance exists for the status.
func (s Status) IsActive() bool {
	return s == StatusEnabled || s == StatusPaused
}

// Config is the durable configuration of a named tool.
type Config struct {
	Name                  string
	Enabled               bool
	Priority              int
	MaxCPUPercent         float64
	MaxMemoryMB           float64
	MaxGPUPercent         float64
	AutoScale             bool
	Dependencies          []string
	StartupTimeout        time.Duration
	HealthCheckInterval   time.Duration
	ResourceCheckInterval time.Duration
	Description           string
	RestartSchedule       string
}

// DefaultConfig returns the configuration given to a tool registered without a stored one.
func DefaultConfig(name string) Config {
	return Config{
		Name:                  name,
		Enabled:               true,
		Priority:              DefaultPriority,
		MaxCPUPercent:         DefaultMaxCPUPercent,
		MaxMemoryMB:           DefaultMaxMemoryMB,
		MaxGPUPercent:         DefaultMaxGPUPercent,
		AutoScale:             true,
		StartupTimeout:        DefaultStartupTimeout,
		HealthCheckInterval:   DefaultHealthCheckInterval,
		ResourceCheckInterval: DefaultResourceCheckInterval,
	}
}

// Clone returns a copy that shares no slices with c.
func (c Config) Clone() Config {
	c.Dependencies = slices.Clone(c.Dependencies)

	return c
}

// Equal reports whether c and o hold the same values. A nil and an empty
// dependency list are equal.
func (c Config) Equal(o Config) bool {
	return c.Name == o.Name &&
		c.Enabled == o.Enabled &&
		c.Priority == o.Priority &&
		c.MaxCPUPercent == o.MaxCPUPercent &&
		c.MaxMemoryMB == o.MaxMemoryMB &&
		c.MaxGPUPercent == o.MaxGPUPercent &&
		c.AutoScale == o.AutoScale &&
		slices.Equal(c.Dependencies, o.Dependencies) &&
		c.StartupTimeout == o.StartupTimeout &&
		c.HealthCheckInterval == o.HealthCheckInterval &&
		c.ResourceCheckInterval == o.ResourceCheckInterval &&
		c.Description == o.Description &&
		c.RestartSchedule == o.RestartSchedule
}

// Validate checks every field of c against the schema.
func (c Config) Validate() error {
	deps := c.Dependencies

	return ConfigPatch{
		Priority:              &c.Priority,
		MaxCPUPercent:         &c.MaxCPUPercent,
		MaxMemoryMB:           &c.MaxMemoryMB,
		MaxGPUPercent:         &c.MaxGPUPercent,
		Dependencies:          &deps,
		StartupTimeout:        &c.StartupTimeout,
		HealthCheckInterval:   &c.HealthCheckInterval,
		ResourceCheckInterval: &c.ResourceCheckInterval,
	}.Validate(c.Name)
}

// ConfigPatch is a partial update of a Config; nil fields are left unchanged.
type ConfigPatch struct {
	Enabled               *bool
	Priority              *int
	MaxCPUPercent         *float64
	MaxMemoryMB           *float64
	MaxGPUPercent         *float64
	AutoScale             *bool
	Dependencies          *[]string
	StartupTimeout        *time.Duration
	HealthCheckInterval   *time.Duration
	ResourceCheckInterval *time.Duration
	Description           *string
	RestartSchedule       *string
}

// IsEmpty reports whether the patch changes nothing.
func (p ConfigPatch) IsEmpty() bool {
	return p == ConfigPatch{}
}

// Validate checks the patch against the Config schema for the named tool.
func (p ConfigPatch) Validate(name string) error {
	if p.Priority != nil && (*p.Priority < MinPriority || *p.Priority > MaxPriority) {
		return fmt.Errorf("%w: priority %d not in [%d, %d]", ErrInvalidConfig, *p.Priority, MinPriority, MaxPriority)
	}

	for field, v := range map[string]*float64{
		"max_cpu_percent": p.MaxCPUPercent,
		"max_memory_mb":   p.MaxMemoryMB,
		"max_gpu_percent": p.MaxGPUPercent,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("%w: %s is negative", ErrInvalidConfig, field)
		}
	}

	for field, v := range map[string]*time.Duration{
		"startup_timeout":         p.StartupTimeout,
		"health_check_interval":   p.HealthCheckInterval,
		"resource_check_interval": p.ResourceCheckInterval,
	} {
		if v != nil && *v <= 0 {
			return fmt.Errorf("%w: %s must be positive", ErrInvalidConfig, field)
		}
	}

	if p.Dependencies != nil {
		for _, dep := range *p.Dependencies {
			if dep == "" {
				return fmt.Errorf("%w: empty dependency name", ErrInvalidConfig)
			}

			if dep == name {
				return fmt.Errorf("%w: tool depends on itself", ErrInvalidConfig)
			}
		}
	}

	return nil
}

// Apply returns c with every non-nil patch field merged in.
func (p ConfigPatch) Apply(c Config) Config {
	c = c.Clone()

	if p.Enabled != nil {
		c.Enabled = *p.Enabled
	}

	if p.Priority != nil {
		c.Priority = *p.Priority
	}

	if p.MaxCPUPercent != nil {
		c.MaxCPUPercent = *p.MaxCPUPercent
	}

	if p.MaxMemoryMB != nil {
		c.MaxMemoryMB = *p.MaxMemoryMB
	}

	if p.MaxGPUPercent != nil {
		c.MaxGPUPercent = *p.MaxGPUPercent
	}

	if p.AutoScale != nil {
		c.AutoScale = *p.AutoScale
	}

	if p.Dependencies != nil {
		c.Dependencies = slices.Clone(*p.Dependencies)
	}

	if p.StartupTimeout != nil {
		c.StartupTimeout = *p.StartupTimeout
	}

	if p.HealthCheckInterval != nil {
		c.HealthCheckInterval = *p.HealthCheckInterval
	}

	if p.ResourceCheckInterval != nil {
		c.ResourceCheckInterval = *p.ResourceCheckInterval
	}

	if p.Description != nil {
		c.Description = *p.Description
	}

	if p.RestartSchedule != nil {
		c.RestartSchedule = *p.RestartSchedule
	}

	return c
}

// ResourceUsage is the estimated share of host resources attributed to a tool.
type ResourceUsage struct {
	CPUPercent  float64
	MemoryMB    float64
	GPUPercent  float64
	GPUMemoryMB float64
}

// RuntimeInfo is a point-in-time view of a tool's runtime state.
type RuntimeInfo struct {
	Name            string
	Status          Status
	Config          Config
	ResourceUsage   ResourceUsage
	LastHealthCheck time.Time
	ErrorCount      int
	StartupTime     *time.Time
	InstanceID      string
	LastError       string
}

// Settings is the persisted configuration document.
type Settings struct {
	AutoScalingEnabled bool
	Tools              map[string]Config
}

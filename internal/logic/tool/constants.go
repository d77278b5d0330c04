package tool

import "time"

const (
	MinPriority = 1
	MaxPriority = 10

	DefaultPriority              = 5
	DefaultMaxCPUPercent         = 80.0
	DefaultMaxMemoryMB           = 2048.0
	DefaultMaxGPUPercent         = 90.0
	DefaultStartupTimeout        = 30 * time.Second
	DefaultHealthCheckInterval   = 60 * time.Second
	DefaultResourceCheckInterval = 10 * time.Second
)

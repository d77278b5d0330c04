package controller

import "time"

const (
	DefaultMonitorInterval = 10 * time.Second

	// staleTickFactor is how many intervals may pass without a tick before Ping fails.
	staleTickFactor = 2

	persistOpLoad = "load"
	persistOpSave = "save"

	serviceName = "toolmanager"
)

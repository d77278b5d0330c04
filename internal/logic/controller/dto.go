package controller

import (
	"time"

	"github.com/skillcoder/toolmanager/internal/logic/scaling"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

// Options tune the monitoring loop.
type Options struct {
	MonitorInterval time.Duration
	Policy          scaling.Policy
	// RestartJitterMax spreads scheduled restarts by a random delay up to this value.
	RestartJitterMax time.Duration
	// Builtins are registered by Start once stored settings are loaded, so
	// stored configs win over defaults.
	Builtins map[string]tool.Factory
}

type restartPlan struct {
	instanceID string
	spec       string
	at         time.Time
	invalid    bool
}

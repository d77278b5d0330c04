package controller

import (
	"context"
	"time"

	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

// ConfigStore is the port for durable tool settings.
// Implementations are provided by adapters in the outbound layer.
type ConfigStore interface {
	Load(ctx context.Context) (tool.Settings, error)
	Save(ctx context.Context, settings tool.Settings) error
}

// RestartScheduler computes restart times from cron expressions.
type RestartScheduler interface {
	Validate(spec string) error
	NextAfter(spec, tz string, after time.Time) (time.Time, error)
}

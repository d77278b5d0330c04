package controller

import "errors"

var (
	ErrNotMonitoring   = errors.New("monitoring is not running")
	ErrStaleTick       = errors.New("last monitoring tick is too old")
	ErrInvalidSchedule = errors.New("invalid restart schedule")
	ErrLoadConfig      = errors.New("load config")
)

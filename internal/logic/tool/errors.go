package tool

import "errors"

var (
	ErrToolNotFound  = errors.New("tool not found")
	ErrInvalidConfig = errors.New("invalid tool config")
	ErrEmptyName     = errors.New("tool name is empty")
	ErrNilFactory    = errors.New("tool factory is nil")
)

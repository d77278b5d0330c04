package lifecycle

import "errors"

var (
	ErrFactoryMissing    = errors.New("no factory registered")
	ErrDependencyFailed  = errors.New("dependency not enabled")
	ErrDependencyCycle   = errors.New("dependency cycle")
	ErrStartupFailed     = errors.New("startup failed")
	ErrTimeout           = errors.New("operation timed out")
	ErrHookFailed        = errors.New("lifecycle hook failed")
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
	ErrPanic             = errors.New("panic in tool code")
)

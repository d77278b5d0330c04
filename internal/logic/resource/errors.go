package resource

import "errors"

var (
	ErrInvalidThresholds = errors.New("invalid resource thresholds")
	ErrHostRead          = errors.New("read host metrics")
)

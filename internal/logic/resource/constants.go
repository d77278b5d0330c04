package resource

const (
	DefaultHistorySize = 100

	DefaultMediumThreshold   = 50.0
	DefaultHighThreshold     = 70.0
	DefaultCriticalThreshold = 90.0

	// percentScale converts a ratio into a percentage.
	percentScale = 100

	bytesPerMB = 1024 * 1024
)

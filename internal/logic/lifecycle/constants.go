package lifecycle

const (
	DefaultMaxErrors = 3

	// errorSource* label where a caught failure came from.
	errorSourceFactory = "factory"
	errorSourcePause   = "pause"
	errorSourceResume  = "resume"
	errorSourceCleanup = "cleanup"
	errorSourceHealth  = "health"
)

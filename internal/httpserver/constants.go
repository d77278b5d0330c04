package httpserver

import "time"

const (
	defaultPort        = "8080"
	defaultMetricsPort = "9090"

	readTimeout       = 3 * time.Second
	readHeaderTimeout = 3 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	maxHeaderBytes    = 1 << 12 // 4kb
	maxBodyBytes      = 1 << 16

	// resourceAverageWindow is the trailing window of the averaged CPU figure.
	resourceAverageWindow = 5 * time.Minute
)

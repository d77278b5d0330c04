package config

import "time"

// Env key constants. All settings use the TOOLMANAGER_ prefix;
// duration values take explicit units (e.g. 5m, 40s, 2h).

// Log level: debug, info, warn, error.
const envKeyLogLevel = "TOOLMANAGER_LOG_LEVEL"

// Log format: json or text.
const envKeyLogFormat = "TOOLMANAGER_LOG_FORMAT"

// Port for the tool API and probes.
const envKeyHTTPPort = "TOOLMANAGER_HTTP_PORT"

// Port for Prometheus metrics (GET /metrics).
const envKeyMetricsPort = "TOOLMANAGER_METRICS_PORT"

// Path of the persisted tool settings (JSON).
const envKeyConfigFile = "TOOLMANAGER_CONFIG_FILE"

// Monitoring tick interval.
const (
	envKeyMonitorInterval = "TOOLMANAGER_MONITOR_INTERVAL"
	envMinMonitorInterval = time.Second
)

// Component pinger interval.
const (
	envKeyPingerInterval = "TOOLMANAGER_PINGER_INTERVAL"
	envMinPingerInterval = time.Second
)

// Filesystem whose usage is sampled.
const envKeyDiskPath = "TOOLMANAGER_DISK_PATH"

// Mount point of procfs.
const envKeyProcPath = "TOOLMANAGER_PROC_PATH"

// Number of snapshots kept in the resource history.
const envKeyHistorySize = "TOOLMANAGER_HISTORY_SIZE"

// Resource level thresholds in percent, evaluated against max(cpu, memory).
const (
	envKeyThresholdMedium   = "TOOLMANAGER_THRESHOLD_MEDIUM"
	envKeyThresholdHigh     = "TOOLMANAGER_THRESHOLD_HIGH"
	envKeyThresholdCritical = "TOOLMANAGER_THRESHOLD_CRITICAL"
)

// Health failures tolerated before a tool is stopped.
const envKeyMaxErrorCount = "TOOLMANAGER_MAX_ERROR_COUNT"

// Auto-scaling priority cutoffs: critical disables up to the first,
// high pauses up to the second.
const (
	envKeyDisableMaxPriority = "TOOLMANAGER_DISABLE_MAX_PRIORITY"
	envKeyPauseMaxPriority   = "TOOLMANAGER_PAUSE_MAX_PRIORITY"
)

// Max jitter added to scheduled restarts; 0 disables jitter.
const envKeyRestartJitterMax = "TOOLMANAGER_RESTART_JITTER_MAX"

// Reload the settings file when it changes on disk.
const envKeyWatchConfig = "TOOLMANAGER_WATCH_CONFIG"

// Size of the built-in ballast tool in MiB.
const envKeyBallastMB = "TOOLMANAGER_BALLAST_MB"

// File whose presence asks the process to terminate.
const envKeyTerminationFile = "TOOLMANAGER_TERMINATION_FILE"

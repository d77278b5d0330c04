package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/skillcoder/toolmanager/internal/infra/logging"
	"github.com/skillcoder/toolmanager/internal/logic/lifecycle"
	"github.com/skillcoder/toolmanager/internal/logic/resource"
	"github.com/skillcoder/toolmanager/internal/logic/scaling"
	"github.com/skillcoder/toolmanager/internal/logic/tool"
)

const defaultBallastMB = 64

var ErrInvalidValue = errors.New("invalid config value")

type Config struct {
	LogLevel    string
	LogFormat   string
	HTTPPort    string
	MetricsPort string

	ConfigFile  string
	WatchConfig bool

	MonitorInterval time.Duration
	PingerInterval  time.Duration

	DiskPath    string
	ProcPath    string
	HistorySize int
	Thresholds  resource.Thresholds

	MaxErrorCount    int
	Policy           scaling.Policy
	RestartJitterMax time.Duration

	BallastMB       int
	TerminationFile string
}

// Load reads the process configuration from the environment and validates it.
func Load() (*Config, error) {
	p := parser{}

	defaultPolicy := scaling.DefaultPolicy()
	defaultThresholds := resource.DefaultThresholds()

	cfg := &Config{
		LogLevel:        getEnvOrDefault(envKeyLogLevel, "info"),
		LogFormat:       getEnvOrDefault(envKeyLogFormat, logging.FormatJSON),
		HTTPPort:        getEnvOrDefault(envKeyHTTPPort, "8080"),
		MetricsPort:     getEnvOrDefault(envKeyMetricsPort, "9090"),
		ConfigFile:      getEnvOrDefault(envKeyConfigFile, "tools.json"),
		WatchConfig:     p.bool(envKeyWatchConfig, true),
		MonitorInterval: p.duration(envKeyMonitorInterval, 10*time.Second),
		PingerInterval:  p.duration(envKeyPingerInterval, 10*time.Second),
		DiskPath:        getEnvOrDefault(envKeyDiskPath, "/"),
		ProcPath:        getEnvOrDefault(envKeyProcPath, "/proc"),
		HistorySize:     p.int(envKeyHistorySize, resource.DefaultHistorySize),
		Thresholds: resource.Thresholds{
			Medium:   p.float(envKeyThresholdMedium, defaultThresholds.Medium),
			High:     p.float(envKeyThresholdHigh, defaultThresholds.High),
			Critical: p.float(envKeyThresholdCritical, defaultThresholds.Critical),
		},
		MaxErrorCount: p.int(envKeyMaxErrorCount, lifecycle.DefaultMaxErrors),
		Policy: scaling.Policy{
			DisableMaxPriority: p.int(envKeyDisableMaxPriority, defaultPolicy.DisableMaxPriority),
			PauseMaxPriority:   p.int(envKeyPauseMaxPriority, defaultPolicy.PauseMaxPriority),
		},
		RestartJitterMax: p.duration(envKeyRestartJitterMax, 0),
		BallastMB:        p.int(envKeyBallastMB, defaultBallastMB),
		TerminationFile:  getEnvOrDefault(envKeyTerminationFile, "/mnt/signal/terminating"),
	}

	if p.err != nil {
		return nil, p.err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks ranges that parsing alone cannot.
func (c *Config) Validate() error {
	var errs []error

	check := func(ok bool, key string, value any) {
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s=%v", ErrInvalidValue, key, value))
		}
	}

	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", envKeyLogLevel, err))
	}

	if err := logging.ValidateFormat(c.LogFormat); err != nil {
		errs = append(errs, fmt.Errorf("%s: %w", envKeyLogFormat, err))
	}

	check(c.MonitorInterval >= envMinMonitorInterval, envKeyMonitorInterval, c.MonitorInterval)
	check(c.PingerInterval >= envMinPingerInterval, envKeyPingerInterval, c.PingerInterval)
	check(c.ConfigFile != "", envKeyConfigFile, c.ConfigFile)
	check(c.HistorySize >= 1, envKeyHistorySize, c.HistorySize)
	check(c.MaxErrorCount >= 1, envKeyMaxErrorCount, c.MaxErrorCount)
	check(c.RestartJitterMax >= 0, envKeyRestartJitterMax, c.RestartJitterMax)
	check(c.BallastMB >= 1, envKeyBallastMB, c.BallastMB)
	check(validPort(c.HTTPPort), envKeyHTTPPort, c.HTTPPort)
	check(validPort(c.MetricsPort), envKeyMetricsPort, c.MetricsPort)
	check(
		c.Policy.DisableMaxPriority >= 0 && c.Policy.DisableMaxPriority <= c.Policy.PauseMaxPriority &&
			c.Policy.PauseMaxPriority <= tool.MaxPriority,
		"priority cutoffs", c.Policy,
	)

	if err := c.Thresholds.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("thresholds: %w", err))
	}

	return errors.Join(errs...)
}

func validPort(s string) bool {
	n, err := strconv.Atoi(s)

	return err == nil && n >= 0 && n <= 65535
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	return value
}

// parser keeps the first parse error so Load can read every key in one pass.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("parse %s=%q: %w", key, value, err)
	}
}

func (p *parser) duration(key string, def time.Duration) time.Duration {
	s := os.Getenv(key)
	if s == "" {
		return def
	}

	d, err := time.ParseDuration(s)
	if err != nil {
		p.fail(key, s, err)

		return def
	}

	return d
}

func (p *parser) int(key string, def int) int {
	s := os.Getenv(key)
	if s == "" {
		return def
	}

	n, err := strconv.Atoi(s)
	if err != nil {
		p.fail(key, s, err)

		return def
	}

	return n
}

func (p *parser) float(key string, def float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return def
	}

	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		p.fail(key, s, err)

		return def
	}

	return f
}

func (p *parser) bool(key string, def bool) bool {
	s := os.Getenv(key)
	if s == "" {
		return def
	}

	b, err := strconv.ParseBool(s)
	if err != nil {
		p.fail(key, s, err)

		return def
	}

	return b
}

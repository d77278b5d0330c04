package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var toolStatus = promauto.With(prometheus.DefaultRegisterer).NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "toolmanager_tool_status",
		Help: "Current lifecycle status of each tool (1 for the active status, 0 otherwise).",
	},
	[]string{"tool", "status"},
)

var toolTransitionsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "toolmanager_tool_transitions_total",
		Help: "Total number of tool lifecycle transitions.",
	},
	[]string{"tool", "from", "to"},
)

var toolErrorsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "toolmanager_tool_errors_total",
		Help: "Total number of caught tool failures (factory, hook or health check).",
	},
	[]string{"tool", "source"},
)

var toolCapExceededTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "toolmanager_tool_cap_exceeded_total",
		Help: "Total number of redistribution passes where a tool's estimated share exceeded its configured cap.",
	},
	[]string{"tool", "resource"},
)

var toolScheduledRestartsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "toolmanager_tool_scheduled_restarts_total",
		Help: "Total number of restarts triggered by a tool's restart schedule.",
	},
	[]string{"tool"},
)

var autoscalingActionsTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "toolmanager_autoscaling_actions_total",
		Help: "Total number of auto-scaling actions applied, by action and result.",
	},
	[]string{"action", "result"},
)

var resourceLevel = promauto.With(prometheus.DefaultRegisterer).NewGauge(
	prometheus.GaugeOpts{
		Name: "toolmanager_resource_level",
		Help: "Current resource pressure level (0=low, 1=medium, 2=high, 3=critical).",
	},
)

var hostUsage = promauto.With(prometheus.DefaultRegisterer).NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "toolmanager_host_usage_percent",
		Help: "Last sampled host usage in percent.",
	},
	[]string{"resource"},
)

var samplerFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounter(
	prometheus.CounterOpts{
		Name: "toolmanager_sampler_failures_total",
		Help: "Total number of host metric reads that failed and produced a degraded snapshot.",
	},
)

var configPersistFailuresTotal = promauto.With(prometheus.DefaultRegisterer).NewCounterVec(
	prometheus.CounterOpts{
		Name: "toolmanager_config_persist_failures_total",
		Help: "Total number of config store failures (load or save); in-memory state stays authoritative.",
	},
	[]string{"op"},
)

// SetToolStatus marks status as the only active status of the tool.
func SetToolStatus(tool, status string, all []string) {
	for _, s := range all {
		v := 0.0
		if s == status {
			v = 1
		}

		toolStatus.WithLabelValues(tool, s).Set(v)
	}
}

// DeleteTool drops every per-tool series of an unregistered tool.
func DeleteTool(tool string) {
	labels := prometheus.Labels{"tool": tool}

	toolStatus.DeletePartialMatch(labels)
	toolTransitionsTotal.DeletePartialMatch(labels)
	toolErrorsTotal.DeletePartialMatch(labels)
	toolCapExceededTotal.DeletePartialMatch(labels)
	toolScheduledRestartsTotal.DeletePartialMatch(labels)
}

// RecordTransition counts a lifecycle transition.
func RecordTransition(tool, from, to string) {
	toolTransitionsTotal.WithLabelValues(tool, from, to).Inc()
}

// RecordToolError counts a caught failure; source is factory, pause, resume, cleanup or health.
func RecordToolError(tool, source string) {
	toolErrorsTotal.WithLabelValues(tool, source).Inc()
}

// RecordCapExceeded counts a tool whose estimated share exceeded its cap.
func RecordCapExceeded(tool, resource string) {
	toolCapExceededTotal.WithLabelValues(tool, resource).Inc()
}

// RecordScheduledRestart counts a restart triggered by a restart schedule.
func RecordScheduledRestart(tool string) {
	toolScheduledRestartsTotal.WithLabelValues(tool).Inc()
}

// RecordAutoscalingAction counts an applied auto-scaling action; result is ok or error.
func RecordAutoscalingAction(action, result string) {
	autoscalingActionsTotal.WithLabelValues(action, result).Inc()
}

// SetResourceLevel exports the current pressure level.
func SetResourceLevel(level int) {
	resourceLevel.Set(float64(level))
}

// SetHostUsage exports the last sampled host usage.
func SetHostUsage(cpu, memory, disk float64) {
	hostUsage.WithLabelValues("cpu").Set(cpu)
	hostUsage.WithLabelValues("memory").Set(memory)
	hostUsage.WithLabelValues("disk").Set(disk)
}

// RecordSamplerFailure counts a failed host read.
func RecordSamplerFailure() {
	samplerFailuresTotal.Inc()
}

// RecordConfigPersistFailure counts a failed config store operation.
func RecordConfigPersistFailure(op string) {
	configPersistFailuresTotal.WithLabelValues(op).Inc()
}

var componentPingSeconds = promauto.With(prometheus.DefaultRegisterer).NewHistogramVec(
	prometheus.HistogramOpts{
		Name:    "toolmanager_component_ping_seconds",
		Help:    "Latency of internal component pings, by result.",
		Buckets: prometheus.ExponentialBuckets(0.0005, 4, 8),
	},
	[]string{"component", "result"},
)

var componentUp = promauto.With(prometheus.DefaultRegisterer).NewGaugeVec(
	prometheus.GaugeOpts{
		Name: "toolmanager_component_up",
		Help: "Whether the last ping of an internal component succeeded.",
	},
	[]string{"component"},
)

// ObserveComponentPing records one ping of an internal component.
func ObserveComponentPing(component string, seconds float64, err error) {
	result, up := "ok", 1.0
	if err != nil {
		result, up = "error", 0
	}

	componentPingSeconds.WithLabelValues(component, result).Observe(seconds)
	componentUp.WithLabelValues(component).Set(up)
}

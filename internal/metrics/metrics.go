// Package metrics holds the process-wide prometheus collectors and the
// endpoint that serves them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry is the registry served on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// StreamConnected is 1 while a stream session is open, 0 otherwise.
	StreamConnected = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "roverops_stream_connected",
			Help: "Whether a mission stream session is open (1=open, 0=not open).",
		},
	)

	// StreamTransitionsTotal counts session state changes by target state.
	StreamTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roverops_stream_transitions_total",
			Help: "Total number of stream session state transitions.",
		},
		[]string{"state"},
	)

	// StreamReconnectAttemptsTotal counts scheduled reconnection attempts.
	StreamReconnectAttemptsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roverops_stream_reconnect_attempts_total",
			Help: "Total number of stream reconnection attempts.",
		},
	)

	// StreamMessagesTotal counts inbound frames by message type. Frames that
	// fail to decode are counted with type "malformed".
	StreamMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roverops_stream_messages_total",
			Help: "Total number of inbound stream messages.",
		},
		[]string{"type"},
	)

	// MissionLogsDroppedTotal counts log entries dropped as duplicates.
	MissionLogsDroppedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "roverops_mission_logs_dropped_total",
			Help: "Total number of mission log entries dropped because their id was already seen.",
		},
	)

	// BackendRequestsTotal counts REST calls by operation and result code.
	BackendRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roverops_backend_requests_total",
			Help: "Total number of mission backend REST requests.",
		},
		[]string{"op", "code"},
	)

	// BackendRequestLatency records REST call latency.
	BackendRequestLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "roverops_backend_request_latency_seconds",
			Help:    "Latency of mission backend REST requests.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"op"},
	)

	// RelayPublishTotal counts MQTT relay publishes by topic kind and result.
	RelayPublishTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "roverops_relay_publish_total",
			Help: "Total number of mission updates published to MQTT.",
		},
		[]string{"kind", "status"},
	)

	// SimulatorMissionsActive is the number of missions the simulator is running.
	SimulatorMissionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "roverops_simulator_missions_active",
			Help: "Number of missions currently executing in the simulator.",
		},
	)
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		StreamConnected,
		StreamTransitionsTotal,
		StreamReconnectAttemptsTotal,
		StreamMessagesTotal,
		MissionLogsDroppedTotal,
		BackendRequestsTotal,
		BackendRequestLatency,
		RelayPublishTotal,
		SimulatorMissionsActive,
	)
}

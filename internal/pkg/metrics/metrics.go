package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Registry holds every collector the agent exposes on /metrics.
var Registry = prometheus.NewRegistry()

var (
	// ChecksTotal counts finished update cycles by outcome.
	ChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpeer_ota_checks_total",
			Help: "Total number of update cycles by outcome.",
		},
		[]string{"outcome"}, // NoUpdate/CheckFailed/InstallSucceeded/InstallFailed
	)

	// InstallsTotal counts install results by transfer path.
	InstallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cpeer_ota_installs_total",
			Help: "Total number of install results by transfer path.",
		},
		[]string{"path", "result"}, // path: primary/redirect, result: success/failed
	)

	// LastCheckTimestamp is the unix time of the last finished cycle.
	LastCheckTimestamp = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cpeer_ota_last_check_timestamp_seconds",
			Help: "Unix time of the last finished update cycle.",
		},
	)

	// InstallState is 1 for the state the install engine is in, 0 otherwise.
	InstallState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cpeer_ota_install_state",
			Help: "Current install engine state (1 = active).",
		},
		[]string{"state"},
	)

	// BytesWritten is the byte count written into the inactive slot by the current attempt.
	BytesWritten = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cpeer_ota_install_bytes_written",
			Help: "Bytes written into the inactive slot by the current install attempt.",
		},
	)

	// HubConnectivityStatus records the MQTT hub connection.
	// 1 = Connected, 0 = Disconnected
	HubConnectivityStatus = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cpeer_ota_hub_connectivity_status",
			Help: "The connectivity status to the MQTT hub (1=Connected, 0=Disconnected).",
		},
	)

	// StatusEventsDropped counts status events discarded because a sink was too slow.
	StatusEventsDropped = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cpeer_ota_status_events_dropped_total",
			Help: "Total number of status events dropped by a full sink queue.",
		},
	)
)

func init() {
	Registry.MustRegister(collectors.NewGoCollector())
	Registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	Registry.MustRegister(ChecksTotal)
	Registry.MustRegister(InstallsTotal)
	Registry.MustRegister(LastCheckTimestamp)
	Registry.MustRegister(InstallState)
	Registry.MustRegister(BytesWritten)
	Registry.MustRegister(HubConnectivityStatus)
	Registry.MustRegister(StatusEventsDropped)
}

package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/autopeer-io/ota-agent/internal/pkg/metrics"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

// Status is the document served on GET /status.
type Status struct {
	Device     string         `json:"device"`
	Version    string         `json:"version"`
	AgentBuild string         `json:"agentBuild"`
	Interval   string         `json:"interval"`
	Cycles     int            `json:"cycles"`
	InProgress bool           `json:"inProgress"`
	LastCheck  *time.Time     `json:"lastCheck,omitempty"`
	Last       *OutcomeStatus `json:"lastOutcome,omitempty"`
	Indicator  string         `json:"indicator,omitempty"`
	Slots      *SlotStatus    `json:"slots,omitempty"`
	Hub        *HubStatus     `json:"hub,omitempty"`
}

type OutcomeStatus struct {
	Kind    string `json:"kind"`
	Version string `json:"version,omitempty"`
	Path    string `json:"path,omitempty"`
	Reason  string `json:"reason,omitempty"`
	Cycle   string `json:"cycle,omitempty"`
}

type SlotStatus struct {
	Active   string `json:"active"`
	NextBoot string `json:"nextBoot"`
}

type HubStatus struct {
	Connected bool `json:"connected"`
}

// Agent is what the local endpoints expose and control.
type Agent interface {
	Status() Status
	// Trigger requests an update check without waiting for it.
	Trigger()
	// Ready returns nil once the agent can serve update cycles.
	Ready() error
}

// NewRouter builds the handler for the local HTTP endpoints.
func NewRouter(agent Agent) *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeText(w, http.StatusOK, "ok")
	}).Methods(http.MethodGet)

	r.HandleFunc("/readyz", func(w http.ResponseWriter, _ *http.Request) {
		if err := agent.Ready(); err != nil {
			writeText(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeText(w, http.StatusOK, "ok")
	}).Methods(http.MethodGet)

	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)

	r.HandleFunc("/status", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, agent.Status())
	}).Methods(http.MethodGet)

	r.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		log.Info("Manual check requested", "remote", r.RemoteAddr)
		agent.Trigger()
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
	}).Methods(http.MethodPost)

	return r
}

func writeText(w http.ResponseWriter, code int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(code)
	_, _ = w.Write([]byte(body))
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("Failed to encode response", "error", err)
	}
}

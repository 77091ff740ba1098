package status

import (
	"time"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/internal/pkg/metrics"
)

var installStates = []core.InstallState{
	core.StateIdle,
	core.StateFetching,
	core.StateWriting,
	core.StateVerifying,
	core.StateCommitted,
	core.StateFailed,
}

// MetricsSink feeds the Prometheus collectors.
type MetricsSink struct {
	now func() time.Time
}

var _ core.Sink = (*MetricsSink)(nil)

func NewMetricsSink() *MetricsSink {
	setState(core.StateIdle)
	return &MetricsSink{now: time.Now}
}

func (s *MetricsSink) Report(o core.Outcome) {
	metrics.ChecksTotal.WithLabelValues(o.Kind.String()).Inc()
	metrics.LastCheckTimestamp.Set(float64(s.now().Unix()))

	switch o.Kind {
	case core.OutcomeInstallSucceeded:
		metrics.InstallsTotal.WithLabelValues(string(o.Path), "success").Inc()
	case core.OutcomeInstallFailed:
		metrics.InstallsTotal.WithLabelValues(string(o.Path), "failed").Inc()
	}
	if o.Kind != core.OutcomeInstallSucceeded {
		setState(core.StateIdle)
	}
}

func (s *MetricsSink) Progress(p core.Progress) {
	setState(p.State)
	metrics.BytesWritten.Set(float64(p.Written))
}

func setState(state core.InstallState) {
	for _, st := range installStates {
		v := 0.0
		if st == state {
			v = 1
		}
		metrics.InstallState.WithLabelValues(string(st)).Set(v)
	}
}

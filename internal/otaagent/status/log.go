package status

import (
	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

// LogSink writes outcomes and state changes as structured log lines.
type LogSink struct {
	log log.Logger
}

var _ core.Sink = (*LogSink)(nil)

func NewLogSink(logger log.Logger) *LogSink {
	return &LogSink{log: logger}
}

func (s *LogSink) Report(o core.Outcome) {
	kv := []any{"cycle", o.Cycle, "outcome", o.Kind.String()}
	if o.Release != nil {
		kv = append(kv, "version", o.Release.Version)
	}
	if o.Path != "" {
		kv = append(kv, "path", o.Path)
	}

	switch o.Kind {
	case core.OutcomeNoUpdate:
		s.log.Debug("No update available", kv...)
	case core.OutcomeInstallSucceeded:
		s.log.Info("Update installed", kv...)
	default:
		s.log.Error(o.Reason, "Update cycle failed", kv...)
	}
}

func (s *LogSink) Progress(p core.Progress) {
	s.log.Debug("Install progress",
		"cycle", p.Cycle,
		"state", p.State,
		"path", p.Path,
		"version", p.Version,
		"written", p.Written,
		"total", p.Total)
}

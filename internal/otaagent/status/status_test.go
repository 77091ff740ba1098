package status

import (
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/internal/pkg/metrics"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

var rel = &core.ReleaseInfo{Version: "v1.0.8"}

type recorder struct {
	mu       sync.Mutex
	outcomes []core.Outcome
	progress []core.Progress
	block    chan struct{}
}

func (r *recorder) Report(o core.Outcome) {
	if r.block != nil {
		<-r.block
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.outcomes = append(r.outcomes, o)
}

func (r *recorder) Progress(p core.Progress) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.progress = append(r.progress, p)
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.outcomes)
}

func readAttr(t *testing.T, dir, attr string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(dir, attr))
	require.NoError(t, err)
	return string(b)
}

func TestIndicatorPatterns(t *testing.T) {
	dir := t.TempDir()
	ind := NewIndicator(dir)

	assert.Equal(t, PatternAlive, ind.Pattern())
	assert.Equal(t, "timer", readAttr(t, dir, "trigger"))
	assert.Equal(t, "1900", readAttr(t, dir, "delay_off"))

	ind.Progress(core.Progress{State: core.StateWriting})
	assert.Equal(t, PatternBusy, ind.Pattern())
	assert.Equal(t, "100", readAttr(t, dir, "delay_off"))

	ind.Report(core.InstallFailed(rel, core.PathRedirect, core.ErrRedirectLimit))
	assert.Equal(t, PatternFailed, ind.Pattern())

	ind.Report(core.NoUpdate())
	assert.Equal(t, PatternAlive, ind.Pattern())

	ind.Progress(core.Progress{State: core.StateCommitted})
	assert.Equal(t, PatternDone, ind.Pattern())
	assert.Equal(t, "none", readAttr(t, dir, "trigger"))
	assert.Equal(t, "1", readAttr(t, dir, "brightness"))
}

func TestIndicatorWithoutLED(t *testing.T) {
	ind := NewIndicator("")
	ind.Report(core.CheckFailed(errors.New("dns")))
	assert.Equal(t, PatternFailed, ind.Pattern())
}

func TestMulti(t *testing.T) {
	a, b := &recorder{}, &recorder{}
	m := Multi{a, b}

	m.Report(core.NoUpdate())
	m.Progress(core.Progress{State: core.StateFetching})

	for _, r := range []*recorder{a, b} {
		assert.Len(t, r.outcomes, 1)
		assert.Len(t, r.progress, 1)
	}
}

func TestNonBlockingDropsWhenFull(t *testing.T) {
	slow := &recorder{block: make(chan struct{})}
	nb := NewNonBlocking(slow, 2)

	dropped := testutil.ToFloat64(metrics.StatusEventsDropped)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for range 10 {
			nb.Report(core.NoUpdate())
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Report blocked on a slow sink")
	}

	close(slow.block)
	nb.Close()

	delivered := slow.count()
	assert.GreaterOrEqual(t, delivered, 1)
	assert.LessOrEqual(t, delivered, 3)
	assert.Equal(t, float64(10-delivered), testutil.ToFloat64(metrics.StatusEventsDropped)-dropped)

	nb.Report(core.NoUpdate())
	assert.Equal(t, delivered, slow.count())
}

func TestMetricsSink(t *testing.T) {
	s := NewMetricsSink()

	before := testutil.ToFloat64(metrics.InstallsTotal.WithLabelValues("redirect", "success"))
	s.Progress(core.Progress{State: core.StateWriting, Written: 4096})
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.InstallState.WithLabelValues("writing")))
	assert.Equal(t, 0.0, testutil.ToFloat64(metrics.InstallState.WithLabelValues("idle")))
	assert.Equal(t, 4096.0, testutil.ToFloat64(metrics.BytesWritten))

	s.Report(core.InstallSucceeded(rel, core.PathRedirect))
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.InstallsTotal.WithLabelValues("redirect", "success")))

	s.Report(core.NoUpdate())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.InstallState.WithLabelValues("idle")))
}

func TestLogSink(t *testing.T) {
	s := NewLogSink(log.NewNopLogger())
	s.Report(core.InstallFailed(rel, core.PathPrimary, core.ErrWrite))
	s.Report(core.NoUpdate())
	s.Progress(core.Progress{State: core.StateVerifying})
}

package ota

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
)

type stubResolver struct {
	rel     *core.ReleaseInfo
	outcome *core.Outcome
	seen    core.Version
}

func (r *stubResolver) Resolve(_ context.Context, current core.Version) (*core.ReleaseInfo, *core.Outcome) {
	r.seen = current
	return r.rel, r.outcome
}

type stubInstaller struct {
	calls  int
	ctxErr error
	cycle  string
}

func (i *stubInstaller) Install(ctx context.Context, cycle string, rel *core.ReleaseInfo) core.Outcome {
	i.calls++
	i.ctxErr = ctx.Err()
	i.cycle = cycle
	return core.InstallSucceeded(rel, core.PathPrimary)
}

func running() core.Version { return "v1.0.7" }

func TestCycleNoUpdate(t *testing.T) {
	noUpdate := core.NoUpdate()
	resolver := &stubResolver{outcome: &noUpdate}
	installer := &stubInstaller{}

	out := NewCycle(resolver, installer, running).Run(context.Background())

	assert.Equal(t, core.OutcomeNoUpdate, out.Kind)
	assert.NotEmpty(t, out.Cycle)
	assert.Equal(t, core.Version("v1.0.7"), resolver.seen)
	assert.Zero(t, installer.calls)
}

func TestCycleCheckFailed(t *testing.T) {
	failed := core.CheckFailed(core.NewError("latest release", core.ErrNetwork, errors.New("timeout")))
	installer := &stubInstaller{}

	out := NewCycle(&stubResolver{outcome: &failed}, installer, running).Run(context.Background())

	assert.Equal(t, core.OutcomeCheckFailed, out.Kind)
	assert.ErrorIs(t, out.Reason, core.ErrNetwork)
	assert.Zero(t, installer.calls)
}

func TestCycleInstallIgnoresCancellation(t *testing.T) {
	rel := &core.ReleaseInfo{Version: "v1.0.8"}
	installer := &stubInstaller{}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := NewCycle(&stubResolver{rel: rel}, installer, running).Run(ctx)

	require.Equal(t, 1, installer.calls)
	assert.NoError(t, installer.ctxErr)
	assert.Equal(t, core.OutcomeInstallSucceeded, out.Kind)
	assert.Equal(t, installer.cycle, out.Cycle)
}

func TestCycleIDsAreUnique(t *testing.T) {
	noUpdate := core.NoUpdate()
	c := NewCycle(&stubResolver{outcome: &noUpdate}, &stubInstaller{}, running)

	a := c.Run(context.Background())
	b := c.Run(context.Background())
	assert.NotEqual(t, a.Cycle, b.Cycle)
}

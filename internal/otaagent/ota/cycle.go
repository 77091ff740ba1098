package ota

import (
	"context"

	"github.com/google/uuid"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
)

// Resolver finds the release to install, if any.
type Resolver interface {
	Resolve(ctx context.Context, current core.Version) (*core.ReleaseInfo, *core.Outcome)
}

// Installer installs a resolved release.
type Installer interface {
	Install(ctx context.Context, cycle string, rel *core.ReleaseInfo) core.Outcome
}

// VersionFunc reports the running firmware version.
type VersionFunc func() core.Version

// Cycle is one check-and-install pass.
type Cycle struct {
	resolver  Resolver
	installer Installer
	current   VersionFunc
}

func NewCycle(resolver Resolver, installer Installer, current VersionFunc) *Cycle {
	return &Cycle{resolver: resolver, installer: installer, current: current}
}

// Run resolves the latest release and installs it when it is an update.
// Once a release is resolved the install runs to completion even if ctx is
// canceled; transfers stay bounded by the fetcher timeouts.
func (c *Cycle) Run(ctx context.Context) core.Outcome {
	id := uuid.NewString()
	current := c.current()
	logger := log.FromContext(ctx).WithValues("cycle", id)
	ctx = log.NewContext(ctx, logger)

	logger.Debug("Checking for firmware update", "running", current)

	rel, outcome := c.resolver.Resolve(ctx, current)
	if outcome != nil {
		outcome.Cycle = id
		return *outcome
	}

	logger.Info("Firmware update available", "running", current, "latest", rel.Version, "asset", rel.Asset.Name)

	out := c.installer.Install(context.WithoutCancel(ctx), id, rel)
	out.Cycle = id
	return out
}

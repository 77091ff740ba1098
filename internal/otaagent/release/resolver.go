package release

import (
	"context"
	"errors"
	"path"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/options"
)

// Feed returns the latest published release.
type Feed interface {
	Latest(ctx context.Context) (*core.Release, error)
}

// Resolver decides whether the latest release is an update for the running version.
type Resolver struct {
	feed    Feed
	pattern string
	policy  string
}

// NewResolver creates a Resolver matching asset names against pattern.
func NewResolver(feed Feed, pattern, policy string) *Resolver {
	if policy == "" {
		policy = options.PolicyDiffers
	}
	return &Resolver{feed: feed, pattern: pattern, policy: policy}
}

// Resolve queries the feed once. It returns the release to install, or the
// outcome that ends the cycle when there is nothing to install. Exactly one
// of the results is non-nil.
func (r *Resolver) Resolve(ctx context.Context, current core.Version) (*core.ReleaseInfo, *core.Outcome) {
	rel, err := r.feed.Latest(ctx)
	if err != nil {
		if !errors.Is(err, core.ErrNetwork) && !errors.Is(err, core.ErrProtocol) {
			err = core.NewError("resolve", core.ErrNetwork, err)
		}
		o := core.CheckFailed(err)
		return nil, &o
	}

	asset, ok := r.match(rel.Assets)
	if !ok {
		log.FromContext(ctx).Info("Latest release ships no firmware asset", "version", rel.Version, "pattern", r.pattern)
		o := core.NoUpdate()
		return nil, &o
	}

	if !r.isUpdate(current, rel.Version) {
		log.FromContext(ctx).Debug("Firmware is up to date", "running", current, "latest", rel.Version)
		o := core.NoUpdate()
		return nil, &o
	}

	return &core.ReleaseInfo{
		Version:  rel.Version,
		Asset:    asset,
		SizeHint: asset.Size,
	}, nil
}

func (r *Resolver) match(assets []core.Asset) (core.Asset, bool) {
	for _, a := range assets {
		if a.Reference == "" {
			continue
		}
		if ok, _ := path.Match(r.pattern, a.Name); ok {
			return a, true
		}
	}
	return core.Asset{}, false
}

func (r *Resolver) isUpdate(current, candidate core.Version) bool {
	if candidate.Equal(current) {
		return false
	}
	if r.policy == options.PolicyNewer {
		if newer, ok := candidate.Newer(current); ok {
			return newer
		}
	}
	return true
}

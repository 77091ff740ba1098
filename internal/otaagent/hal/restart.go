package hal

import (
	"context"
	"fmt"

	"github.com/autopeer-io/ota-agent/internal/otaagent/core"
	"github.com/autopeer-io/ota-agent/pkg/log"
	"github.com/autopeer-io/ota-agent/pkg/options"
)

// ExitRestarter ends the agent so its supervisor starts it again, which
// boots the committed slot.
type ExitRestarter struct {
	stop context.CancelFunc
}

var _ core.Restarter = (*ExitRestarter)(nil)

// NewExitRestarter creates a restarter that calls stop to shut the agent down.
func NewExitRestarter(stop context.CancelFunc) *ExitRestarter {
	return &ExitRestarter{stop: stop}
}

func (r *ExitRestarter) Restart(ctx context.Context) error {
	log.Warn(">>> RESTART REQUESTED <<< agent is exiting so the supervisor boots the new slot")
	r.stop()
	return nil
}

// NewRestarter returns the restarter for mode.
func NewRestarter(mode string, stop context.CancelFunc) (core.Restarter, error) {
	switch mode {
	case options.RestartSystem:
		return &SystemRestarter{}, nil
	case options.RestartExit:
		return NewExitRestarter(stop), nil
	default:
		return nil, fmt.Errorf("unknown restart mode %q", mode)
	}
}

//go:build !linux

package hal

import (
	"context"
	"errors"
)

// SystemRestarter reboots the machine. Only linux is supported.
type SystemRestarter struct{}

func (r *SystemRestarter) Restart(ctx context.Context) error {
	return errors.New("system restart is only supported on linux")
}

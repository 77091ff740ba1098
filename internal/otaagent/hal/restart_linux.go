//go:build linux

package hal

import (
	"context"
	"syscall"

	"github.com/autopeer-io/ota-agent/pkg/log"
)

// SystemRestarter reboots the machine.
type SystemRestarter struct{}

func (r *SystemRestarter) Restart(ctx context.Context) error {
	log.Info("System is rebooting NOW...")
	syscall.Sync()
	return syscall.Reboot(syscall.LINUX_REBOOT_CMD_RESTART)
}

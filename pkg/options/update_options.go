package options

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

const (
	RestartSystem = "system"
	RestartExit   = "exit"
)

var _ IOptions = (*UpdateOptions)(nil)

// UpdateOptions controls the update loop.
type UpdateOptions struct {
	// Interval between two scheduled checks.
	Interval time.Duration `json:"interval" mapstructure:"interval"`

	// RestartMode is how the device restarts after a committed install: "system" or "exit".
	RestartMode string `json:"restart-mode" mapstructure:"restart-mode"`
}

// NewUpdateOptions returns UpdateOptions checking every five minutes.
func NewUpdateOptions() *UpdateOptions {
	return &UpdateOptions{
		Interval:    5 * time.Minute,
		RestartMode: RestartExit,
	}
}

func (o *UpdateOptions) Validate() []error {
	errors := []error{}

	if o.Interval < time.Second {
		errors = append(errors, fmt.Errorf("--update.interval must be at least 1s, got %s", o.Interval))
	}

	switch o.RestartMode {
	case RestartSystem, RestartExit:
	default:
		errors = append(errors, fmt.Errorf("unknown restart mode %q", o.RestartMode))
	}

	return errors
}

func (o *UpdateOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.DurationVar(&o.Interval, "update.interval", o.Interval, "Interval between update checks.")
	fs.StringVar(&o.RestartMode, "update.restart-mode", o.RestartMode, "Restart after install: 'system' reboots the device, 'exit' ends the process for its supervisor.")
}

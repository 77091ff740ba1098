package options

import (
	"github.com/spf13/pflag"
)

var _ IOptions = (*IndicatorOptions)(nil)

// IndicatorOptions selects the status LED.
type IndicatorOptions struct {
	// LEDPath is a sysfs LED directory such as /sys/class/leds/status. Empty disables the LED.
	LEDPath string `json:"led-path" mapstructure:"led-path"`
}

func NewIndicatorOptions() *IndicatorOptions {
	return &IndicatorOptions{}
}

func (o *IndicatorOptions) Validate() []error {
	return nil
}

func (o *IndicatorOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.LEDPath, "indicator.led-path", o.LEDPath, "sysfs LED directory driven with the update state.")
}

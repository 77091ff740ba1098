package options

import (
	"fmt"

	"github.com/spf13/pflag"
)

var _ IOptions = (*SlotOptions)(nil)

// SlotOptions locates the A/B boot slots and the boot environment.
type SlotOptions struct {
	// Dir holds slot-a.img, slot-b.img and bootenv.yaml.
	Dir string `json:"dir" mapstructure:"dir"`

	// FactoryVersion is recorded for slot A when the boot environment is first created.
	FactoryVersion string `json:"factory-version" mapstructure:"factory-version"`
}

func NewSlotOptions() *SlotOptions {
	return &SlotOptions{
		Dir: "/var/lib/cpeer-ota/slots",
	}
}

func (o *SlotOptions) Validate() []error {
	if o.Dir == "" {
		return []error{fmt.Errorf("--slots.dir must not be empty")}
	}
	return nil
}

func (o *SlotOptions) AddFlags(fs *pflag.FlagSet, prefixes ...string) {
	fs.StringVar(&o.Dir, "slots.dir", o.Dir, "Directory holding the boot slot images and boot environment.")
	fs.StringVar(&o.FactoryVersion, "slots.factory-version", o.FactoryVersion, "Version recorded for the factory slot on first start (defaults to the build version).")
}

package app

import (
	cliflag "k8s.io/component-base/cli/flag"
)

// NamedFlagSetOptions is implemented by the options of every command: flags
// grouped into named sections, completion of defaults and validation.
type NamedFlagSetOptions interface {
	// Flags returns the flags grouped by section.
	Flags() cliflag.NamedFlagSets
	// Complete fills derived defaults after flags and config were applied.
	Complete() error
	// Validate checks the final options.
	Validate() error
}

package topic

import (
	"fmt"
	"strings"
)

// Builder constructs topic strings of the form {root}/{segment}/{deviceID}.
type Builder struct {
	// root is the base namespace for all topics (e.g., "ota/v1").
	root string
}

// NewBuilder creates a Builder with the specified root namespace.
// Leading and trailing slashes are trimmed.
func NewBuilder(root string) *Builder {
	return &Builder{root: strings.Trim(root, "/")}
}

// Build returns the topic for segment and device.
func (b *Builder) Build(segment, deviceID string) string {
	return fmt.Sprintf("%s/%s/%s", b.root, segment, deviceID)
}

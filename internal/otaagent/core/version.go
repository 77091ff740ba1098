package core

import (
	"strings"

	goversion "github.com/hashicorp/go-version"
)

// Version identifies a firmware build. Only equality is meaningful in general;
// ordering is available when both sides are semantic versions.
type Version string

// Equal reports whether v and o name the same build. Comparison is exact
// apart from a leading "v", so build metadata and padding stay significant.
func (v Version) Equal(o Version) bool {
	return strings.TrimPrefix(string(v), "v") == strings.TrimPrefix(string(o), "v")
}

// Newer reports whether v is semantically greater than o. ok is false when
// either side is not a semantic version.
func (v Version) Newer(o Version) (newer bool, ok bool) {
	a, errA := goversion.NewVersion(string(v))
	b, errB := goversion.NewVersion(string(o))
	if errA != nil || errB != nil {
		return false, false
	}
	return a.GreaterThan(b), true
}

func (v Version) String() string {
	return string(v)
}

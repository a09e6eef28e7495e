// Package version holds the library version and the feature stream
// format version.
package version

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/zacpullen/arena-api/pkg/errkind"
)

// Library is the release of this module, reported by the TLVersion node.
// Set at build time via ldflags.
var Library = "0.1.0"

// FeatureStream is the format version written into saved feature streams.
const FeatureStream = "1.0"

// Format is a parsed "major.minor" format version.
type Format struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (Format, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Format{}, fmt.Errorf("%w: version %q: expected major.minor", errkind.ErrInvalidValue, s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return Format{}, fmt.Errorf("%w: version %q: bad major component", errkind.ErrInvalidValue, s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return Format{}, fmt.Errorf("%w: version %q: bad minor component", errkind.ErrInvalidValue, s)
	}

	return Format{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v Format) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v Format) Compatible(other Format) bool {
	return v.Major == other.Major
}

// CheckFeatureStream checks that a saved feature stream of version s can
// be loaded. An empty version predates versioning and is accepted.
func CheckFeatureStream(s string) error {
	if s == "" {
		return nil
	}
	v, err := Parse(s)
	if err != nil {
		return err
	}
	current, _ := Parse(FeatureStream)
	if !current.Compatible(v) {
		return fmt.Errorf("%w: feature stream version %s is not compatible with %s", errkind.ErrInvalidValue, v, current)
	}
	return nil
}

// Package version exposes the bridge's build version.
package version

import (
	"fmt"
	"strings"
)

// CommitHash is the git commit of this build, set via -ldflags.
var CommitHash string

const (
	major      = 0
	minor      = 3
	patch      = 0
	preRelease = "beta"
)

// Version returns the semantic version string.
func Version() string {
	v := fmt.Sprintf("%d.%d.%d", major, minor, patch)
	if preRelease != "" {
		v += "-" + preRelease
	}
	return v
}

// RichVersion appends the commit hash when one was baked in.
func RichVersion() string {
	if hash := strings.TrimSpace(CommitHash); hash != "" {
		return fmt.Sprintf("%s commit=%s", Version(), hash)
	}
	return Version()
}

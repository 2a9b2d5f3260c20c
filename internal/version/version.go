// Package version carries build metadata set at link time, for example
//
//	go build -ldflags "-X github.com/banshee-data/fieldgrid/internal/version.Version=v0.3.0"
package version

import "fmt"

var (
	// Version is the current application version
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

// String formats the build metadata for display.
func String() string {
	return fmt.Sprintf("fieldgrid %s (commit %s, built %s)", Version, GitSHA, BuildTime)
}

// Package version provides build and version information for fetch.
package version

import "fmt"

// Version is the current version of fetch, set via ldflags at build time.
var Version = "dev"

var (
	// Commit is the git commit hash, set via ldflags.
	Commit = "unknown"
	// Date is the build date in RFC3339 format, set via ldflags.
	Date = "unknown"
)

// String returns a formatted version string with build info.
func String() string {
	return fmt.Sprintf("fetch %s (commit: %s, built: %s)", Version, Commit, Date)
}

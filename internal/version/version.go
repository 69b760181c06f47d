package version

import "fmt"

var (
	// Version is the semantic version of diptrigger. Set with -ldflags -X.
	Version = "dev"
	// Commit is the git commit hash.
	Commit = "unknown"
	// BuildDate is the build timestamp.
	BuildDate = "unknown"
)

// String renders the build information on one line.
func String() string {
	return fmt.Sprintf("diptrigger %s (commit %s, built %s)", Version, Commit, BuildDate)
}

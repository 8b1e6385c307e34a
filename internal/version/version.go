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

// String returns the one-line build description printed by the CLI.
func String() string {
	return fmt.Sprintf("bugtracker %s (git %s, built %s)", Version, GitSHA, BuildTime)
}

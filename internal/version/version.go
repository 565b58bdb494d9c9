// Package version records build metadata, injected at link time.
package version

var (
	// Version is the semantic version or git describe output.
	Version = "dev"
	// Commit is the git commit hash of the build.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

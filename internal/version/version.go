// Package version carries the build identity stamped into the vivarium
// binary at link time.
package version

var (
	// Version is the current vivarium release
	Version = "dev"
	// GitSHA is the git commit SHA
	GitSHA = "unknown"
	// BuildTime is the build timestamp
	BuildTime = "unknown"
)

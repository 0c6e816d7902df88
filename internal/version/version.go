// Package version carries the release identity stamped into the binary.
package version

// Overridden at release time via -ldflags "-X frame-marker/internal/version.Version=..."
var (
	// Version is the semantic release version.
	Version = "0.1.0"

	// BuildTime is when the binary was produced, UTC.
	BuildTime = "unknown"

	// GitCommit identifies the source revision.
	GitCommit = "unknown"
)

package capflow

// Version information for capflow
const (
	// Version is the current release
	Version = "development"

	// APIVersion is the HTTP API version
	APIVersion = "v1alpha1"
)

// Set during build time with -ldflags.
var (
	BuildDate = "development"
	GitCommit = "unknown"
)

// Package version carries build metadata injected at link time.
package version

import "runtime"

var (
	// Version is the semantic version, set via -ldflags at build time.
	Version = "dev"
	// GitCommit is the git commit hash, set via -ldflags at build time.
	GitCommit = "unknown"
)

// BuildInfo is the build metadata exposed on the health endpoint.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// GetBuildInfo returns the metadata of the running binary.
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  runtime.GOOS + "/" + runtime.GOARCH,
	}
}

// Package version carries build metadata for the fabricplan binary.
package version

// Version, GitCommit, and BuildDate are set at build time via ldflags:
//
//	go build -ldflags "-X github.com/newtron-network/fabricplan/pkg/version.Version=v1.0.0 \
//	  -X github.com/newtron-network/fabricplan/pkg/version.GitCommit=abc1234 \
//	  -X github.com/newtron-network/fabricplan/pkg/version.BuildDate=2026-01-01T00:00:00Z"
var (
	Version   = "dev"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// BuildInfo is the JSON form of the build metadata, printed by
// `fabricplan version --json`.
type BuildInfo struct {
	Version   string `json:"version"`
	GitCommit string `json:"gitCommit"`
	BuildDate string `json:"buildDate"`
}

// Get returns the current build metadata.
func Get() BuildInfo {
	return BuildInfo{Version: Version, GitCommit: GitCommit, BuildDate: BuildDate}
}

// Info returns a formatted version string for display.
func Info() string {
	return Version + " (" + GitCommit + ") built " + BuildDate
}

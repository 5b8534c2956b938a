package api

import "fmt"

// Set at build time:
//
//	go build -ldflags "-X github.com/MJE43/pf-slots/internal/api.EngineVersion=v1.2.0"
var (
	EngineVersion = "dev"
	GitCommit     = "unknown"
	BuildTime     = "unknown"
)

// VersionInfo identifies the build that produced a response.
type VersionInfo struct {
	EngineVersion string `json:"engine_version"`
	GitCommit     string `json:"git_commit,omitempty"`
	BuildTime     string `json:"build_time,omitempty"`
}

func (v VersionInfo) String() string {
	return fmt.Sprintf("%s (commit %s, built %s)", v.EngineVersion, v.GitCommit, v.BuildTime)
}

// GetVersionInfo returns the current version information
func GetVersionInfo() VersionInfo {
	return VersionInfo{
		EngineVersion: EngineVersion,
		GitCommit:     GitCommit,
		BuildTime:     BuildTime,
	}
}

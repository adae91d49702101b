// Package version carries build information stamped in by the linker.
package version

import (
	"fmt"
	"runtime"
)

// Set with -ldflags "-X github.com/satishbabariya/prisma-engines-go/cli/internal/version.Version=..."
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// Info holds version information.
type Info struct {
	Version   string `json:"version"`
	BuildDate string `json:"buildDate"`
	GitCommit string `json:"gitCommit"`
	GoVersion string `json:"goVersion"`
	Platform  string `json:"platform"`
}

// Get returns version information.
func Get() Info {
	return Info{
		Version:   Version,
		BuildDate: BuildDate,
		GitCommit: GitCommit,
		GoVersion: runtime.Version(),
		Platform:  fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH),
	}
}

func (i Info) String() string {
	return fmt.Sprintf("prisma-engines %s (%s %s)", i.Version, i.Platform, i.GoVersion)
}

// FullString lists every field, one per line.
func (i Info) FullString() string {
	return fmt.Sprintf("prisma-engines %s\nBuild Date: %s\nGit Commit: %s\nPlatform: %s\nGo Version: %s",
		i.Version, i.BuildDate, i.GitCommit, i.Platform, i.GoVersion)
}

// Package buildinfo reports the menuagent version and build metadata.
//
// Release builds stamp the variables with -ldflags "-X". Plain go build
// and go install fall back to the VCS settings the toolchain embeds.
package buildinfo

import (
	"fmt"
	"runtime"
	"runtime/debug"
	"sync"
	"time"
)

// Set at build time via -ldflags.
var (
	Version   = "dev"
	GitCommit = "unknown"
	GitBranch = "unknown"
	BuildTime = "unknown"
)

var startTime = time.Now()

var vcsOnce sync.Once

// fillFromVCS replaces unstamped commit and time values with the
// toolchain's vcs.revision and vcs.time settings.
func fillFromVCS() {
	vcsOnce.Do(func() {
		bi, ok := debug.ReadBuildInfo()
		if !ok {
			return
		}
		for _, s := range bi.Settings {
			switch {
			case s.Key == "vcs.revision" && GitCommit == "unknown":
				GitCommit = s.Value[:min(len(s.Value), 12)]
			case s.Key == "vcs.time" && BuildTime == "unknown":
				BuildTime = s.Value
			}
		}
	})
}

// Info returns build and runtime facts for /v1/version and the version
// command.
func Info() map[string]string {
	fillFromVCS()
	return map[string]string{
		"version":    Version,
		"git_commit": GitCommit,
		"git_branch": GitBranch,
		"build_time": BuildTime,
		"go_version": runtime.Version(),
		"os":         runtime.GOOS,
		"arch":       runtime.GOARCH,
		"uptime":     Uptime().String(),
	}
}

// Uptime is the time since process start, in whole seconds.
func Uptime() time.Duration {
	return time.Since(startTime).Truncate(time.Second)
}

// String is the one-line banner logged at startup.
func String() string {
	fillFromVCS()
	return fmt.Sprintf("menuagent %s (%s@%s) built %s", Version, GitCommit, GitBranch, BuildTime)
}

// UserAgent is sent on every outbound generator request.
func UserAgent() string {
	return fmt.Sprintf("menuagent/%s (%s; %s/%s)", Version, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}

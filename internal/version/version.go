// Package version holds build-time identification, injected via
// -ldflags at build time. Version defaults to "dev" for local builds.
package version

import "fmt"

// Version, Commit, and BuildDate are overridden at build time with
// -ldflags "-X srtbalance/internal/version.Version=... ".
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String returns the one-line string printed by the -v flag.
func String() string {
	return fmt.Sprintf("srtbalance %s (commit %s, built %s)", Version, Commit, BuildDate)
}

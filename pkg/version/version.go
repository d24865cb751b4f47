// Package version holds build metadata, overridable via -ldflags at
// build time. The cobra/pflag --version flag wiring this package used
// to carry lives entirely in pkg/options now (the aggregator owns
// --version as a built-in flag); this package is just the string.
package version

import "fmt"

// Build metadata, overridable via -ldflags at build time.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// String renders a one-line version string.
func String() string {
	return fmt.Sprintf("version=%s commit=%s built=%s", Version, Commit, BuildDate)
}

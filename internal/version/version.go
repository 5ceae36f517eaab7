// SPDX-License-Identifier: MIT

// Package version carries build metadata injected via -ldflags.
package version

import "fmt"

var (
	// Version is the release version, set at build time.
	Version = "v0.1.0-dev"

	// Commit is the git short hash of the build.
	Commit = "unknown"

	// Date is the build timestamp.
	Date = "unknown"
)

// String renders the metadata for -version output.
func String(binary string) string {
	return fmt.Sprintf("%s %s (commit %s, built %s)", binary, Version, Commit, Date)
}

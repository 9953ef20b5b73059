// Package buildinfo exposes compile-time metadata for the zetaclient CLI demo.
package buildinfo

// Overridden via -ldflags at release-build time; defaults cover local builds.
var (
	Version   = "dev"
	Commit    = "none"
	BuildDate = "unknown"
)

// Package buildinfo holds the testsmith release identity. The release build
// stamps the three variables with -ldflags "-X"; a plain go build reports a
// dev version.
package buildinfo

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"

	// Commit is the short SHA the binary was built from.
	Commit = "unknown"

	// Date is when the binary was built, as an RFC3339 UTC timestamp.
	Date = "unknown"
)

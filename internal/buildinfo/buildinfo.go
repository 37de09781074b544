package buildinfo

import "fmt"

// Info is the JSON form of the build information.
type Info struct {
	Version string `json:"version"`
	Commit  string `json:"commit"`
	Date    string `json:"date"`
}

// GetInfo returns the build information set at link time.
func GetInfo() Info {
	return Info{
		Version: Version,
		Commit:  Commit,
		Date:    Date,
	}
}

// String renders e.g. "testsmith 0.3.0 (commit: a1b2c3d, built: 2026-10-01T10:00:00Z)".
func (i Info) String() string {
	return fmt.Sprintf("testsmith %s (commit: %s, built: %s)", i.Version, i.Commit, i.Date)
}

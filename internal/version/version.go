package version

// Build metadata, set via -ldflags "-X".
var (
	Version = "dev"
	Commit  = "none"
)

// String renders the version and commit on one line.
func String() string {
	return Version + " (" + Commit + ")"
}

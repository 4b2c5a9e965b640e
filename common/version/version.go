// Package version exposes the build version stamped in at link time.
package version

// Version is overridden via -ldflags "-X .../common/version.Version=v1.2.3".
var Version = "dev"

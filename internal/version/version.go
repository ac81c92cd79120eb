// Package version exposes the build version of the on-call service.
package version

// Version is set at build time via -ldflags.
var Version = "dev"

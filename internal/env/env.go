// Package env holds build-time metadata injected via -ldflags -X.
package env

var (
	Version    = "dev"
	CommitHash = "none"
	BuildTime  = "unknown"
)

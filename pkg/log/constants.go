// Package log holds glog verbosity-level conventions shared across the module.
package log

const (
	// LevelDebug is for logs to be emitted at -v 1.
	// These are not necessary for problem diagnosis, but internal debugging.
	LevelDebug = 1

	// LevelTrace is for logs to be emitted at -v 2.
	// Per-attribute validation and PATCH operation tracing lives here.
	LevelTrace = 2
)

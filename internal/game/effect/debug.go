package effect

import "sync/atomic"

// debugLoggingEnabled gates per-node debug logging in the runner hot path.
// Set via EnableDebugLogging() during initialization based on config.LogLevel.
var debugLoggingEnabled atomic.Bool

// EnableDebugLogging enables or disables debug logging for effect execution.
func EnableDebugLogging(enabled bool) {
	debugLoggingEnabled.Store(enabled)
}

// IsDebugEnabled returns true if debug logging is enabled.
//
//	if effect.IsDebugEnabled() {
//	    slog.Debug("node entered", "node", id, "targets", len(in))
//	}
func IsDebugEnabled() bool {
	return debugLoggingEnabled.Load()
}

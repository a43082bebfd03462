// Package logging provides structured logging for signctl.
//
// This package wraps a package-global zap logger with convenience functions
// for the events the rest of the module reports: link traffic, session state
// changes, device connections and HTTP/websocket activity.
//
// # Log Levels
//
// The package supports standard log levels:
//   - Debug: Frame dumps, heartbeat polls, reassembly details
//   - Info: Connections, session state changes, commands issued
//   - Warn: Dropped frames, heartbeat failures, handshake retries
//   - Error: Session restarts, startup failures
//
// # Structured Logging
//
// All log functions use structured fields:
//
//	logging.Info("Configuration received",
//	    zap.String("device", "gantry-01"),
//	    zap.Int("groups", 2),
//	)
//
// # Specialized Logging
//
// Link traffic (control bytes are rendered as <SOH>, <ETX> and so on):
//
//	logging.LogFrame("gantry-01", "sent", raw)
//
// Session state:
//
//	logging.LogStateChange("gantry-01", "authenticating", "active")
//
// # Configuration
//
// Initialize logging once at startup:
//
//	if err := logging.Initialize(flagLevel); err != nil {
//	    return err
//	}
//	defer logging.Sync()
//
// When neither the level argument nor SIGNCTL_LOG_LEVEL is set the logger is
// silent, so one-shot CLI commands print only their own output.
package logging

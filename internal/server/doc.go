// Package server exposes supervised sign controllers over HTTP.
//
// # Routes
//
//	GET  /api/devices                   list devices with session state
//	GET  /api/{device}/status           merged heartbeat status
//	GET  /api/{device}/configuration    last configuration reply
//	POST /api/{device}/{operation}      run a command (JSON body)
//	GET  /api/ws[?device=name]          websocket feed of device events
//
// Operations are named in kebab case after the supervisor methods:
// set-text-frame, display-frame, enable-plan, set-dimming-level and so on.
// OperationNames lists them all.
//
// # Errors
//
// Every error response is a JSON object with an "error" field:
//   - 400 for malformed bodies and locally invalid commands
//   - 404 for unknown devices and operations
//   - 422 when the controller rejects the command; the body then carries
//     rejectedOpcode, applicationErrorCode and description
//   - 503 when the device has no active session
//   - 504 when the controller does not reply in time
//   - 502 for link failures
//
// # Usage Example
//
//	srv, err := server.New(&server.Config{Listen: ":8080"}, manager)
//	if err != nil {
//	    return err
//	}
//	if err := srv.Start(ctx); err != nil {
//	    return err
//	}
//
// Setting Config.CertPath and Config.KeyPath serves the same routes over
// HTTPS with TLS 1.2 or later.
//
// Start blocks until ctx is cancelled, then shuts down gracefully: websocket
// clients are closed and in-flight requests are given ShutdownTimeout to
// finish.
package server

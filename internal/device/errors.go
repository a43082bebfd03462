package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"syscall"

	"github.com/muurk/signctl/internal/dispatch"
	"github.com/muurk/signctl/internal/protocol"
	"github.com/muurk/signctl/internal/session"
	"github.com/muurk/signctl/internal/transport"
)

// ErrorType is the category of a device failure.
type ErrorType int

const (
	// ErrTypeTransport covers connection and I/O failures.
	ErrTypeTransport ErrorType = iota
	// ErrTypeConnectionRefused means nothing listens at the controller address.
	ErrTypeConnectionRefused
	// ErrTypeDNS means the controller host name did not resolve.
	ErrTypeDNS
	// ErrTypeHandshake means the session could not be authenticated.
	ErrTypeHandshake
	// ErrTypeRejected means the controller refused the command.
	ErrTypeRejected
	// ErrTypeTimeout means no reply arrived in time.
	ErrTypeTimeout
	// ErrTypeDecode means the reply could not be decoded.
	ErrTypeDecode
	// ErrTypeValidation means the command was refused locally before sending.
	ErrTypeValidation
	// ErrTypeNotActive means the device has no active session.
	ErrTypeNotActive
	// ErrTypeUnknown is anything else.
	ErrTypeUnknown
)

func (et ErrorType) String() string {
	switch et {
	case ErrTypeTransport:
		return "Transport Error"
	case ErrTypeConnectionRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeHandshake:
		return "Handshake Error"
	case ErrTypeRejected:
		return "Rejected"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeDecode:
		return "Decode Error"
	case ErrTypeValidation:
		return "Validation Error"
	case ErrTypeNotActive:
		return "Not Active"
	case ErrTypeUnknown:
		return "Unknown Error"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ErrNotActive is returned for commands submitted while the device has no
// active session.
var ErrNotActive = errors.New("device session is not active")

// ErrStopped is returned for commands submitted after the supervisor exited.
var ErrStopped = errors.New("device supervisor stopped")

// DeviceError wraps a failure with its category and the device it came from.
type DeviceError struct {
	Type      ErrorType
	Message   string
	Err       error
	Device    string
	Retryable bool
}

func (e *DeviceError) Error() string {
	prefix := e.Type.String()
	if e.Device != "" {
		prefix = e.Device + ": " + prefix
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", prefix, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", prefix, e.Message)
}

func (e *DeviceError) Unwrap() error { return e.Err }

// Classify maps any error from a device operation onto a DeviceError. It
// returns nil for a nil error and err itself when it already is one.
func Classify(err error, device string) *DeviceError {
	if err == nil {
		return nil
	}
	var de *DeviceError
	if errors.As(err, &de) {
		return de
	}

	var (
		reject *dispatch.RejectError
		hs     *session.HandshakeError
		dnsErr *net.DNSError
		opErr  *net.OpError
	)
	switch {
	case errors.As(err, &reject):
		return &DeviceError{Type: ErrTypeRejected, Message: reject.Error(), Err: err, Device: device}
	case errors.Is(err, dispatch.ErrTimeout), errors.Is(err, transport.ErrReceiveTimeout),
		errors.Is(err, context.DeadlineExceeded), os.IsTimeout(err):
		return &DeviceError{Type: ErrTypeTimeout, Message: "controller did not reply in time", Err: err, Device: device, Retryable: true}
	case protocol.IsValidationError(err):
		return &DeviceError{Type: ErrTypeValidation, Message: "invalid command", Err: err, Device: device}
	case protocol.IsDecodeError(err), protocol.IsFrameError(err):
		return &DeviceError{Type: ErrTypeDecode, Message: "malformed reply", Err: err, Device: device}
	case errors.Is(err, ErrNotActive):
		return &DeviceError{Type: ErrTypeNotActive, Message: "no active session", Err: err, Device: device, Retryable: true}
	case errors.As(err, &hs):
		return &DeviceError{Type: ErrTypeHandshake, Message: "session handshake failed", Err: err, Device: device, Retryable: true}
	case errors.As(err, &dnsErr):
		return &DeviceError{Type: ErrTypeDNS, Message: fmt.Sprintf("DNS resolution failed for %s", dnsErr.Name), Err: err, Device: device}
	case errors.As(err, &opErr) && errors.Is(opErr.Err, syscall.ECONNREFUSED):
		return &DeviceError{Type: ErrTypeConnectionRefused, Message: "controller refused connection", Err: err, Device: device, Retryable: true}
	case errors.Is(err, dispatch.ErrConnectionLost), errors.Is(err, transport.ErrNotConnected),
		errors.Is(err, transport.ErrClosedByPeer), errors.Is(err, dispatch.ErrNak), errors.As(err, &opErr):
		return &DeviceError{Type: ErrTypeTransport, Message: "link failure", Err: err, Device: device, Retryable: true}
	}
	return &DeviceError{Type: ErrTypeUnknown, Message: err.Error(), Err: err, Device: device}
}

func typeOf(err error) (ErrorType, bool) {
	if err == nil {
		return 0, false
	}
	return Classify(err, "").Type, true
}

// IsRetryable reports whether repeating the command may succeed.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	return Classify(err, "").Retryable
}

// IsRejection reports whether the controller refused the command.
func IsRejection(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeRejected
}

// IsTimeout reports whether the command timed out.
func IsTimeout(err error) bool {
	t, ok := typeOf(err)
	return ok && t == ErrTypeTimeout
}

// ShortMessage returns a one-line description for CLI output.
func ShortMessage(err error) string {
	de := Classify(err, "")
	if de == nil {
		return ""
	}
	switch de.Type {
	case ErrTypeRejected:
		var reject *dispatch.RejectError
		if errors.As(err, &reject) {
			return fmt.Sprintf("Controller rejected %s: %s", reject.MI, reject.Description())
		}
		return "Controller rejected the command"
	case ErrTypeTimeout:
		return "Controller not responding (timeout)"
	case ErrTypeConnectionRefused:
		return "Controller refused connection - check host and port"
	case ErrTypeDNS:
		return "Cannot resolve controller hostname"
	case ErrTypeHandshake:
		return "Session handshake failed - check seed and password offsets"
	case ErrTypeNotActive:
		return "No active session with the controller"
	case ErrTypeValidation:
		return err.Error()
	default:
		return err.Error()
	}
}

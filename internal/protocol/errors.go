package protocol

import (
	"errors"
	"fmt"
)

// Sentinel causes wrapped by FrameError and DecodeError
var (
	ErrFrameTooShort = errors.New("frame too short")
	ErrBadMarker     = errors.New("unexpected control byte")
	ErrCRCMismatch   = errors.New("crc mismatch")
	ErrBadHex        = errors.New("invalid hex field")
	ErrShortPayload  = errors.New("payload too short")
	ErrUnexpectedMI  = errors.New("unexpected message identifier")
)

// FrameError reports a frame that could not be taken apart. Frames that fail
// this way are dropped by the receiver; they never affect session state.
type FrameError struct {
	Reason string
	Raw    []byte
	Err    error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame error: %s: %v", e.Reason, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// DecodeError reports an application payload that does not match the layout
// of its message identifier.
type DecodeError struct {
	MI     MICode
	Field  string
	Offset int
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("decode %s: %v", e.MI, e.Err)
	}
	return fmt.Sprintf("decode %s: field %s at offset %d: %v", e.MI, e.Field, e.Offset, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// ValidationError reports a request refused locally, before anything is sent.
type ValidationError struct {
	MI      MICode
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s request: %s", e.MI, e.Message)
}

// IsFrameError reports whether err is (or wraps) a FrameError.
func IsFrameError(err error) bool {
	var fe *FrameError
	return errors.As(err, &fe)
}

// IsDecodeError reports whether err is (or wraps) a DecodeError.
func IsDecodeError(err error) bool {
	var de *DecodeError
	return errors.As(err, &de)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

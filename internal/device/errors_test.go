package device

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"
	"testing"

	"github.com/muurk/signctl/internal/dispatch"
	"github.com/muurk/signctl/internal/protocol"
	"github.com/muurk/signctl/internal/session"
	"github.com/muurk/signctl/internal/transport"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name      string
		err       error
		wantType  ErrorType
		retryable bool
	}{
		{"reject", &dispatch.RejectError{MI: protocol.MISignSetTextFrame, ApplicationErrorCode: 0x06}, ErrTypeRejected, false},
		{"wrapped reject", fmt.Errorf("set frame: %w", &dispatch.RejectError{MI: protocol.MIEnablePlan}), ErrTypeRejected, false},
		{"timeout", dispatch.ErrTimeout, ErrTypeTimeout, true},
		{"receive timeout", transport.ErrReceiveTimeout, ErrTypeTimeout, true},
		{"context deadline", context.DeadlineExceeded, ErrTypeTimeout, true},
		{"validation", &protocol.ValidationError{MI: protocol.MISignSetTextFrame, Message: "empty text"}, ErrTypeValidation, false},
		{"decode", &protocol.DecodeError{MI: protocol.MISignStatusReply, Field: "signs", Err: protocol.ErrShortPayload}, ErrTypeDecode, false},
		{"not active", ErrNotActive, ErrTypeNotActive, true},
		{"handshake", &session.HandshakeError{Step: session.StateAuthenticating, Err: session.ErrNoAckMessage}, ErrTypeHandshake, true},
		{"dns", &net.DNSError{Name: "sign.invalid", Err: "no such host"}, ErrTypeDNS, false},
		{"refused", &net.OpError{Op: "dial", Err: syscall.ECONNREFUSED}, ErrTypeConnectionRefused, true},
		{"connection lost", fmt.Errorf("%w: %w", dispatch.ErrConnectionLost, transport.ErrClosedByPeer), ErrTypeTransport, true},
		{"nak", dispatch.ErrNak, ErrTypeTransport, true},
		{"unknown", errors.New("boom"), ErrTypeUnknown, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			de := Classify(tt.err, "gantry")
			if de.Type != tt.wantType {
				t.Errorf("Classify().Type = %v, want %v", de.Type, tt.wantType)
			}
			if de.Retryable != tt.retryable {
				t.Errorf("Classify().Retryable = %v, want %v", de.Retryable, tt.retryable)
			}
			if IsRetryable(tt.err) != tt.retryable {
				t.Errorf("IsRetryable() = %v, want %v", IsRetryable(tt.err), tt.retryable)
			}
			if !errors.Is(de, tt.err) {
				t.Error("DeviceError should unwrap to the original error")
			}
			if !strings.HasPrefix(de.Error(), "gantry: ") {
				t.Errorf("Error() = %q, want device prefix", de.Error())
			}
		})
	}
}

func TestClassifyNilAndIdempotent(t *testing.T) {
	if Classify(nil, "x") != nil {
		t.Error("Classify(nil) should be nil")
	}
	de := &DeviceError{Type: ErrTypeTimeout, Message: "m"}
	if Classify(fmt.Errorf("wrapped: %w", de), "x") != de {
		t.Error("Classify should return an existing DeviceError")
	}
	if IsRetryable(nil) || IsTimeout(nil) || IsRejection(nil) {
		t.Error("predicates should be false for nil")
	}
}

func TestShortMessage(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&dispatch.RejectError{MI: protocol.MISignSetTextFrame, ApplicationErrorCode: 0x06}, "Controller rejected SignSetTextFrame: "},
		{dispatch.ErrTimeout, "Controller not responding (timeout)"},
		{ErrNotActive, "No active session with the controller"},
		{&session.HandshakeError{Step: session.StateAuthenticating, Err: session.ErrNak}, "Session handshake failed"},
	}
	for _, tt := range tests {
		if got := ShortMessage(tt.err); !strings.HasPrefix(got, tt.want) {
			t.Errorf("ShortMessage(%v) = %q, want prefix %q", tt.err, got, tt.want)
		}
	}
	if ShortMessage(nil) != "" {
		t.Error("ShortMessage(nil) should be empty")
	}
}

package device

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/protocol"
)

// VerifyOptions controls how a stored object is read back after a write.
type VerifyOptions struct {
	// MaxRetries is the number of read-backs after the first one.
	MaxRetries uint64
	// InitialDelay is the wait before the first read-back.
	InitialDelay time.Duration
	// MaxRetryDelay caps the exponential delay between read-backs.
	MaxRetryDelay time.Duration
}

// DefaultVerifyOptions returns the read-back schedule used by the CLI.
func DefaultVerifyOptions() VerifyOptions {
	return VerifyOptions{
		MaxRetries:    3,
		InitialDelay:  200 * time.Millisecond,
		MaxRetryDelay: 2 * time.Second,
	}
}

// VerifyResult reports the outcome of a read-back.
type VerifyResult struct {
	Attempts   int
	Stored     *protocol.StoredObject
	Mismatches []string
}

// Success reports whether the stored object matched.
func (r *VerifyResult) Success() bool {
	return r.Stored != nil && len(r.Mismatches) == 0
}

// VerifyTextFrame reads frame want.FrameID back and compares it field by
// field. A controller rejection ends the read-back at once.
func (s *Supervisor) VerifyTextFrame(ctx context.Context, want *protocol.TextFrame, opts VerifyOptions) (*VerifyResult, error) {
	return s.verify(ctx, protocol.StoredKindFrame, want.FrameID, opts, func(o *protocol.StoredObject) []string {
		return diffTextFrame(want, o.Frame)
	})
}

// VerifyMessage reads message want.MessageID back and compares it.
func (s *Supervisor) VerifyMessage(ctx context.Context, want *protocol.MessageDefinition, opts VerifyOptions) (*VerifyResult, error) {
	return s.verify(ctx, protocol.StoredKindMessage, want.MessageID, opts, func(o *protocol.StoredObject) []string {
		return diffMessage(want, o.Message)
	})
}

func (s *Supervisor) verify(ctx context.Context, kind protocol.StoredKind, id byte, opts VerifyOptions, diff func(*protocol.StoredObject) []string) (*VerifyResult, error) {
	result := &VerifyResult{}

	select {
	case <-time.After(opts.InitialDelay):
	case <-ctx.Done():
		return result, ctx.Err()
	}

	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = opts.InitialDelay
	if opts.MaxRetryDelay > 0 {
		eb.MaxInterval = opts.MaxRetryDelay
	}
	eb.MaxElapsedTime = 0
	b := backoff.WithContext(backoff.WithMaxRetries(eb, opts.MaxRetries), ctx)

	err := backoff.Retry(func() error {
		result.Attempts++
		obj, err := s.RequestStored(ctx, kind, id)
		if err != nil {
			if IsRejection(err) {
				return backoff.Permanent(err)
			}
			return err
		}
		result.Stored = obj
		result.Mismatches = diff(obj)
		if len(result.Mismatches) > 0 {
			logging.Debug("Stored object differs",
				zap.String("device", s.opts.Name),
				zap.Stringer("kind", kind),
				zap.Uint8("id", id),
				zap.Strings("mismatches", result.Mismatches),
			)
			return fmt.Errorf("stored %s %d differs in %d fields", kind, id, len(result.Mismatches))
		}
		return nil
	}, b)

	if err != nil && result.Stored != nil && len(result.Mismatches) > 0 {
		// Read-back succeeded but never matched.
		return result, nil
	}
	return result, err
}

func diffTextFrame(want, got *protocol.TextFrame) []string {
	if got == nil {
		return []string{"frame missing from reply"}
	}
	var out []string
	check := func(field string, w, g any) {
		if w != g {
			out = append(out, fmt.Sprintf("%s: want %v, got %v", field, w, g))
		}
	}
	check("frame_id", want.FrameID, got.FrameID)
	check("revision", want.Revision, got.Revision)
	check("font", want.Font, got.Font)
	check("colour", want.Colour, got.Colour)
	check("conspicuity", want.Conspicuity, got.Conspicuity)
	check("text", want.Text, got.Text)
	if !got.CRCValid() {
		out = append(out, fmt.Sprintf("crc: %04X does not match stored text", got.CRC))
	}
	return out
}

func diffMessage(want, got *protocol.MessageDefinition) []string {
	if got == nil {
		return []string{"message missing from reply"}
	}
	var out []string
	if want.MessageID != got.MessageID {
		out = append(out, fmt.Sprintf("message_id: want %d, got %d", want.MessageID, got.MessageID))
	}
	if want.Revision != got.Revision {
		out = append(out, fmt.Sprintf("revision: want %d, got %d", want.Revision, got.Revision))
	}
	if want.TransitionTime != got.TransitionTime {
		out = append(out, fmt.Sprintf("transition_time: want %d, got %d", want.TransitionTime, got.TransitionTime))
	}
	if !slices.Equal(want.Entries, got.Entries) {
		out = append(out, fmt.Sprintf("entries: want %v, got %v", want.Entries, got.Entries))
	}
	return out
}

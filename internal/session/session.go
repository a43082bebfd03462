// Package session owns one controller link: the handshake state machine,
// the NS/NR sequence counters and the stream reassembler.
//
// A Session is not safe for concurrent use. It belongs to exactly one device
// supervisor goroutine, which is the only code that sends frames or touches
// the sequence counters.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/protocol"
	"github.com/muurk/signctl/internal/transport"
)

// Handshake failures
var (
	ErrNoAck          = errors.New("controller did not acknowledge")
	ErrNak            = errors.New("controller sent NAK")
	ErrNoPasswordSeed = errors.New("no password seed received")
	ErrNoAckMessage   = errors.New("password not accepted")
)

// HandshakeError reports the step at which a handshake failed.
type HandshakeError struct {
	Step State
	Err  error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("handshake failed in %s: %v", e.Step, e.Err)
}

func (e *HandshakeError) Unwrap() error { return e.Err }

// Config holds the per-device parameters a session needs.
type Config struct {
	Device         string // name used in logs
	Address        string // two-character controller address
	SeedOffset     string // hex
	PasswordOffset string // hex
	// ReplyTimeout bounds each wait for a handshake reply.
	ReplyTimeout time.Duration
	// OnStateChange, if set, is called after every transition.
	OnStateChange func(from, to State)
}

// DefaultReplyTimeout is used when Config.ReplyTimeout is zero.
const DefaultReplyTimeout = 3 * time.Second

// Session is one controller link.
type Session struct {
	cfg     Config
	machine *stateMachine

	ns, nr         byte
	reasm          protocol.Reassembler
	configReceived time.Time
}

// New returns a disconnected session.
func New(cfg Config) *Session {
	if cfg.ReplyTimeout <= 0 {
		cfg.ReplyTimeout = DefaultReplyTimeout
	}
	s := &Session{cfg: cfg}
	s.machine = newStateMachine(func(from, to State) {
		logging.LogStateChange(cfg.Device, string(from), string(to))
		if cfg.OnStateChange != nil {
			cfg.OnStateChange(from, to)
		}
	})
	return s
}

// State returns the current lifecycle state.
func (s *Session) State() State { return s.machine.current() }

// Active reports whether commands may be sent.
func (s *Session) Active() bool { return s.State() == StateActive }

// NS returns the send sequence number the next frame will carry.
func (s *Session) NS() byte { return s.ns }

// NR returns the receive sequence number the next frame will carry.
func (s *Session) NR() byte { return s.nr }

// Address returns the controller address.
func (s *Session) Address() string { return s.cfg.Address }

// ConfigReceived returns when the last configuration reply was applied, or
// the zero time.
func (s *Session) ConfigReceived() time.Time { return s.configReceived }

// MarkConfigReceived records a successfully applied configuration reply.
func (s *Session) MarkConfigReceived(t time.Time) { s.configReceived = t }

// Encode frames req with the current sequence numbers.
func (s *Session) Encode(req protocol.Request) ([]byte, error) {
	return protocol.Encode(s.ns, s.nr, s.cfg.Address, req.MI, req.Data)
}

// Observe applies an inbound frame to the sequence counters: an ACK
// advances NS, a data frame sets NR from the peer's NS.
func (s *Session) Observe(f *protocol.Frame) {
	switch {
	case f.IsAck():
		s.ns++
	case f.IsData():
		s.nr = f.NS
	}
}

// Frames reassembles chunk and decodes every complete frame. Frames that
// fail to decode are logged and dropped.
func (s *Session) Frames(chunk []byte) []*protocol.Frame {
	logging.LogFrame(s.cfg.Device, "received", chunk)

	var frames []*protocol.Frame
	for _, raw := range s.reasm.Feed(chunk) {
		f, err := protocol.Decode(raw)
		if err != nil {
			logging.Warn("Dropped frame",
				zap.String("device", s.cfg.Device),
				zap.String("frame", protocol.Printable(raw)),
				zap.Error(err),
			)
			continue
		}
		frames = append(frames, f)
	}
	return frames
}

// Pending reports whether a partial frame is buffered.
func (s *Session) Pending() bool { return s.reasm.Pending() > 0 }

// Send frames req and writes it to t.
func (s *Session) Send(ctx context.Context, t transport.Transport, req protocol.Request) error {
	raw, err := s.Encode(req)
	if err != nil {
		return fmt.Errorf("encode %s: %w", req.MI, err)
	}
	logging.LogFrame(s.cfg.Device, "sent", raw)
	if err := t.Send(ctx, raw); err != nil {
		return fmt.Errorf("send %s: %w", req.MI, err)
	}
	return nil
}

// Receive reads from t until at least one complete frame is available and
// no partial frame is buffered, or the timeout passes.
func (s *Session) Receive(ctx context.Context, t transport.Transport, timeout time.Duration) ([]*protocol.Frame, error) {
	return s.ReceiveUntil(ctx, t, timeout, nil)
}

// ReceiveUntil reads from t until done reports true for the frames gathered
// so far, with no partial frame buffered. A nil done accepts any non-empty
// set. On timeout the frames gathered so far are returned with
// transport.ErrReceiveTimeout.
func (s *Session) ReceiveUntil(ctx context.Context, t transport.Transport, timeout time.Duration, done func([]*protocol.Frame) bool) ([]*protocol.Frame, error) {
	deadline := time.Now().Add(timeout)
	var frames []*protocol.Frame
	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return frames, transport.ErrReceiveTimeout
		}
		chunk, err := t.Receive(ctx, remaining)
		if err != nil {
			return frames, err
		}
		frames = append(frames, s.Frames(chunk)...)
		if len(frames) == 0 || s.Pending() {
			continue
		}
		if done == nil || done(frames) {
			return frames, nil
		}
	}
}

// Reset drops buffered bytes and zeroes the sequence counters.
func (s *Session) Reset() {
	s.ns, s.nr = 0, 0
	s.reasm.Reset()
}

// Fail moves the session to Disconnected and resets link state.
func (s *Session) Fail(ctx context.Context) {
	s.machine.fail(ctx)
	s.Reset()
}

// Handshake connects t if needed and performs StartSession, PasswordSeed,
// Password and AckMessage. On success the session is Active with NS=NR=0.
// On failure the session is Disconnected and t has been disconnected, so
// the next attempt starts from a fresh connection.
func (s *Session) Handshake(ctx context.Context, t transport.Transport) (err error) {
	defer func() {
		if err != nil {
			s.Fail(ctx)
			if derr := t.Disconnect(); derr != nil {
				logging.Debug("Disconnect after failed handshake", zap.String("device", s.cfg.Device), zap.Error(derr))
			}
		}
	}()

	if s.State() != StateDisconnected {
		s.Fail(ctx)
	}
	if err := s.machine.fire(ctx, eventConnect); err != nil {
		return err
	}
	if !t.IsConnected() {
		if err := t.Connect(ctx); err != nil {
			return &HandshakeError{Step: StateConnecting, Err: err}
		}
		logging.LogConnection(s.cfg.Device, t.String(), "connected")
	}
	s.Reset()

	if err := s.machine.fire(ctx, eventStartSession); err != nil {
		return err
	}
	if err := s.Send(ctx, t, protocol.BuildStartSession()); err != nil {
		return &HandshakeError{Step: StateAwaitingPasswordSeed, Err: err}
	}
	frames, err := s.ReceiveUntil(ctx, t, s.cfg.ReplyTimeout, linkAnswered)
	if err != nil && len(frames) == 0 {
		return &HandshakeError{Step: StateAwaitingPasswordSeed, Err: err}
	}
	seed, err := scanForSeed(frames)
	if err != nil {
		return &HandshakeError{Step: StateAwaitingPasswordSeed, Err: err}
	}

	if err := s.machine.fire(ctx, eventSeedReceived); err != nil {
		return err
	}
	req, err := protocol.BuildPassword(seed, s.cfg.SeedOffset, s.cfg.PasswordOffset)
	if err != nil {
		return &HandshakeError{Step: StateAuthenticating, Err: err}
	}
	if err := s.Send(ctx, t, req); err != nil {
		return &HandshakeError{Step: StateAuthenticating, Err: err}
	}
	frames, err = s.ReceiveUntil(ctx, t, s.cfg.ReplyTimeout, linkAnswered)
	if err != nil && len(frames) == 0 {
		return &HandshakeError{Step: StateAuthenticating, Err: err}
	}
	if err := scanForAckMessage(frames); err != nil {
		return &HandshakeError{Step: StateAuthenticating, Err: err}
	}

	s.Reset()
	return s.machine.fire(ctx, eventAuthenticated)
}

// EndSession asks the controller to close the session, then drops the link.
// The session is Disconnected afterwards even if the controller did not
// answer.
func (s *Session) EndSession(ctx context.Context, t transport.Transport) error {
	defer func() {
		s.Fail(ctx)
		_ = t.Disconnect()
	}()
	if !s.Active() {
		return nil
	}
	if err := s.Send(ctx, t, protocol.BuildEndSession()); err != nil {
		return err
	}
	frames, err := s.ReceiveUntil(ctx, t, s.cfg.ReplyTimeout, linkAnswered)
	if err != nil && len(frames) == 0 {
		return fmt.Errorf("end session: %w", err)
	}
	return scanForAckMessage(frames)
}

// linkAnswered is true once a NAK, or both an ACK and a data frame, have
// arrived.
func linkAnswered(frames []*protocol.Frame) bool {
	acked, data := false, false
	for _, f := range frames {
		switch {
		case f.IsNak():
			return true
		case f.IsAck():
			acked = true
		case f.IsData():
			data = true
		}
	}
	return acked && data
}

// scanForSeed looks through a handshake chunk for an ACK and a PasswordSeed,
// in any order.
func scanForSeed(frames []*protocol.Frame) (string, error) {
	acked, nak := false, false
	seed := ""
	for _, f := range frames {
		switch {
		case f.IsAck():
			acked = true
		case f.IsNak():
			nak = true
		case f.MI == protocol.MIPasswordSeed:
			msg, err := protocol.ParseMessage(f)
			if err != nil {
				return "", err
			}
			seed = msg.(*protocol.PasswordSeed).Seed
		}
	}
	switch {
	case nak:
		return "", ErrNak
	case !acked:
		return "", ErrNoAck
	case seed == "":
		return "", ErrNoPasswordSeed
	}
	return seed, nil
}

func scanForAckMessage(frames []*protocol.Frame) error {
	acked, nak, ackMessage := false, false, false
	for _, f := range frames {
		switch {
		case f.IsAck():
			acked = true
		case f.IsNak():
			nak = true
		case f.MI == protocol.MIAckMessage:
			ackMessage = true
		}
	}
	switch {
	case nak:
		return ErrNak
	case !acked:
		return ErrNoAck
	case !ackMessage:
		return ErrNoAckMessage
	}
	return nil
}

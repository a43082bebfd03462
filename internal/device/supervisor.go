package device

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/dispatch"
	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/protocol"
	"github.com/muurk/signctl/internal/session"
	"github.com/muurk/signctl/internal/transport"
)

const (
	// DefaultRequestTimeout bounds the wait for each reply.
	DefaultRequestTimeout = 3 * time.Second

	// DefaultHandshakeBackoff is the pause between failed session attempts.
	DefaultHandshakeBackoff = 3 * time.Second

	// DefaultHeartbeatInterval is the time between heartbeat polls.
	DefaultHeartbeatInterval = 5 * time.Second

	// DefaultReadTimeout is the longest single transport read.
	DefaultReadTimeout = 250 * time.Millisecond

	// DefaultFailureThreshold is how many consecutive heartbeat failures
	// restart the session.
	DefaultFailureThreshold = 3

	commandQueueSize = 16
)

// Options configures a Supervisor.
type Options struct {
	// Name identifies the device in logs, events and the HTTP API.
	Name string

	// Address is the two-character controller address.
	Address string

	// SeedOffset and PasswordOffset are the hex parameters of the password
	// challenge.
	SeedOffset     string
	PasswordOffset string

	RequestTimeout    time.Duration
	HandshakeBackoff  time.Duration
	HeartbeatInterval time.Duration
	ReadTimeout       time.Duration
	FailureThreshold  int

	// OnEvent receives every event on the supervisor goroutine. It must not
	// block.
	OnEvent func(Event)
}

func (o *Options) setDefaults() {
	if o.RequestTimeout <= 0 {
		o.RequestTimeout = DefaultRequestTimeout
	}
	if o.HandshakeBackoff <= 0 {
		o.HandshakeBackoff = DefaultHandshakeBackoff
	}
	if o.HeartbeatInterval <= 0 {
		o.HeartbeatInterval = DefaultHeartbeatInterval
	}
	if o.ReadTimeout <= 0 {
		o.ReadTimeout = DefaultReadTimeout
	}
	if o.FailureThreshold <= 0 {
		o.FailureThreshold = DefaultFailureThreshold
	}
}

type commandKind int

const (
	cmdRequest commandKind = iota
	cmdRestart
	cmdEnd
)

type command struct {
	kind    commandKind
	req     protocol.Request
	replies []protocol.MICode
	done    chan result
}

type result struct {
	msg protocol.Message
	err error
}

var (
	errRestartRequested = errors.New("session restart requested")
	errSessionEnded     = errors.New("session ended")
	errPaused           = errors.New("supervision paused")
)

// Supervisor keeps one controller session alive and serializes every
// command sent on it. All protocol state is owned by the goroutine running
// Run; other goroutines talk to it through the command queue.
type Supervisor struct {
	opts Options
	t    transport.Transport
	sess *session.Session
	corr *dispatch.Correlator
	cmds chan *command

	state      atomic.String
	failures   atomic.Int32
	heartbeats atomic.Int64
	restarts   atomic.Int64
	paused     atomic.Bool
	running    atomic.Bool

	stopped chan struct{}

	mu      sync.RWMutex
	status  *Status
	config  *protocol.ControllerConfiguration
	lastErr error
	ready   chan struct{}
}

// New returns a supervisor for the controller reachable through t. Call Run
// to start it.
func New(t transport.Transport, opts Options) *Supervisor {
	opts.setDefaults()
	s := &Supervisor{
		opts:    opts,
		t:       t,
		corr:    dispatch.NewCorrelator(opts.RequestTimeout),
		cmds:    make(chan *command, commandQueueSize),
		stopped: make(chan struct{}),
		ready:   make(chan struct{}),
	}
	s.state.Store(string(session.StateDisconnected))
	s.sess = session.New(session.Config{
		Device:         opts.Name,
		Address:        opts.Address,
		SeedOffset:     opts.SeedOffset,
		PasswordOffset: opts.PasswordOffset,
		ReplyTimeout:   opts.RequestTimeout,
		OnStateChange:  s.onStateChange,
	})
	return s
}

// Name returns the device name.
func (s *Supervisor) Name() string { return s.opts.Name }

// Transport returns the link the supervisor drives.
func (s *Supervisor) Transport() transport.Transport { return s.t }

// State returns the session state as last published.
func (s *Supervisor) State() session.State { return session.State(s.state.Load()) }

// Ready reports whether the session is active and the configuration has
// been received.
func (s *Supervisor) Ready() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

// Failures returns the current count of consecutive heartbeat failures.
func (s *Supervisor) Failures() int { return int(s.failures.Load()) }

// Heartbeats returns how many heartbeat replies have been received.
func (s *Supervisor) Heartbeats() int64 { return s.heartbeats.Load() }

// Restarts returns how many times the session has been torn down.
func (s *Supervisor) Restarts() int64 { return s.restarts.Load() }

// Paused reports whether EndSession stopped supervision.
func (s *Supervisor) Paused() bool { return s.paused.Load() }

// LastError returns the most recent session-level failure.
func (s *Supervisor) LastError() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastErr
}

// Status returns a copy of the merged heartbeat status, or nil before the
// first reply.
func (s *Supervisor) Status() *Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.status.clone()
}

// Configuration returns the last configuration reply, or nil. The value is
// replaced, never mutated, so callers may keep it.
func (s *Supervisor) Configuration() *protocol.ControllerConfiguration {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.config
}

// WaitReady blocks until the session is active with its configuration
// loaded, or ctx is done.
func (s *Supervisor) WaitReady(ctx context.Context) error {
	s.mu.RLock()
	ready := s.ready
	s.mu.RUnlock()

	select {
	case <-ready:
		return nil
	case <-s.stopped:
		return ErrStopped
	case <-ctx.Done():
		if err := s.LastError(); err != nil {
			return fmt.Errorf("%w (last error: %w)", ctx.Err(), err)
		}
		return ctx.Err()
	}
}

// Run supervises the controller until ctx is cancelled. It connects,
// authenticates, loads the configuration, then alternates heartbeat polls
// with queued commands. Repeated heartbeat failures tear the session down
// and start over.
func (s *Supervisor) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("supervisor already running")
	}
	defer close(s.stopped)
	defer s.shutdown(ctx)

	logging.Info("Supervisor started", zap.String("device", s.opts.Name), zap.String("transport", s.t.String()))

	for ctx.Err() == nil {
		if s.paused.Load() {
			s.idle(ctx)
			continue
		}
		if err := s.establish(ctx); err != nil {
			continue
		}
		reason := s.serve(ctx)
		s.teardown(ctx, reason)
	}

	logging.Info("Supervisor stopped", zap.String("device", s.opts.Name))
	return nil
}

// establish retries the handshake and configuration load with a constant
// backoff until both succeed, ctx ends or supervision is paused.
func (s *Supervisor) establish(ctx context.Context) error {
	b := backoff.WithContext(backoff.NewConstantBackOff(s.opts.HandshakeBackoff), ctx)
	notify := func(err error, wait time.Duration) {
		s.setError(err)
		logging.Warn("Session setup failed",
			zap.String("device", s.opts.Name),
			zap.Duration("retry_in", wait),
			zap.Error(err),
		)
	}

	return backoff.RetryNotify(func() error {
		if s.paused.Load() {
			return backoff.Permanent(errPaused)
		}
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		if err := s.sess.Handshake(ctx, s.t); err != nil {
			return err
		}
		if err := s.loadConfiguration(ctx); err != nil {
			s.sess.Fail(ctx)
			_ = s.t.Disconnect()
			return err
		}
		s.setError(nil)
		s.setReady(true)
		logging.LogConnection(s.opts.Name, s.t.String(), "session active")
		return nil
	}, b, notify)
}

// loadConfiguration requests the sign configuration until a reply parses.
// A lost link ends the attempt at once.
func (s *Supervisor) loadConfiguration(ctx context.Context) error {
	var err error
	for attempt := 1; attempt <= s.opts.FailureThreshold; attempt++ {
		_, err = s.exchange(ctx, protocol.BuildSignConfigurationRequest(), protocol.MISignConfigurationReply)
		if err == nil {
			return nil
		}
		if errors.Is(err, dispatch.ErrConnectionLost) || ctx.Err() != nil {
			break
		}
		logging.Warn("Configuration request failed",
			zap.String("device", s.opts.Name),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return fmt.Errorf("configuration request: %w", err)
}

// serve runs the active session until it has to be torn down and returns
// the reason.
func (s *Supervisor) serve(ctx context.Context) error {
	ticker := time.NewTicker(s.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-ticker.C:
			_, err := s.exchange(ctx, protocol.BuildHeartbeatPoll(), protocol.MISignStatusReply)
			if err == nil {
				s.failures.Store(0)
				s.heartbeats.Inc()
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			n := s.failures.Inc()
			logging.Warn("Heartbeat failed",
				zap.String("device", s.opts.Name),
				zap.Int32("consecutive", n),
				zap.Error(err),
			)
			if int(n) >= s.opts.FailureThreshold {
				return fmt.Errorf("%d consecutive heartbeat failures: %w", n, err)
			}

		case cmd := <-s.cmds:
			if reason := s.execute(ctx, cmd); reason != nil {
				return reason
			}
		}
	}
}

// execute runs one queued command. A non-nil return ends the session.
func (s *Supervisor) execute(ctx context.Context, cmd *command) error {
	switch cmd.kind {
	case cmdRestart:
		cmd.done <- result{}
		return errRestartRequested

	case cmdEnd:
		s.setReady(false)
		s.paused.Store(true)
		err := s.sess.EndSession(ctx, s.t)
		cmd.done <- result{err: err}
		return errSessionEnded
	}

	msg, err := s.exchange(ctx, cmd.req, cmd.replies...)
	cmd.done <- result{msg: msg, err: err}
	return nil
}

// idle waits while supervision is paused. Only a restart resumes it.
func (s *Supervisor) idle(ctx context.Context) {
	select {
	case <-ctx.Done():
	case cmd := <-s.cmds:
		if cmd.kind == cmdRestart {
			s.paused.Store(false)
			cmd.done <- result{}
			return
		}
		cmd.done <- result{err: ErrNotActive}
	}
}

// teardown drops the session after serve returned. Every waiting caller is
// failed with a connection-lost error.
func (s *Supervisor) teardown(ctx context.Context, reason error) {
	s.setReady(false)
	n := s.corr.FailAll(dispatch.ErrConnectionLost)
	s.drainCommands(dispatch.ErrConnectionLost)
	s.sess.Fail(ctx)
	if err := s.t.Disconnect(); err != nil {
		logging.Debug("Disconnect failed", zap.String("device", s.opts.Name), zap.Error(err))
	}
	s.failures.Store(0)
	s.restarts.Inc()

	if errors.Is(reason, context.Canceled) || errors.Is(reason, errSessionEnded) {
		return
	}
	s.setError(reason)
	logging.Warn("Session restarting",
		zap.String("device", s.opts.Name),
		zap.Int("failed_requests", n),
		zap.Error(reason),
	)
	s.emit(Event{Kind: EventError, Error: reason.Error()})
}

// shutdown ends an active session politely when the supervisor exits.
func (s *Supervisor) shutdown(ctx context.Context) {
	s.setReady(false)
	if s.sess.Active() {
		endCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.RequestTimeout)
		if err := s.sess.EndSession(endCtx, s.t); err != nil {
			logging.Debug("EndSession on shutdown failed", zap.String("device", s.opts.Name), zap.Error(err))
		}
		cancel()
	}
	s.sess.Fail(ctx)
	_ = s.t.Disconnect()
	s.corr.FailAll(ErrStopped)
	s.drainCommands(ErrStopped)
}

// drainCommands fails queued requests with err. Queued session controls
// still take effect.
func (s *Supervisor) drainCommands(err error) {
	for {
		select {
		case cmd := <-s.cmds:
			switch cmd.kind {
			case cmdRestart:
				s.paused.Store(false)
				cmd.done <- result{}
			case cmdEnd:
				s.paused.Store(true)
				cmd.done <- result{}
			default:
				cmd.done <- result{err: err}
			}
		default:
			return
		}
	}
}

// exchange sends req and reads until the matching reply, a reject, a NAK,
// a link failure or the request deadline.
func (s *Supervisor) exchange(ctx context.Context, req protocol.Request, replies ...protocol.MICode) (protocol.Message, error) {
	p, err := s.corr.Register(req.MI, replies...)
	if err != nil {
		return nil, err
	}
	logging.Debug("Request",
		zap.String("device", s.opts.Name),
		zap.Stringer("request", req),
		zap.String("token", p.Token()),
	)

	if err := s.sess.Send(ctx, s.t, req); err != nil {
		s.corr.Fail(p, fmt.Errorf("%w: %w", dispatch.ErrConnectionLost, err))
		return p.Result()
	}

	for !p.Resolved() {
		wait := time.Until(p.Deadline())
		if wait <= 0 {
			s.corr.Fail(p, dispatch.ErrTimeout)
			break
		}
		chunk, err := s.t.Receive(ctx, min(wait, s.opts.ReadTimeout))
		switch {
		case errors.Is(err, transport.ErrReceiveTimeout):
		case err != nil:
			s.corr.Fail(p, fmt.Errorf("%w: %w", dispatch.ErrConnectionLost, err))
		default:
			s.route(chunk, p)
		}
	}

	msg, err := p.Result()
	logging.Debug("Request resolved",
		zap.String("device", s.opts.Name),
		zap.String("token", p.Token()),
		zap.Error(err),
	)
	return msg, err
}

// route applies every frame in chunk to the session and hands decoded
// messages to the correlator. current is failed if the controller NAKs or
// sends a reply that cannot be decoded and no other request claims it.
func (s *Supervisor) route(chunk []byte, current *dispatch.Pending) {
	for _, f := range s.sess.Frames(chunk) {
		s.sess.Observe(f)
		switch {
		case f.IsAck():
			continue
		case f.IsNak():
			s.corr.Fail(current, dispatch.ErrNak)
			continue
		}

		msg, err := protocol.ParseMessage(f)
		if err != nil {
			logging.Warn("Undecodable reply", zap.String("device", s.opts.Name), zap.Stringer("mi", f.MI), zap.Error(err))
			if !s.corr.DeliverError(f.MI, err) {
				s.corr.Fail(current, err)
			}
			continue
		}
		s.observe(msg)
		if !s.corr.Deliver(msg) {
			logging.Debug("Unsolicited message", zap.String("device", s.opts.Name), zap.Stringer("message", msg))
		}
	}
}

// observe records replies that update the device snapshot, whoever asked
// for them.
func (s *Supervisor) observe(msg protocol.Message) {
	now := time.Now()
	switch m := msg.(type) {
	case *protocol.SignStatusReply:
		s.mu.Lock()
		if s.status == nil {
			s.status = &Status{}
		}
		s.status.apply(m, now)
		snapshot := s.status.clone()
		s.mu.Unlock()
		s.emit(Event{Kind: EventStatus, Status: snapshot})

	case *protocol.ControllerConfiguration:
		s.mu.Lock()
		s.config = m
		s.mu.Unlock()
		s.sess.MarkConfigReceived(now)
		s.emit(Event{Kind: EventConfiguration, Signs: m.SignCount()})
	}
}

func (s *Supervisor) onStateChange(from, to session.State) {
	s.state.Store(string(to))
	s.emit(Event{Kind: EventState, From: string(from), State: string(to)})
}

func (s *Supervisor) setReady(ready bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	select {
	case <-s.ready:
		if !ready {
			s.ready = make(chan struct{})
		}
	default:
		if ready {
			close(s.ready)
		}
	}
}

func (s *Supervisor) setError(err error) {
	s.mu.Lock()
	s.lastErr = err
	s.mu.Unlock()
}

func (s *Supervisor) emit(e Event) {
	if s.opts.OnEvent == nil {
		return
	}
	e.Device = s.opts.Name
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	if e.State == "" {
		e.State = s.state.Load()
	}
	s.opts.OnEvent(e)
}

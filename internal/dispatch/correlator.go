// Package dispatch matches controller replies to the requests waiting for
// them.
//
// Each request registers a Pending keyed by the message identifiers that may
// answer it. A Pending resolves exactly once: with the reply, with a
// RejectError naming the request, with a decode error, with ErrTimeout when
// its deadline passes, or with ErrConnectionLost when the session restarts.
package dispatch

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/muurk/signctl/internal/protocol"
)

// DefaultTimeout is the reply deadline when none is configured.
const DefaultTimeout = 3 * time.Second

// Pending is one request awaiting its reply.
type Pending struct {
	token    uuid.UUID
	request  protocol.MICode
	kinds    []protocol.MICode
	deadline time.Time

	once sync.Once
	done chan struct{}
	msg  protocol.Message
	err  error
}

// Token identifies the request in logs.
func (p *Pending) Token() string { return p.token.String() }

// Request is the MI of the command that was sent.
func (p *Pending) Request() protocol.MICode { return p.request }

// Deadline is when the request times out.
func (p *Pending) Deadline() time.Time { return p.deadline }

// Done is closed once the request is resolved.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Resolved reports whether the request has an outcome.
func (p *Pending) Resolved() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Result returns the outcome. It is only meaningful after Done is closed.
func (p *Pending) Result() (protocol.Message, error) {
	return p.msg, p.err
}

// Wait blocks until the request resolves, its deadline passes or ctx is
// done. A passed deadline resolves the request with ErrTimeout.
func (p *Pending) Wait(ctx context.Context) (protocol.Message, error) {
	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case <-p.done:
	case <-timer.C:
		p.resolve(nil, ErrTimeout)
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	<-p.done
	return p.msg, p.err
}

// resolve sets the outcome once; later calls are no-ops and return false.
func (p *Pending) resolve(msg protocol.Message, err error) bool {
	resolved := false
	p.once.Do(func() {
		p.msg, p.err = msg, err
		close(p.done)
		resolved = true
	})
	return resolved
}

func (p *Pending) expects(mi protocol.MICode) bool {
	for _, k := range p.kinds {
		if k == mi {
			return true
		}
	}
	return false
}

// Correlator holds the live requests of one device. It is safe for
// concurrent use.
type Correlator struct {
	timeout time.Duration
	now     func() time.Time

	mu    sync.Mutex
	slots map[protocol.MICode]*Pending
}

// NewCorrelator returns an empty correlator whose requests expire after
// timeout.
func NewCorrelator(timeout time.Duration) *Correlator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Correlator{
		timeout: timeout,
		now:     time.Now,
		slots:   make(map[protocol.MICode]*Pending),
	}
}

// Register opens a request for request, answered by any of kinds. At most
// one unresolved request may wait on each reply kind.
func (c *Correlator) Register(request protocol.MICode, kinds ...protocol.MICode) (*Pending, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, k := range kinds {
		if p, ok := c.slots[k]; ok && !p.Resolved() {
			return nil, ErrSlotBusy
		}
	}
	p := &Pending{
		token:    uuid.New(),
		request:  request,
		kinds:    kinds,
		deadline: c.now().Add(c.timeout),
		done:     make(chan struct{}),
	}
	for _, k := range kinds {
		c.slots[k] = p
	}
	return p, nil
}

// Deliver resolves the request waiting for msg. A reject resolves the
// request whose command it names, or the only open request when it names
// none of them. It returns false when nothing was waiting.
func (c *Correlator) Deliver(msg protocol.Message) bool {
	if r, ok := msg.(*protocol.RejectReply); ok {
		p := c.findByRequest(r.RejectedMI)
		if p == nil {
			p = c.sole()
		}
		if p == nil {
			return false
		}
		return c.finish(p, nil, &RejectError{MI: r.RejectedMI, ApplicationErrorCode: r.ApplicationErrorCode})
	}

	p := c.lookup(msg.Type())
	if p == nil {
		return false
	}
	return c.finish(p, msg, nil)
}

// DeliverError resolves the request waiting for mi with err, typically a
// decode failure.
func (c *Correlator) DeliverError(mi protocol.MICode, err error) bool {
	p := c.lookup(mi)
	if p == nil {
		return false
	}
	return c.finish(p, nil, err)
}

// Fail resolves p with err if it is still open.
func (c *Correlator) Fail(p *Pending, err error) bool {
	return c.finish(p, nil, err)
}

// FailAll resolves every open request with err and returns how many there
// were.
func (c *Correlator) FailAll(err error) int {
	c.mu.Lock()
	open := c.open()
	c.slots = make(map[protocol.MICode]*Pending)
	c.mu.Unlock()

	n := 0
	for _, p := range open {
		if p.resolve(nil, err) {
			n++
		}
	}
	return n
}

// Expire resolves every request whose deadline has passed with ErrTimeout.
func (c *Correlator) Expire() int {
	now := c.now()
	c.mu.Lock()
	var expired []*Pending
	for _, p := range c.open() {
		if !now.Before(p.deadline) {
			expired = append(expired, p)
		}
	}
	c.mu.Unlock()

	n := 0
	for _, p := range expired {
		if c.finish(p, nil, ErrTimeout) {
			n++
		}
	}
	return n
}

// Len returns the number of unresolved requests.
func (c *Correlator) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.open())
}

func (c *Correlator) finish(p *Pending, msg protocol.Message, err error) bool {
	ok := p.resolve(msg, err)
	c.mu.Lock()
	for _, k := range p.kinds {
		if c.slots[k] == p {
			delete(c.slots, k)
		}
	}
	c.mu.Unlock()
	return ok
}

func (c *Correlator) lookup(mi protocol.MICode) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	p, ok := c.slots[mi]
	if !ok || p.Resolved() {
		return nil
	}
	return p
}

func (c *Correlator) findByRequest(mi protocol.MICode) *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, p := range c.slots {
		if p.request == mi && !p.Resolved() {
			return p
		}
	}
	return nil
}

// sole returns the only unresolved request, or nil when there are none or
// several.
func (c *Correlator) sole() *Pending {
	c.mu.Lock()
	defer c.mu.Unlock()
	if open := c.open(); len(open) == 1 {
		return open[0]
	}
	return nil
}

// open returns each unresolved request once. c.mu must be held.
func (c *Correlator) open() []*Pending {
	seen := make(map[*Pending]bool)
	var out []*Pending
	for _, p := range c.slots {
		if !seen[p] && !p.Resolved() {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

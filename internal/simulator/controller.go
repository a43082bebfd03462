// Package simulator implements the controller side of the protocol: it
// answers a master's frames the way a sign controller would, holding signs,
// stored frames, messages, plans and a fault log in memory.
//
// It backs the end-to-end tests (through transporttest.Mock) and the
// `signctl simulate` command (over TCP).
package simulator

import (
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/protocol"
)

// Application error codes the simulator answers with.
const (
	appErrSyntax          byte = 0x02
	appErrChecksum        byte = 0x04
	appErrFrameTooLarge   byte = 0x06
	appErrNotSupported    byte = 0x08
	appErrUndefinedDevice byte = 0x0A
	appErrDimming         byte = 0x0E
	appErrUndefined       byte = 0x13
	appErrPlanNotEnabled  byte = 0x14
	appErrPlanEnabled     byte = 0x15
	appErrPassword        byte = 0x21
)

// Options configures a simulated controller.
type Options struct {
	Address          string
	Seed             byte
	SeedOffset       string
	PasswordOffset   string
	ManufacturerCode string
	Configuration    *protocol.ControllerConfiguration
	Plans            []*protocol.StoredPlan
	Now              func() time.Time
}

// DefaultConfiguration is two groups: three text signs and one graphics sign.
func DefaultConfiguration() *protocol.ControllerConfiguration {
	return &protocol.ControllerConfiguration{Groups: map[byte]*protocol.SignGroup{
		1: {GroupID: 1, Signature: "0102", Signs: map[byte]*protocol.Sign{
			1: {SignID: 1, Type: protocol.SignTypeText, Width: 18, Height: 3},
			2: {SignID: 2, Type: protocol.SignTypeText, Width: 18, Height: 3},
			3: {SignID: 3, Type: protocol.SignTypeText, Width: 18, Height: 3},
		}},
		2: {GroupID: 2, Signature: "A1B2C3", Signs: map[byte]*protocol.Sign{
			4: {SignID: 4, Type: protocol.SignTypeGraphics, Width: 96, Height: 32},
		}},
	}}
}

// Controller is a simulated sign controller. It is safe for concurrent use;
// requests are handled one at a time.
type Controller struct {
	mu sync.Mutex

	opts     Options
	link     *link
	clockOff time.Duration

	config   *protocol.ControllerConfiguration
	signs    map[byte]*protocol.SignStatus
	frames   map[byte]*protocol.TextFrame
	messages map[byte]*protocol.MessageDefinition
	plans    map[byte]*protocol.StoredPlan
	enabled  []protocol.PlanRef
	faults   []protocol.FaultLogEntry
	faultSeq byte
	powered  map[byte]bool
	dimming  map[byte]protocol.DimmingSetting

	rejects map[protocol.MICode]byte
	mute    map[protocol.MICode]bool
	handled map[protocol.MICode]int
}

// link is the per-connection state: reassembly, sequence numbers and
// whether the password has been accepted.
type link struct {
	reasm         protocol.Reassembler
	ns, nr        byte
	authenticated bool
}

// New returns a controller with every sign enabled and blank.
func New(opts Options) *Controller {
	if opts.Address == "" {
		opts.Address = "01"
	}
	if opts.Seed == 0 {
		opts.Seed = 0x10
	}
	if opts.SeedOffset == "" {
		opts.SeedOffset = "00"
	}
	if opts.PasswordOffset == "" {
		opts.PasswordOffset = "0000"
	}
	if opts.ManufacturerCode == "" {
		opts.ManufacturerCode = "SIGNCTLSIM"
	}
	if opts.Configuration == nil {
		opts.Configuration = DefaultConfiguration()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	c := &Controller{
		opts:     opts,
		link:     &link{},
		config:   opts.Configuration,
		signs:    make(map[byte]*protocol.SignStatus),
		frames:   make(map[byte]*protocol.TextFrame),
		messages: make(map[byte]*protocol.MessageDefinition),
		plans:    make(map[byte]*protocol.StoredPlan),
		powered:  make(map[byte]bool),
		dimming:  make(map[byte]protocol.DimmingSetting),
		rejects:  make(map[protocol.MICode]byte),
		mute:     make(map[protocol.MICode]bool),
		handled:  make(map[protocol.MICode]int),
	}
	for _, p := range opts.Plans {
		c.plans[p.PlanID] = p
	}
	for _, g := range c.config.Groups {
		c.powered[g.GroupID] = true
		for id := range g.Signs {
			c.signs[id] = &protocol.SignStatus{SignID: id, Enabled: true}
		}
	}
	return c
}

// Respond feeds bytes from the master and returns the chunks to send back.
// The ACK for a request and its reply travel in one chunk.
func (c *Controller) Respond(chunk []byte) [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.respond(c.link, chunk)
}

// Reject makes every later request with mi fail with appErr.
func (c *Controller) Reject(mi protocol.MICode, appErr byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rejects[mi] = appErr
}

// Mute makes the controller ignore requests with mi entirely, or answer
// them again when muted is false.
func (c *Controller) Mute(mi protocol.MICode, muted bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mute[mi] = muted
}

// Handled returns how many requests with mi have arrived.
func (c *Controller) Handled(mi protocol.MICode) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.handled[mi]
}

// RaiseFault records a fault against a sign, as the controller would on
// detecting one.
func (c *Controller) RaiseFault(signID, code byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if s, ok := c.signs[signID]; ok {
		s.ErrorCode = code
	}
	c.logFault(signID, code, false)
}

// ClearFault clears a sign's fault and logs the clearance.
func (c *Controller) ClearFault(signID byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	s, ok := c.signs[signID]
	if !ok || s.ErrorCode == 0 {
		return
	}
	code := s.ErrorCode
	s.ErrorCode = 0
	c.logFault(signID, code, true)
}

func (c *Controller) logFault(id, code byte, cleared bool) {
	c.faults = append(c.faults, protocol.FaultLogEntry{
		ID:          id,
		EntryNumber: c.faultSeq,
		Timestamp:   protocol.NewDateTime(c.now()),
		ErrorCode:   code,
		Cleared:     cleared,
	})
	c.faultSeq++
}

func (c *Controller) now() time.Time {
	return c.opts.Now().UTC().Add(c.clockOff)
}

func (c *Controller) respond(l *link, chunk []byte) [][]byte {
	var out [][]byte
	for _, raw := range l.reasm.Feed(chunk) {
		f, err := protocol.Decode(raw)
		if err != nil {
			logging.Debug("Simulator dropped frame", zap.Error(err))
			nak, _ := protocol.EncodeShort(protocol.NAK, l.nr, l.ns, c.opts.Address)
			out = append(out, nak)
			continue
		}
		if !f.IsData() {
			continue
		}
		c.handled[f.MI]++
		if c.mute[f.MI] {
			continue
		}

		l.nr = f.NS + 1
		resp, _ := protocol.EncodeShort(protocol.ACK, l.nr, l.ns, c.opts.Address)

		reply := c.handle(l, f)
		data, err := protocol.Encode(l.ns, l.nr, c.opts.Address, reply.MI, reply.Data)
		if err != nil {
			logging.Error("Simulator failed to encode reply", zap.Stringer("reply", reply), zap.Error(err))
			continue
		}
		l.ns++
		out = append(out, append(resp, data...))
	}
	return out
}

func reject(mi protocol.MICode, code byte) protocol.Request {
	return protocol.BuildRejectMessage(&protocol.RejectReply{RejectedMI: mi, ApplicationErrorCode: code})
}

func (c *Controller) handle(l *link, f *protocol.Frame) protocol.Request {
	switch f.MI {
	case protocol.MIStartSession:
		l.authenticated = false
		l.ns, l.nr = 0, 0
		return protocol.BuildPasswordSeed(c.opts.Seed)
	case protocol.MIPassword:
		want, err := protocol.DerivePassword(fmt.Sprintf("%02X", c.opts.Seed), c.opts.SeedOffset, c.opts.PasswordOffset)
		if err != nil || string(f.Data) != want {
			return reject(f.MI, appErrPassword)
		}
		l.authenticated = true
		l.ns, l.nr = 0, 0
		return protocol.BuildAckMessage()
	}

	if !l.authenticated {
		return reject(f.MI, appErrPassword)
	}
	if code, ok := c.rejects[f.MI]; ok {
		return reject(f.MI, code)
	}

	b, err := protocol.DataBytes(f)
	if err != nil {
		return reject(f.MI, appErrSyntax)
	}

	switch f.MI {
	case protocol.MIHeartbeatPoll:
		return protocol.BuildSignStatusReply(c.statusReply())
	case protocol.MIEndSession:
		l.authenticated = false
		return protocol.BuildAckMessage()
	case protocol.MISystemReset:
		return c.systemReset(b)
	case protocol.MIUpdateTime:
		return c.updateTime(f)
	case protocol.MISignSetTextFrame:
		return c.setTextFrame(f)
	case protocol.MISignSetMessage:
		return c.setMessage(f)
	case protocol.MISignDisplayFrame:
		return c.displayFrame(b)
	case protocol.MISignDisplayMessage:
		return c.displayMessage(b)
	case protocol.MISignDisplayAtomicFrames:
		return c.displayAtomic(b)
	case protocol.MIEnablePlan:
		return c.enablePlan(b)
	case protocol.MIDisablePlan:
		return c.disablePlan(b)
	case protocol.MIRequestEnabledPlans:
		return protocol.BuildReportEnabledPlans(&protocol.EnabledPlans{Plans: append([]protocol.PlanRef(nil), c.enabled...)})
	case protocol.MISignSetDimmingLevel:
		return c.setDimming(b)
	case protocol.MIPowerOnOff:
		return c.switchGroups(f.MI, b, func(gid byte, on bool) { c.powered[gid] = on })
	case protocol.MIDisableEnableDevice:
		return c.switchGroups(f.MI, b, func(gid byte, on bool) {
			for id := range c.config.Groups[gid].Signs {
				c.signs[id].Enabled = on
			}
		})
	case protocol.MISignRequestStoredFrameMessagePlan:
		return c.requestStored(b)
	case protocol.MIRetrieveFaultLog:
		return protocol.BuildFaultLogReply(&protocol.FaultLogReply{Entries: append([]protocol.FaultLogEntry(nil), c.faults...)})
	case protocol.MIResetFaultLog:
		c.faults = nil
		return protocol.BuildAckMessage()
	case protocol.MISignExtendedStatusRequest:
		return c.extendedStatus()
	case protocol.MISignConfigurationRequest:
		return protocol.BuildSignConfigurationReply(c.config)
	default:
		return reject(f.MI, appErrNotSupported)
	}
}

package simulator

import (
	"context"
	"net"
	"strings"
	"testing"
	"time"

	"github.com/muurk/signctl/internal/protocol"
)

type master struct {
	t  *testing.T
	c  *Controller
	ns byte
}

// send frames req, hands it to the controller and returns every frame of
// the reply chunk.
func (m *master) send(req protocol.Request) []*protocol.Frame {
	m.t.Helper()
	raw, err := protocol.Encode(m.ns, 0, "01", req.MI, req.Data)
	if err != nil {
		m.t.Fatalf("Encode() error = %v", err)
	}
	m.ns++
	var frames []*protocol.Frame
	for _, chunk := range m.c.Respond(raw) {
		parts, _ := protocol.Split(chunk)
		for _, p := range parts {
			f, err := protocol.Decode(p)
			if err != nil {
				m.t.Fatalf("Decode(%s) error = %v", protocol.Printable(p), err)
			}
			frames = append(frames, f)
		}
	}
	return frames
}

// call sends req and returns the decoded data reply, checking it came with
// an ACK.
func (m *master) call(req protocol.Request) protocol.Message {
	m.t.Helper()
	frames := m.send(req)
	if len(frames) != 2 || !frames[0].IsAck() {
		m.t.Fatalf("%s: got %d frames, want ACK + reply", req.MI, len(frames))
	}
	msg, err := protocol.ParseMessage(frames[1])
	if err != nil {
		m.t.Fatalf("ParseMessage() error = %v", err)
	}
	return msg
}

func (m *master) login() {
	m.t.Helper()
	seed := m.call(protocol.BuildStartSession()).(*protocol.PasswordSeed)
	pw, err := protocol.BuildPassword(seed.Seed, "00", "0000")
	if err != nil {
		m.t.Fatalf("BuildPassword() error = %v", err)
	}
	if _, ok := m.call(pw).(*protocol.AckReply); !ok {
		m.t.Fatalf("password not accepted")
	}
}

// mustReq returns a function that unwraps a request builder's result,
// failing the test on a build error.
func mustReq(t *testing.T) func(protocol.Request, error) protocol.Request {
	return func(r protocol.Request, err error) protocol.Request {
		t.Helper()
		if err != nil {
			t.Fatalf("build error = %v", err)
		}
		return r
	}
}

func wantReject(t *testing.T, msg protocol.Message, mi protocol.MICode, code byte) {
	t.Helper()
	r, ok := msg.(*protocol.RejectReply)
	if !ok {
		t.Fatalf("reply = %s, want reject", msg)
	}
	if r.RejectedMI != mi || r.ApplicationErrorCode != code {
		t.Errorf("reject = %s, want mi=%s code=0x%02X", r, mi, code)
	}
}

func TestHandshake(t *testing.T) {
	m := &master{t: t, c: New(Options{})}

	wantReject(t, m.call(protocol.BuildHeartbeatPoll()), protocol.MIHeartbeatPoll, appErrPassword)

	seed := m.call(protocol.BuildStartSession()).(*protocol.PasswordSeed)
	if seed.Seed != "10" {
		t.Errorf("seed = %q, want %q", seed.Seed, "10")
	}
	bad := protocol.Request{MI: protocol.MIPassword, Data: []byte("0000")}
	wantReject(t, m.call(bad), protocol.MIPassword, appErrPassword)

	m.login()
	if _, ok := m.call(protocol.BuildHeartbeatPoll()).(*protocol.SignStatusReply); !ok {
		t.Errorf("heartbeat after login did not return status")
	}
}

func TestTextFramesAndDisplay(t *testing.T) {
	m := &master{t: t, c: New(Options{})}
	m.login()

	tooLong := &protocol.TextFrame{FrameID: 1, Text: strings.Repeat("X", 60)}
	wantReject(t, m.call(mustReq(t)(protocol.BuildSignSetTextFrame(tooLong))), protocol.MISignSetTextFrame, appErrFrameTooLarge)

	wantReject(t, m.call(protocol.BuildSignDisplayFrame(1, 5)), protocol.MISignDisplayFrame, appErrUndefined)

	tf := &protocol.TextFrame{FrameID: 5, Revision: 3, Text: "QUEUE AHEAD"}
	if _, ok := m.call(mustReq(t)(protocol.BuildSignSetTextFrame(tf))).(*protocol.AckReply); !ok {
		t.Fatalf("text frame not accepted")
	}
	if _, ok := m.call(protocol.BuildSignDisplayFrame(1, 5)).(*protocol.AckReply); !ok {
		t.Fatalf("display frame not accepted")
	}
	wantReject(t, m.call(protocol.BuildSignDisplayFrame(9, 5)), protocol.MISignDisplayFrame, appErrUndefinedDevice)

	status := m.call(protocol.BuildHeartbeatPoll()).(*protocol.SignStatusReply)
	if len(status.Signs) != 4 {
		t.Fatalf("signs = %d, want 4", len(status.Signs))
	}
	for _, s := range status.Signs[:3] {
		if s.FrameID != 5 || s.FrameRevision != 3 {
			t.Errorf("sign %d frame = %d/%d, want 5/3", s.SignID, s.FrameID, s.FrameRevision)
		}
	}
	if status.Signs[3].FrameID != 0 {
		t.Errorf("sign 4 frame = %d, want 0", status.Signs[3].FrameID)
	}

	stored := m.call(mustReq(t)(protocol.BuildSignRequestStored(protocol.StoredKindFrame, 5))).(*protocol.TextFrame)
	if stored.Text != "QUEUE AHEAD" || !stored.CRCValid() {
		t.Errorf("stored frame = %s", stored)
	}
	wantReject(t, m.call(mustReq(t)(protocol.BuildSignRequestStored(protocol.StoredKindMessage, 1))),
		protocol.MISignRequestStoredFrameMessagePlan, appErrUndefined)
}

func TestMessagesAndPlans(t *testing.T) {
	m := &master{t: t, c: New(Options{Plans: []*protocol.StoredPlan{{PlanID: 2, Revision: 1, Entries: "0101"}}})}
	m.login()

	msgDef := &protocol.MessageDefinition{MessageID: 3, Entries: []protocol.MessageEntry{{FrameID: 1, Time: 20}}}
	wantReject(t, m.call(mustReq(t)(protocol.BuildSignSetMessage(msgDef))), protocol.MISignSetMessage, appErrUndefined)

	m.call(mustReq(t)(protocol.BuildSignSetTextFrame(&protocol.TextFrame{FrameID: 1, Text: "A"})))
	if _, ok := m.call(mustReq(t)(protocol.BuildSignSetMessage(msgDef))).(*protocol.AckReply); !ok {
		t.Fatalf("message not accepted")
	}
	if _, ok := m.call(protocol.BuildSignDisplayMessage(2, 3)).(*protocol.AckReply); !ok {
		t.Fatalf("display message not accepted")
	}

	if _, ok := m.call(protocol.BuildEnablePlan(1, 2)).(*protocol.AckReply); !ok {
		t.Fatalf("enable plan not accepted")
	}
	wantReject(t, m.call(protocol.BuildEnablePlan(1, 2)), protocol.MIEnablePlan, appErrPlanEnabled)
	plans := m.call(protocol.BuildRequestEnabledPlans()).(*protocol.EnabledPlans)
	if len(plans.Plans) != 1 || plans.Plans[0] != (protocol.PlanRef{GroupID: 1, PlanID: 2}) {
		t.Errorf("enabled plans = %v", plans.Plans)
	}
	if _, ok := m.call(protocol.BuildDisablePlan(1, 2)).(*protocol.AckReply); !ok {
		t.Fatalf("disable plan not accepted")
	}
	wantReject(t, m.call(protocol.BuildDisablePlan(1, 2)), protocol.MIDisablePlan, appErrPlanNotEnabled)

	p := m.call(mustReq(t)(protocol.BuildSignRequestStored(protocol.StoredKindPlan, 2))).(*protocol.StoredPlan)
	if p.Entries != "0101" {
		t.Errorf("stored plan entries = %q", p.Entries)
	}
}

func TestFaultLogAndInjection(t *testing.T) {
	c := New(Options{})
	m := &master{t: t, c: c}
	m.login()

	c.RaiseFault(2, 0x07)
	c.ClearFault(2)
	log := m.call(protocol.BuildRetrieveFaultLog()).(*protocol.FaultLogReply)
	if len(log.Entries) != 2 || log.Entries[0].Cleared || !log.Entries[1].Cleared || log.Entries[1].EntryNumber != 1 {
		t.Errorf("fault log = %+v", log.Entries)
	}
	m.call(protocol.BuildResetFaultLog())
	if log := m.call(protocol.BuildRetrieveFaultLog()).(*protocol.FaultLogReply); len(log.Entries) != 0 {
		t.Errorf("fault log after reset = %d entries", len(log.Entries))
	}

	c.Reject(protocol.MISignConfigurationRequest, 0x08)
	wantReject(t, m.call(protocol.BuildSignConfigurationRequest()), protocol.MISignConfigurationRequest, 0x08)

	c.Mute(protocol.MIHeartbeatPoll, true)
	if frames := m.send(protocol.BuildHeartbeatPoll()); len(frames) != 0 {
		t.Errorf("muted heartbeat answered with %d frames", len(frames))
	}
	if c.Handled(protocol.MIHeartbeatPoll) != 1 {
		t.Errorf("Handled() = %d, want 1", c.Handled(protocol.MIHeartbeatPoll))
	}
}

func TestGroupCommands(t *testing.T) {
	m := &master{t: t, c: New(Options{})}
	m.login()

	tests := []struct {
		name     string
		req      protocol.Request
		wantCode byte // 0 means accepted
	}{
		{name: "reset", req: mustReq(t)(protocol.BuildSystemReset(1, protocol.ResetLevel1))},
		{name: "time", req: protocol.BuildUpdateTime(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC))},
		{name: "dimming", req: mustReq(t)(protocol.BuildSignSetDimmingLevel([]protocol.DimmingSetting{{GroupID: 1, Manual: true, Level: 4}}))},
		{name: "dimming unknown group", req: mustReq(t)(protocol.BuildSignSetDimmingLevel([]protocol.DimmingSetting{{GroupID: 7}})), wantCode: appErrUndefinedDevice},
		{name: "power", req: mustReq(t)(protocol.BuildPowerOnOff([]protocol.GroupSwitch{{GroupID: 2, On: false}}))},
		{name: "disable device", req: mustReq(t)(protocol.BuildDisableEnableDevice([]protocol.GroupSwitch{{GroupID: 2, On: false}}))},
		{name: "atomic frames unknown frame", req: mustReq(t)(protocol.BuildSignDisplayAtomicFrames(1, []protocol.SignFrame{{SignID: 1, FrameID: 9}})), wantCode: appErrUndefined},
		{name: "atomic frames blank", req: mustReq(t)(protocol.BuildSignDisplayAtomicFrames(1, []protocol.SignFrame{{SignID: 1, FrameID: 0}}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := m.call(tt.req)
			if tt.wantCode == 0 {
				if _, ok := msg.(*protocol.AckReply); !ok {
					t.Errorf("reply = %s, want ack", msg)
				}
				return
			}
			wantReject(t, msg, tt.req.MI, tt.wantCode)
		})
	}

	status := m.call(protocol.BuildHeartbeatPoll()).(*protocol.SignStatusReply)
	if status.Timestamp.Year != 2026 || status.Timestamp.Month != 1 {
		t.Errorf("clock after UpdateTime = %s", status.Timestamp)
	}
	for _, s := range status.Signs {
		if s.SignID == 4 && s.Enabled {
			t.Errorf("sign 4 still enabled after DisableEnableDevice")
		}
	}

	ext := m.call(protocol.BuildSignExtendedStatusRequest()).(*protocol.ExtendedStatus)
	if ext.ManufacturerCode != "SIGNCTLSIM" {
		t.Errorf("manufacturer = %q", ext.ManufacturerCode)
	}
}

func TestServe(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- New(Options{}).Serve(ctx, ln) }()

	conn, err := net.Dial("tcp", ln.Addr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	raw, _ := protocol.Encode(0, 0, "01", protocol.MIStartSession, nil)
	if _, err := conn.Write(raw); err != nil {
		t.Fatalf("write: %v", err)
	}
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var r protocol.Reassembler
	var frames [][]byte
	buf := make([]byte, 256)
	for len(frames) < 2 {
		n, err := conn.Read(buf)
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		frames = append(frames, r.Feed(buf[:n])...)
	}
	f, err := protocol.Decode(frames[1])
	if err != nil || f.MI != protocol.MIPasswordSeed {
		t.Errorf("second frame = %v, %v; want PasswordSeed", f, err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() error = %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}

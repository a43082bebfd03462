package protocol

import (
	"fmt"
	"sort"
	"time"
)

// Request is an application message ready to be framed: an MI code and its
// hex-ASCII data.
type Request struct {
	MI   MICode
	Data []byte
}

func (r Request) String() string {
	return fmt.Sprintf("%s{data=%s}", r.MI, r.Data)
}

func simple(mi MICode) Request { return Request{MI: mi} }

// BuildStartSession constructs a StartSession request (MI 0x02, no data).
func BuildStartSession() Request { return simple(MIStartSession) }

// BuildHeartbeatPoll constructs a HeartbeatPoll request (MI 0x05, no data).
func BuildHeartbeatPoll() Request { return simple(MIHeartbeatPoll) }

// BuildEndSession constructs an EndSession request (MI 0x07, no data).
func BuildEndSession() Request { return simple(MIEndSession) }

// BuildSignConfigurationRequest constructs MI 0x21.
func BuildSignConfigurationRequest() Request { return simple(MISignConfigurationRequest) }

// BuildRequestEnabledPlans constructs MI 0x12.
func BuildRequestEnabledPlans() Request { return simple(MIRequestEnabledPlans) }

// BuildRetrieveFaultLog constructs MI 0x18.
func BuildRetrieveFaultLog() Request { return simple(MIRetrieveFaultLog) }

// BuildResetFaultLog constructs MI 0x1A.
func BuildResetFaultLog() Request { return simple(MIResetFaultLog) }

// BuildSignExtendedStatusRequest constructs MI 0x1B.
func BuildSignExtendedStatusRequest() Request { return simple(MISignExtendedStatusRequest) }

// BuildPassword derives the password for seed and constructs MI 0x04.
func BuildPassword(seed, seedOffset, passwordOffset string) (Request, error) {
	pw, err := DerivePassword(seed, seedOffset, passwordOffset)
	if err != nil {
		return Request{}, fmt.Errorf("failed to derive password: %w", err)
	}
	return Request{MI: MIPassword, Data: []byte(pw)}, nil
}

// ResetLevel is the depth of a SystemReset.
type ResetLevel byte

// Reset levels accepted by controllers
const (
	ResetLevel0       ResetLevel = 0x00
	ResetLevel1       ResetLevel = 0x01
	ResetLevel2       ResetLevel = 0x02
	ResetLevel3       ResetLevel = 0x03
	ResetLevelFactory ResetLevel = 0xFF
)

// Valid reports whether l is one of the defined reset levels.
func (l ResetLevel) Valid() bool {
	return l <= ResetLevel3 || l == ResetLevelFactory
}

// BuildSystemReset constructs MI 0x08. Undefined reset levels are refused
// here and never reach the controller.
func BuildSystemReset(groupID byte, level ResetLevel) (Request, error) {
	if !level.Valid() {
		return Request{}, &ValidationError{MI: MISystemReset, Message: fmt.Sprintf("reset level 0x%02X is not 0-3 or factory (0xFF)", byte(level))}
	}
	var w fieldWriter
	w.byte(groupID).byte(byte(level))
	return Request{MI: MISystemReset, Data: w.bytes()}, nil
}

// BuildUpdateTime constructs MI 0x09 carrying t.
func BuildUpdateTime(t time.Time) Request {
	var w fieldWriter
	w.dateTime(NewDateTime(t))
	return Request{MI: MIUpdateTime, Data: w.bytes()}
}

// MaxTextLength is the largest character count a text frame can carry.
const MaxTextLength = 255

// BuildSignSetTextFrame constructs MI 0x0A. The text is sent hex-encoded,
// followed by the CRC of that hex encoding, which is also stored in f.CRC.
func BuildSignSetTextFrame(f *TextFrame) (Request, error) {
	if len(f.Text) == 0 {
		return Request{}, &ValidationError{MI: MISignSetTextFrame, Message: "text is empty"}
	}
	if len(f.Text) > MaxTextLength {
		return Request{}, &ValidationError{MI: MISignSetTextFrame, Message: fmt.Sprintf("text is %d characters (max %d)", len(f.Text), MaxTextLength)}
	}
	for i := 0; i < len(f.Text); i++ {
		if f.Text[i] < 0x20 || f.Text[i] > 0x7E {
			return Request{}, &ValidationError{MI: MISignSetTextFrame, Message: fmt.Sprintf("non-ASCII character 0x%02X at %d", f.Text[i], i)}
		}
	}
	if f.FrameID == 0 {
		return Request{}, &ValidationError{MI: MISignSetTextFrame, Message: "frame id 0 is reserved"}
	}

	hexText := AsciiToHex(f.Text)
	f.CRC = CRC([]byte(hexText))

	var w fieldWriter
	w.byte(f.FrameID).byte(f.Revision).byte(f.Font).byte(f.Colour).byte(f.Conspicuity).
		byte(byte(len(f.Text))).raw(hexText).uint16(f.CRC)
	return Request{MI: MISignSetTextFrame, Data: w.bytes()}, nil
}

// BuildSignSetMessage constructs MI 0x0C. A message with fewer than six
// frames is terminated with a zero frame id.
func BuildSignSetMessage(m *MessageDefinition) (Request, error) {
	if m.MessageID == 0 {
		return Request{}, &ValidationError{MI: MISignSetMessage, Message: "message id 0 is reserved"}
	}
	if len(m.Entries) == 0 || len(m.Entries) > MaxMessageFrames {
		return Request{}, &ValidationError{MI: MISignSetMessage, Message: fmt.Sprintf("%d frames (want 1-%d)", len(m.Entries), MaxMessageFrames)}
	}

	var w fieldWriter
	w.byte(m.MessageID).byte(m.Revision).byte(m.TransitionTime)
	for i, e := range m.Entries {
		if e.FrameID == 0 {
			return Request{}, &ValidationError{MI: MISignSetMessage, Message: fmt.Sprintf("frame %d has id 0", i+1)}
		}
		w.byte(e.FrameID).byte(e.Time)
	}
	if len(m.Entries) < MaxMessageFrames {
		w.byte(0)
	}
	return Request{MI: MISignSetMessage, Data: w.bytes()}, nil
}

// BuildSignDisplayFrame constructs MI 0x0E. Frame id 0 blanks the group.
func BuildSignDisplayFrame(groupID, frameID byte) Request {
	var w fieldWriter
	w.byte(groupID).byte(frameID)
	return Request{MI: MISignDisplayFrame, Data: w.bytes()}
}

// BuildSignDisplayMessage constructs MI 0x0F.
func BuildSignDisplayMessage(groupID, messageID byte) Request {
	var w fieldWriter
	w.byte(groupID).byte(messageID)
	return Request{MI: MISignDisplayMessage, Data: w.bytes()}
}

// SignFrame pairs a sign with the frame it should show.
type SignFrame struct {
	SignID  byte `json:"signId"`
	FrameID byte `json:"frameId"`
}

// BuildSignDisplayAtomicFrames constructs MI 0x2B, switching every listed
// sign of a group at once.
func BuildSignDisplayAtomicFrames(groupID byte, frames []SignFrame) (Request, error) {
	if len(frames) == 0 || len(frames) > 255 {
		return Request{}, &ValidationError{MI: MISignDisplayAtomicFrames, Message: fmt.Sprintf("%d signs (want 1-255)", len(frames))}
	}
	var w fieldWriter
	w.byte(groupID).byte(byte(len(frames)))
	for _, f := range frames {
		w.byte(f.SignID).byte(f.FrameID)
	}
	return Request{MI: MISignDisplayAtomicFrames, Data: w.bytes()}, nil
}

// BuildEnablePlan constructs MI 0x10.
func BuildEnablePlan(groupID, planID byte) Request {
	var w fieldWriter
	w.byte(groupID).byte(planID)
	return Request{MI: MIEnablePlan, Data: w.bytes()}
}

// BuildDisablePlan constructs MI 0x11.
func BuildDisablePlan(groupID, planID byte) Request {
	var w fieldWriter
	w.byte(groupID).byte(planID)
	return Request{MI: MIDisablePlan, Data: w.bytes()}
}

// DimmingSetting is the dimming mode and level for one group.
type DimmingSetting struct {
	GroupID byte `json:"groupId"`
	Manual  bool `json:"manual"`
	Level   byte `json:"level"`
}

// MaxDimmingLevel is the brightest manual level.
const MaxDimmingLevel = 16

// BuildSignSetDimmingLevel constructs MI 0x14.
func BuildSignSetDimmingLevel(settings []DimmingSetting) (Request, error) {
	if len(settings) == 0 || len(settings) > 255 {
		return Request{}, &ValidationError{MI: MISignSetDimmingLevel, Message: fmt.Sprintf("%d groups (want 1-255)", len(settings))}
	}
	var w fieldWriter
	w.byte(byte(len(settings)))
	for _, s := range settings {
		if s.Manual && (s.Level < 1 || s.Level > MaxDimmingLevel) {
			return Request{}, &ValidationError{MI: MISignSetDimmingLevel, Message: fmt.Sprintf("group %d: manual level %d (want 1-%d)", s.GroupID, s.Level, MaxDimmingLevel)}
		}
		level := s.Level
		if !s.Manual {
			level = 0
		}
		w.byte(s.GroupID).bool(s.Manual).byte(level)
	}
	return Request{MI: MISignSetDimmingLevel, Data: w.bytes()}, nil
}

// GroupSwitch turns one group on/off (power) or enabled/disabled (device).
type GroupSwitch struct {
	GroupID byte `json:"groupId"`
	On      bool `json:"on"`
}

func buildGroupSwitches(mi MICode, switches []GroupSwitch) (Request, error) {
	if len(switches) == 0 || len(switches) > 255 {
		return Request{}, &ValidationError{MI: mi, Message: fmt.Sprintf("%d groups (want 1-255)", len(switches))}
	}
	var w fieldWriter
	w.byte(byte(len(switches)))
	for _, s := range switches {
		w.byte(s.GroupID).bool(s.On)
	}
	return Request{MI: mi, Data: w.bytes()}, nil
}

// BuildPowerOnOff constructs MI 0x15 (outbound).
func BuildPowerOnOff(switches []GroupSwitch) (Request, error) {
	return buildGroupSwitches(MIPowerOnOff, switches)
}

// BuildDisableEnableDevice constructs MI 0x16.
func BuildDisableEnableDevice(switches []GroupSwitch) (Request, error) {
	return buildGroupSwitches(MIDisableEnableDevice, switches)
}

// BuildSignRequestStored constructs MI 0x17 asking for a stored frame,
// message or plan.
func BuildSignRequestStored(kind StoredKind, id byte) (Request, error) {
	if kind > StoredKindPlan {
		return Request{}, &ValidationError{MI: MISignRequestStoredFrameMessagePlan, Message: fmt.Sprintf("unknown request type %d", byte(kind))}
	}
	var w fieldWriter
	w.byte(byte(kind)).byte(id)
	return Request{MI: MISignRequestStoredFrameMessagePlan, Data: w.bytes()}, nil
}

// Controller-side messages. A master never sends these; they are used by the
// simulator and by tests.

// BuildAckMessage constructs MI 0x01.
func BuildAckMessage() Request { return simple(MIAckMessage) }

// BuildPasswordSeed constructs MI 0x03.
func BuildPasswordSeed(seed byte) Request {
	var w fieldWriter
	w.byte(seed)
	return Request{MI: MIPasswordSeed, Data: w.bytes()}
}

// BuildRejectMessage constructs MI 0x15 (inbound).
func BuildRejectMessage(r *RejectReply) Request {
	var w fieldWriter
	w.byte(byte(r.RejectedMI)).byte(r.ApplicationErrorCode)
	return Request{MI: MIRejectMessage, Data: w.bytes()}
}

// BuildSignStatusReply constructs MI 0x06.
func BuildSignStatusReply(r *SignStatusReply) Request {
	var w fieldWriter
	w.bool(r.Online).byte(r.ApplicationErrorCode).dateTime(r.Timestamp).
		uint16(r.ControllerChecksum).byte(r.ControllerErrorCode).byte(byte(len(r.Signs)))
	for _, s := range r.Signs {
		w.byte(s.SignID).byte(s.ErrorCode).bool(s.Enabled).
			byte(s.FrameID).byte(s.FrameRevision).
			byte(s.MessageID).byte(s.MessageRevision).
			byte(s.PlanID).byte(s.PlanRevision)
	}
	return Request{MI: MISignStatusReply, Data: w.bytes()}
}

// BuildSignConfigurationReply constructs MI 0x22. Groups and signs are
// written in ascending id order.
func BuildSignConfigurationReply(c *ControllerConfiguration) Request {
	var w fieldWriter
	w.byte(byte(len(c.Groups)))
	for _, gid := range sortedKeys(c.Groups) {
		g := c.Groups[gid]
		w.byte(g.GroupID).byte(byte(len(g.Signs)))
		for _, sid := range sortedKeys(g.Signs) {
			s := g.Signs[sid]
			w.byte(s.SignID).byte(byte(s.Type)).uint16(s.Width).uint16(s.Height)
		}
		w.byte(byte(len(g.Signature) / 2)).raw(g.Signature)
	}
	return Request{MI: MISignConfigurationReply, Data: w.bytes()}
}

// BuildStoredPlan constructs the MI 0x0D reply to a stored-plan request.
func BuildStoredPlan(p *StoredPlan) Request {
	var w fieldWriter
	w.byte(p.PlanID).byte(p.Revision).raw(p.Entries)
	return Request{MI: MISignSetPlan, Data: w.bytes()}
}

// BuildReportEnabledPlans constructs MI 0x13.
func BuildReportEnabledPlans(p *EnabledPlans) Request {
	var w fieldWriter
	w.byte(byte(len(p.Plans)))
	for _, ref := range p.Plans {
		w.byte(ref.GroupID).byte(ref.PlanID)
	}
	return Request{MI: MIReportEnabledPlans, Data: w.bytes()}
}

// BuildFaultLogReply constructs MI 0x19.
func BuildFaultLogReply(r *FaultLogReply) Request {
	var w fieldWriter
	w.byte(byte(len(r.Entries)))
	for _, e := range r.Entries {
		w.byte(e.ID).byte(e.EntryNumber).dateTime(e.Timestamp).byte(e.ErrorCode).bool(e.Cleared)
	}
	return Request{MI: MIFaultLogReply, Data: w.bytes()}
}

// ManufacturerCodeLen is the fixed width of the extended status
// manufacturer field.
const ManufacturerCodeLen = 10

// BuildExtendedStatusReply constructs MI 0x1C. The manufacturer code is
// space padded or truncated to its fixed width.
func BuildExtendedStatusReply(s *ExtendedStatus) Request {
	code := fmt.Sprintf("%-*s", ManufacturerCodeLen, s.ManufacturerCode)[:ManufacturerCodeLen]
	var w fieldWriter
	w.bool(s.Online).byte(s.ApplicationErrorCode).raw(AsciiToHex(code)).
		dateTime(s.Timestamp).byte(s.ControllerErrorCode).raw(s.Raw)
	return Request{MI: MISignExtendedStatusReply, Data: w.bytes()}
}

func sortedKeys[V any](m map[byte]V) []byte {
	keys := make([]byte, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	return keys
}

package protocol

import (
	"fmt"
	"strings"
	"time"
)

// Message is a decoded application message.
type Message interface {
	Type() MICode
	String() string
}

// DateTime is the controller's calendar representation: one byte each for
// day, month, hour, minute and second, two bytes for the year.
type DateTime struct {
	Day    byte
	Month  byte
	Year   uint16
	Hour   byte
	Minute byte
	Second byte
}

// placeholderTime is reported for dates a controller sends that do not exist.
var placeholderTime = time.Date(1900, 1, 1, 0, 0, 0, 0, time.UTC)

// NewDateTime converts t (in its own location) to controller fields.
func NewDateTime(t time.Time) DateTime {
	return DateTime{
		Day:    byte(t.Day()),
		Month:  byte(t.Month()),
		Year:   uint16(t.Year()),
		Hour:   byte(t.Hour()),
		Minute: byte(t.Minute()),
		Second: byte(t.Second()),
	}
}

// Valid reports whether the fields form a real calendar time.
func (d DateTime) Valid() bool {
	if d.Month < 1 || d.Month > 12 || d.Day < 1 || d.Hour > 23 || d.Minute > 59 || d.Second > 59 || d.Year == 0 {
		return false
	}
	t := time.Date(int(d.Year), time.Month(d.Month), int(d.Day), 0, 0, 0, 0, time.UTC)
	return t.Day() == int(d.Day)
}

// Time returns the fields as a UTC time, or 1900-01-01 when they are not a
// valid date.
func (d DateTime) Time() time.Time {
	if !d.Valid() {
		return placeholderTime
	}
	return time.Date(int(d.Year), time.Month(d.Month), int(d.Day),
		int(d.Hour), int(d.Minute), int(d.Second), 0, time.UTC)
}

func (d DateTime) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d", d.Year, d.Month, d.Day, d.Hour, d.Minute, d.Second)
}

// AckReply (MI 0x01) confirms the previous command was accepted.
type AckReply struct{}

func (m *AckReply) Type() MICode   { return MIAckMessage }
func (m *AckReply) String() string { return "AckMessage{}" }

// RejectReply (MI 0x15 inbound) refuses the previous command.
type RejectReply struct {
	RejectedMI           MICode
	ApplicationErrorCode byte
}

func (m *RejectReply) Type() MICode { return MIRejectMessage }

func (m *RejectReply) String() string {
	return fmt.Sprintf("RejectMessage{rejected=%s (0x%02X), app_error=0x%02X}",
		m.RejectedMI, byte(m.RejectedMI), m.ApplicationErrorCode)
}

// PasswordSeed (MI 0x03) carries the challenge for the Password command.
type PasswordSeed struct {
	Seed string // two hex digits, as sent
}

func (m *PasswordSeed) Type() MICode   { return MIPasswordSeed }
func (m *PasswordSeed) String() string { return fmt.Sprintf("PasswordSeed{seed=%s}", m.Seed) }

// SignStatus is one sign's record inside a SignStatusReply.
type SignStatus struct {
	SignID          byte
	ErrorCode       byte
	Enabled         bool
	FrameID         byte
	FrameRevision   byte
	MessageID       byte
	MessageRevision byte
	PlanID          byte
	PlanRevision    byte
}

// SignStatusReply (MI 0x06) answers a heartbeat poll.
type SignStatusReply struct {
	Online               bool
	ApplicationErrorCode byte
	Timestamp            DateTime
	ControllerChecksum   uint16
	ControllerErrorCode  byte
	Signs                []SignStatus
}

func (m *SignStatusReply) Type() MICode { return MISignStatusReply }

func (m *SignStatusReply) String() string {
	return fmt.Sprintf("SignStatusReply{online=%t, app_error=0x%02X, time=%s, checksum=%04X, controller_error=0x%02X, signs=%d}",
		m.Online, m.ApplicationErrorCode, m.Timestamp, m.ControllerChecksum, m.ControllerErrorCode, len(m.Signs))
}

// SignType is the display technology reported in a configuration reply.
type SignType byte

// Sign types
const (
	SignTypeText     SignType = 0x00
	SignTypeGraphics SignType = 0x01
	SignTypeAdvanced SignType = 0x02
)

func (t SignType) String() string {
	switch t {
	case SignTypeText:
		return "text"
	case SignTypeGraphics:
		return "graphics"
	case SignTypeAdvanced:
		return "advanced"
	default:
		return fmt.Sprintf("type(0x%02X)", byte(t))
	}
}

// Sign is one sign as described by the controller's configuration.
type Sign struct {
	SignID byte
	Type   SignType
	Width  uint16
	Height uint16
}

// SignGroup is a group of signs that display together.
type SignGroup struct {
	GroupID   byte
	Signs     map[byte]*Sign
	Signature string // hex characters, variable length
}

// ControllerConfiguration (MI 0x22) describes every group and sign a
// controller drives.
type ControllerConfiguration struct {
	Groups map[byte]*SignGroup
}

func (m *ControllerConfiguration) Type() MICode { return MISignConfigurationReply }

func (m *ControllerConfiguration) String() string {
	return fmt.Sprintf("SignConfigurationReply{groups=%d, signs=%d}", len(m.Groups), m.SignCount())
}

// SignCount returns the number of signs across all groups.
func (m *ControllerConfiguration) SignCount() int {
	n := 0
	for _, g := range m.Groups {
		n += len(g.Signs)
	}
	return n
}

// FindSign returns the sign with id and the group holding it.
func (m *ControllerConfiguration) FindSign(id byte) (*Sign, *SignGroup, bool) {
	for _, g := range m.Groups {
		if s, ok := g.Signs[id]; ok {
			return s, g, true
		}
	}
	return nil, nil, false
}

// TextFrame (MI 0x0A) is a text frame definition, sent by SignSetTextFrame
// and returned by a stored-frame request.
type TextFrame struct {
	FrameID     byte
	Revision    byte
	Font        byte
	Colour      byte
	Conspicuity byte
	Text        string // plain ASCII
	CRC         uint16 // CRC over the hex-encoded text
}

func (m *TextFrame) Type() MICode { return MISignSetTextFrame }

func (m *TextFrame) String() string {
	return fmt.Sprintf("TextFrame{id=%d, rev=%d, font=%d, colour=%d, conspicuity=%d, text=%q, crc=%04X}",
		m.FrameID, m.Revision, m.Font, m.Colour, m.Conspicuity, m.Text, m.CRC)
}

// TextCRC is the checksum carried at the end of a text frame.
func TextCRC(text string) uint16 {
	return CRC([]byte(AsciiToHex(text)))
}

// CRCValid reports whether the carried CRC matches the text.
func (m *TextFrame) CRCValid() bool {
	return m.CRC == TextCRC(m.Text)
}

// MaxMessageFrames is the number of frame slots in a message definition.
const MaxMessageFrames = 6

// MessageEntry is one frame slot of a message.
type MessageEntry struct {
	FrameID byte
	Time    byte // display time in tenths of a second
}

// MessageDefinition (MI 0x0C) is a message built from up to six frames.
type MessageDefinition struct {
	MessageID      byte
	Revision       byte
	TransitionTime byte
	Entries        []MessageEntry
}

func (m *MessageDefinition) Type() MICode { return MISignSetMessage }

func (m *MessageDefinition) String() string {
	ids := make([]string, len(m.Entries))
	for i, e := range m.Entries {
		ids[i] = fmt.Sprintf("%d/%d", e.FrameID, e.Time)
	}
	return fmt.Sprintf("MessageDefinition{id=%d, rev=%d, transition=%d, frames=[%s]}",
		m.MessageID, m.Revision, m.TransitionTime, strings.Join(ids, " "))
}

// StoredPlan (MI 0x0D) is a plan returned by a stored-plan request. Plan
// entries are kept as received.
type StoredPlan struct {
	PlanID   byte
	Revision byte
	Entries  string // hex characters
}

func (m *StoredPlan) Type() MICode { return MISignSetPlan }

func (m *StoredPlan) String() string {
	return fmt.Sprintf("StoredPlan{id=%d, rev=%d, entries_len=%d}", m.PlanID, m.Revision, len(m.Entries)/2)
}

// StoredKind selects what SignRequestStoredFrameMessagePlan asks for.
type StoredKind byte

// Stored object kinds
const (
	StoredKindFrame   StoredKind = 0x00
	StoredKindMessage StoredKind = 0x01
	StoredKindPlan    StoredKind = 0x02
)

func (k StoredKind) String() string {
	switch k {
	case StoredKindFrame:
		return "frame"
	case StoredKindMessage:
		return "message"
	case StoredKindPlan:
		return "plan"
	default:
		return fmt.Sprintf("kind(0x%02X)", byte(k))
	}
}

// ReplyMI returns the message identifier a controller answers with.
func (k StoredKind) ReplyMI() MICode {
	switch k {
	case StoredKindMessage:
		return MISignSetMessage
	case StoredKindPlan:
		return MISignSetPlan
	default:
		return MISignSetTextFrame
	}
}

// StoredObject is the reply to a stored frame/message/plan request. Exactly
// one of Frame, Message and Plan is set, as indicated by Kind.
type StoredObject struct {
	Kind    StoredKind
	Frame   *TextFrame
	Message *MessageDefinition
	Plan    *StoredPlan
}

// NewStoredObject wraps a decoded stored reply. It returns false for any
// message that is not a stored frame, message or plan.
func NewStoredObject(msg Message) (*StoredObject, bool) {
	switch m := msg.(type) {
	case *TextFrame:
		return &StoredObject{Kind: StoredKindFrame, Frame: m}, true
	case *MessageDefinition:
		return &StoredObject{Kind: StoredKindMessage, Message: m}, true
	case *StoredPlan:
		return &StoredObject{Kind: StoredKindPlan, Plan: m}, true
	default:
		return nil, false
	}
}

// Value returns whichever case is set.
func (o *StoredObject) Value() Message {
	switch o.Kind {
	case StoredKindFrame:
		return o.Frame
	case StoredKindMessage:
		return o.Message
	default:
		return o.Plan
	}
}

// PlanRef names a plan enabled on a group.
type PlanRef struct {
	GroupID byte
	PlanID  byte
}

// EnabledPlans (MI 0x13) lists the plans currently enabled.
type EnabledPlans struct {
	Plans []PlanRef
}

func (m *EnabledPlans) Type() MICode   { return MIReportEnabledPlans }
func (m *EnabledPlans) String() string { return fmt.Sprintf("ReportEnabledPlans{plans=%v}", m.Plans) }

// FaultLogEntry is one fault onset or clearance.
type FaultLogEntry struct {
	ID          byte
	EntryNumber byte // cycles 0..255
	Timestamp   DateTime
	ErrorCode   byte
	Cleared     bool
}

// FaultLogReply (MI 0x19) answers RetrieveFaultLog.
type FaultLogReply struct {
	Entries []FaultLogEntry
}

func (m *FaultLogReply) Type() MICode   { return MIFaultLogReply }
func (m *FaultLogReply) String() string { return fmt.Sprintf("FaultLogReply{entries=%d}", len(m.Entries)) }

// ExtendedStatus (MI 0x1C) answers SignExtendedStatusRequest. Anything after
// the controller error code is manufacturer specific and kept raw.
type ExtendedStatus struct {
	Online               bool
	ApplicationErrorCode byte
	ManufacturerCode     string
	Timestamp            DateTime
	ControllerErrorCode  byte
	Raw                  string // hex characters
}

func (m *ExtendedStatus) Type() MICode { return MISignExtendedStatusReply }

func (m *ExtendedStatus) String() string {
	return fmt.Sprintf("ExtendedStatus{online=%t, manufacturer=%q, time=%s, controller_error=0x%02X, raw_len=%d}",
		m.Online, m.ManufacturerCode, m.Timestamp, m.ControllerErrorCode, len(m.Raw)/2)
}

package protocol

import (
	"encoding/hex"
	"fmt"
)

// ParseMessage decodes the application payload of a data frame. MI 0x15 is
// always decoded as a reject; a master never receives PowerOnOff.
func ParseMessage(f *Frame) (Message, error) {
	if !f.IsData() {
		return nil, fmt.Errorf("%w: %s frame carries no message", ErrUnexpectedMI, MarkerName(f.Start))
	}
	r := newFieldReader(f.MI, f.Data)

	var msg Message
	switch f.MI {
	case MIAckMessage:
		msg = &AckReply{}
	case MIRejectMessage:
		msg = decodeReject(r)
	case MIPasswordSeed:
		msg = decodePasswordSeed(r)
	case MISignStatusReply:
		msg = decodeSignStatusReply(r)
	case MISignConfigurationReply:
		msg = decodeConfiguration(r)
	case MISignSetTextFrame:
		msg = decodeTextFrame(r)
	case MISignSetMessage:
		msg = decodeMessageDefinition(r)
	case MISignSetPlan:
		msg = decodeStoredPlan(r)
	case MIReportEnabledPlans:
		msg = decodeEnabledPlans(r)
	case MIFaultLogReply:
		msg = decodeFaultLog(r)
	case MISignExtendedStatusReply:
		msg = decodeExtendedStatus(r)
	default:
		return nil, &DecodeError{MI: f.MI, Field: "mi", Err: ErrUnexpectedMI}
	}
	if r.err != nil {
		return nil, r.err
	}
	return msg, nil
}

// DataBytes returns the frame's hex-ASCII data as raw bytes.
func DataBytes(f *Frame) ([]byte, error) {
	if len(f.Data)%2 != 0 {
		return nil, &DecodeError{MI: f.MI, Field: "data", Err: fmt.Errorf("%w: odd length %d", ErrBadHex, len(f.Data))}
	}
	b := make([]byte, len(f.Data)/2)
	if _, err := hex.Decode(b, f.Data); err != nil {
		return nil, &DecodeError{MI: f.MI, Field: "data", Err: fmt.Errorf("%w: %v", ErrBadHex, err)}
	}
	return b, nil
}

func decodeReject(r *fieldReader) Message {
	return &RejectReply{
		RejectedMI:           MICode(r.byte("rejected_mi")),
		ApplicationErrorCode: r.byte("application_error"),
	}
}

func decodePasswordSeed(r *fieldReader) Message {
	return &PasswordSeed{Seed: r.hexString("seed", 1)}
}

func decodeSignStatusReply(r *fieldReader) Message {
	m := &SignStatusReply{
		Online:               r.bool("online"),
		ApplicationErrorCode: r.byte("application_error"),
		Timestamp:            r.dateTime("time"),
		ControllerChecksum:   r.uint16("checksum"),
		ControllerErrorCode:  r.byte("controller_error"),
	}
	count := int(r.byte("sign_count"))
	for i := 0; i < count && r.err == nil; i++ {
		m.Signs = append(m.Signs, SignStatus{
			SignID:          r.byte("sign.id"),
			ErrorCode:       r.byte("sign.error"),
			Enabled:         r.bool("sign.enabled"),
			FrameID:         r.byte("sign.frame_id"),
			FrameRevision:   r.byte("sign.frame_rev"),
			MessageID:       r.byte("sign.message_id"),
			MessageRevision: r.byte("sign.message_rev"),
			PlanID:          r.byte("sign.plan_id"),
			PlanRevision:    r.byte("sign.plan_rev"),
		})
	}
	return m
}

// decodeConfiguration walks groups and signs with a running offset; a
// truncated reply fails at the field where data ran out.
func decodeConfiguration(r *fieldReader) Message {
	m := &ControllerConfiguration{Groups: make(map[byte]*SignGroup)}
	groups := int(r.byte("group_count"))
	for g := 0; g < groups && r.err == nil; g++ {
		group := &SignGroup{
			GroupID: r.byte("group.id"),
			Signs:   make(map[byte]*Sign),
		}
		signs := int(r.byte("group.sign_count"))
		for s := 0; s < signs && r.err == nil; s++ {
			sign := &Sign{
				SignID: r.byte("sign.id"),
				Type:   SignType(r.byte("sign.type")),
				Width:  r.uint16("sign.width"),
				Height: r.uint16("sign.height"),
			}
			group.Signs[sign.SignID] = sign
		}
		sigLen := int(r.byte("group.signature_len"))
		group.Signature = r.hexString("group.signature", sigLen)
		m.Groups[group.GroupID] = group
	}
	return m
}

func decodeTextFrame(r *fieldReader) Message {
	m := &TextFrame{
		FrameID:     r.byte("frame_id"),
		Revision:    r.byte("revision"),
		Font:        r.byte("font"),
		Colour:      r.byte("colour"),
		Conspicuity: r.byte("conspicuity"),
	}
	n := int(r.byte("text_len"))
	m.Text = r.ascii("text", n)
	m.CRC = r.uint16("crc")
	return m
}

func decodeMessageDefinition(r *fieldReader) Message {
	m := &MessageDefinition{
		MessageID:      r.byte("message_id"),
		Revision:       r.byte("revision"),
		TransitionTime: r.byte("transition_time"),
	}
	for i := 0; i < MaxMessageFrames && r.err == nil && r.remaining() > 0; i++ {
		id := r.byte("entry.frame_id")
		if id == 0 {
			break
		}
		m.Entries = append(m.Entries, MessageEntry{FrameID: id, Time: r.byte("entry.time")})
	}
	return m
}

func decodeStoredPlan(r *fieldReader) Message {
	m := &StoredPlan{
		PlanID:   r.byte("plan_id"),
		Revision: r.byte("revision"),
	}
	m.Entries = r.hexString("entries", r.remaining()/2)
	return m
}

func decodeEnabledPlans(r *fieldReader) Message {
	m := &EnabledPlans{}
	count := int(r.byte("plan_count"))
	for i := 0; i < count && r.err == nil; i++ {
		m.Plans = append(m.Plans, PlanRef{GroupID: r.byte("plan.group_id"), PlanID: r.byte("plan.plan_id")})
	}
	return m
}

func decodeFaultLog(r *fieldReader) Message {
	m := &FaultLogReply{}
	count := int(r.byte("entry_count"))
	for i := 0; i < count && r.err == nil; i++ {
		m.Entries = append(m.Entries, FaultLogEntry{
			ID:          r.byte("entry.id"),
			EntryNumber: r.byte("entry.number"),
			Timestamp:   r.dateTime("entry.time"),
			ErrorCode:   r.byte("entry.error"),
			Cleared:     r.bool("entry.cleared"),
		})
	}
	return m
}

func decodeExtendedStatus(r *fieldReader) Message {
	m := &ExtendedStatus{
		Online:               r.bool("online"),
		ApplicationErrorCode: r.byte("application_error"),
		ManufacturerCode:     r.ascii("manufacturer", ManufacturerCodeLen),
		Timestamp:            r.dateTime("time"),
		ControllerErrorCode:  r.byte("controller_error"),
	}
	m.Raw = r.hexString("raw", r.remaining()/2)
	return m
}

package protocol

import (
	"errors"
	"strings"
	"testing"
)

// roundTrip frames req as a controller would send it and parses it back.
func roundTrip(t *testing.T, req Request) Message {
	t.Helper()
	raw, err := Encode(0, 0, "01", req.MI, req.Data)
	if err != nil {
		t.Fatalf("Encode() error = %v", err)
	}
	f, err := Decode(raw)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	msg, err := ParseMessage(f)
	if err != nil {
		t.Fatalf("ParseMessage() error = %v", err)
	}
	return msg
}

func parseData(mi MICode, data string) (Message, error) {
	return ParseMessage(&Frame{Start: SOH, MI: mi, Data: []byte(data)})
}

func TestParseConfiguration(t *testing.T) {
	cfg := &ControllerConfiguration{Groups: map[byte]*SignGroup{
		1: {GroupID: 1, Signature: "ABCD", Signs: map[byte]*Sign{
			1: {SignID: 1, Type: SignTypeText, Width: 18, Height: 3},
			2: {SignID: 2, Type: SignTypeGraphics, Width: 96, Height: 32},
			3: {SignID: 3, Type: SignTypeAdvanced, Width: 288, Height: 64},
		}},
		2: {GroupID: 2, Signature: "", Signs: map[byte]*Sign{
			9: {SignID: 9, Type: SignTypeText, Width: 12, Height: 1},
		}},
	}}

	req := BuildSignConfigurationReply(cfg)
	msg := roundTrip(t, req)
	got, ok := msg.(*ControllerConfiguration)
	if !ok {
		t.Fatalf("ParseMessage() type = %T, want *ControllerConfiguration", msg)
	}
	if len(got.Groups) != 2 {
		t.Fatalf("groups = %d, want 2", len(got.Groups))
	}
	if got.SignCount() != 4 {
		t.Errorf("SignCount() = %d, want 4", got.SignCount())
	}
	if got.Groups[1].Signature != "ABCD" {
		t.Errorf("group 1 signature = %q, want %q", got.Groups[1].Signature, "ABCD")
	}
	s, g, ok := got.FindSign(3)
	if !ok {
		t.Fatalf("FindSign(3) not found")
	}
	if g.GroupID != 1 || s.Type != SignTypeAdvanced || s.Width != 288 || s.Height != 64 {
		t.Errorf("sign 3 = %+v in group %d", *s, g.GroupID)
	}
	if s, g, ok := got.FindSign(9); !ok || g.GroupID != 2 || s.Width != 12 {
		t.Errorf("FindSign(9) = %v, %v, %t", s, g, ok)
	}

	t.Run("truncated", func(t *testing.T) {
		data := string(req.Data)
		_, err := parseData(MISignConfigurationReply, data[:len(data)-6])
		if !errors.Is(err, ErrShortPayload) {
			t.Fatalf("error = %v, want ErrShortPayload", err)
		}
		var de *DecodeError
		if !errors.As(err, &de) || de.Field == "" {
			t.Errorf("error = %v, want DecodeError naming a field", err)
		}
	})
}

func TestParseSignStatusReply(t *testing.T) {
	reply := &SignStatusReply{
		Online:               true,
		ApplicationErrorCode: 0x00,
		Timestamp:            DateTime{Day: 17, Month: 10, Year: 2026, Hour: 9, Minute: 30, Second: 5},
		ControllerChecksum:   0xBEEF,
		ControllerErrorCode:  0x03,
		Signs: []SignStatus{
			{SignID: 1, Enabled: true, FrameID: 4, FrameRevision: 2},
			{SignID: 2, ErrorCode: 0x0A, MessageID: 7, PlanID: 1, PlanRevision: 9},
		},
	}
	msg := roundTrip(t, BuildSignStatusReply(reply))
	got, ok := msg.(*SignStatusReply)
	if !ok {
		t.Fatalf("ParseMessage() type = %T", msg)
	}
	if !got.Online || got.ControllerChecksum != 0xBEEF || got.ControllerErrorCode != 0x03 {
		t.Errorf("header = %s", got)
	}
	if got.Timestamp != reply.Timestamp {
		t.Errorf("Timestamp = %s, want %s", got.Timestamp, reply.Timestamp)
	}
	if len(got.Signs) != 2 {
		t.Fatalf("signs = %d, want 2", len(got.Signs))
	}
	for i := range reply.Signs {
		if got.Signs[i] != reply.Signs[i] {
			t.Errorf("sign %d = %+v, want %+v", i, got.Signs[i], reply.Signs[i])
		}
	}
}

func TestParseMessage(t *testing.T) {
	tests := []struct {
		name    string
		mi      MICode
		data    string
		wantErr error
		verify  func(t *testing.T, msg Message)
	}{
		{
			name: "ack",
			mi:   MIAckMessage,
			verify: func(t *testing.T, msg Message) {
				if _, ok := msg.(*AckReply); !ok {
					t.Errorf("type = %T, want *AckReply", msg)
				}
			},
		},
		{
			name: "reject of text frame",
			mi:   MIRejectMessage,
			data: "0A06",
			verify: func(t *testing.T, msg Message) {
				r := msg.(*RejectReply)
				if r.RejectedMI != MISignSetTextFrame || r.ApplicationErrorCode != 0x06 {
					t.Errorf("reject = %s", r)
				}
			},
		},
		{
			name: "password seed",
			mi:   MIPasswordSeed,
			data: "3c",
			verify: func(t *testing.T, msg Message) {
				if s := msg.(*PasswordSeed).Seed; s != "3C" {
					t.Errorf("seed = %q, want %q", s, "3C")
				}
			},
		},
		{
			name: "enabled plans",
			mi:   MIReportEnabledPlans,
			data: "0201030205",
			verify: func(t *testing.T, msg Message) {
				p := msg.(*EnabledPlans).Plans
				if len(p) != 2 || p[0] != (PlanRef{1, 3}) || p[1] != (PlanRef{2, 5}) {
					t.Errorf("plans = %v", p)
				}
			},
		},
		{
			name: "fault log",
			mi:   MIFaultLogReply,
			data: "01" + "05" + "FF" + "1E0907EA0A0B0C" + "11" + "01",
			verify: func(t *testing.T, msg Message) {
				e := msg.(*FaultLogReply).Entries
				if len(e) != 1 {
					t.Fatalf("entries = %d, want 1", len(e))
				}
				if e[0].ID != 5 || e[0].EntryNumber != 0xFF || e[0].ErrorCode != 0x11 || !e[0].Cleared {
					t.Errorf("entry = %+v", e[0])
				}
				if e[0].Timestamp.Year != 2026 || e[0].Timestamp.Day != 30 {
					t.Errorf("timestamp = %s", e[0].Timestamp)
				}
			},
		},
		{
			name: "message stops at zero frame id",
			mi:   MISignSetMessage,
			data: "070102" + "0332" + "0414" + "00",
			verify: func(t *testing.T, msg Message) {
				m := msg.(*MessageDefinition)
				if m.MessageID != 7 || len(m.Entries) != 2 || m.Entries[1] != (MessageEntry{4, 0x14}) {
					t.Errorf("message = %s", m)
				}
			},
		},
		{
			name: "stored plan keeps entries raw",
			mi:   MISignSetPlan,
			data: "0302" + "0A0B0C",
			verify: func(t *testing.T, msg Message) {
				p := msg.(*StoredPlan)
				if p.PlanID != 3 || p.Revision != 2 || p.Entries != "0A0B0C" {
					t.Errorf("plan = %s entries=%q", p, p.Entries)
				}
			},
		},
		{name: "unknown mi", mi: MIHARStatusReply, wantErr: ErrUnexpectedMI},
		{name: "short reject", mi: MIRejectMessage, data: "0A", wantErr: ErrShortPayload},
		{name: "bad hex in status", mi: MISignStatusReply, data: "0G", wantErr: ErrBadHex},
		{name: "sign count beyond data", mi: MIReportEnabledPlans, data: "030102", wantErr: ErrShortPayload},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg, err := parseData(tt.mi, tt.data)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("ParseMessage() error = %v, want %v", err, tt.wantErr)
				}
				if !IsDecodeError(err) {
					t.Errorf("IsDecodeError(%v) = false", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseMessage() error = %v", err)
			}
			if msg.Type() != tt.mi {
				t.Errorf("Type() = %s, want %s", msg.Type(), tt.mi)
			}
			tt.verify(t, msg)
		})
	}
}

func TestParseMessageRejectsShortFrames(t *testing.T) {
	_, err := ParseMessage(&Frame{Start: ACK})
	if !errors.Is(err, ErrUnexpectedMI) {
		t.Errorf("ParseMessage(ACK) error = %v, want ErrUnexpectedMI", err)
	}
}

func TestParseTextFrame(t *testing.T) {
	req, err := BuildSignSetTextFrame(&TextFrame{FrameID: 5, Revision: 1, Font: 2, Colour: 3, Conspicuity: 4, Text: "ROAD CLOSED"})
	if err != nil {
		t.Fatalf("BuildSignSetTextFrame() error = %v", err)
	}
	msg := roundTrip(t, req)
	got := msg.(*TextFrame)
	if got.Text != "ROAD CLOSED" || got.FrameID != 5 || got.Conspicuity != 4 {
		t.Errorf("frame = %s", got)
	}
	if !got.CRCValid() {
		t.Errorf("CRCValid() = false, crc %04X want %04X", got.CRC, TextCRC(got.Text))
	}
	if obj, ok := NewStoredObject(got); !ok || obj.Kind != StoredKindFrame || obj.Value() != Message(got) {
		t.Errorf("NewStoredObject() = %+v, %t", obj, ok)
	}
}

func TestParseExtendedStatus(t *testing.T) {
	req := BuildExtendedStatusReply(&ExtendedStatus{
		Online:           true,
		ManufacturerCode: "ACME",
		Timestamp:        DateTime{Day: 1, Month: 2, Year: 2025, Hour: 3, Minute: 4, Second: 5},
		Raw:              "DEADBEEF",
	})
	got := roundTrip(t, req).(*ExtendedStatus)
	if strings.TrimRight(got.ManufacturerCode, " ") != "ACME" || len(got.ManufacturerCode) != ManufacturerCodeLen {
		t.Errorf("ManufacturerCode = %q", got.ManufacturerCode)
	}
	if got.Raw != "DEADBEEF" || !got.Online {
		t.Errorf("status = %s raw=%q", got, got.Raw)
	}
}

func TestDataBytes(t *testing.T) {
	b, err := DataBytes(&Frame{Data: []byte("0aFF")})
	if err != nil || len(b) != 2 || b[0] != 0x0A || b[1] != 0xFF {
		t.Errorf("DataBytes() = %v, %v", b, err)
	}
	if _, err := DataBytes(&Frame{Data: []byte("0")}); !errors.Is(err, ErrBadHex) {
		t.Errorf("DataBytes(odd) error = %v, want ErrBadHex", err)
	}
}

package protocol

import (
	"fmt"
	"strconv"
)

// Frame layout constants
const (
	AddressLen = 2 // controller address characters

	miOffset     = 8  // first MI character
	dataOffset   = 10 // first application data character
	crcLen       = 4
	trailerLen   = crcLen + 1 // CRC + ETX
	MinFrameSize = dataOffset + trailerLen

	// MinShortFrameSize is marker + NR + NS
	MinShortFrameSize = 5
)

// Frame is one decoded protocol frame. Data frames start with SOH and carry
// an MI code and hex-ASCII application data; ACK and NAK frames carry only
// sequence numbers.
type Frame struct {
	Start   byte   // SOH, ACK or NAK
	NS      byte   // sender's send sequence number
	NR      byte   // sender's receive sequence number
	Address string // two-character controller address ("" if absent on a short frame)
	MI      MICode // message identifier (data frames only)
	Data    []byte // hex-ASCII application data after MI (data frames only)
	CRC     uint16 // checksum carried by the frame (data frames only)
	Raw     []byte // complete frame as received or built
}

// IsData reports whether the frame is an SOH data frame.
func (f *Frame) IsData() bool { return f.Start == SOH }

// IsAck reports whether the frame is a positive link acknowledgement.
func (f *Frame) IsAck() bool { return f.Start == ACK }

// IsNak reports whether the frame is a negative link acknowledgement.
func (f *Frame) IsNak() bool { return f.Start == NAK }

func (f *Frame) String() string {
	switch f.Start {
	case ACK, NAK:
		return fmt.Sprintf("%s{nr=%02X, ns=%02X}", MarkerName(f.Start), f.NR, f.NS)
	default:
		return fmt.Sprintf("Frame{ns=%02X, nr=%02X, addr=%s, mi=%s, data_len=%d, crc=%04X}",
			f.NS, f.NR, f.Address, f.MI, len(f.Data), f.CRC)
	}
}

// Encode builds a complete data frame:
//
//	SOH NS NR ADDR STX MI DATA CRC ETX
//
// data must already be hex-ASCII encoded. The CRC covers SOH through the
// last data character.
func Encode(ns, nr byte, address string, mi MICode, data []byte) ([]byte, error) {
	if len(address) != AddressLen {
		return nil, fmt.Errorf("address %q must be %d characters", address, AddressLen)
	}
	for i := 0; i < len(data); i++ {
		if data[i] < 0x20 || data[i] > 0x7E {
			return nil, fmt.Errorf("data byte 0x%02X at offset %d is not printable ASCII", data[i], i)
		}
	}

	frame := make([]byte, 0, MinFrameSize+len(data))
	frame = append(frame, SOH)
	frame = appendHexByte(frame, ns)
	frame = appendHexByte(frame, nr)
	frame = append(frame, address...)
	frame = append(frame, STX)
	frame = appendHexByte(frame, byte(mi))
	frame = append(frame, data...)
	frame = append(frame, CRCHex(frame)...)
	frame = append(frame, ETX)
	return frame, nil
}

// EncodeShort builds an ACK or NAK short-form frame. An empty address is
// omitted.
func EncodeShort(marker byte, nr, ns byte, address string) ([]byte, error) {
	if marker != ACK && marker != NAK {
		return nil, fmt.Errorf("marker %s is not ACK or NAK", MarkerName(marker))
	}
	frame := make([]byte, 0, MinShortFrameSize+AddressLen+1)
	frame = append(frame, marker)
	frame = appendHexByte(frame, nr)
	frame = appendHexByte(frame, ns)
	frame = append(frame, address...)
	frame = append(frame, ETX)
	return frame, nil
}

// Decode parses one complete frame as produced by the Reassembler.
// Data frames must carry a matching CRC. Short frames are accepted without a
// checksum check.
func Decode(raw []byte) (*Frame, error) {
	if len(raw) == 0 {
		return nil, &FrameError{Reason: "empty frame", Raw: raw, Err: ErrFrameTooShort}
	}

	switch raw[0] {
	case ACK, NAK:
		return decodeShort(raw)
	case SOH:
		return decodeData(raw)
	default:
		return nil, &FrameError{
			Reason: fmt.Sprintf("start byte %s", MarkerName(raw[0])),
			Raw:    raw,
			Err:    ErrBadMarker,
		}
	}
}

func decodeShort(raw []byte) (*Frame, error) {
	if len(raw) < MinShortFrameSize {
		return nil, &FrameError{
			Reason: fmt.Sprintf("%d bytes (minimum %d)", len(raw), MinShortFrameSize),
			Raw:    raw,
			Err:    ErrFrameTooShort,
		}
	}
	nr, err := parseHexByte(raw[1:3])
	if err != nil {
		return nil, &FrameError{Reason: "NR field", Raw: raw, Err: err}
	}
	ns, err := parseHexByte(raw[3:5])
	if err != nil {
		return nil, &FrameError{Reason: "NS field", Raw: raw, Err: err}
	}

	f := &Frame{Start: raw[0], NR: nr, NS: ns, Raw: raw}
	if len(raw) >= MinShortFrameSize+AddressLen && raw[MinShortFrameSize] != ETX {
		f.Address = string(raw[MinShortFrameSize : MinShortFrameSize+AddressLen])
	}
	return f, nil
}

func decodeData(raw []byte) (*Frame, error) {
	if len(raw) < MinFrameSize {
		return nil, &FrameError{
			Reason: fmt.Sprintf("%d bytes (minimum %d)", len(raw), MinFrameSize),
			Raw:    raw,
			Err:    ErrFrameTooShort,
		}
	}
	if raw[len(raw)-1] != ETX {
		return nil, &FrameError{Reason: "missing ETX", Raw: raw, Err: ErrBadMarker}
	}

	crcStart := len(raw) - trailerLen
	got, err := strconv.ParseUint(string(raw[crcStart:crcStart+crcLen]), 16, 16)
	if err != nil {
		return nil, &FrameError{Reason: "CRC field", Raw: raw, Err: ErrBadHex}
	}
	want := CRC(raw[:crcStart])
	if uint16(got) != want {
		return nil, &FrameError{
			Reason: fmt.Sprintf("got 0x%04X, want 0x%04X", got, want),
			Raw:    raw,
			Err:    ErrCRCMismatch,
		}
	}

	if raw[7] != STX {
		return nil, &FrameError{Reason: "missing STX", Raw: raw, Err: ErrBadMarker}
	}
	ns, err := parseHexByte(raw[1:3])
	if err != nil {
		return nil, &FrameError{Reason: "NS field", Raw: raw, Err: err}
	}
	nr, err := parseHexByte(raw[3:5])
	if err != nil {
		return nil, &FrameError{Reason: "NR field", Raw: raw, Err: err}
	}
	mi, err := parseHexByte(raw[miOffset:dataOffset])
	if err != nil {
		return nil, &FrameError{Reason: "MI field", Raw: raw, Err: err}
	}

	return &Frame{
		Start:   SOH,
		NS:      ns,
		NR:      nr,
		Address: string(raw[5:7]),
		MI:      MICode(mi),
		Data:    raw[dataOffset:crcStart],
		CRC:     uint16(got),
		Raw:     raw,
	}, nil
}

// Package protocol implements the TSI-SP-003 sign controller wire protocol.
//
// This package handles framing, checksum validation, password derivation,
// stream reassembly and the application message catalog used between a
// master (this client) and a road-sign controller. Everything here is
// stateless apart from the Reassembler, which holds the unconsumed tail of
// one connection.
//
// # Frame Format
//
// Data frames are plain ASCII:
//
//	SOH NS(2) NR(2) ADDR(2) STX MI(2) DATA(...) CRC(4) ETX
//
// NS and NR are two hex digits each, ADDR is the two-character controller
// address, MI is the message identifier and DATA is the hex-ASCII encoded
// application payload (two characters per byte, big-endian for multi-byte
// fields). CRC is CRC-16/CCITT over every byte from SOH up to the last DATA
// character, rendered as four uppercase hex digits.
//
// Link-level acknowledgements use a short form without payload or checksum:
//
//	ACK|NAK NR(2) NS(2) [ADDR(2)] ETX
//
// Receivers do not validate a checksum on the short form.
//
// # Usage Example - Sending
//
//	req := protocol.BuildHeartbeatPoll()
//	raw, err := protocol.Encode(ns, nr, "01", req.MI, req.Data)
//	if err != nil {
//	    return err
//	}
//	err = t.Send(ctx, raw)
//
// # Usage Example - Receiving
//
//	var r protocol.Reassembler
//	for _, chunk := range r.Feed(data) {
//	    frame, err := protocol.Decode(chunk)
//	    if err != nil {
//	        continue // dropped, see FrameError
//	    }
//	    msg, err := protocol.ParseMessage(frame)
//	    ...
//	}
//
// # Error Handling
//
// The package distinguishes between:
//   - FrameError: bad markers, short frames, CRC mismatch (drop the frame)
//   - DecodeError: a valid frame whose payload does not match its MI layout
//   - ValidationError: a request rejected locally before it is encoded
package protocol

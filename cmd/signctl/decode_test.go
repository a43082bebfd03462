package main

import (
	"encoding/hex"
	"strings"
	"testing"

	"github.com/muurk/signctl/internal/protocol"
)

func mustEncode(t *testing.T, ns, nr byte, req protocol.Request) []byte {
	t.Helper()
	raw, err := protocol.Encode(ns, nr, "01", req.MI, req.Data)
	if err != nil {
		t.Fatalf("Encode(%s) error = %v", req.MI, err)
	}
	return raw
}

func TestAnalyzeCapture(t *testing.T) {
	poll := mustEncode(t, 0, 0, protocol.Request{MI: protocol.MIHeartbeatPoll})
	reject := mustEncode(t, 0, 1, protocol.BuildRejectMessage(&protocol.RejectReply{
		RejectedMI:           protocol.MISignSetTextFrame,
		ApplicationErrorCode: 0x06,
	}))
	ack, err := protocol.EncodeShort(protocol.ACK, 1, 0, "01")
	if err != nil {
		t.Fatalf("EncodeShort() error = %v", err)
	}
	corrupt := mustEncode(t, 1, 1, protocol.BuildAckMessage())
	corrupt[len(corrupt)-3] ^= 0x01

	stream := append(append(append(append([]byte{}, poll...), ack...), reject...), corrupt...)
	// Split mid-frame to exercise reassembly across chunks.
	chunks := [][]byte{stream[:5], stream[5 : len(poll)+3], stream[len(poll)+3:]}

	frames, stats := analyzeCapture(chunks)
	if stats.Frames != 4 {
		t.Fatalf("Frames = %d, want 4", stats.Frames)
	}
	if stats.Requests != 1 {
		t.Errorf("Requests = %d, want 1", stats.Requests)
	}
	if stats.Decoded != 2 {
		t.Errorf("Decoded = %d, want 2", stats.Decoded)
	}
	if stats.Failed != 1 {
		t.Errorf("Failed = %d, want 1", stats.Failed)
	}
	if stats.Leftover != 0 {
		t.Errorf("Leftover = %d, want 0", stats.Leftover)
	}

	if frames[0].MI != protocol.MIHeartbeatPoll.String() || frames[0].Message != nil {
		t.Errorf("frame 1 = %+v, want undecoded heartbeat poll", frames[0])
	}
	if frames[1].MI != protocol.MarkerName(protocol.ACK) {
		t.Errorf("frame 2 MI = %q, want ACK marker", frames[1].MI)
	}
	rej, ok := frames[2].Message.(*protocol.RejectReply)
	if !ok {
		t.Fatalf("frame 3 message = %T, want *RejectReply", frames[2].Message)
	}
	if rej.RejectedMI != protocol.MISignSetTextFrame || rej.ApplicationErrorCode != 0x06 {
		t.Errorf("reject = %+v", rej)
	}
	if frames[3].Error == "" {
		t.Error("corrupted frame should carry an error")
	}
}

func TestAnalyzeCaptureLeftover(t *testing.T) {
	poll := mustEncode(t, 0, 0, protocol.Request{MI: protocol.MIHeartbeatPoll})
	_, stats := analyzeCapture([][]byte{poll[:len(poll)-4]})
	if stats.Frames != 0 {
		t.Errorf("Frames = %d, want 0", stats.Frames)
	}
	if stats.Leftover == 0 {
		t.Error("a partial frame should be reported as leftover")
	}
}

func TestHexChunks(t *testing.T) {
	input := "# capture\n\n0x0102\n03 04 05\n"
	chunks, err := hexChunks(strings.NewReader(input))
	if err != nil {
		t.Fatalf("hexChunks() error = %v", err)
	}
	if len(chunks) != 2 {
		t.Fatalf("len(chunks) = %d, want 2", len(chunks))
	}
	if got := hex.EncodeToString(chunks[1]); got != "030405" {
		t.Errorf("chunk 2 = %s, want 030405", got)
	}

	if _, err := hexChunks(strings.NewReader("zz\n")); err == nil {
		t.Error("expected error for invalid hex")
	}
}

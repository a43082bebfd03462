package device

import (
	"testing"
	"time"

	"github.com/muurk/signctl/internal/protocol"
)

func fastVerify() VerifyOptions {
	return VerifyOptions{MaxRetries: 2, InitialDelay: time.Millisecond, MaxRetryDelay: 5 * time.Millisecond}
}

func TestVerifyTextFrame(t *testing.T) {
	r := start(t, nil)

	frame := &protocol.TextFrame{FrameID: 3, Revision: 2, Font: 1, Colour: 4, Text: "QUEUE AHEAD"}
	if err := r.sup.SetTextFrame(r.ctx, frame); err != nil {
		t.Fatalf("SetTextFrame() error = %v", err)
	}

	res, err := r.sup.VerifyTextFrame(r.ctx, frame, fastVerify())
	if err != nil {
		t.Fatalf("VerifyTextFrame() error = %v", err)
	}
	if !res.Success() || res.Attempts != 1 {
		t.Errorf("result = %+v, want success on first attempt", res)
	}

	other := *frame
	other.Text = "QUEUE BEHIND"
	res, err = r.sup.VerifyTextFrame(r.ctx, &other, fastVerify())
	if err != nil {
		t.Fatalf("VerifyTextFrame(mismatch) error = %v", err)
	}
	if res.Success() {
		t.Error("mismatched frame should not verify")
	}
	if res.Attempts != 3 {
		t.Errorf("Attempts = %d, want 3", res.Attempts)
	}
	if len(res.Mismatches) != 1 {
		t.Errorf("Mismatches = %v, want only text", res.Mismatches)
	}
}

func TestVerifyUnknownFrameIsRejected(t *testing.T) {
	r := start(t, nil)

	res, err := r.sup.VerifyTextFrame(r.ctx, &protocol.TextFrame{FrameID: 99, Text: "X"}, fastVerify())
	if !IsRejection(err) {
		t.Fatalf("VerifyTextFrame() error = %v, want rejection", err)
	}
	if res.Attempts != 1 {
		t.Errorf("Attempts = %d, want 1", res.Attempts)
	}
}

func TestVerifyMessage(t *testing.T) {
	r := start(t, nil)

	if err := r.sup.SetTextFrame(r.ctx, &protocol.TextFrame{FrameID: 1, Text: "FOG"}); err != nil {
		t.Fatalf("SetTextFrame() error = %v", err)
	}
	msg := &protocol.MessageDefinition{MessageID: 4, Revision: 1, TransitionTime: 2, Entries: []protocol.MessageEntry{{FrameID: 1, Time: 30}}}
	if err := r.sup.SetMessage(r.ctx, msg); err != nil {
		t.Fatalf("SetMessage() error = %v", err)
	}

	res, err := r.sup.VerifyMessage(r.ctx, msg, fastVerify())
	if err != nil {
		t.Fatalf("VerifyMessage() error = %v", err)
	}
	if !res.Success() {
		t.Errorf("Mismatches = %v", res.Mismatches)
	}
}

func TestDiffTextFrame(t *testing.T) {
	want := &protocol.TextFrame{FrameID: 1, Revision: 1, Text: "A"}
	got := &protocol.TextFrame{FrameID: 1, Revision: 2, Text: "A", CRC: 0}

	diffs := diffTextFrame(want, got)
	if len(diffs) != 2 {
		t.Errorf("diffTextFrame() = %v, want revision and crc", diffs)
	}
	if diffs := diffTextFrame(want, nil); len(diffs) != 1 {
		t.Errorf("diffTextFrame(nil) = %v", diffs)
	}
}

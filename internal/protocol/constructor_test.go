package protocol

import (
	"strings"
	"testing"
	"time"
)

func TestBuildRequests(t *testing.T) {
	mustBuild := func(r Request, err error) Request {
		if err != nil {
			t.Fatalf("build error = %v", err)
		}
		return r
	}

	tests := []struct {
		name     string
		req      Request
		wantMI   MICode
		wantData string
	}{
		{name: "start session", req: BuildStartSession(), wantMI: MIStartSession},
		{name: "heartbeat", req: BuildHeartbeatPoll(), wantMI: MIHeartbeatPoll},
		{name: "end session", req: BuildEndSession(), wantMI: MIEndSession},
		{name: "configuration request", req: BuildSignConfigurationRequest(), wantMI: MISignConfigurationRequest},
		{name: "enabled plans request", req: BuildRequestEnabledPlans(), wantMI: MIRequestEnabledPlans},
		{name: "retrieve fault log", req: BuildRetrieveFaultLog(), wantMI: MIRetrieveFaultLog},
		{name: "reset fault log", req: BuildResetFaultLog(), wantMI: MIResetFaultLog},
		{name: "extended status request", req: BuildSignExtendedStatusRequest(), wantMI: MISignExtendedStatusRequest},
		{name: "system reset", req: mustBuild(BuildSystemReset(1, ResetLevel2)), wantMI: MISystemReset, wantData: "0102"},
		{name: "factory reset", req: mustBuild(BuildSystemReset(0, ResetLevelFactory)), wantMI: MISystemReset, wantData: "00FF"},
		{
			name:     "update time",
			req:      BuildUpdateTime(time.Date(2026, 10, 17, 13, 5, 59, 0, time.UTC)),
			wantMI:   MIUpdateTime,
			wantData: "110A07EA0D053B",
		},
		{name: "display frame", req: BuildSignDisplayFrame(1, 0x0F), wantMI: MISignDisplayFrame, wantData: "010F"},
		{name: "display message", req: BuildSignDisplayMessage(2, 3), wantMI: MISignDisplayMessage, wantData: "0203"},
		{name: "enable plan", req: BuildEnablePlan(1, 4), wantMI: MIEnablePlan, wantData: "0104"},
		{name: "disable plan", req: BuildDisablePlan(1, 4), wantMI: MIDisablePlan, wantData: "0104"},
		{
			name:     "atomic frames",
			req:      mustBuild(BuildSignDisplayAtomicFrames(1, []SignFrame{{1, 5}, {2, 6}})),
			wantMI:   MISignDisplayAtomicFrames,
			wantData: "0102" + "0105" + "0206",
		},
		{
			name:     "dimming auto and manual",
			req:      mustBuild(BuildSignSetDimmingLevel([]DimmingSetting{{GroupID: 1, Level: 9}, {GroupID: 2, Manual: true, Level: 16}})),
			wantMI:   MISignSetDimmingLevel,
			wantData: "02" + "010000" + "020110",
		},
		{
			name:     "power on off",
			req:      mustBuild(BuildPowerOnOff([]GroupSwitch{{1, true}, {2, false}})),
			wantMI:   MIPowerOnOff,
			wantData: "02" + "0101" + "0200",
		},
		{
			name:     "disable device",
			req:      mustBuild(BuildDisableEnableDevice([]GroupSwitch{{3, false}})),
			wantMI:   MIDisableEnableDevice,
			wantData: "01" + "0300",
		},
		{
			name:     "stored message request",
			req:      mustBuild(BuildSignRequestStored(StoredKindMessage, 7)),
			wantMI:   MISignRequestStoredFrameMessagePlan,
			wantData: "0107",
		},
		{
			name:     "message with terminator",
			req:      mustBuild(BuildSignSetMessage(&MessageDefinition{MessageID: 2, Revision: 1, TransitionTime: 5, Entries: []MessageEntry{{1, 10}, {2, 20}}})),
			wantMI:   MISignSetMessage,
			wantData: "020105" + "010A" + "0214" + "00",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.req.MI != tt.wantMI {
				t.Errorf("MI = %s, want %s", tt.req.MI, tt.wantMI)
			}
			if string(tt.req.Data) != tt.wantData {
				t.Errorf("Data = %q, want %q", tt.req.Data, tt.wantData)
			}
		})
	}
}

func TestBuildSignSetTextFrame(t *testing.T) {
	f := &TextFrame{FrameID: 1, Revision: 2, Font: 1, Colour: 0, Conspicuity: 0, Text: "HI"}
	req, err := BuildSignSetTextFrame(f)
	if err != nil {
		t.Fatalf("BuildSignSetTextFrame() error = %v", err)
	}
	wantPrefix := "0102010000" + "02" + "4849"
	if !strings.HasPrefix(string(req.Data), wantPrefix) {
		t.Errorf("Data = %q, want prefix %q", req.Data, wantPrefix)
	}
	if f.CRC != CRC([]byte("4849")) {
		t.Errorf("CRC = %04X, want CRC of hex text %04X", f.CRC, CRC([]byte("4849")))
	}
	if got := string(req.Data[len(wantPrefix):]); got != CRCHex([]byte("4849")) {
		t.Errorf("trailing CRC = %q, want %q", got, CRCHex([]byte("4849")))
	}
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name  string
		build func() (Request, error)
	}{
		{name: "reset level 4", build: func() (Request, error) { return BuildSystemReset(1, ResetLevel(4)) }},
		{name: "empty text", build: func() (Request, error) { return BuildSignSetTextFrame(&TextFrame{FrameID: 1}) }},
		{name: "text too long", build: func() (Request, error) {
			return BuildSignSetTextFrame(&TextFrame{FrameID: 1, Text: strings.Repeat("A", MaxTextLength+1)})
		}},
		{name: "non-ascii text", build: func() (Request, error) { return BuildSignSetTextFrame(&TextFrame{FrameID: 1, Text: "café"}) }},
		{name: "frame id zero", build: func() (Request, error) { return BuildSignSetTextFrame(&TextFrame{Text: "A"}) }},
		{name: "message without frames", build: func() (Request, error) { return BuildSignSetMessage(&MessageDefinition{MessageID: 1}) }},
		{name: "message with seven frames", build: func() (Request, error) {
			return BuildSignSetMessage(&MessageDefinition{MessageID: 1, Entries: make([]MessageEntry, 7)})
		}},
		{name: "message frame id zero", build: func() (Request, error) {
			return BuildSignSetMessage(&MessageDefinition{MessageID: 1, Entries: []MessageEntry{{0, 1}}})
		}},
		{name: "stored kind unknown", build: func() (Request, error) { return BuildSignRequestStored(StoredKind(3), 1) }},
		{name: "no atomic frames", build: func() (Request, error) { return BuildSignDisplayAtomicFrames(1, nil) }},
		{name: "manual dimming level zero", build: func() (Request, error) {
			return BuildSignSetDimmingLevel([]DimmingSetting{{GroupID: 1, Manual: true}})
		}},
		{name: "no power groups", build: func() (Request, error) { return BuildPowerOnOff(nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.build()
			if !IsValidationError(err) {
				t.Errorf("error = %v, want ValidationError", err)
			}
		})
	}
}

func TestBuildSignConfigurationReplyOrdering(t *testing.T) {
	cfg := &ControllerConfiguration{Groups: map[byte]*SignGroup{
		2: {GroupID: 2, Signs: map[byte]*Sign{}},
		1: {GroupID: 1, Signs: map[byte]*Sign{}},
	}}
	first := string(BuildSignConfigurationReply(cfg).Data)
	for i := 0; i < 10; i++ {
		if got := string(BuildSignConfigurationReply(cfg).Data); got != first {
			t.Fatalf("encoding not deterministic: %q vs %q", got, first)
		}
	}
	if first != "02"+"010000"+"020000" {
		t.Errorf("Data = %q", first)
	}
}

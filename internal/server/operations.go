package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"time"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/protocol"
)

// operation runs one POST /api/{device}/{operation} request. A nil result
// is answered with {"result":"ok"}.
type operation func(ctx context.Context, sup *device.Supervisor, dec *json.Decoder) (any, error)

type badRequest struct{ err error }

func (b *badRequest) Error() string { return "invalid request body: " + b.err.Error() }

// decodeBody reads an optional JSON body into v.
func decodeBody(dec *json.Decoder, v any) error {
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return &badRequest{err}
	}
	return nil
}

type groupFrameBody struct {
	Group   byte `json:"group"`
	FrameID byte `json:"frameId"`
}

type groupMessageBody struct {
	Group     byte `json:"group"`
	MessageID byte `json:"messageId"`
}

type groupPlanBody struct {
	Group  byte `json:"group"`
	PlanID byte `json:"planId"`
}

type resetBody struct {
	Group byte                `json:"group"`
	Level protocol.ResetLevel `json:"level"`
}

type timeBody struct {
	Time *time.Time `json:"time"`
}

type textFrameBody struct {
	FrameID     byte   `json:"frameId"`
	Revision    byte   `json:"revision"`
	Font        byte   `json:"font"`
	Colour      byte   `json:"colour"`
	Conspicuity byte   `json:"conspicuity"`
	Text        string `json:"text"`
}

type messageBody struct {
	MessageID      byte `json:"messageId"`
	Revision       byte `json:"revision"`
	TransitionTime byte `json:"transitionTime"`
	Entries        []struct {
		FrameID byte `json:"frameId"`
		Time    byte `json:"time"`
	} `json:"entries"`
}

type atomicBody struct {
	Group  byte                 `json:"group"`
	Frames []protocol.SignFrame `json:"frames"`
}

type storedBody struct {
	Kind string `json:"kind"`
	ID   byte   `json:"id"`
}

type dimmingBody struct {
	Settings []protocol.DimmingSetting `json:"settings"`
}

type switchBody struct {
	Groups []protocol.GroupSwitch `json:"groups"`
}

func parseStoredKind(s string) (protocol.StoredKind, error) {
	switch s {
	case "frame":
		return protocol.StoredKindFrame, nil
	case "message":
		return protocol.StoredKindMessage, nil
	case "plan":
		return protocol.StoredKindPlan, nil
	}
	return 0, &badRequest{fmt.Errorf("kind %q is not frame, message or plan", s)}
}

// noBody wraps an operation that takes no parameters.
func noBody(run func(ctx context.Context, sup *device.Supervisor) (any, error)) operation {
	return func(ctx context.Context, sup *device.Supervisor, dec *json.Decoder) (any, error) {
		var ignored struct{}
		if err := decodeBody(dec, &ignored); err != nil {
			return nil, err
		}
		return run(ctx, sup)
	}
}

// withBody decodes the request into B before running.
func withBody[B any](run func(ctx context.Context, sup *device.Supervisor, body *B) (any, error)) operation {
	return func(ctx context.Context, sup *device.Supervisor, dec *json.Decoder) (any, error) {
		body := new(B)
		if err := decodeBody(dec, body); err != nil {
			return nil, err
		}
		return run(ctx, sup, body)
	}
}

var operations = map[string]operation{
	"start-session": noBody(func(ctx context.Context, sup *device.Supervisor) (any, error) {
		return nil, sup.StartSession(ctx)
	}),
	"end-session": noBody(func(ctx context.Context, sup *device.Supervisor) (any, error) {
		return nil, sup.EndSession(ctx)
	}),
	"poll": noBody(func(ctx context.Context, sup *device.Supervisor) (any, error) {
		return sup.Poll(ctx)
	}),
	"system-reset": withBody(func(ctx context.Context, sup *device.Supervisor, b *resetBody) (any, error) {
		return nil, sup.SystemReset(ctx, b.Group, b.Level)
	}),
	"update-time": withBody(func(ctx context.Context, sup *device.Supervisor, b *timeBody) (any, error) {
		t := time.Now()
		if b.Time != nil {
			t = *b.Time
		}
		return nil, sup.UpdateTime(ctx, t)
	}),
	"request-configuration": noBody(func(ctx context.Context, sup *device.Supervisor) (any, error) {
		return sup.RequestConfiguration(ctx)
	}),
	"set-text-frame": withBody(func(ctx context.Context, sup *device.Supervisor, b *textFrameBody) (any, error) {
		return nil, sup.SetTextFrame(ctx, &protocol.TextFrame{
			FrameID:     b.FrameID,
			Revision:    b.Revision,
			Font:        b.Font,
			Colour:      b.Colour,
			Conspicuity: b.Conspicuity,
			Text:        b.Text,
		})
	}),
	"set-message": withBody(func(ctx context.Context, sup *device.Supervisor, b *messageBody) (any, error) {
		m := &protocol.MessageDefinition{MessageID: b.MessageID, Revision: b.Revision, TransitionTime: b.TransitionTime}
		for _, e := range b.Entries {
			m.Entries = append(m.Entries, protocol.MessageEntry{FrameID: e.FrameID, Time: e.Time})
		}
		return nil, sup.SetMessage(ctx, m)
	}),
	"display-frame": withBody(func(ctx context.Context, sup *device.Supervisor, b *groupFrameBody) (any, error) {
		return nil, sup.DisplayFrame(ctx, b.Group, b.FrameID)
	}),
	"display-message": withBody(func(ctx context.Context, sup *device.Supervisor, b *groupMessageBody) (any, error) {
		return nil, sup.DisplayMessage(ctx, b.Group, b.MessageID)
	}),
	"display-atomic-frames": withBody(func(ctx context.Context, sup *device.Supervisor, b *atomicBody) (any, error) {
		return nil, sup.DisplayAtomicFrames(ctx, b.Group, b.Frames)
	}),
	"request-stored": withBody(func(ctx context.Context, sup *device.Supervisor, b *storedBody) (any, error) {
		kind, err := parseStoredKind(b.Kind)
		if err != nil {
			return nil, err
		}
		obj, err := sup.RequestStored(ctx, kind, b.ID)
		if err != nil {
			return nil, err
		}
		return struct {
			Kind  string           `json:"kind"`
			Value protocol.Message `json:"value"`
		}{obj.Kind.String(), obj.Value()}, nil
	}),
	"retrieve-fault-log": noBody(func(ctx context.Context, sup *device.Supervisor) (any, error) {
		return sup.RetrieveFaultLog(ctx)
	}),
	"reset-fault-log": noBody(func(ctx context.Context, sup *device.Supervisor) (any, error) {
		return nil, sup.ResetFaultLog(ctx)
	}),
	"enable-plan": withBody(func(ctx context.Context, sup *device.Supervisor, b *groupPlanBody) (any, error) {
		return nil, sup.EnablePlan(ctx, b.Group, b.PlanID)
	}),
	"disable-plan": withBody(func(ctx context.Context, sup *device.Supervisor, b *groupPlanBody) (any, error) {
		return nil, sup.DisablePlan(ctx, b.Group, b.PlanID)
	}),
	"request-enabled-plans": noBody(func(ctx context.Context, sup *device.Supervisor) (any, error) {
		return sup.RequestEnabledPlans(ctx)
	}),
	"set-dimming-level": withBody(func(ctx context.Context, sup *device.Supervisor, b *dimmingBody) (any, error) {
		return nil, sup.SetDimmingLevel(ctx, b.Settings)
	}),
	"power-on-off": withBody(func(ctx context.Context, sup *device.Supervisor, b *switchBody) (any, error) {
		return nil, sup.PowerOnOff(ctx, b.Groups)
	}),
	"enable-disable-device": withBody(func(ctx context.Context, sup *device.Supervisor, b *switchBody) (any, error) {
		return nil, sup.EnableDisableDevice(ctx, b.Groups)
	}),
	"extended-status": noBody(func(ctx context.Context, sup *device.Supervisor) (any, error) {
		return sup.ExtendedStatus(ctx)
	}),
}

// OperationNames lists the operation path segments in a stable order.
func OperationNames() []string {
	names := make([]string, 0, len(operations))
	for name := range operations {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

package device

import (
	"context"
	"fmt"
	"time"

	"github.com/muurk/signctl/internal/protocol"
)

// submit queues cmd for the supervisor goroutine and waits for its result.
func (s *Supervisor) submit(ctx context.Context, cmd *command) (protocol.Message, error) {
	cmd.done = make(chan result, 1)
	select {
	case s.cmds <- cmd:
	case <-s.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case r := <-cmd.done:
		return r.msg, r.err
	case <-s.stopped:
		return nil, ErrStopped
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// request sends req on the active session and returns the reply matching
// one of replies.
func (s *Supervisor) request(ctx context.Context, req protocol.Request, replies ...protocol.MICode) (protocol.Message, error) {
	if !s.Ready() {
		return nil, ErrNotActive
	}
	return s.submit(ctx, &command{kind: cmdRequest, req: req, replies: replies})
}

// ack sends a command answered by AckMessage.
func (s *Supervisor) ack(ctx context.Context, req protocol.Request, buildErr error) error {
	if buildErr != nil {
		return buildErr
	}
	_, err := s.request(ctx, req, protocol.MIAckMessage)
	return err
}

// StartSession restarts the session, or resumes supervision after
// EndSession. It returns once the request has been queued; use WaitReady to
// wait for the new session.
func (s *Supervisor) StartSession(ctx context.Context) error {
	_, err := s.submit(ctx, &command{kind: cmdRestart})
	return err
}

// EndSession closes the session and pauses supervision until StartSession.
func (s *Supervisor) EndSession(ctx context.Context) error {
	if !s.Ready() {
		s.paused.Store(true)
		return nil
	}
	_, err := s.submit(ctx, &command{kind: cmdEnd})
	return err
}

// Poll sends a heartbeat now and returns the merged status.
func (s *Supervisor) Poll(ctx context.Context) (*Status, error) {
	if _, err := s.request(ctx, protocol.BuildHeartbeatPoll(), protocol.MISignStatusReply); err != nil {
		return nil, err
	}
	return s.Status(), nil
}

// SystemReset resets a group at the given level.
func (s *Supervisor) SystemReset(ctx context.Context, groupID byte, level protocol.ResetLevel) error {
	req, err := protocol.BuildSystemReset(groupID, level)
	return s.ack(ctx, req, err)
}

// UpdateTime sets the controller clock.
func (s *Supervisor) UpdateTime(ctx context.Context, t time.Time) error {
	return s.ack(ctx, protocol.BuildUpdateTime(t), nil)
}

// RequestConfiguration fetches the sign configuration and stores it as the
// current snapshot.
func (s *Supervisor) RequestConfiguration(ctx context.Context) (*protocol.ControllerConfiguration, error) {
	msg, err := s.request(ctx, protocol.BuildSignConfigurationRequest(), protocol.MISignConfigurationReply)
	if err != nil {
		return nil, err
	}
	return msg.(*protocol.ControllerConfiguration), nil
}

// SetTextFrame stores a text frame on the controller. The frame CRC is
// computed from the text.
func (s *Supervisor) SetTextFrame(ctx context.Context, f *protocol.TextFrame) error {
	req, err := protocol.BuildSignSetTextFrame(f)
	return s.ack(ctx, req, err)
}

// SetMessage stores a message built from previously stored frames.
func (s *Supervisor) SetMessage(ctx context.Context, m *protocol.MessageDefinition) error {
	req, err := protocol.BuildSignSetMessage(m)
	return s.ack(ctx, req, err)
}

// DisplayFrame shows a stored frame on a group.
func (s *Supervisor) DisplayFrame(ctx context.Context, groupID, frameID byte) error {
	return s.ack(ctx, protocol.BuildSignDisplayFrame(groupID, frameID), nil)
}

// DisplayMessage shows a stored message on a group.
func (s *Supervisor) DisplayMessage(ctx context.Context, groupID, messageID byte) error {
	return s.ack(ctx, protocol.BuildSignDisplayMessage(groupID, messageID), nil)
}

// DisplayAtomicFrames shows one frame per sign of a group in a single step.
func (s *Supervisor) DisplayAtomicFrames(ctx context.Context, groupID byte, frames []protocol.SignFrame) error {
	req, err := protocol.BuildSignDisplayAtomicFrames(groupID, frames)
	return s.ack(ctx, req, err)
}

// RequestStored reads back a stored frame, message or plan.
func (s *Supervisor) RequestStored(ctx context.Context, kind protocol.StoredKind, id byte) (*protocol.StoredObject, error) {
	req, err := protocol.BuildSignRequestStored(kind, id)
	if err != nil {
		return nil, err
	}
	msg, err := s.request(ctx, req, kind.ReplyMI())
	if err != nil {
		return nil, err
	}
	obj, ok := protocol.NewStoredObject(msg)
	if !ok {
		return nil, fmt.Errorf("unexpected stored reply %s", msg.Type())
	}
	return obj, nil
}

// RetrieveFaultLog returns the controller's fault log.
func (s *Supervisor) RetrieveFaultLog(ctx context.Context) ([]protocol.FaultLogEntry, error) {
	msg, err := s.request(ctx, protocol.BuildRetrieveFaultLog(), protocol.MIFaultLogReply)
	if err != nil {
		return nil, err
	}
	return msg.(*protocol.FaultLogReply).Entries, nil
}

// ResetFaultLog clears the controller's fault log.
func (s *Supervisor) ResetFaultLog(ctx context.Context) error {
	return s.ack(ctx, protocol.BuildResetFaultLog(), nil)
}

// EnablePlan enables a stored plan on a group.
func (s *Supervisor) EnablePlan(ctx context.Context, groupID, planID byte) error {
	return s.ack(ctx, protocol.BuildEnablePlan(groupID, planID), nil)
}

// DisablePlan disables a plan on a group.
func (s *Supervisor) DisablePlan(ctx context.Context, groupID, planID byte) error {
	return s.ack(ctx, protocol.BuildDisablePlan(groupID, planID), nil)
}

// RequestEnabledPlans lists the enabled plans.
func (s *Supervisor) RequestEnabledPlans(ctx context.Context) ([]protocol.PlanRef, error) {
	msg, err := s.request(ctx, protocol.BuildRequestEnabledPlans(), protocol.MIReportEnabledPlans)
	if err != nil {
		return nil, err
	}
	return msg.(*protocol.EnabledPlans).Plans, nil
}

// SetDimmingLevel sets automatic or manual dimming per group.
func (s *Supervisor) SetDimmingLevel(ctx context.Context, settings []protocol.DimmingSetting) error {
	req, err := protocol.BuildSignSetDimmingLevel(settings)
	return s.ack(ctx, req, err)
}

// PowerOnOff switches groups on or off.
func (s *Supervisor) PowerOnOff(ctx context.Context, switches []protocol.GroupSwitch) error {
	req, err := protocol.BuildPowerOnOff(switches)
	return s.ack(ctx, req, err)
}

// EnableDisableDevice enables or disables the signs of groups.
func (s *Supervisor) EnableDisableDevice(ctx context.Context, switches []protocol.GroupSwitch) error {
	req, err := protocol.BuildDisableEnableDevice(switches)
	return s.ack(ctx, req, err)
}

// ExtendedStatus requests the manufacturer status block.
func (s *Supervisor) ExtendedStatus(ctx context.Context) (*protocol.ExtendedStatus, error) {
	msg, err := s.request(ctx, protocol.BuildSignExtendedStatusRequest(), protocol.MISignExtendedStatusReply)
	if err != nil {
		return nil, err
	}
	return msg.(*protocol.ExtendedStatus), nil
}

package session

import (
	"context"
	"errors"

	"github.com/looplab/fsm"
)

// State is a session lifecycle state.
type State string

// Session states
const (
	StateDisconnected         State = "disconnected"
	StateConnecting           State = "connecting"
	StateAwaitingPasswordSeed State = "awaiting_password_seed"
	StateAuthenticating       State = "authenticating"
	StateActive               State = "active"
)

// Events
const (
	eventConnect       = "connect"
	eventStartSession  = "start_session"
	eventSeedReceived  = "seed_received"
	eventAuthenticated = "authenticated"
	eventFail          = "fail"
)

// stateMachine wraps the fsm with one method per event.
type stateMachine struct {
	fsm *fsm.FSM
}

func newStateMachine(onChange func(from, to State)) *stateMachine {
	callbacks := fsm.Callbacks{}
	if onChange != nil {
		callbacks["enter_state"] = func(_ context.Context, e *fsm.Event) {
			onChange(State(e.Src), State(e.Dst))
		}
	}
	return &stateMachine{fsm: fsm.NewFSM(
		string(StateDisconnected),
		fsm.Events{
			{Name: eventConnect, Src: []string{string(StateDisconnected)}, Dst: string(StateConnecting)},
			{Name: eventStartSession, Src: []string{string(StateConnecting)}, Dst: string(StateAwaitingPasswordSeed)},
			{Name: eventSeedReceived, Src: []string{string(StateAwaitingPasswordSeed)}, Dst: string(StateAuthenticating)},
			{Name: eventAuthenticated, Src: []string{string(StateAuthenticating)}, Dst: string(StateActive)},
			{Name: eventFail, Src: []string{
				string(StateConnecting),
				string(StateAwaitingPasswordSeed),
				string(StateAuthenticating),
				string(StateActive),
			}, Dst: string(StateDisconnected)},
		},
		callbacks,
	)}
}

func (m *stateMachine) current() State { return State(m.fsm.Current()) }

func (m *stateMachine) fire(ctx context.Context, event string) error {
	err := m.fsm.Event(ctx, event)
	var noTransition fsm.NoTransitionError
	if errors.As(err, &noTransition) {
		return nil
	}
	return err
}

// fail moves to Disconnected from anywhere. Failing while already
// disconnected is a no-op.
func (m *stateMachine) fail(ctx context.Context) {
	if m.current() == StateDisconnected {
		return
	}
	_ = m.fire(ctx, eventFail)
}

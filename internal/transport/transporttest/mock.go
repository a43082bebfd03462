// Package transporttest provides an in-memory Transport for tests.
package transporttest

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"github.com/muurk/signctl/internal/transport"
)

// Responder produces the chunks a peer sends back after receiving data.
// Each returned slice is delivered by a separate Receive call.
type Responder func(sent []byte) [][]byte

// Mock is a Transport whose peer is a Responder. It is safe for concurrent
// use.
type Mock struct {
	mu        sync.Mutex
	respond   Responder
	connected bool
	connects  int
	sent      [][]byte
	inbox     chan []byte

	// ConnectErr, when set, is returned by every Connect.
	ConnectErr error
	// SendErr, when set, is returned by every Send.
	SendErr error
}

var _ transport.Transport = (*Mock)(nil)

// NewMock returns a disconnected mock. A nil responder never answers.
func NewMock(respond Responder) *Mock {
	return &Mock{respond: respond, inbox: make(chan []byte, 256)}
}

func (m *Mock) String() string { return "mock://" }

// SetResponder swaps the peer behaviour.
func (m *Mock) SetResponder(r Responder) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.respond = r
}

// Connect marks the mock connected and drops anything left unread from a
// previous connection.
func (m *Mock) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	m.connects++
	if m.ConnectErr != nil {
		return m.ConnectErr
	}
	if m.connected {
		return transport.ErrAlreadyConnected
	}
	m.connected = true
	m.drain()
	return nil
}

func (m *Mock) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	return nil
}

// Send records data and queues the responder's reply.
func (m *Mock) Send(ctx context.Context, data []byte) error {
	m.mu.Lock()
	if !m.connected {
		m.mu.Unlock()
		return transport.ErrNotConnected
	}
	if m.SendErr != nil {
		err := m.SendErr
		m.mu.Unlock()
		return err
	}
	m.sent = append(m.sent, bytes.Clone(data))
	respond := m.respond
	m.mu.Unlock()

	if respond == nil {
		return nil
	}
	for _, chunk := range respond(data) {
		m.Inject(chunk)
	}
	return nil
}

// Receive returns the next queued chunk.
func (m *Mock) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	if !m.IsConnected() {
		return nil, transport.ErrNotConnected
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case chunk := <-m.inbox:
		return chunk, nil
	case <-timer.C:
		return nil, transport.ErrReceiveTimeout
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (m *Mock) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connected
}

// Inject queues an unsolicited chunk from the peer.
func (m *Mock) Inject(chunk []byte) {
	select {
	case m.inbox <- bytes.Clone(chunk):
	default:
		panic(errors.New("transporttest: inbox full"))
	}
}

// Sent returns a copy of everything written so far.
func (m *Mock) Sent() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]byte, len(m.sent))
	copy(out, m.sent)
	return out
}

// Connects returns how many times Connect was called.
func (m *Mock) Connects() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.connects
}

func (m *Mock) drain() {
	for {
		select {
		case <-m.inbox:
		default:
			return
		}
	}
}

package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"time"
)

// DefaultDialTimeout bounds Connect when no timeout is configured.
const DefaultDialTimeout = 5 * time.Second

// TCP is a Transport over a single TCP connection.
type TCP struct {
	addr        string
	dialTimeout time.Duration

	mu   sync.RWMutex
	conn net.Conn
}

var _ Transport = (*TCP)(nil)

// NewTCP returns an unconnected TCP transport for addr (host:port).
func NewTCP(addr string, dialTimeout time.Duration) *TCP {
	if dialTimeout <= 0 {
		dialTimeout = DefaultDialTimeout
	}
	return &TCP{addr: addr, dialTimeout: dialTimeout}
}

func (t *TCP) String() string { return "tcp://" + t.addr }

// Connect dials the controller.
func (t *TCP) Connect(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn != nil {
		return ErrAlreadyConnected
	}

	dialer := net.Dialer{Timeout: t.dialTimeout, KeepAlive: 30 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", t.addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", t.addr, err)
	}
	t.conn = conn
	return nil
}

// Disconnect closes the connection. It is a no-op when not connected.
func (t *TCP) Disconnect() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return nil
	}
	err := t.conn.Close()
	t.conn = nil
	return err
}

// Send writes data in full.
func (t *TCP) Send(ctx context.Context, data []byte) error {
	conn := t.current()
	if conn == nil {
		return ErrNotConnected
	}

	deadline := time.Time{}
	if d, ok := ctx.Deadline(); ok {
		deadline = d
	}
	if err := conn.SetWriteDeadline(deadline); err != nil {
		return fmt.Errorf("set write deadline: %w", err)
	}
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("write %s: %w", t.addr, err)
	}
	return nil
}

// Receive reads the next available chunk.
func (t *TCP) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	conn := t.current()
	if conn == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	if d, ok := ctx.Deadline(); ok && d.Before(deadline) {
		deadline = d
	}
	if err := conn.SetReadDeadline(deadline); err != nil {
		return nil, fmt.Errorf("set read deadline: %w", err)
	}

	// Cancelling ctx forces the blocked read to return.
	stop := context.AfterFunc(ctx, func() {
		_ = conn.SetReadDeadline(time.Now())
	})
	defer stop()

	buf := make([]byte, ReadBufferSize)
	n, err := conn.Read(buf)
	if n > 0 {
		return buf[:n], nil
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var netErr net.Error
	switch {
	case errors.As(err, &netErr) && netErr.Timeout():
		return nil, ErrReceiveTimeout
	case errors.Is(err, io.EOF):
		return nil, ErrClosedByPeer
	case err != nil:
		return nil, fmt.Errorf("read %s: %w", t.addr, err)
	}
	return nil, ErrReceiveTimeout
}

// IsConnected reports whether a connection is open.
func (t *TCP) IsConnected() bool {
	return t.current() != nil
}

func (t *TCP) current() net.Conn {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.conn
}

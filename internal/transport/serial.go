package transport

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.bug.st/serial"
)

// DefaultBaudRate is used when no baud rate is configured.
const DefaultBaudRate = 9600

// serialPollInterval bounds each blocking read so cancellation is noticed.
const serialPollInterval = 100 * time.Millisecond

// Serial is a Transport over an RS-232/RS-485 line.
type Serial struct {
	portName string
	mode     *serial.Mode

	mu   sync.RWMutex
	port serial.Port
}

var _ Transport = (*Serial)(nil)

// NewSerial returns an unopened serial transport using 8N1 framing.
func NewSerial(portName string, baudRate int) *Serial {
	if baudRate <= 0 {
		baudRate = DefaultBaudRate
	}
	return &Serial{
		portName: portName,
		mode: &serial.Mode{
			BaudRate: baudRate,
			DataBits: 8,
			Parity:   serial.NoParity,
			StopBits: serial.OneStopBit,
		},
	}
}

func (s *Serial) String() string {
	return fmt.Sprintf("serial://%s@%d", s.portName, s.mode.BaudRate)
}

// Connect opens the port.
func (s *Serial) Connect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port != nil {
		return ErrAlreadyConnected
	}
	port, err := serial.Open(s.portName, s.mode)
	if err != nil {
		return fmt.Errorf("open %s: %w", s.portName, err)
	}
	if err := port.SetReadTimeout(serialPollInterval); err != nil {
		port.Close()
		return fmt.Errorf("set read timeout on %s: %w", s.portName, err)
	}
	// Leave stale controller output behind.
	_ = port.ResetInputBuffer()
	s.port = port
	return nil
}

// Disconnect closes the port. It is a no-op when not open.
func (s *Serial) Disconnect() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.port == nil {
		return nil
	}
	err := s.port.Close()
	s.port = nil
	return err
}

// Send writes data in full.
func (s *Serial) Send(ctx context.Context, data []byte) error {
	port := s.current()
	if port == nil {
		return ErrNotConnected
	}
	for written := 0; written < len(data); {
		if err := ctx.Err(); err != nil {
			return err
		}
		n, err := port.Write(data[written:])
		if err != nil {
			return fmt.Errorf("write %s: %w", s.portName, err)
		}
		written += n
	}
	return nil
}

// Receive polls the port until bytes arrive, the timeout passes or ctx is
// done. go.bug.st/serial reports a read timeout as zero bytes with no error.
func (s *Serial) Receive(ctx context.Context, timeout time.Duration) ([]byte, error) {
	port := s.current()
	if port == nil {
		return nil, ErrNotConnected
	}

	deadline := time.Now().Add(timeout)
	buf := make([]byte, ReadBufferSize)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		n, err := port.Read(buf)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", s.portName, err)
		}
		if n > 0 {
			return buf[:n], nil
		}
		if !time.Now().Before(deadline) {
			return nil, ErrReceiveTimeout
		}
	}
}

// IsConnected reports whether the port is open.
func (s *Serial) IsConnected() bool {
	return s.current() != nil
}

func (s *Serial) current() serial.Port {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.port
}

// Package transport moves raw bytes between the master and a sign
// controller. Framing is not its concern: Receive returns whatever arrived,
// which may hold a partial frame or several frames.
package transport

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind selects a transport implementation.
type Kind string

const (
	KindTCP    Kind = "tcp"
	KindSerial Kind = "serial"
)

// Sentinel errors
var (
	ErrNotConnected     = errors.New("transport not connected")
	ErrAlreadyConnected = errors.New("transport already connected")
	ErrReceiveTimeout   = errors.New("receive timed out")
	ErrClosedByPeer     = errors.New("connection closed by peer")
)

// Transport is a byte pipe to one controller.
type Transport interface {
	Connect(ctx context.Context) error
	Disconnect() error
	Send(ctx context.Context, data []byte) error
	// Receive blocks until some bytes arrive, the timeout passes
	// (ErrReceiveTimeout) or ctx is done (ctx.Err()).
	Receive(ctx context.Context, timeout time.Duration) ([]byte, error)
	IsConnected() bool
	// String names the remote end for logs.
	String() string
}

// Options describes how to reach a controller.
type Options struct {
	Kind        Kind
	Address     string // host:port for TCP
	SerialPort  string
	BaudRate    int
	DialTimeout time.Duration
}

// ReadBufferSize is the largest chunk a single Receive returns.
const ReadBufferSize = 4096

// New builds the transport selected by opts.Kind.
func New(opts Options) (Transport, error) {
	switch opts.Kind {
	case KindTCP, "":
		if opts.Address == "" {
			return nil, fmt.Errorf("tcp transport requires an address")
		}
		return NewTCP(opts.Address, opts.DialTimeout), nil
	case KindSerial:
		if opts.SerialPort == "" {
			return nil, fmt.Errorf("serial transport requires a port")
		}
		return NewSerial(opts.SerialPort, opts.BaudRate), nil
	default:
		return nil, fmt.Errorf("unknown transport kind %q", opts.Kind)
	}
}

package transport

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"
)

func listen(t *testing.T) net.Listener {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })
	return ln
}

func TestTCPSendReceive(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		buf := make([]byte, 64)
		n, _ := conn.Read(buf)
		_, _ = conn.Write(buf[:n])
		time.Sleep(100 * time.Millisecond)
	}()

	tr := NewTCP(ln.Addr().String(), time.Second)
	ctx := context.Background()
	if err := tr.Connect(ctx); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Disconnect()

	if err := tr.Connect(ctx); !errors.Is(err, ErrAlreadyConnected) {
		t.Errorf("second Connect() error = %v, want ErrAlreadyConnected", err)
	}
	if err := tr.Send(ctx, []byte("hello")); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	got, err := tr.Receive(ctx, time.Second)
	if err != nil {
		t.Fatalf("Receive() error = %v", err)
	}
	if string(got) != "hello" {
		t.Errorf("Receive() = %q, want %q", got, "hello")
	}
}

func TestTCPReceiveTimeoutAndCancel(t *testing.T) {
	ln := listen(t)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		time.Sleep(2 * time.Second)
		conn.Close()
	}()

	tr := NewTCP(ln.Addr().String(), time.Second)
	if err := tr.Connect(context.Background()); err != nil {
		t.Fatalf("Connect() error = %v", err)
	}
	defer tr.Disconnect()

	if _, err := tr.Receive(context.Background(), 50*time.Millisecond); !errors.Is(err, ErrReceiveTimeout) {
		t.Errorf("Receive() error = %v, want ErrReceiveTimeout", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()
	start := time.Now()
	if _, err := tr.Receive(ctx, time.Minute); !errors.Is(err, context.Canceled) {
		t.Errorf("Receive() error = %v, want context.Canceled", err)
	}
	if time.Since(start) > time.Second {
		t.Errorf("Receive() took %v to notice cancellation", time.Since(start))
	}
}

func TestTCPNotConnected(t *testing.T) {
	tr := NewTCP("127.0.0.1:1", 0)
	if err := tr.Send(context.Background(), []byte("x")); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Send() error = %v, want ErrNotConnected", err)
	}
	if _, err := tr.Receive(context.Background(), time.Millisecond); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Receive() error = %v, want ErrNotConnected", err)
	}
	if tr.IsConnected() {
		t.Errorf("IsConnected() = true before Connect")
	}
	if err := tr.Disconnect(); err != nil {
		t.Errorf("Disconnect() on idle transport error = %v", err)
	}
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		opts    Options
		want    string
		wantErr bool
	}{
		{name: "tcp", opts: Options{Kind: KindTCP, Address: "10.0.0.1:4001"}, want: "tcp://10.0.0.1:4001"},
		{name: "default kind", opts: Options{Address: "h:1"}, want: "tcp://h:1"},
		{name: "serial", opts: Options{Kind: KindSerial, SerialPort: "/dev/ttyUSB0"}, want: "serial:///dev/ttyUSB0@9600"},
		{name: "tcp without address", opts: Options{Kind: KindTCP}, wantErr: true},
		{name: "serial without port", opts: Options{Kind: KindSerial}, wantErr: true},
		{name: "unknown kind", opts: Options{Kind: "udp", Address: "h:1"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, err := New(tt.opts)
			if (err != nil) != tt.wantErr {
				t.Fatalf("New() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && tr.String() != tt.want {
				t.Errorf("String() = %q, want %q", tr.String(), tt.want)
			}
		})
	}
}

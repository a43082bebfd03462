package logging

import (
	"sync"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    zapcore.Level
		wantErr bool
	}{
		{in: "debug", want: zapcore.DebugLevel},
		{in: "INFO", want: zapcore.InfoLevel},
		{in: "warning", want: zapcore.WarnLevel},
		{in: "error", want: zapcore.ErrorLevel},
		{in: "verbose", want: zapcore.InfoLevel, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseLevel(tt.in)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestInitializeSilentByDefault(t *testing.T) {
	t.Setenv(LogLevelEnvVar, "")
	if err := Initialize(""); err != nil {
		t.Fatalf("Initialize() error = %v", err)
	}
	if GetLogger().Core().Enabled(zapcore.ErrorLevel) {
		t.Errorf("logger enabled with no level configured")
	}
}

func TestLogFrameRendersControlBytes(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogFrame("dev", "sent", []byte("\x01000001\x0205F02A\x03"))

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("got %d entries, want 1", len(entries))
	}
	got := entries[0].ContextMap()["frame"]
	if got != "<SOH>000001<STX>05F02A<ETX>" {
		t.Errorf("frame field = %v", got)
	}
}

func TestLogFrameSkippedAboveDebug(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	SetLogger(zap.New(core))
	defer SetLogger(nil)

	LogFrame("dev", "received", []byte{0x06})
	if logs.Len() != 0 {
		t.Errorf("LogFrame logged %d entries at info level", logs.Len())
	}
}

func TestSetLoggerNilRestoresSilentLogger(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	SetLogger(nil)

	l := GetLogger()
	if l == nil {
		t.Fatal("GetLogger() = nil after SetLogger(nil)")
	}
	Info("dropped")
	if logs.Len() != 0 {
		t.Errorf("observer saw %d entries after SetLogger(nil), want 0", logs.Len())
	}
}

func TestGetLoggerConcurrentWithSetLogger(t *testing.T) {
	defer SetLogger(nil)

	core, _ := observer.New(zapcore.InfoLevel)
	loggers := []*zap.Logger{zap.New(core), zap.NewNop(), nil}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if GetLogger() == nil {
					t.Error("GetLogger() = nil")
					return
				}
				Info("heartbeat", zap.Int("n", j))
			}
		}()
	}
	for j := 0; j < 200; j++ {
		SetLogger(loggers[j%len(loggers)])
	}
	wg.Wait()
}

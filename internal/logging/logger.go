package logging

import (
	"encoding/hex"
	"fmt"
	"os"
	"strings"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/muurk/signctl/internal/protocol"
)

// logger is read by every supervisor goroutine; it always holds a non-nil
// logger.
var logger = atomic.NewPointer(zap.NewNop())

// LogLevelEnvVar is the environment variable that controls logging verbosity.
// When unset or empty, logging is silent (no zap output).
// Valid values: "debug", "info", "warn", "error"
const LogLevelEnvVar = "SIGNCTL_LOG_LEVEL"

// maxDumpBytes caps hex and printable dumps.
const maxDumpBytes = 256

// Initialize creates a new logger with the specified level.
// If level is empty, it checks SIGNCTL_LOG_LEVEL environment variable.
// If neither is set, logging is disabled (silent mode).
func Initialize(level string) error {
	if level == "" {
		level = os.Getenv(LogLevelEnvVar)
	}

	if level == "" {
		logger.Store(zap.NewNop())
		return nil
	}

	zapLevel, err := ParseLevel(level)
	if err != nil {
		return err
	}

	config := zap.Config{
		Level:            zap.NewAtomicLevelAt(zapLevel),
		Development:      false,
		Encoding:         "console",
		EncoderConfig:    zap.NewDevelopmentEncoderConfig(),
		OutputPaths:      []string{"stderr"},
		ErrorOutputPaths: []string{"stderr"},
	}

	config.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	config.EncoderConfig.EncodeCaller = zapcore.ShortCallerEncoder

	built, err := config.Build()
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	logger.Store(built)

	return nil
}

// ParseLevel maps a level name to a zap level.
func ParseLevel(level string) (zapcore.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zapcore.DebugLevel, nil
	case "info":
		return zapcore.InfoLevel, nil
	case "warn", "warning":
		return zapcore.WarnLevel, nil
	case "error":
		return zapcore.ErrorLevel, nil
	default:
		return zapcore.InfoLevel, fmt.Errorf("unknown log level %q (want debug, info, warn or error)", level)
	}
}

// SetLogger replaces the global logger. Tests use it with zaptest or
// observer cores. nil restores the silent logger.
func SetLogger(l *zap.Logger) {
	if l == nil {
		l = zap.NewNop()
	}
	logger.Store(l)
}

// GetLogger returns the global logger instance. It is safe for concurrent
// use with Initialize and SetLogger.
func GetLogger() *zap.Logger {
	return logger.Load()
}

// Info logs an info message
func Info(msg string, fields ...zap.Field) {
	GetLogger().Info(msg, fields...)
}

// Debug logs a debug message
func Debug(msg string, fields ...zap.Field) {
	GetLogger().Debug(msg, fields...)
}

// Warn logs a warning message
func Warn(msg string, fields ...zap.Field) {
	GetLogger().Warn(msg, fields...)
}

// Error logs an error message
func Error(msg string, fields ...zap.Field) {
	GetLogger().Error(msg, fields...)
}

// LogConnection logs a connection event
func LogConnection(device, remote, event string) {
	Info("Connection event",
		zap.String("device", device),
		zap.String("remote", remote),
		zap.String("event", event),
	)
}

// LogStateChange logs a session state transition
func LogStateChange(device, from, to string) {
	Info("Session state changed",
		zap.String("device", device),
		zap.String("from", from),
		zap.String("to", to),
	)
}

// LogFrame logs link traffic at debug level. Control bytes are shown by name.
func LogFrame(device, direction string, data []byte) {
	if !GetLogger().Core().Enabled(zapcore.DebugLevel) {
		return
	}
	Debug("Frame",
		zap.String("device", device),
		zap.String("direction", direction),
		zap.Int("length", len(data)),
		zap.String("frame", protocol.Printable(truncate(data))),
		zap.String("hex", hexDump(data)),
	)
}

// LogHTTPRequest logs an API request
func LogHTTPRequest(remoteAddr, method, path string, status int) {
	Info("HTTP request",
		zap.String("remote_addr", remoteAddr),
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", status),
	)
}

// LogWebSocketMessage logs a websocket message
func LogWebSocketMessage(remoteAddr, direction string, messageType int, data []byte) {
	fields := []zap.Field{
		zap.String("remote_addr", remoteAddr),
		zap.String("direction", direction),
		zap.String("message_type", wsMessageTypeName(messageType)),
		zap.Int("length", len(data)),
	}
	if messageType == 1 {
		fields = append(fields, zap.String("content", string(truncate(data))))
	}
	Debug("WebSocket message", fields...)
}

func wsMessageTypeName(msgType int) string {
	switch msgType {
	case 1:
		return "text"
	case 2:
		return "binary"
	case 8:
		return "close"
	case 9:
		return "ping"
	case 10:
		return "pong"
	default:
		return fmt.Sprintf("unknown(%d)", msgType)
	}
}

func truncate(data []byte) []byte {
	if len(data) > maxDumpBytes {
		return data[:maxDumpBytes]
	}
	return data
}

func hexDump(data []byte) string {
	if len(data) == 0 {
		return ""
	}
	if len(data) > maxDumpBytes {
		return hex.EncodeToString(data[:maxDumpBytes]) + "..."
	}
	return hex.EncodeToString(data)
}

// Sync flushes any buffered log entries
func Sync() {
	if l := logger.Load(); l != nil {
		_ = l.Sync()
	}
}

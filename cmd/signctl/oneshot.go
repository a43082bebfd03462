package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/device"
	"github.com/muurk/signctl/internal/logging"
	"github.com/muurk/signctl/internal/transport"
	"github.com/muurk/signctl/internal/ui"
)

// Flags shared by the one-shot device commands.
var (
	jsonOutput     bool
	connectTimeout time.Duration
	assumeYes      bool
)

// errReported marks a failure the runner has already printed.
var errReported = errors.New("command failed")

type reportedError struct{ err error }

func (e *reportedError) Error() string   { return e.err.Error() }
func (e *reportedError) Unwrap() []error { return []error{e.err, errReported} }

func reported(err error) error { return &reportedError{err} }

func addDeviceFlags(cmd *cobra.Command) *cobra.Command {
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the reply as JSON only")
	cmd.Flags().DurationVar(&connectTimeout, "connect-timeout", 15*time.Second, "Time allowed to establish the session")
	return cmd
}

// deviceOp runs against a ready supervisor. A nil reply prints no reply box.
type deviceOp func(ctx context.Context, sup *device.Supervisor) (any, error)

// withDevice opens a session with the named device, runs op and ends the
// session.
func withDevice(cmd *cobra.Command, name, title string, params map[string]string, op deviceOp) error {
	reg, err := loadRegistry()
	if err != nil {
		return err
	}
	d := reg.GetDevice(name)
	if d == nil {
		return fmt.Errorf("unknown device %q (configured: %s)", name, strings.Join(reg.DeviceNames(), ", "))
	}
	t, err := transport.New(d.TransportOptions())
	if err != nil {
		return fmt.Errorf("device %s: %w", name, err)
	}

	if params == nil {
		params = make(map[string]string)
	}
	params["Device"] = d.Endpoint()
	params["Address"] = d.Address

	runner := ui.NewRunner(ui.RunnerConfig{
		Title:   title,
		Command: cmd.CommandPath() + " " + name,
		Params:  params,
		Output:  cmd.OutOrStdout(),
		Quiet:   jsonOutput,
	})
	opts := device.OptionsFromConfig(name, d, reg.Preferences)
	opts.OnEvent = runner.Observe
	sup := device.New(t, opts)

	ctx, cancel := context.WithCancel(cmd.Context())
	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		_ = sup.Run(ctx)
	}()
	defer func() {
		cancel()
		<-stopped
	}()

	reply, err := runner.Run(ctx, func(ctx context.Context) (any, error) {
		readyCtx, readyCancel := context.WithTimeout(ctx, connectTimeout)
		defer readyCancel()
		if err := sup.WaitReady(readyCtx); err != nil {
			return nil, fmt.Errorf("session not established: %w", err)
		}
		return op(ctx, sup)
	})
	if err != nil {
		return reported(err)
	}

	reg.UpdateDeviceLastSeen(name, time.Now())
	if err := reg.Save(); err != nil {
		logging.Warn("Could not record last_seen", zap.String("device", name), zap.Error(err))
	}

	if jsonOutput && reply != nil {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(reply)
	}
	return nil
}

// parsePairs parses "a:b" byte pairs such as frame:time.
func parsePairs(flag string, values []string) ([][2]byte, error) {
	pairs := make([][2]byte, 0, len(values))
	for _, v := range values {
		a, b, ok := strings.Cut(v, ":")
		if !ok {
			return nil, fmt.Errorf("--%s %q: want a:b", flag, v)
		}
		x, err := parseByte(a)
		if err != nil {
			return nil, fmt.Errorf("--%s %q: %w", flag, v, err)
		}
		y, err := parseByte(b)
		if err != nil {
			return nil, fmt.Errorf("--%s %q: %w", flag, v, err)
		}
		pairs = append(pairs, [2]byte{x, y})
	}
	return pairs, nil
}

// verified turns a read-back into a command result. A stored copy that
// never matched is a failure.
func verified(res *device.VerifyResult, err error) (any, error) {
	if err != nil {
		return nil, fmt.Errorf("read-back failed: %w", err)
	}
	if !res.Success() {
		return nil, fmt.Errorf("stored copy differs after %d reads: %s", res.Attempts, strings.Join(res.Mismatches, "; "))
	}
	return res.Stored.Value(), nil
}

// parseByte accepts decimal or 0x-prefixed hex.
func parseByte(s string) (byte, error) {
	n, err := strconv.ParseUint(strings.TrimSpace(s), 0, 8)
	if err != nil {
		return 0, fmt.Errorf("%q is not a byte value", s)
	}
	return byte(n), nil
}

// parseOnOff reads the on|off argument of power and enable-device.
func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "enable", "true":
		return true, nil
	case "off", "disable", "false":
		return false, nil
	}
	return false, fmt.Errorf("%q is not on or off", s)
}

func byteParam(b byte) string { return strconv.Itoa(int(b)) }

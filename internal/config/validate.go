package config

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/muurk/signctl/internal/transport"
)

// Validate checks one device entry.
func (d *Device) Validate() error {
	var errs []error

	switch transport.Kind(d.Transport) {
	case "", transport.KindTCP:
		if d.Host == "" {
			errs = append(errs, errors.New("host is required for tcp devices"))
		}
		if d.Port < 1 || d.Port > 65535 {
			errs = append(errs, fmt.Errorf("port %d out of range 1-65535", d.Port))
		}
	case transport.KindSerial:
		if d.SerialPort == "" {
			errs = append(errs, errors.New("serial_port is required for serial devices"))
		}
		if d.BaudRate < 0 {
			errs = append(errs, fmt.Errorf("baud_rate %d is negative", d.BaudRate))
		}
	default:
		errs = append(errs, fmt.Errorf("transport %q is not tcp or serial", d.Transport))
	}

	if len(d.Address) != 2 {
		errs = append(errs, fmt.Errorf("address %q must be two characters", d.Address))
	} else if _, err := strconv.ParseUint(d.Address, 16, 8); err != nil {
		errs = append(errs, fmt.Errorf("address %q is not hex", d.Address))
	}
	if err := validateHex("seed_offset", d.SeedOffset); err != nil {
		errs = append(errs, err)
	}
	if err := validateHex("password_offset", d.PasswordOffset); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func validateHex(field, s string) error {
	if s == "" {
		return fmt.Errorf("%s is required", field)
	}
	if len(s) > 4 {
		return fmt.Errorf("%s %q is longer than 4 hex digits", field, s)
	}
	if _, err := strconv.ParseUint(s, 16, 16); err != nil {
		return fmt.Errorf("%s %q is not hex", field, s)
	}
	return nil
}

// Validate checks the whole registry.
func (r *Registry) Validate() error {
	var errs []error
	if r.Version != 1 {
		errs = append(errs, fmt.Errorf("unsupported config version: %d (expected 1)", r.Version))
	}
	for _, name := range r.DeviceNames() {
		if err := r.Devices[name].Validate(); err != nil {
			errs = append(errs, fmt.Errorf("device %s: %w", name, err))
		}
	}
	if p := r.Preferences; p != nil {
		if p.FailureThreshold < 1 {
			errs = append(errs, fmt.Errorf("failure_threshold %d must be at least 1", p.FailureThreshold))
		}
		if p.RequestTimeout < 0 || p.HeartbeatInterval < 0 || p.ReadTimeout < 0 || p.HandshakeBackoff < 0 {
			errs = append(errs, errors.New("durations must not be negative"))
		}
	}
	return errors.Join(errs...)
}

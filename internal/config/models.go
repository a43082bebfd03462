package config

import (
	"fmt"
	"net"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/muurk/signctl/internal/transport"
)

// Registry is the root of the configuration file.
type Registry struct {
	Version     int                `yaml:"version"`
	Devices     map[string]*Device `yaml:"devices,omitempty"` // keyed by device name
	Preferences *Preferences       `yaml:"preferences,omitempty"`
	Server      *ServerPrefs       `yaml:"server,omitempty"`

	path string
}

// Device is one sign controller.
type Device struct {
	Transport      string    `yaml:"transport,omitempty"` // "tcp" (default) or "serial"
	Host           string    `yaml:"host,omitempty"`
	Port           int       `yaml:"port,omitempty"`
	SerialPort     string    `yaml:"serial_port,omitempty"`
	BaudRate       int       `yaml:"baud_rate,omitempty"`
	Address        string    `yaml:"address"`         // two hex characters
	SeedOffset     string    `yaml:"seed_offset"`     // hex, up to 4 digits
	PasswordOffset string    `yaml:"password_offset"` // hex, up to 4 digits
	Disabled       bool      `yaml:"disabled,omitempty"`
	LastSeen       time.Time `yaml:"last_seen,omitempty"`
}

// Preferences holds timing shared by every supervised device.
type Preferences struct {
	RequestTimeout    Duration `yaml:"request_timeout"`
	HandshakeBackoff  Duration `yaml:"handshake_backoff"`
	HeartbeatInterval Duration `yaml:"heartbeat_interval"`
	ReadTimeout       Duration `yaml:"read_timeout"`
	FailureThreshold  int      `yaml:"failure_threshold"`
	DiscoverTimeout   Duration `yaml:"discover_timeout"`
}

// ServerPrefs configures `signctl serve`.
type ServerPrefs struct {
	Listen    string `yaml:"listen"`
	Advertise bool   `yaml:"advertise"`
	Instance  string `yaml:"instance,omitempty"`
	// TLSCert and TLSKey are PEM files; when both are set the API is
	// served over HTTPS.
	TLSCert string `yaml:"tls_cert,omitempty"`
	TLSKey  string `yaml:"tls_key,omitempty"`
}

// Defaults
const (
	DefaultRequestTimeout    = 3 * time.Second
	DefaultHandshakeBackoff  = 3 * time.Second
	DefaultHeartbeatInterval = 5 * time.Second
	DefaultReadTimeout       = 250 * time.Millisecond
	DefaultFailureThreshold  = 3
	DefaultDiscoverTimeout   = 5 * time.Second
	DefaultListen            = ":8080"
)

// DefaultPreferences returns the built-in timings.
func DefaultPreferences() *Preferences {
	return &Preferences{
		RequestTimeout:    Duration(DefaultRequestTimeout),
		HandshakeBackoff:  Duration(DefaultHandshakeBackoff),
		HeartbeatInterval: Duration(DefaultHeartbeatInterval),
		ReadTimeout:       Duration(DefaultReadTimeout),
		FailureThreshold:  DefaultFailureThreshold,
		DiscoverTimeout:   Duration(DefaultDiscoverTimeout),
	}
}

// fillDefaults replaces zero values with defaults.
func (p *Preferences) fillDefaults() {
	d := DefaultPreferences()
	if p.RequestTimeout == 0 {
		p.RequestTimeout = d.RequestTimeout
	}
	if p.HandshakeBackoff == 0 {
		p.HandshakeBackoff = d.HandshakeBackoff
	}
	if p.HeartbeatInterval == 0 {
		p.HeartbeatInterval = d.HeartbeatInterval
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = d.ReadTimeout
	}
	if p.FailureThreshold == 0 {
		p.FailureThreshold = d.FailureThreshold
	}
	if p.DiscoverTimeout == 0 {
		p.DiscoverTimeout = d.DiscoverTimeout
	}
}

// NewRegistry returns an empty version 1 registry with default preferences.
func NewRegistry() *Registry {
	return &Registry{
		Version:     1,
		Devices:     make(map[string]*Device),
		Preferences: DefaultPreferences(),
		Server:      &ServerPrefs{Listen: DefaultListen},
	}
}

// GetDevice returns the named device or nil.
func (r *Registry) GetDevice(name string) *Device {
	return r.Devices[name]
}

// AddDevice validates d and stores it under name, replacing any previous
// entry.
func (r *Registry) AddDevice(name string, d *Device) error {
	if name == "" {
		return fmt.Errorf("device name is empty")
	}
	if err := d.Validate(); err != nil {
		return fmt.Errorf("device %s: %w", name, err)
	}
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	r.Devices[name] = d
	return nil
}

// RemoveDevice deletes the named device and reports whether it existed.
func (r *Registry) RemoveDevice(name string) bool {
	if _, ok := r.Devices[name]; !ok {
		return false
	}
	delete(r.Devices, name)
	return true
}

// UpdateDeviceLastSeen records a successful session with the device.
func (r *Registry) UpdateDeviceLastSeen(name string, t time.Time) {
	if d, ok := r.Devices[name]; ok {
		d.LastSeen = t
	}
}

// Endpoint returns host:port for TCP devices and the port name for serial
// devices.
func (d *Device) Endpoint() string {
	if d.Transport == string(transport.KindSerial) {
		return d.SerialPort
	}
	return net.JoinHostPort(d.Host, strconv.Itoa(d.Port))
}

// TransportOptions converts the device into transport settings.
func (d *Device) TransportOptions() transport.Options {
	opts := transport.Options{
		Kind:       transport.Kind(d.Transport),
		SerialPort: d.SerialPort,
		BaudRate:   d.BaudRate,
	}
	if opts.Kind == "" {
		opts.Kind = transport.KindTCP
	}
	if opts.Kind == transport.KindTCP {
		opts.Address = d.Endpoint()
	}
	return opts
}

// Duration is a time.Duration written as a Go duration string ("3s").
type Duration time.Duration

// D returns the value as a time.Duration.
func (d Duration) D() time.Duration { return time.Duration(d) }

func (d Duration) String() string { return time.Duration(d).String() }

// MarshalYAML writes the duration as a string.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalYAML accepts "250ms", "3s" and similar.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"3s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

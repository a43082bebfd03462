package config

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/muurk/signctl/internal/transport"
)

func TestGetConfigDir(t *testing.T) {
	configDir, err := GetConfigDir()
	if err != nil {
		t.Fatalf("GetConfigDir() error = %v", err)
	}
	if !strings.Contains(configDir, "signctl") {
		t.Errorf("GetConfigDir() = %v, should contain 'signctl'", configDir)
	}

	switch runtime.GOOS {
	case "windows":
		if !strings.Contains(configDir, "AppData") && !strings.Contains(configDir, "Local") {
			t.Errorf("Windows config dir should contain 'AppData' or 'Local', got: %v", configDir)
		}
	case "darwin", "linux":
		if os.Getenv("XDG_CONFIG_HOME") == "" && !strings.Contains(configDir, ".config") {
			t.Errorf("Unix config dir should contain '.config', got: %v", configDir)
		}
	}
}

func TestGetConfigDirHonoursXDG(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("XDG_CONFIG_HOME applies to linux only")
	}
	t.Setenv("XDG_CONFIG_HOME", "/tmp/xdg")
	dir, err := GetConfigDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/tmp/xdg", "signctl") {
		t.Errorf("GetConfigDir() = %q", dir)
	}
}

func TestGetConfigPath(t *testing.T) {
	configPath, err := GetConfigPath()
	if err != nil {
		t.Fatalf("GetConfigPath() error = %v", err)
	}
	if filepath.Base(configPath) != "config.yaml" {
		t.Errorf("GetConfigPath() should end with 'config.yaml', got: %v", configPath)
	}
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()

	if reg.Version != 1 {
		t.Errorf("Version = %v, want 1", reg.Version)
	}
	if reg.Devices == nil {
		t.Error("Devices should not be nil")
	}
	p := reg.Preferences
	if p.RequestTimeout.D() != 3*time.Second {
		t.Errorf("RequestTimeout = %v, want 3s", p.RequestTimeout)
	}
	if p.HeartbeatInterval.D() != 5*time.Second {
		t.Errorf("HeartbeatInterval = %v, want 5s", p.HeartbeatInterval)
	}
	if p.FailureThreshold != 3 {
		t.Errorf("FailureThreshold = %v, want 3", p.FailureThreshold)
	}
	if reg.Server.Listen != DefaultListen {
		t.Errorf("Listen = %q", reg.Server.Listen)
	}
}

func validDevice() *Device {
	return &Device{Host: "10.0.0.5", Port: 4001, Address: "01", SeedOffset: "20", PasswordOffset: "5A5A"}
}

func TestDeviceValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *Device)
		wantErr string
	}{
		{"valid tcp", func(d *Device) {}, ""},
		{"missing host", func(d *Device) { d.Host = "" }, "host is required"},
		{"port zero", func(d *Device) { d.Port = 0 }, "out of range"},
		{"port too large", func(d *Device) { d.Port = 70000 }, "out of range"},
		{"address length", func(d *Device) { d.Address = "1" }, "two characters"},
		{"address hex", func(d *Device) { d.Address = "ZZ" }, "not hex"},
		{"seed offset missing", func(d *Device) { d.SeedOffset = "" }, "seed_offset is required"},
		{"password offset long", func(d *Device) { d.PasswordOffset = "12345" }, "longer than 4"},
		{"password offset hex", func(d *Device) { d.PasswordOffset = "XY" }, "not hex"},
		{"bad transport", func(d *Device) { d.Transport = "udp" }, "not tcp or serial"},
		{"serial without port", func(d *Device) { d.Transport = "serial"; d.Host = "" }, "serial_port is required"},
		{"serial valid", func(d *Device) { d.Transport = "serial"; d.SerialPort = "/dev/ttyUSB0"; d.Host = "" }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDevice()
			tt.mutate(d)
			err := d.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() error = %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Validate() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRegistryAddRemoveDevice(t *testing.T) {
	reg := NewRegistry()

	if err := reg.AddDevice("", validDevice()); err == nil {
		t.Error("AddDevice with empty name should fail")
	}
	bad := validDevice()
	bad.Address = ""
	if err := reg.AddDevice("bad", bad); err == nil {
		t.Error("AddDevice with invalid device should fail")
	}
	if err := reg.AddDevice("b", validDevice()); err != nil {
		t.Fatal(err)
	}
	if err := reg.AddDevice("a", validDevice()); err != nil {
		t.Fatal(err)
	}
	if got := strings.Join(reg.DeviceNames(), ","); got != "a,b" {
		t.Errorf("DeviceNames() = %s", got)
	}
	if !reg.RemoveDevice("a") || reg.RemoveDevice("a") {
		t.Error("RemoveDevice should succeed once")
	}
}

func TestRegistryUpdateDeviceLastSeen(t *testing.T) {
	reg := NewRegistry()
	_ = reg.AddDevice("gantry", validDevice())

	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	reg.UpdateDeviceLastSeen("gantry", now)
	reg.UpdateDeviceLastSeen("missing", now)

	if !reg.GetDevice("gantry").LastSeen.Equal(now) {
		t.Errorf("LastSeen = %v", reg.GetDevice("gantry").LastSeen)
	}
}

func TestTransportOptions(t *testing.T) {
	d := validDevice()
	opts := d.TransportOptions()
	if opts.Kind != transport.KindTCP || opts.Address != "10.0.0.5:4001" {
		t.Errorf("tcp options = %+v", opts)
	}

	d = &Device{Transport: "serial", SerialPort: "/dev/ttyS0", BaudRate: 19200}
	opts = d.TransportOptions()
	if opts.Kind != transport.KindSerial || opts.SerialPort != "/dev/ttyS0" || opts.BaudRate != 19200 || opts.Address != "" {
		t.Errorf("serial options = %+v", opts)
	}
}

func TestParse(t *testing.T) {
	data := []byte(`version: 1
devices:
  gantry-01:
    host: 10.20.0.15
    port: 4001
    address: "01"
    seed_offset: "20"
    password_offset: "5A5A"
preferences:
  request_timeout: 1500ms
  heartbeat_interval: 10s
`)
	reg, err := Parse(data)
	if err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	if reg.Preferences.RequestTimeout.D() != 1500*time.Millisecond {
		t.Errorf("RequestTimeout = %v", reg.Preferences.RequestTimeout)
	}
	if reg.Preferences.HeartbeatInterval.D() != 10*time.Second {
		t.Errorf("HeartbeatInterval = %v", reg.Preferences.HeartbeatInterval)
	}
	if reg.Preferences.FailureThreshold != DefaultFailureThreshold {
		t.Errorf("FailureThreshold = %d, want default", reg.Preferences.FailureThreshold)
	}
	if reg.Preferences.ReadTimeout.D() != DefaultReadTimeout {
		t.Errorf("ReadTimeout = %v, want default", reg.Preferences.ReadTimeout)
	}
	if d := reg.GetDevice("gantry-01"); d == nil || d.PasswordOffset != "5A5A" {
		t.Errorf("device = %+v", d)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{"version", "version: 2\n", "unsupported config version"},
		{"bad duration", "version: 1\npreferences:\n  request_timeout: soon\n", "invalid duration"},
		{"bad device", "version: 1\ndevices:\n  x:\n    host: h\n    port: 1\n    address: \"1\"\n    seed_offset: \"0\"\n    password_offset: \"0\"\n", "device x"},
		{"yaml", "version: [", "failed to parse"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.data))
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("Parse() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestRegistrySaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	reg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() missing file error = %v", err)
	}
	if len(reg.Devices) != 0 || reg.Path() != path {
		t.Fatalf("Load() missing file = %+v", reg)
	}

	if err := reg.AddDevice("gantry", validDevice()); err != nil {
		t.Fatal(err)
	}
	reg.Preferences.HeartbeatInterval = Duration(7 * time.Second)
	if err := reg.Save(); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0600 {
		t.Errorf("config mode = %v, want 0600", info.Mode().Perm())
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}

	raw, _ := os.ReadFile(path)
	if !strings.HasPrefix(string(raw), "# signctl configuration file") {
		t.Error("saved file is missing header comment")
	}
	if !strings.Contains(string(raw), "heartbeat_interval: 7s") {
		t.Errorf("durations should be written as strings:\n%s", raw)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Preferences.HeartbeatInterval.D() != 7*time.Second {
		t.Errorf("HeartbeatInterval = %v", loaded.Preferences.HeartbeatInterval)
	}
	d := loaded.GetDevice("gantry")
	if d == nil || d.Endpoint() != "10.0.0.5:4001" || d.SeedOffset != "20" {
		t.Errorf("device = %+v", d)
	}
}

func TestCreateDefaultConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	reg, err := CreateDefaultConfig(path, false)
	if err != nil {
		t.Fatalf("CreateDefaultConfig() error = %v", err)
	}
	if reg.GetDevice("example") == nil {
		t.Error("example device missing")
	}
	if _, err := CreateDefaultConfig(path, false); err == nil {
		t.Error("second CreateDefaultConfig without force should fail")
	}
	if _, err := CreateDefaultConfig(path, true); err != nil {
		t.Errorf("CreateDefaultConfig(force) error = %v", err)
	}
	if _, err := Load(path); err != nil {
		t.Errorf("default config does not load: %v", err)
	}
}

func BenchmarkParse(b *testing.B) {
	data := []byte("version: 1\ndevices:\n  a:\n    host: h\n    port: 1\n    address: \"01\"\n    seed_offset: \"0\"\n    password_offset: \"0\"\n")
	for i := 0; i < b.N; i++ {
		_, _ = Parse(data)
	}
}

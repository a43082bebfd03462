package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"
)

const (
	appName    = "signctl"
	configFile = "config.yaml"
)

// fileMutex serializes writes from this process.
var fileMutex sync.Mutex

// GetConfigDir returns the OS-appropriate configuration directory.
//   - Linux: $XDG_CONFIG_HOME/signctl or $HOME/.config/signctl
//   - macOS: $HOME/.config/signctl
//   - Windows: %LOCALAPPDATA%\signctl
func GetConfigDir() (string, error) {
	var baseDir string

	switch runtime.GOOS {
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			userProfile := os.Getenv("USERPROFILE")
			if userProfile == "" {
				return "", fmt.Errorf("cannot determine user profile directory (LOCALAPPDATA and USERPROFILE not set)")
			}
			baseDir = filepath.Join(userProfile, "AppData", "Local", appName)
		} else {
			baseDir = filepath.Join(localAppData, appName)
		}

	case "darwin":
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("cannot determine home directory: %w", err)
		}
		baseDir = filepath.Join(homeDir, ".config", appName)

	default:
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			baseDir = filepath.Join(xdg, appName)
		} else {
			homeDir, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("cannot determine home directory: %w", err)
			}
			baseDir = filepath.Join(homeDir, ".config", appName)
		}
	}

	return baseDir, nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, configFile), nil
}

// Load reads the registry at path, or at GetConfigPath when path is empty.
// A missing file yields a new default registry bound to that path.
func Load(path string) (*Registry, error) {
	if path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return nil, fmt.Errorf("failed to get config path: %w", err)
		}
		path = p
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		r := NewRegistry()
		r.path = path
		return r, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	r, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	r.path = path
	return r, nil
}

// Parse decodes and validates registry YAML, filling defaults.
func Parse(data []byte) (*Registry, error) {
	var r Registry
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if r.Devices == nil {
		r.Devices = make(map[string]*Device)
	}
	if r.Preferences == nil {
		r.Preferences = DefaultPreferences()
	}
	r.Preferences.fillDefaults()
	if r.Server == nil {
		r.Server = &ServerPrefs{}
	}
	if r.Server.Listen == "" {
		r.Server.Listen = DefaultListen
	}
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return &r, nil
}

// Path returns the file the registry was loaded from or will be saved to.
func (r *Registry) Path() string { return r.path }

// SetPath changes the save location.
func (r *Registry) SetPath(path string) { r.path = path }

// DeviceNames returns the configured device names in sorted order.
func (r *Registry) DeviceNames() []string {
	names := make([]string, 0, len(r.Devices))
	for name := range r.Devices {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Save writes the registry atomically to its path.
func (r *Registry) Save() error {
	fileMutex.Lock()
	defer fileMutex.Unlock()

	if r.path == "" {
		p, err := GetConfigPath()
		if err != nil {
			return fmt.Errorf("failed to get config path: %w", err)
		}
		r.path = p
	}
	if err := os.MkdirAll(filepath.Dir(r.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(r)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte(`# signctl configuration file
# Sign controllers supervised by signctl and shared session timings.
#
# Location: ` + r.path + `

`)
	data = append(header, data...)

	tmpPath := r.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0600); err != nil {
		return fmt.Errorf("failed to write temporary config file: %w", err)
	}
	if err := os.Rename(tmpPath, r.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

// CreateDefaultConfig writes a starter configuration with one example
// controller to path. An existing file is left untouched unless force is set.
func CreateDefaultConfig(path string, force bool) (*Registry, error) {
	r := NewRegistry()
	if path != "" {
		r.path = path
	}
	if !force && r.path != "" {
		if _, err := os.Stat(r.path); err == nil {
			return nil, fmt.Errorf("config file %s already exists", r.path)
		}
	}

	r.Devices["example"] = &Device{
		Host:           "127.0.0.1",
		Port:           4001,
		Address:        "01",
		SeedOffset:     "00",
		PasswordOffset: "0000",
		Disabled:       true,
	}
	if err := r.Save(); err != nil {
		return nil, err
	}
	return r, nil
}

// Package config manages the signctl configuration file: the sign
// controllers to supervise and the timing preferences shared by all of them.
//
// # Configuration File Location
//
// The configuration file is stored in platform-appropriate locations:
//   - Linux: $XDG_CONFIG_HOME/signctl/config.yaml or $HOME/.config/signctl/config.yaml
//   - macOS: $HOME/.config/signctl/config.yaml
//   - Windows: %LOCALAPPDATA%\signctl\config.yaml
//
// Every command also accepts an explicit --config path.
//
// # Example
//
//	version: 1
//	devices:
//	  gantry-01:
//	    host: 10.20.0.15
//	    port: 4001
//	    address: "01"
//	    seed_offset: "20"
//	    password_offset: "5A5A"
//	preferences:
//	  request_timeout: 3s
//	  heartbeat_interval: 5s
//
// # Usage Example
//
//	registry, err := config.Load("")
//	if err != nil {
//	    return err
//	}
//	if err := registry.AddDevice("gantry-02", dev); err != nil {
//	    return err
//	}
//	if err := registry.Save(); err != nil {
//	    return err
//	}
//
// # Thread Safety
//
// A Registry is not safe for concurrent mutation. File writes are serialized
// by a package mutex and are atomic (temp file plus rename).
package config

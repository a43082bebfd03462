package discovery

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/muurk/signctl/internal/config"
	"github.com/muurk/signctl/internal/transport"
)

// Controller is a sign controller seen on the network.
type Controller struct {
	// Instance is the mDNS instance name (e.g. "Gantry M1 North").
	Instance string

	// Hostname is the mDNS hostname (e.g. "vms-0412.local.")
	Hostname string

	IP   string
	Port int

	// Address is the controller address from the "addr" TXT key, or
	// DefaultAddress when absent.
	Address string

	// Metadata contains all TXT record pairs.
	Metadata map[string]string

	DiscoveredAt time.Time
}

func (c *Controller) String() string {
	return fmt.Sprintf("%s (addr %s) at %s", c.Instance, c.Address, c.Endpoint())
}

// Endpoint returns host:port, bracketing IPv6 addresses.
func (c *Controller) Endpoint() string {
	return net.JoinHostPort(c.IP, strconv.Itoa(c.Port))
}

// GetMetadata retrieves a TXT value by key, or returns empty string if not found
func (c *Controller) GetMetadata(key string) string {
	if c.Metadata == nil {
		return ""
	}
	return c.Metadata[key]
}

// Name derives a registry key from the instance name: lower case, with runs
// of anything other than letters and digits collapsed to "-".
func (c *Controller) Name() string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(c.Instance) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			dash = false
			continue
		}
		if b.Len() > 0 && !dash {
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}

// ToConfig returns a TCP device entry for the controller with the given
// credentials.
func (c *Controller) ToConfig(seedOffset, passwordOffset string) *config.Device {
	return &config.Device{
		Transport:      string(transport.KindTCP),
		Host:           c.IP,
		Port:           c.Port,
		Address:        c.Address,
		SeedOffset:     seedOffset,
		PasswordOffset: passwordOffset,
	}
}

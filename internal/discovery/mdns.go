package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/grandcat/zeroconf"
	"go.uber.org/zap"

	"github.com/muurk/signctl/internal/logging"
)

const (
	// ServiceType is the mDNS service type registered by controllers.
	ServiceType = "_tsisp003._tcp"

	// GatewayServiceType is the service type a running "signctl serve"
	// advertises.
	GatewayServiceType = "_signctl._tcp"

	// ServiceDomain is the mDNS domain (typically "local.")
	ServiceDomain = "local."

	// DefaultScanTimeout is the default timeout for controller discovery
	DefaultScanTimeout = 5 * time.Second

	// DefaultPort is used when an entry advertises port 0.
	DefaultPort = 4001

	// DefaultAddress is used when an entry has no "addr" TXT key.
	DefaultAddress = "01"
)

// Scanner handles mDNS controller discovery
type Scanner struct {
	// Timeout is the maximum time to wait for controller discovery
	Timeout time.Duration

	// Service overrides ServiceType when set.
	Service string
}

// NewScanner creates a new mDNS scanner with default settings
func NewScanner() *Scanner {
	return &Scanner{
		Timeout: DefaultScanTimeout,
		Service: ServiceType,
	}
}

func (s *Scanner) service() string {
	if s.Service == "" {
		return ServiceType
	}
	return s.Service
}

// Scan browses for controllers until the timeout elapses or ctx is
// cancelled, and returns every distinct instance seen.
func (s *Scanner) Scan(ctx context.Context) ([]*Controller, error) {
	var (
		mu    sync.Mutex
		found []*Controller
		seen  = make(map[string]bool)
	)
	err := s.browse(ctx, func(c *Controller) bool {
		mu.Lock()
		defer mu.Unlock()
		if !seen[c.Instance] {
			seen[c.Instance] = true
			found = append(found, c)
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	mu.Lock()
	defer mu.Unlock()
	return found, nil
}

// WaitFor returns the first controller whose instance name matches,
// case-insensitively.
func (s *Scanner) WaitFor(ctx context.Context, instance string) (*Controller, error) {
	var match *Controller
	err := s.browse(ctx, func(c *Controller) bool {
		if match == nil && strings.EqualFold(c.Instance, instance) {
			match = c
			return true
		}
		return false
	})
	if err != nil {
		return nil, err
	}
	if match == nil {
		return nil, fmt.Errorf("controller %q not found within %s", instance, s.Timeout)
	}
	return match, nil
}

// browse feeds parsed entries to visit until it returns true or the scan
// times out. visit is never called after browse returns.
func (s *Scanner) browse(ctx context.Context, visit func(*Controller) bool) error {
	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	resolver, err := zeroconf.NewResolver(nil)
	if err != nil {
		return fmt.Errorf("failed to create mDNS resolver: %w", err)
	}

	entries := make(chan *zeroconf.ServiceEntry)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for entry := range entries {
			c := parseServiceEntry(entry)
			if c == nil {
				continue
			}
			logging.Debug("Controller discovered",
				zap.String("instance", c.Instance),
				zap.String("endpoint", c.Endpoint()))
			if visit(c) {
				cancel()
			}
		}
	}()

	if err := resolver.Browse(ctx, s.service(), ServiceDomain, entries); err != nil {
		return fmt.Errorf("failed to browse for mDNS services: %w", err)
	}

	<-ctx.Done()
	// zeroconf closes entries once the browse context is done.
	<-done
	return nil
}

// parseServiceEntry converts a zeroconf service entry to a Controller.
// Entries without an address are ignored.
func parseServiceEntry(entry *zeroconf.ServiceEntry) *Controller {
	if entry == nil || entry.Instance == "" {
		return nil
	}

	var ip string
	for _, addr := range entry.AddrIPv4 {
		ip = addr.String()
		break
	}
	if ip == "" && len(entry.AddrIPv6) > 0 {
		ip = entry.AddrIPv6[0].String()
	}
	if ip == "" {
		return nil
	}

	port := entry.Port
	if port == 0 {
		port = DefaultPort
	}

	metadata := parseTXT(entry.Text)
	address := strings.ToUpper(metadata["addr"])
	if len(address) != 2 {
		address = DefaultAddress
	}

	return &Controller{
		Instance:     entry.Instance,
		Hostname:     entry.HostName,
		IP:           ip,
		Port:         port,
		Address:      address,
		Metadata:     metadata,
		DiscoveredAt: time.Now(),
	}
}

// parseTXT splits "key=value" records; a bare key maps to "".
func parseTXT(records []string) map[string]string {
	metadata := make(map[string]string, len(records))
	for _, txt := range records {
		key, value, _ := strings.Cut(txt, "=")
		metadata[key] = value
	}
	return metadata
}

// Advertisement is a registered mDNS service.
type Advertisement struct {
	server *zeroconf.Server
}

// Advertise registers a GatewayServiceType instance on port. Call Shutdown to
// withdraw it.
func Advertise(instance string, port int, txt []string) (*Advertisement, error) {
	return register(instance, GatewayServiceType, port, txt)
}

// AdvertiseController registers a ServiceType instance for a controller
// listening on port, so that Scan finds it.
func AdvertiseController(instance string, port int, address string) (*Advertisement, error) {
	return register(instance, ServiceType, port, []string{"addr=" + address, "transport=tcp"})
}

func register(instance, service string, port int, txt []string) (*Advertisement, error) {
	server, err := zeroconf.Register(instance, service, ServiceDomain, port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	logging.Info("Advertising service",
		zap.String("instance", instance),
		zap.String("service", service),
		zap.Int("port", port))
	return &Advertisement{server: server}, nil
}

// Shutdown withdraws the advertisement.
func (a *Advertisement) Shutdown() {
	if a != nil && a.server != nil {
		a.server.Shutdown()
	}
}

// GatewayTXT builds the TXT records for a gateway serving the given device
// names.
func GatewayTXT(version string, devices []string) []string {
	return []string{
		"version=" + version,
		"path=/api",
		"devices=" + strings.Join(devices, ","),
	}
}

// PortOf extracts the port from a listen address such as ":8080".
func PortOf(addr net.Addr) int {
	if tcp, ok := addr.(*net.TCPAddr); ok {
		return tcp.Port
	}
	return 0
}
